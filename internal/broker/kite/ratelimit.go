package kite

import (
	"context"
	"sync"
	"time"
)

// Kite Connect per-endpoint request limits.
const (
	historicalPerSecond = 3
	quotePerSecond      = 1
)

// rateLimiter is a token bucket refilled one token per interval.
type rateLimiter struct {
	tokens     int
	maxTokens  int
	refill     time.Duration
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex
}

func newRateLimiter(perSecond int) *rateLimiter {
	return &rateLimiter{
		tokens:     perSecond,
		maxTokens:  perSecond,
		refill:     time.Second / time.Duration(perSecond),
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// wait blocks until a token is available or ctx is done.
func (rl *rateLimiter) wait(ctx context.Context) error {
	for {
		if rl.tryAcquire() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (rl *rateLimiter) tryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if add := int(now.Sub(rl.lastRefill) / rl.refill); add > 0 {
		rl.tokens = min(rl.tokens+add, rl.maxTokens)
		rl.lastRefill = rl.lastRefill.Add(time.Duration(add) * rl.refill)
	}
	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}
