package kite

import (
	"context"
	"sync"
	"time"

	"mtf-signal-bot/internal/logger"
	"mtf-signal-bot/internal/types"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"github.com/zerodha/gokiteconnect/v4/models"
	kiteticker "github.com/zerodha/gokiteconnect/v4/ticker"
)

// quoteStream keeps the latest top-of-book per instrument from the Kite
// WebSocket so quotes do not cost a REST call each cycle.
type quoteStream struct {
	apiKey      string
	accessToken string
	ticker      *kiteticker.Ticker
	tokens      []uint32

	mu     sync.RWMutex
	quotes map[uint32]types.Quote
	now    func() time.Time
}

func newQuoteStream(apiKey, accessToken string) *quoteStream {
	return &quoteStream{
		apiKey:      apiKey,
		accessToken: accessToken,
		quotes:      make(map[uint32]types.Quote),
		now:         time.Now,
	}
}

func (qs *quoteStream) start(ctx context.Context, tokens []uint32) {
	qs.tokens = tokens
	qs.ticker = kiteticker.New(qs.apiKey, qs.accessToken)

	qs.ticker.OnConnect(qs.onConnect)
	qs.ticker.OnError(qs.onError)
	qs.ticker.OnClose(qs.onClose)
	qs.ticker.OnReconnect(qs.onReconnect)
	qs.ticker.OnNoReconnect(qs.onNoReconnect)
	qs.ticker.OnTick(qs.onTick)
	qs.ticker.OnOrderUpdate(qs.onOrderUpdate)

	go func() {
		logger.Info(ctx, "Starting Kite quote stream", "tokens", tokens)
		qs.ticker.Serve()
	}()
}

func (qs *quoteStream) stop(ctx context.Context) {
	if qs.ticker != nil {
		logger.Info(ctx, "Stopping Kite quote stream")
		qs.ticker.Stop()
	}
}

// latest returns the streamed quote for token if it is younger than maxAge.
func (qs *quoteStream) latest(token uint32, maxAge time.Duration) (types.Quote, bool) {
	qs.mu.RLock()
	defer qs.mu.RUnlock()

	q, ok := qs.quotes[token]
	if !ok || qs.now().Sub(time.Unix(q.Ts, 0)) > maxAge {
		return types.Quote{}, false
	}
	return q, true
}

func (qs *quoteStream) store(token uint32, q types.Quote) {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	qs.quotes[token] = q
}

// Subscriptions are placed on every (re)connect.
func (qs *quoteStream) onConnect() {
	ctx := context.Background()
	logger.Info(ctx, "Kite quote stream connected")
	if err := qs.ticker.Subscribe(qs.tokens); err != nil {
		logger.ErrorWithErr(ctx, "Quote stream subscribe failed", err)
		return
	}
	if err := qs.ticker.SetMode(kiteticker.ModeFull, qs.tokens); err != nil {
		logger.ErrorWithErr(ctx, "Quote stream mode change failed", err)
	}
}

func (qs *quoteStream) onError(err error) {
	logger.ErrorWithErr(context.Background(), "Kite quote stream error", err)
}

func (qs *quoteStream) onClose(code int, reason string) {
	logger.Warn(context.Background(), "Kite quote stream closed", "code", code, "reason", reason)
}

func (qs *quoteStream) onReconnect(attempt int, delay time.Duration) {
	logger.Info(context.Background(), "Kite quote stream reconnecting", "attempt", attempt, "delay", delay)
}

func (qs *quoteStream) onNoReconnect(attempt int) {
	logger.Warn(context.Background(), "Kite quote stream gave up reconnecting", "attempt", attempt)
}

func (qs *quoteStream) onTick(tick models.Tick) {
	q, ok := topOfBook(tick.Depth, tick.LastPrice)
	if !ok {
		return
	}
	q.Ts = qs.now().Unix()
	qs.store(tick.InstrumentToken, q)
}

func (qs *quoteStream) onOrderUpdate(order kiteconnect.Order) {
	logger.Debug(context.Background(), "Order update received", "order_id", order.OrderID, "status", order.Status)
}

// topOfBook reads best bid and ask from market depth, falling back to the
// last traded price on an empty side.
func topOfBook(depth models.Depth, last float64) (types.Quote, bool) {
	bid, ask := depth.Buy[0].Price, depth.Sell[0].Price
	if bid <= 0 {
		bid = last
	}
	if ask <= 0 {
		ask = last
	}
	if bid <= 0 || ask <= 0 {
		return types.Quote{}, false
	}
	return types.Quote{Bid: bid, Ask: ask}, true
}
