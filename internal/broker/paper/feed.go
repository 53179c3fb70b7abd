package paper

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"mtf-signal-bot/internal/types"
)

const (
	samplesPerBar = 12
	slowCycle     = 30 * 24 * time.Hour
	fastCycle     = 3 * 24 * time.Hour
)

// Feed synthesizes prices as a deterministic function of time: two slow
// sine cycles for trend plus seeded noise. The same instant always has the
// same price, so candles of different horizons agree with each other and
// with the quotes.
type Feed struct {
	seed       uint64
	start      float64
	tick       float64
	spread     float64
	volatility float64
	now        func() time.Time
}

type FeedParams struct {
	Seed        int64
	StartPrice  float64
	TickSize    float64
	SpreadTicks int
	Volatility  float64
}

func NewFeed(p FeedParams) *Feed {
	return &Feed{
		seed:       uint64(p.Seed),
		start:      p.StartPrice,
		tick:       p.TickSize,
		spread:     float64(p.SpreadTicks) * p.TickSize,
		volatility: p.Volatility,
		now:        time.Now,
	}
}

// priceAt is the mid price at minute resolution.
func (f *Feed) priceAt(t time.Time) float64 {
	sec := float64(t.Unix())
	trend := 0.03*math.Sin(2*math.Pi*sec/slowCycle.Seconds()) +
		0.01*math.Sin(2*math.Pi*sec/fastCycle.Seconds())
	noise := f.noise(t.Unix()/60)*2 - 1
	return f.round(f.start * (1 + trend + f.volatility*noise))
}

func (f *Feed) noise(key int64) float64 {
	return rand.New(rand.NewPCG(f.seed, uint64(key))).Float64()
}

func (f *Feed) round(p float64) float64 {
	if f.tick <= 0 {
		return p
	}
	return math.Round(p/f.tick) * f.tick
}

// FetchCandles returns the count most recent closed bars of the interval.
func (f *Feed) FetchCandles(ctx context.Context, _ string, interval time.Duration, count int) ([]types.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if interval <= 0 || count <= 0 {
		return nil, errors.New("interval and count must be positive")
	}

	step := int64(interval / time.Second)
	lastOpen := f.now().Unix()/step*step - step
	out := make([]types.Candle, 0, count)
	for i := count - 1; i >= 0; i-- {
		out = append(out, f.bar(lastOpen-int64(i)*step, interval))
	}
	return out, nil
}

func (f *Feed) bar(open int64, interval time.Duration) types.Candle {
	t0 := time.Unix(open, 0)
	c := types.Candle{Ts: open, Open: f.priceAt(t0)}
	c.High, c.Low = c.Open, c.Open
	for i := 1; i <= samplesPerBar; i++ {
		p := f.priceAt(t0.Add(interval * time.Duration(i) / samplesPerBar))
		c.High = math.Max(c.High, p)
		c.Low = math.Min(c.Low, p)
		c.Close = p
	}
	c.TickVol = math.Round(100 + 900*f.noise(open^0x5bd1e995))
	return c
}

func (f *Feed) Quote(ctx context.Context, _ string) (types.Quote, error) {
	if err := ctx.Err(); err != nil {
		return types.Quote{}, err
	}
	now := f.now()
	mid := f.priceAt(now)
	return types.Quote{
		Bid: f.round(mid - f.spread/2),
		Ask: f.round(mid + f.spread/2),
		Ts:  now.Unix(),
	}, nil
}
