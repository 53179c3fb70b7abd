// Package kite is the live gateway on Zerodha Kite Connect: historical
// candles resampled to the configured horizons, top-of-book quotes, net
// positions and tagged orders.
package kite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mtf-signal-bot/internal/interfaces"
	"mtf-signal-bot/internal/logger"
	"mtf-signal-bot/internal/types"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
)

type Params struct {
	Symbol       string
	APIKey       string
	AccessToken  string
	Exchange     string
	Product      string
	OrderTag     string
	MaxDeviation int // ticks a LIMIT entry may be away from the quote; 0 sends MARKET
	StreamQuotes bool
	QuoteMaxAge  time.Duration
}

type Gateway struct {
	p           Params
	api         api
	instruments *instrumentMapper
	stream      *quoteStream
	historical  *rateLimiter
	quotes      *rateLimiter
	now         func() time.Time
}

var _ interfaces.Broker = (*Gateway)(nil)

func New(p Params) (*Gateway, error) {
	if p.APIKey == "" || p.AccessToken == "" {
		return nil, errors.New("missing Kite API key/access token")
	}
	kc := kiteconnect.New(p.APIKey)
	kc.SetAccessToken(p.AccessToken)

	g := newGateway(p, kc)
	if p.StreamQuotes {
		g.stream = newQuoteStream(p.APIKey, p.AccessToken)
	}
	return g, nil
}

func newGateway(p Params, client api) *Gateway {
	return &Gateway{
		p:           p,
		api:         client,
		instruments: newInstrumentMapper(),
		historical:  newRateLimiter(historicalPerSecond),
		quotes:      newRateLimiter(quotePerSecond),
		now:         time.Now,
	}
}

// Start checks the session, loads the exchange's instrument list and
// subscribes the quote stream when enabled.
func (g *Gateway) Start(ctx context.Context) error {
	if _, err := g.api.GetUserProfile(); err != nil {
		return fmt.Errorf("kite session: %w", err)
	}
	list, err := g.api.GetInstrumentsByExchange(g.p.Exchange)
	if err != nil {
		return fmt.Errorf("load %s instruments: %w", g.p.Exchange, err)
	}
	for _, in := range list {
		g.instruments.add(in.Tradingsymbol, in.InstrumentToken, in.TickSize)
	}
	logger.Info(ctx, "Kite instruments loaded", "exchange", g.p.Exchange, "count", g.instruments.size())

	if g.stream != nil {
		in, ok := g.instruments.get(g.p.Symbol)
		if !ok {
			return fmt.Errorf("%w: %s:%s", interfaces.ErrSymbolNotTradable, g.p.Exchange, g.p.Symbol)
		}
		g.stream.start(ctx, []uint32{uint32(in.token)})
	}
	return nil
}

func (g *Gateway) Stop(ctx context.Context) {
	if g.stream != nil {
		g.stream.stop(ctx)
	}
}

func (g *Gateway) SymbolSpec(_ context.Context, symbol string) (types.SymbolSpec, error) {
	in, ok := g.instruments.get(symbol)
	if !ok {
		return types.SymbolSpec{Symbol: symbol}, fmt.Errorf("%w: %s:%s", interfaces.ErrSymbolNotTradable, g.p.Exchange, symbol)
	}
	return types.SymbolSpec{Symbol: symbol, TickSize: in.tick, Tradable: in.tick > 0}, nil
}

func (g *Gateway) Account(context.Context) (types.Account, error) {
	profile, err := g.api.GetUserProfile()
	if err != nil {
		return types.Account{}, fmt.Errorf("kite profile: %w", err)
	}
	margins, err := g.api.GetUserMargins()
	if err != nil {
		return types.Account{}, fmt.Errorf("kite margins: %w", err)
	}
	return types.Account{
		ID:       profile.UserID,
		Name:     profile.UserName,
		Currency: "INR",
		Balance:  margins.Equity.Net,
	}, nil
}

func (g *Gateway) FetchCandles(ctx context.Context, symbol string, interval time.Duration, count int) ([]types.Candle, error) {
	in, ok := g.instruments.get(symbol)
	if !ok {
		return nil, fmt.Errorf("unknown instrument %s:%s", g.p.Exchange, symbol)
	}
	n, err := pickInterval(interval)
	if err != nil {
		return nil, err
	}

	if err := g.historical.wait(ctx); err != nil {
		return nil, err
	}
	to := g.now()
	from := to.Add(-lookback(n, interval, count))
	data, err := g.api.GetHistoricalData(in.token, n.name, from, to, false, false)
	if err != nil {
		return nil, fmt.Errorf("historical %s %s: %w", symbol, n.name, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("historical %s %s: %w", symbol, n.name, types.ErrNoData)
	}

	candles := make([]types.Candle, 0, len(data))
	for _, d := range data {
		candles = append(candles, types.Candle{
			Ts:    d.Date.Unix(),
			Open:  d.Open,
			High:  d.High,
			Low:   d.Low,
			Close: d.Close,
			Vol:   float64(d.Volume),
		})
	}
	if interval != n.step {
		candles = resample(candles, interval, ist)
	}
	if len(candles) > count {
		candles = candles[len(candles)-count:]
	}
	return candles, nil
}

func (g *Gateway) Quote(ctx context.Context, symbol string) (types.Quote, error) {
	in, ok := g.instruments.get(symbol)
	if ok && g.stream != nil {
		if q, fresh := g.stream.latest(uint32(in.token), g.p.QuoteMaxAge); fresh {
			return q, nil
		}
	}

	if err := g.quotes.wait(ctx); err != nil {
		return types.Quote{}, err
	}
	key := g.p.Exchange + ":" + symbol
	quotes, err := g.api.GetQuote(key)
	if err != nil {
		return types.Quote{}, fmt.Errorf("quote %s: %w", key, err)
	}
	data, ok := quotes[key]
	if !ok {
		return types.Quote{}, fmt.Errorf("quote %s: %w", key, types.ErrNoData)
	}
	q, ok := topOfBook(data.Depth, data.LastPrice)
	if !ok {
		return types.Quote{}, fmt.Errorf("quote %s: empty book: %w", key, types.ErrNoData)
	}
	q.Ts = g.now().Unix()
	return q, nil
}
