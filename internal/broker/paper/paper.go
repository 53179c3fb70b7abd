// Package paper is a self-contained simulated gateway for dry runs: a
// deterministic price feed and an in-memory position book.
package paper

import (
	"context"
	"fmt"

	"mtf-signal-bot/internal/interfaces"
	"mtf-signal-bot/internal/logger"
	"mtf-signal-bot/internal/types"
)

type Params struct {
	Symbol   string
	Currency string
	Balance  float64
	Feed     FeedParams
}

type Gateway struct {
	*Feed
	*Book
	symbol string
	tick   float64
}

var _ interfaces.Broker = (*Gateway)(nil)

func New(p Params) *Gateway {
	feed := NewFeed(p.Feed)
	return &Gateway{
		Feed:   feed,
		Book:   NewBook(feed, p.Balance, p.Currency),
		symbol: p.Symbol,
		tick:   p.Feed.TickSize,
	}
}

func (g *Gateway) Start(ctx context.Context) error {
	logger.Info(ctx, "Paper gateway started", "symbol", g.symbol)
	return nil
}

func (g *Gateway) Stop(ctx context.Context) {
	logger.Info(ctx, "Paper gateway stopped", "symbol", g.symbol)
}

func (g *Gateway) SymbolSpec(_ context.Context, symbol string) (types.SymbolSpec, error) {
	if symbol != g.symbol {
		return types.SymbolSpec{Symbol: symbol}, fmt.Errorf("%w: paper gateway simulates only %s", interfaces.ErrSymbolNotTradable, g.symbol)
	}
	return types.SymbolSpec{Symbol: symbol, TickSize: g.tick, Tradable: true}, nil
}
