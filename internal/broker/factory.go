// Package broker assembles the trading gateway selected by configuration.
package broker

import (
	"context"
	"fmt"

	"mtf-signal-bot/internal/broker/kite"
	"mtf-signal-bot/internal/broker/paper"
	"mtf-signal-bot/internal/interfaces"
	"mtf-signal-bot/internal/store"
	"mtf-signal-bot/internal/types"
)

type Credentials struct {
	APIKey      string
	AccessToken string
}

// New returns the gateway for cfg:
//
//	PAPER           simulated feed and paper book
//	KITE + LIVE     Kite market data and orders
//	KITE + DRY_RUN  Kite market data, orders filled in a paper book
func New(cfg *store.Config, creds Credentials) (interfaces.Broker, error) {
	switch cfg.Gateway {
	case "PAPER":
		return paper.New(paper.Params{
			Symbol:   cfg.Symbol,
			Currency: cfg.Paper.Currency,
			Balance:  cfg.Paper.Balance,
			Feed: paper.FeedParams{
				Seed:        cfg.Paper.Seed,
				StartPrice:  cfg.Paper.StartPrice,
				TickSize:    cfg.Paper.TickSize,
				SpreadTicks: cfg.Paper.SpreadTicks,
				Volatility:  cfg.Paper.Volatility,
			},
		}), nil
	case "KITE":
		g, err := kite.New(kite.Params{
			Symbol:       cfg.Symbol,
			APIKey:       creds.APIKey,
			AccessToken:  creds.AccessToken,
			Exchange:     cfg.Exchange,
			Product:      cfg.Product,
			OrderTag:     cfg.OrderTag,
			MaxDeviation: cfg.MaxDeviation,
			StreamQuotes: cfg.Kite.StreamQuotes,
			QuoteMaxAge:  cfg.Kite.QuoteMaxAge,
		})
		if err != nil {
			return nil, err
		}
		if cfg.DryRun() {
			return newSimulated(g, cfg.Paper.Balance, "INR"), nil
		}
		return g, nil
	}
	return nil, fmt.Errorf("unknown gateway '%s'", cfg.Gateway)
}

// simulated trades a live data gateway against a paper book.
type simulated struct {
	interfaces.Broker
	book *paper.Book
}

func newSimulated(data interfaces.Broker, balance float64, currency string) *simulated {
	return &simulated{Broker: data, book: paper.NewBook(data, balance, currency)}
}

func (s *simulated) OpenPositions(ctx context.Context, symbol string) ([]types.Position, error) {
	return s.book.OpenPositions(ctx, symbol)
}

func (s *simulated) SubmitEntry(ctx context.Context, intent types.TradeIntent) (string, error) {
	return s.book.SubmitEntry(ctx, intent)
}

func (s *simulated) SubmitExit(ctx context.Context, intent types.CloseIntent) error {
	return s.book.SubmitExit(ctx, intent)
}

// Account reports the live account name with the paper balance.
func (s *simulated) Account(ctx context.Context) (types.Account, error) {
	live, err := s.Broker.Account(ctx)
	if err != nil {
		return types.Account{}, err
	}
	paperAcct, err := s.book.Account(ctx)
	if err != nil {
		return types.Account{}, err
	}
	live.Balance = paperAcct.Balance
	live.Currency = paperAcct.Currency
	return live, nil
}
