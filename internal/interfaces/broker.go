package interfaces

import (
	"context"
	"errors"
	"time"

	"mtf-signal-bot/internal/types"
)

// ErrSymbolNotTradable is returned at bootstrap when the configured
// instrument is unknown or cannot be traded. It is fatal.
var ErrSymbolNotTradable = errors.New("symbol not tradable")

type CandleSource interface {
	// FetchCandles returns up to count bars ordered oldest first.
	FetchCandles(ctx context.Context, symbol string, interval time.Duration, count int) ([]types.Candle, error)
}

type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (types.Quote, error)
}

type PositionSource interface {
	OpenPositions(ctx context.Context, symbol string) ([]types.Position, error)
}

// OrderRouter submits orders. SubmitExit on a position that is already
// closed is a no-op and returns nil.
type OrderRouter interface {
	SubmitEntry(ctx context.Context, intent types.TradeIntent) (ticket string, err error)
	SubmitExit(ctx context.Context, intent types.CloseIntent) error
}

type InstrumentSource interface {
	SymbolSpec(ctx context.Context, symbol string) (types.SymbolSpec, error)
	Account(ctx context.Context) (types.Account, error)
}

type Broker interface {
	CandleSource
	QuoteSource
	PositionSource
	OrderRouter
	InstrumentSource
	Start(ctx context.Context) error
	Stop(ctx context.Context)
}
