package engine

import (
	"time"

	"mtf-signal-bot/internal/interfaces"
	"mtf-signal-bot/internal/metrics"
	"mtf-signal-bot/internal/store"
	"mtf-signal-bot/internal/ta"
	"mtf-signal-bot/internal/types"
)

// Market is the part of the gateway the engine uses during a cycle.
type Market interface {
	interfaces.CandleSource
	interfaces.QuoteSource
	interfaces.PositionSource
	interfaces.OrderRouter
	interfaces.InstrumentSource
}

// Deps carries the engine's collaborators. Only Market is required.
type Deps struct {
	Market   Market
	Notifier interfaces.Notifier
	Recorder interfaces.TradeRecorder
	Metrics  *metrics.Recorder
	// Pattern is the advisory chart-pattern hook. Nil disables it.
	Pattern ta.PatternFunc
	// Indicators overrides the indicator pipeline built from the config.
	Indicators func([]types.Candle) []types.IndicatorRow
	Now        func() time.Time
}

func New(cfg *store.Config, deps Deps) interfaces.Engine {
	return newEngine(cfg, deps)
}
