package brokerobs

import (
	"context"
	"fmt"
	"time"

	"mtf-signal-bot/internal/interfaces"
	"mtf-signal-bot/internal/logger"
	"mtf-signal-bot/internal/trace"
	"mtf-signal-bot/internal/types"
)

// observableBroker wraps a Broker with observability (logging & tracing)
type observableBroker struct {
	broker interfaces.Broker
}

// Compile-time interface check
var _ interfaces.Broker = (*observableBroker)(nil)

// Wrap wraps a broker with observability middleware
func Wrap(broker interfaces.Broker) interfaces.Broker {
	return &observableBroker{
		broker: broker,
	}
}

func (ob *observableBroker) FetchCandles(ctx context.Context, symbol string, interval time.Duration, count int) ([]types.Candle, error) {
	ctx, span := trace.StartSpan(ctx, "broker.FetchCandles")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching candles", "symbol", symbol, "interval", interval, "count", count)

	candles, err := ob.broker.FetchCandles(ctx, symbol, interval, count)
	if err != nil {
		trace.RecordError(ctx, err)
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch candles", err, "symbol", symbol, "interval", interval)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Candles fetched successfully", "symbol", symbol, "interval", interval, "count", len(candles))
	return candles, nil
}

func (ob *observableBroker) Quote(ctx context.Context, symbol string) (types.Quote, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Quote")
	defer span.End()

	q, err := ob.broker.Quote(ctx, symbol)
	if err != nil {
		trace.RecordError(ctx, err)
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch quote", err, "symbol", symbol)
		return types.Quote{}, err
	}

	logger.DebugSkip(ctx, 1, "Quote fetched", "symbol", symbol, "bid", q.Bid, "ask", q.Ask)
	return q, nil
}

func (ob *observableBroker) OpenPositions(ctx context.Context, symbol string) ([]types.Position, error) {
	ctx, span := trace.StartSpan(ctx, "broker.OpenPositions")
	defer span.End()

	ps, err := ob.broker.OpenPositions(ctx, symbol)
	if err != nil {
		trace.RecordError(ctx, err)
		logger.ErrorWithErrSkip(ctx, 1, "Failed to query positions", err, "symbol", symbol)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Positions fetched", "symbol", symbol, "count", len(ps))
	return ps, nil
}

// SubmitEntry places an entry order with observability
func (ob *observableBroker) SubmitEntry(ctx context.Context, intent types.TradeIntent) (string, error) {
	ctx, span := trace.StartSpan(ctx, "broker.SubmitEntry")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Placing entry order",
		"symbol", intent.Symbol,
		"side", intent.Side,
		"volume", intent.Volume,
		"sl", intent.StopLoss,
		"tp", intent.TakeProfit,
	)

	ticket, err := ob.broker.SubmitEntry(ctx, intent)
	if err != nil {
		trace.RecordError(ctx, err)
		logger.ErrorWithErrSkip(ctx, 1, "Failed to place entry order", err,
			"symbol", intent.Symbol,
			"side", intent.Side,
			"volume", intent.Volume,
		)
		return "", err
	}

	logger.InfoSkip(ctx, 1, "Entry order placed successfully", "symbol", intent.Symbol, "ticket", ticket)
	return ticket, nil
}

// SubmitExit places a closing order with observability
func (ob *observableBroker) SubmitExit(ctx context.Context, intent types.CloseIntent) error {
	ctx, span := trace.StartSpan(ctx, "broker.SubmitExit")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Placing exit order", "ticket", intent.Ticket, "side", intent.Side, "volume", intent.Volume)

	if err := ob.broker.SubmitExit(ctx, intent); err != nil {
		trace.RecordError(ctx, err)
		logger.ErrorWithErrSkip(ctx, 1, "Failed to place exit order", err, "ticket", intent.Ticket)
		return err
	}

	logger.InfoSkip(ctx, 1, "Exit order placed successfully", "ticket", intent.Ticket)
	return nil
}

func (ob *observableBroker) SymbolSpec(ctx context.Context, symbol string) (types.SymbolSpec, error) {
	ctx, span := trace.StartSpan(ctx, "broker.SymbolSpec")
	defer span.End()

	spec, err := ob.broker.SymbolSpec(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to resolve symbol", err, "symbol", symbol)
		return spec, err
	}
	logger.InfoSkip(ctx, 1, "Symbol resolved", "symbol", symbol, "tick_size", spec.TickSize, "tradable", spec.Tradable)
	return spec, nil
}

func (ob *observableBroker) Account(ctx context.Context) (types.Account, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Account")
	defer span.End()

	acct, err := ob.broker.Account(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch account", err)
		return acct, err
	}
	logger.InfoSkip(ctx, 1, "Account fetched", "account", acct.ID, "balance", acct.Balance, "currency", acct.Currency)
	return acct, nil
}

// Start initializes the broker with observability
func (ob *observableBroker) Start(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "broker.Start")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Starting broker")

	err := ob.broker.Start(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to start broker", err)
		return fmt.Errorf("broker start failed: %w", err)
	}

	logger.InfoSkip(ctx, 1, "Broker started successfully")
	return nil
}

// Stop shuts down the broker with observability
func (ob *observableBroker) Stop(ctx context.Context) {
	ctx, span := trace.StartSpan(ctx, "broker.Stop")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Stopping broker")
	ob.broker.Stop(ctx)
	logger.InfoSkip(ctx, 1, "Broker stopped successfully")
}
