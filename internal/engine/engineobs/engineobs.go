package engineobs

import (
	"context"
	"time"

	"mtf-signal-bot/internal/interfaces"
	"mtf-signal-bot/internal/logger"
	"mtf-signal-bot/internal/metrics"
	"mtf-signal-bot/internal/trace"
	"mtf-signal-bot/internal/types"
)

type observableEngine struct {
	engine  interfaces.Engine
	metrics *metrics.Recorder
}

var _ interfaces.Engine = (*observableEngine)(nil)

// Wrap runs every cycle inside a span and records its duration. m may be nil.
func Wrap(eng interfaces.Engine, m *metrics.Recorder) interfaces.Engine {
	return &observableEngine{
		engine:  eng,
		metrics: m,
	}
}

func (oe *observableEngine) Step(ctx context.Context) (*types.CycleResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Step")
	defer span.End()

	start := time.Now()
	logger.InfoSkip(ctx, 1, "Starting evaluation cycle")

	result, err := oe.engine.Step(ctx)
	oe.metrics.ObserveCycle(time.Since(start), err)
	if err != nil {
		trace.RecordError(ctx, err)
		logger.ErrorWithErrSkip(ctx, 1, "Evaluation cycle failed", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	entry := ""
	if result.Entry != nil {
		entry = string(result.Entry.Intent.Side) + " " + result.Entry.Intent.Horizon
	}
	logger.InfoSkip(ctx, 1, "Evaluation cycle completed",
		"symbol", result.Symbol,
		"state", result.State,
		"entry", entry,
		"exits", len(result.Exits),
		"issues", len(result.Issues),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}
