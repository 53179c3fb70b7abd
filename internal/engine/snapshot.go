package engine

import (
	"context"
	"fmt"

	"mtf-signal-bot/internal/interfaces"
	"mtf-signal-bot/internal/store"
	"mtf-signal-bot/internal/types"
)

// recentBars is how many raw candles a snapshot keeps for pattern checks.
const recentBars = 3

type snapshotBuilder struct {
	candles interfaces.CandleSource
	symbol  string
	compute func([]types.Candle) []types.IndicatorRow
}

func newSnapshotBuilder(src interfaces.CandleSource, symbol string, compute func([]types.Candle) []types.IndicatorRow) *snapshotBuilder {
	return &snapshotBuilder{candles: src, symbol: symbol, compute: compute}
}

// build returns one snapshot per horizon. Horizons that could not be fetched
// or computed get an empty snapshot and an issue line; the rest are unaffected.
func (sb *snapshotBuilder) build(ctx context.Context, horizons []store.Horizon) (map[string]types.Snapshot, []string) {
	snaps := make(map[string]types.Snapshot, len(horizons))
	var issues []string
	for _, h := range horizons {
		s, err := sb.one(ctx, h)
		if err != nil {
			issues = append(issues, err.Error())
		}
		snaps[h.Label] = s
	}
	return snaps, issues
}

// reuse is build for horizons that may already have been evaluated this
// cycle. Snapshots with a matching label are taken from have.
func (sb *snapshotBuilder) reuse(ctx context.Context, horizons []store.Horizon, have map[string]types.Snapshot) (map[string]types.Snapshot, []string) {
	var missing []store.Horizon
	snaps := make(map[string]types.Snapshot, len(horizons))
	for _, h := range horizons {
		if s, ok := have[h.Label]; ok {
			snaps[h.Label] = s
			continue
		}
		missing = append(missing, h)
	}
	fresh, issues := sb.build(ctx, missing)
	for k, v := range fresh {
		snaps[k] = v
	}
	return snaps, issues
}

func (sb *snapshotBuilder) one(ctx context.Context, h store.Horizon) (types.Snapshot, error) {
	snap := types.Snapshot{Horizon: h.Label}

	candles, err := sb.candles.FetchCandles(ctx, sb.symbol, h.Interval, h.Bars)
	if err != nil {
		return snap, fmt.Errorf("%s: %w: %v", h.Label, types.ErrNoData, err)
	}
	rows := sb.compute(candles)
	if len(rows) == 0 {
		return snap, fmt.Errorf("%s: %w: %d candles gave no complete indicator row", h.Label, types.ErrNoData, len(candles))
	}

	row := rows[len(rows)-1]
	snap.Row = &row
	n := min(recentBars, len(candles))
	snap.Recent = append([]types.Candle(nil), candles[len(candles)-n:]...)
	return snap, nil
}
