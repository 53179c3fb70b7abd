package engine

import (
	"context"
	"fmt"

	"mtf-signal-bot/internal/interfaces"
	"mtf-signal-bot/internal/logger"
	"mtf-signal-bot/internal/types"
)

// positionManager derives the lifecycle state from the gateway every cycle.
// Nothing is cached between cycles.
type positionManager struct {
	source interfaces.PositionSource
	symbol string
}

func newPositionManager(source interfaces.PositionSource, symbol string) *positionManager {
	return &positionManager{source: source, symbol: symbol}
}

// load returns the open positions on the symbol and the state they imply.
// Positions with an unknown side cannot be monitored and are reported.
func (pm *positionManager) load(ctx context.Context) ([]types.Position, types.PositionState, []string, error) {
	all, err := pm.source.OpenPositions(ctx, pm.symbol)
	if err != nil {
		return nil, types.StateUnknown, nil, fmt.Errorf("load positions: %w", err)
	}

	var (
		open   []types.Position
		issues []string
	)
	for _, p := range all {
		if p.Symbol != "" && p.Symbol != pm.symbol {
			continue
		}
		if !p.Side.Valid() {
			issues = append(issues, fmt.Sprintf("position %s has unknown side '%s'", p.Ticket, p.Side))
			continue
		}
		open = append(open, p)
	}

	if len(open) == 0 && len(issues) == 0 {
		return nil, types.StateFlat, nil, nil
	}
	if len(open) > 1 {
		logger.Warn(ctx, "More than one open position, monitoring each", "symbol", pm.symbol, "count", len(open))
		issues = append(issues, fmt.Sprintf("%d open positions on %s, expected at most one", len(open), pm.symbol))
	}
	return open, types.StateInPosition, issues, nil
}
