package engine

import (
	"mtf-signal-bot/internal/align"
	"mtf-signal-bot/internal/types"
)

// exitManager checks held positions against the reversal rules on the
// monitoring horizons. A single rule on a single horizon is enough.
type exitManager struct {
	thresholds align.ExitThresholds
}

func newExitManager(t align.ExitThresholds) *exitManager {
	return &exitManager{thresholds: t}
}

// reversals lists "<horizon>: <rule>" for every reversal rule holding
// against pos, horizons in the given order. Horizons without data are skipped.
func (em *exitManager) reversals(pos types.Position, horizons []string, snaps map[string]types.Snapshot) []string {
	rules := align.ReversalRules(pos.Side, em.thresholds)
	var out []string
	for _, h := range horizons {
		s, ok := snaps[h]
		if !ok || !s.HasData() {
			continue
		}
		for _, name := range align.Triggered(rules, *s.Row) {
			out = append(out, h+": "+name)
		}
	}
	return out
}
