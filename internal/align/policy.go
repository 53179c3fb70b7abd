package align

import (
	"fmt"

	"mtf-signal-bot/internal/types"
)

type Policy string

const (
	// Independent lets any single horizon open a trade.
	Independent Policy = "INDEPENDENT"
	// Full requires every horizon to agree on one direction.
	Full Policy = "FULL"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case Independent, Full:
		return Policy(s), nil
	}
	return "", fmt.Errorf("unknown alignment policy '%s'", s)
}

// Signal is the single entry a cycle may act on. Horizon names the snapshot
// whose ATR sizes the trade.
type Signal struct {
	Horizon   string
	Direction types.Direction
}

type TriggerOptions struct {
	Policy Policy
	// Allowed restricts which horizons may open a trade under Independent.
	// Empty means all.
	Allowed []string
	// Confirmation is the horizon whose ATR sizes a Full-alignment entry.
	Confirmation string
}

// Trigger picks at most one entry from a cycle's verdicts. Under
// Independent the first satisfied horizon in configuration order wins,
// bullish before bearish on the same horizon.
func Trigger(opts TriggerOptions, bullish, bearish []types.Verdict) (Signal, bool) {
	if opts.Policy == Full {
		switch {
		case allSatisfied(bullish):
			return Signal{Horizon: opts.Confirmation, Direction: types.Bullish}, true
		case allSatisfied(bearish):
			return Signal{Horizon: opts.Confirmation, Direction: types.Bearish}, true
		}
		return Signal{}, false
	}

	allowed := make(map[string]bool, len(opts.Allowed))
	for _, h := range opts.Allowed {
		allowed[h] = true
	}
	bear := make(map[string]bool, len(bearish))
	for _, v := range bearish {
		bear[v.Horizon] = v.Satisfied
	}

	for _, v := range bullish {
		if len(allowed) > 0 && !allowed[v.Horizon] {
			continue
		}
		if v.Satisfied {
			return Signal{Horizon: v.Horizon, Direction: types.Bullish}, true
		}
		if bear[v.Horizon] {
			return Signal{Horizon: v.Horizon, Direction: types.Bearish}, true
		}
	}
	return Signal{}, false
}

func allSatisfied(vs []types.Verdict) bool {
	if len(vs) == 0 {
		return false
	}
	for _, v := range vs {
		if !v.Satisfied {
			return false
		}
	}
	return true
}
