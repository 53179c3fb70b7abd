package align

import "mtf-signal-bot/internal/types"

type ExitThresholds struct {
	RSIOversold     float64
	RSIOverbought   float64
	StochOversold   float64
	StochOverbought float64
}

func DefaultExitThresholds() ExitThresholds {
	return ExitThresholds{RSIOversold: 30, RSIOverbought: 70, StochOversold: 20, StochOverbought: 80}
}

// ReversalRules lists the conditions that argue against a held position.
// Any single one is enough to exit.
func ReversalRules(held types.Side, t ExitThresholds) []Predicate {
	if held == types.Buy {
		return []Predicate{
			{"MACD", func(r types.IndicatorRow) bool { return r.MACD < r.MACDSignal && r.MACD < 0 }},
			{"RSI", func(r types.IndicatorRow) bool { return r.RSI < t.RSIOversold }},
			{"StochRSI", func(r types.IndicatorRow) bool {
				return r.StochK < t.StochOversold && r.StochD < t.StochOversold
			}},
		}
	}
	return []Predicate{
		{"MACD", func(r types.IndicatorRow) bool { return r.MACD > r.MACDSignal && r.MACD > 0 }},
		{"RSI", func(r types.IndicatorRow) bool { return r.RSI > t.RSIOverbought }},
		{"StochRSI", func(r types.IndicatorRow) bool {
			return r.StochK > t.StochOverbought && r.StochD > t.StochOverbought
		}},
	}
}

// Triggered returns the names of the rules that hold for r.
func Triggered(rules []Predicate, r types.IndicatorRow) []string {
	var out []string
	for _, p := range rules {
		if p.Eval(r) {
			out = append(out, p.Name)
		}
	}
	return out
}
