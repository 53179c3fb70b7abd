// Package align checks indicator rows against ordered, named entry and
// reversal rules and reports which ones failed.
package align

import "mtf-signal-bot/internal/types"

// NoData is the only failing condition reported for a horizon without rows.
const NoData = "No data"

type Predicate struct {
	Name string
	Eval func(r types.IndicatorRow) bool
}

type Thresholds struct {
	RSIMidline float64
	StochUpper float64
	StochLower float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{RSIMidline: 50, StochUpper: 80, StochLower: 20}
}

// BullishRules lists the entry conditions for a long, in reporting order.
func BullishRules(t Thresholds) []Predicate {
	return []Predicate{
		{"EMA", func(r types.IndicatorRow) bool { return r.EMAShort > r.EMALong }},
		{"MACD", func(r types.IndicatorRow) bool { return r.MACD > r.MACDSignal && r.MACD > 0 }},
		{"Volume Oscillator", func(r types.IndicatorRow) bool { return r.VolOsc > 0 }},
		{"SAR", func(r types.IndicatorRow) bool { return r.SAR < r.Close }},
		{"RSI", func(r types.IndicatorRow) bool { return r.RSI > t.RSIMidline }},
		{"StochRSI", func(r types.IndicatorRow) bool {
			return r.StochK > r.StochD && r.StochK < t.StochUpper && r.StochD < t.StochUpper
		}},
	}
}

// BearishRules mirrors BullishRules comparison by comparison.
func BearishRules(t Thresholds) []Predicate {
	return []Predicate{
		{"EMA", func(r types.IndicatorRow) bool { return r.EMAShort < r.EMALong }},
		{"MACD", func(r types.IndicatorRow) bool { return r.MACD < r.MACDSignal && r.MACD < 0 }},
		{"Volume Oscillator", func(r types.IndicatorRow) bool { return r.VolOsc < 0 }},
		{"SAR", func(r types.IndicatorRow) bool { return r.SAR > r.Close }},
		{"RSI", func(r types.IndicatorRow) bool { return r.RSI < t.RSIMidline }},
		{"StochRSI", func(r types.IndicatorRow) bool {
			return r.StochK < r.StochD && r.StochK > t.StochLower && r.StochD > t.StochLower
		}},
	}
}

// Failing returns the names of the predicates that do not hold for r, in
// declaration order.
func Failing(rules []Predicate, r types.IndicatorRow) []string {
	var out []string
	for _, p := range rules {
		if !p.Eval(r) {
			out = append(out, p.Name)
		}
	}
	return out
}
