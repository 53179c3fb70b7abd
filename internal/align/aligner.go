package align

import (
	"fmt"
	"strings"

	"mtf-signal-bot/internal/types"
)

// Aligner evaluates every configured horizon on its own; one horizon's
// result never depends on another's.
type Aligner struct {
	horizons []string
	bullish  []Predicate
	bearish  []Predicate
}

func New(horizons []string, t Thresholds) *Aligner {
	return &Aligner{
		horizons: append([]string(nil), horizons...),
		bullish:  BullishRules(t),
		bearish:  BearishRules(t),
	}
}

func (a *Aligner) Horizons() []string {
	return append([]string(nil), a.horizons...)
}

// Evaluate returns one bullish and one bearish verdict per configured
// horizon, in configuration order. Horizons absent from snaps count as no
// data.
func (a *Aligner) Evaluate(snaps map[string]types.Snapshot) (bullish, bearish []types.Verdict) {
	bullish = make([]types.Verdict, 0, len(a.horizons))
	bearish = make([]types.Verdict, 0, len(a.horizons))
	for _, h := range a.horizons {
		snap := snaps[h]
		bullish = append(bullish, verdict(h, types.Bullish, snap, a.bullish))
		bearish = append(bearish, verdict(h, types.Bearish, snap, a.bearish))
	}
	return bullish, bearish
}

func verdict(horizon string, dir types.Direction, snap types.Snapshot, rules []Predicate) types.Verdict {
	v := types.Verdict{Horizon: horizon, Direction: dir}
	if !snap.HasData() {
		v.Failing = []string{NoData}
		return v
	}
	v.Failing = Failing(rules, *snap.Row)
	v.Satisfied = len(v.Failing) == 0
	return v
}

// Explain renders a verdict as a one-line status message.
func Explain(v types.Verdict) string {
	dir := strings.ToLower(string(v.Direction))
	switch {
	case v.Satisfied:
		return fmt.Sprintf("[%s] All %s conditions met", v.Horizon, dir)
	case len(v.Failing) == 1 && v.Failing[0] == NoData:
		return fmt.Sprintf("[%s] No data available", v.Horizon)
	default:
		return fmt.Sprintf("[%s] %s missing: %s", v.Horizon, dir, strings.Join(v.Failing, ", "))
	}
}
