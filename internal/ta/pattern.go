package ta

import "mtf-signal-bot/internal/types"

// PatternFunc scores recent candles. It is advisory and never gates a trade.
type PatternFunc func(candles []types.Candle) types.Pattern

// DetectPattern flags a two-bar trend continuation: the last bar closes and
// makes a high above the previous one (bullish), or closes and makes a low
// below it (bearish). Fewer than three candles give PatternNone.
func DetectPattern(candles []types.Candle) types.Pattern {
	if len(candles) < 3 {
		return types.PatternNone
	}
	last := candles[len(candles)-1]
	prev := candles[len(candles)-2]

	switch {
	case last.Close > prev.Close && last.High > prev.High:
		return types.PatternBullish
	case last.Close < prev.Close && last.Low < prev.Low:
		return types.PatternBearish
	}
	return types.PatternNone
}

// Confirms reports whether a pattern agrees with a signal direction.
func Confirms(p types.Pattern, d types.Direction) bool {
	return (p == types.PatternBullish && d == types.Bullish) ||
		(p == types.PatternBearish && d == types.Bearish)
}
