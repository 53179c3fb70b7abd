package kite

import (
	"fmt"
	"time"

	"mtf-signal-bot/internal/types"
)

const day = 24 * time.Hour

// ist is the exchange clock. Buckets are aligned to local midnight, or to
// Monday for multiples of a week.
var ist = time.FixedZone("IST", 19800)

type nativeInterval struct {
	name    string
	step    time.Duration
	maxSpan time.Duration // per-request history limit
}

// nativeIntervals is ordered from the largest step down.
var nativeIntervals = []nativeInterval{
	{"day", day, 2000 * day},
	{"60minute", time.Hour, 400 * day},
	{"30minute", 30 * time.Minute, 200 * day},
	{"15minute", 15 * time.Minute, 200 * day},
	{"10minute", 10 * time.Minute, 100 * day},
	{"5minute", 5 * time.Minute, 100 * day},
	{"3minute", 3 * time.Minute, 100 * day},
	{"minute", time.Minute, 60 * day},
}

// pickInterval returns the largest native interval that evenly divides d.
func pickInterval(d time.Duration) (nativeInterval, error) {
	for _, n := range nativeIntervals {
		if d >= n.step && d%n.step == 0 {
			return n, nil
		}
	}
	return nativeInterval{}, fmt.Errorf("no Kite interval divides %s", d)
}

// lookback is the calendar span to request so that count bars of d survive
// sessions, weekends and holidays, capped at the interval's limit.
func lookback(n nativeInterval, d time.Duration, count int) time.Duration {
	factor := 6.0
	if n.step >= day {
		factor = 1.6
	}
	span := time.Duration(float64(d) * float64(count) * factor)
	return min(span, n.maxSpan)
}

// resample merges ordered candles into buckets of d in loc.
func resample(cs []types.Candle, d time.Duration, loc *time.Location) []types.Candle {
	step := int64(d / time.Second)
	var anchor int64
	if d%(7*day) == 0 {
		anchor = 4 * int64(day/time.Second) // 1970-01-05 was a Monday
	}

	var out []types.Candle
	for _, c := range cs {
		_, off := time.Unix(c.Ts, 0).In(loc).Zone()
		local := c.Ts + int64(off)
		bucket := local - mod(local-anchor, step) - int64(off)

		if n := len(out); n > 0 && out[n-1].Ts == bucket {
			b := &out[n-1]
			b.High = max(b.High, c.High)
			b.Low = min(b.Low, c.Low)
			b.Close = c.Close
			b.Vol += c.Vol
			b.TickVol += c.TickVol
			continue
		}
		c.Ts = bucket
		out = append(out, c)
	}
	return out
}

func mod(a, m int64) int64 {
	return ((a % m) + m) % m
}
