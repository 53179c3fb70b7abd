package ta

import "github.com/markcheno/go-talib"

// stochRSI applies the stochastic oscillator to an RSI series. rsi must hold
// talib output, defined from index rsiPeriod on. %K is the k-period SMA of the
// raw stochastic and %D the d-period SMA of %K. A flat RSI window gives a raw
// value of 0.
func stochRSI(rsi []float64, rsiPeriod, length, k, d int) ([]float64, []float64) {
	n := len(rsi)
	kLine := make([]float64, n)
	dLine := make([]float64, n)

	defined := rsi[rsiPeriod:]
	if len(defined) < length+k+d-2 {
		return kLine, dLine
	}

	lo := talib.Min(defined, length)
	hi := talib.Max(defined, length)

	raw := make([]float64, len(defined)-(length-1))
	for i := range raw {
		j := i + length - 1
		if rng := hi[j] - lo[j]; rng != 0 {
			raw[i] = 100 * (defined[j] - lo[j]) / rng
		}
	}

	kv := talib.Sma(raw, k)
	dv := talib.Sma(kv[k-1:], d)

	offset := rsiPeriod + length - 1
	for i := k - 1; i < len(kv); i++ {
		kLine[offset+i] = kv[i]
	}
	for i := d - 1; i < len(dv); i++ {
		dLine[offset+k-1+i] = dv[i]
	}
	return kLine, dLine
}
