// Package ta turns candle series into indicator rows. All functions are pure:
// the same candles always give the same rows.
package ta

import (
	"math"

	"mtf-signal-bot/internal/types"

	"github.com/markcheno/go-talib"
)

type Params struct {
	EMAShort, EMALong              int
	MACDFast, MACDSlow, MACDSignal int
	VOFast, VOSlow                 int
	SARStep, SARMax                float64
	RSIPeriod                      int
	StochLength, StochK, StochD    int
	ATRPeriod                      int
}

func DefaultParams() Params {
	return Params{
		EMAShort:    20,
		EMALong:     50,
		MACDFast:    12,
		MACDSlow:    26,
		MACDSignal:  9,
		VOFast:      12,
		VOSlow:      26,
		SARStep:     0.02,
		SARMax:      0.2,
		RSIPeriod:   14,
		StochLength: 14,
		StochK:      3,
		StochD:      3,
		ATRPeriod:   14,
	}
}

func (p Params) valid() bool {
	return p.EMAShort >= 1 && p.EMALong >= 1 &&
		p.MACDFast >= 2 && p.MACDSlow > p.MACDFast && p.MACDSignal >= 1 &&
		p.VOFast >= 2 && p.VOSlow > p.VOFast &&
		p.SARStep > 0 && p.SARMax >= p.SARStep &&
		p.RSIPeriod >= 2 && p.StochLength >= 2 && p.StochK >= 1 && p.StochD >= 1 &&
		p.ATRPeriod >= 1
}

type Pipeline struct {
	p Params
}

func NewPipeline(p Params) *Pipeline {
	return &Pipeline{p: p}
}

// Warmup is the index of the first candle for which every indicator is
// defined. A series needs at least Warmup()+1 candles to yield a row.
func (pl *Pipeline) Warmup() int {
	p := pl.p
	stoch := p.RSIPeriod + (p.StochLength - 1) + (p.StochK - 1) + (p.StochD - 1)
	return maxInt(
		p.EMAShort-1,
		p.EMALong-1,
		(p.MACDSlow-1)+(p.MACDSignal-1),
		p.VOSlow-1,
		1, // parabolic SAR
		p.RSIPeriod,
		stoch,
		p.ATRPeriod,
	)
}

// Compute returns one row per candle past the warm-up window. Rows holding a
// non-finite value are dropped. Short or empty input yields an empty slice.
func (pl *Pipeline) Compute(candles []types.Candle) []types.IndicatorRow {
	warmup := pl.Warmup()
	if !pl.p.valid() || len(candles) <= warmup {
		return []types.IndicatorRow{}
	}
	p := pl.p

	n := len(candles)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}

	emaShort := talib.Ema(closes, p.EMAShort)
	emaLong := talib.Ema(closes, p.EMALong)
	macd, signal, hist := talib.Macd(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	volOsc := talib.Ppo(volumeSeries(candles), p.VOFast, p.VOSlow, talib.EMA)
	sar := talib.Sar(highs, lows, p.SARStep, p.SARMax)
	rsi := talib.Rsi(closes, p.RSIPeriod)
	stochK, stochD := stochRSI(rsi, p.RSIPeriod, p.StochLength, p.StochK, p.StochD)
	atr := talib.Atr(highs, lows, closes, p.ATRPeriod)

	rows := make([]types.IndicatorRow, 0, n-warmup)
	for i := warmup; i < n; i++ {
		row := types.IndicatorRow{
			Ts:         candles[i].Ts,
			Close:      closes[i],
			EMAShort:   emaShort[i],
			EMALong:    emaLong[i],
			MACD:       macd[i],
			MACDSignal: signal[i],
			MACDHist:   hist[i],
			VolOsc:     volOsc[i],
			SAR:        sar[i],
			RSI:        rsi[i],
			StochK:     stochK[i],
			StochD:     stochD[i],
			ATR:        atr[i],
		}
		if !finite(row) {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// volumeSeries prefers traded volume and falls back to tick volume when the
// source reports none.
func volumeSeries(candles []types.Candle) []float64 {
	traded := false
	for _, c := range candles {
		if c.Vol > 0 {
			traded = true
			break
		}
	}
	out := make([]float64, len(candles))
	for i, c := range candles {
		if traded {
			out[i] = c.Vol
		} else {
			out[i] = c.TickVol
		}
	}
	return out
}

func finite(r types.IndicatorRow) bool {
	for _, v := range []float64{
		r.Close, r.EMAShort, r.EMALong, r.MACD, r.MACDSignal, r.MACDHist, r.VolOsc,
		r.SAR, r.RSI, r.StochK, r.StochD, r.ATR,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func maxInt(v int, rest ...int) int {
	for _, r := range rest {
		if r > v {
			v = r
		}
	}
	return v
}
