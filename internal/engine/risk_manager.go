package engine

import (
	"fmt"
	"math"

	"mtf-signal-bot/internal/types"

	"github.com/shopspring/decimal"
)

// riskManager turns an entry price and volatility into protective levels.
type riskManager struct {
	slMult decimal.Decimal
	tpMult decimal.Decimal
}

func newRiskManager(slMult, tpMult float64) *riskManager {
	return &riskManager{
		slMult: decimal.NewFromFloat(slMult),
		tpMult: decimal.NewFromFloat(tpMult),
	}
}

// size computes stop-loss and take-profit at ATR multiples from entry,
// quantized to the nearest tick. Any input that leaves the levels undefined
// yields ErrUndefinedRisk and the caller must not trade.
func (rm *riskManager) size(entry, atr float64, side types.Side, tick float64) (types.RiskLevels, error) {
	if !side.Valid() {
		return types.RiskLevels{}, fmt.Errorf("%w: unknown side '%s'", types.ErrUndefinedRisk, side)
	}
	if !positive(tick) {
		return types.RiskLevels{}, fmt.Errorf("%w: tick size %v", types.ErrUndefinedRisk, tick)
	}
	if !positive(atr) {
		return types.RiskLevels{}, fmt.Errorf("%w: ATR %v", types.ErrUndefinedRisk, atr)
	}
	if !positive(entry) {
		return types.RiskLevels{}, fmt.Errorf("%w: entry price %v", types.ErrUndefinedRisk, entry)
	}

	e := decimal.NewFromFloat(entry)
	a := decimal.NewFromFloat(atr)
	stopDist := a.Mul(rm.slMult)
	targetDist := a.Mul(rm.tpMult)

	var sl, tp decimal.Decimal
	if side == types.Buy {
		sl, tp = e.Sub(stopDist), e.Add(targetDist)
	} else {
		sl, tp = e.Add(stopDist), e.Sub(targetDist)
	}

	t := decimal.NewFromFloat(tick)
	levels := types.RiskLevels{StopLoss: quantize(sl, t), TakeProfit: quantize(tp, t)}
	if levels.StopLoss <= 0 || levels.TakeProfit <= 0 {
		return types.RiskLevels{}, fmt.Errorf("%w: non-positive level %+v", types.ErrUndefinedRisk, levels)
	}
	return levels, nil
}

// quantize rounds v to the nearest multiple of tick, half away from zero.
func quantize(v, tick decimal.Decimal) float64 {
	f, _ := v.Div(tick).Round(0).Mul(tick).Float64()
	return f
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
