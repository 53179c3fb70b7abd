// Package engine runs one evaluation cycle: it derives the position state
// from the gateway, evaluates every horizon, and either opens a single trade
// while flat or closes positions whose monitoring horizons show a reversal.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mtf-signal-bot/internal/align"
	"mtf-signal-bot/internal/interfaces"
	"mtf-signal-bot/internal/logger"
	"mtf-signal-bot/internal/metrics"
	"mtf-signal-bot/internal/store"
	"mtf-signal-bot/internal/ta"
	"mtf-signal-bot/internal/tradelog"
	"mtf-signal-bot/internal/types"
)

type Engine struct {
	cfg      *store.Config
	market   Market
	notifier interfaces.Notifier
	metrics  *metrics.Recorder
	pattern  ta.PatternFunc
	now      func() time.Time

	aligner   *align.Aligner
	trigger   align.TriggerOptions
	snapshots *snapshotBuilder
	positions *positionManager
	exits     *exitManager
	risk      *riskManager
	orders    *orderExecutor
}

func newEngine(cfg *store.Config, deps Deps) *Engine {
	compute := deps.Indicators
	if compute == nil {
		compute = ta.NewPipeline(pipelineParams(cfg.Indicators)).Compute
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	horizons := labels(cfg.Horizons, func(h store.Horizon) string { return h.Label })
	e := &Engine{
		cfg:      cfg,
		market:   deps.Market,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		pattern:  deps.Pattern,
		now:      now,
		aligner: align.New(horizons, align.Thresholds{
			RSIMidline: cfg.Rules.RSIMidline,
			StochUpper: cfg.Rules.StochUpper,
			StochLower: cfg.Rules.StochLower,
		}),
		trigger: align.TriggerOptions{
			Policy:       align.Policy(cfg.Alignment),
			Allowed:      cfg.Entry.Horizons,
			Confirmation: cfg.Entry.ConfirmationHorizon,
		},
		snapshots: newSnapshotBuilder(deps.Market, cfg.Symbol, compute),
		positions: newPositionManager(deps.Market, cfg.Symbol),
		exits: newExitManager(align.ExitThresholds{
			RSIOversold:     cfg.Exit.RSIOversold,
			RSIOverbought:   cfg.Exit.RSIOverbought,
			StochOversold:   cfg.Exit.StochOversold,
			StochOverbought: cfg.Exit.StochOverbought,
		}),
		risk: newRiskManager(cfg.Risk.SLMultiplier, cfg.Risk.TPMultiplier),
	}
	e.orders = newOrderExecutor(deps.Market, deps.Recorder, deps.Metrics, e.alert)
	return e
}

func pipelineParams(in store.Indicators) ta.Params {
	return ta.Params{
		EMAShort:    in.EMAShort,
		EMALong:     in.EMALong,
		MACDFast:    in.MACDFast,
		MACDSlow:    in.MACDSlow,
		MACDSignal:  in.MACDSignal,
		VOFast:      in.VOFast,
		VOSlow:      in.VOSlow,
		SARStep:     in.SARStep,
		SARMax:      in.SARMax,
		RSIPeriod:   in.RSIPeriod,
		StochLength: in.StochLength,
		StochK:      in.StochK,
		StochD:      in.StochD,
		ATRPeriod:   in.ATRPeriod,
	}
}

// Step runs one cycle. It returns an error only when the position state
// could not be established; every other failure is reported in the result
// and through the alert channel.
func (e *Engine) Step(ctx context.Context) (*types.CycleResult, error) {
	symbol := e.cfg.Symbol
	res := &types.CycleResult{Symbol: symbol, Time: e.now().Unix(), State: types.StateUnknown}

	positions, state, issues, err := e.positions.load(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Position query failed, skipping cycle", err, "symbol", symbol)
		e.alert(ctx, fmt.Sprintf("Position query failed for %s: %v", symbol, err))
		return nil, err
	}
	res.State = state
	res.Issues = append(res.Issues, issues...)
	e.metrics.SetOpenPositions(len(positions))

	snaps, issues := e.snapshots.build(ctx, e.cfg.Horizons)
	e.noData(ctx, issues, res)

	res.Bullish, res.Bearish = e.aligner.Evaluate(snaps)
	logErr := e.recordVerdicts(ctx, snaps, res.Bullish)
	if err := e.recordVerdicts(ctx, snaps, res.Bearish); logErr == nil {
		logErr = err
	}
	if logErr != nil {
		res.Issues = append(res.Issues, fmt.Sprintf("decision log: %v", logErr))
	}

	switch state {
	case types.StateFlat:
		e.flat(ctx, snaps, res)
	case types.StateInPosition:
		e.inPosition(ctx, positions, snaps, res)
	}

	if len(res.Issues) > 0 {
		e.alert(ctx, fmt.Sprintf("%s cycle issues: %s", symbol, joinIssues(res.Issues)))
	}
	return res, nil
}

func (e *Engine) noData(ctx context.Context, issues []string, res *types.CycleResult) {
	for _, is := range issues {
		logger.Warn(ctx, "Horizon has no data", "symbol", e.cfg.Symbol, "issue", is)
		if label, _, ok := strings.Cut(is, ":"); ok {
			e.metrics.RecordNoData(label)
		}
	}
	res.Issues = append(res.Issues, issues...)
}

// recordVerdicts logs every verdict and appends it to the decision log. Only
// the first decision log failure is returned.
func (e *Engine) recordVerdicts(ctx context.Context, snaps map[string]types.Snapshot, vs []types.Verdict) error {
	var first error
	for _, v := range vs {
		logger.Verdict(ctx, e.cfg.Symbol, v.Horizon, string(v.Direction), v.Satisfied, v.Failing)
		e.metrics.RecordVerdict(v.Horizon, string(v.Direction), v.Satisfied)
		err := tradelog.AppendDecision(tradelog.DecisionEntry{
			Symbol:    e.cfg.Symbol,
			Horizon:   v.Horizon,
			Direction: string(v.Direction),
			Satisfied: v.Satisfied,
			Failing:   v.Failing,
			Row:       snaps[v.Horizon].Row,
		})
		if err != nil && first == nil {
			logger.ErrorWithErr(ctx, "Failed to write decision log", err,
				"symbol", e.cfg.Symbol,
				"horizon", v.Horizon,
			)
			first = err
		}
	}
	return first
}

// flat alerts every satisfied horizon, then opens at most one trade.
func (e *Engine) flat(ctx context.Context, snaps map[string]types.Snapshot, res *types.CycleResult) {
	for i := range res.Bullish {
		for _, v := range []types.Verdict{res.Bullish[i], res.Bearish[i]} {
			if v.Satisfied {
				e.alert(ctx, fmt.Sprintf("%s %s", e.cfg.Symbol, align.Explain(v)))
			}
		}
	}

	sig, ok := align.Trigger(e.trigger, res.Bullish, res.Bearish)
	if !ok {
		logger.Debug(ctx, "No entry signal", "symbol", e.cfg.Symbol)
		return
	}
	e.enter(ctx, sig, snaps, res)
}

func (e *Engine) enter(ctx context.Context, sig align.Signal, snaps map[string]types.Snapshot, res *types.CycleResult) {
	symbol := e.cfg.Symbol
	side, _ := sig.Direction.Side()
	snap := snaps[sig.Horizon]
	if !snap.HasData() {
		res.Issues = append(res.Issues, fmt.Sprintf("%s: signal horizon has no data, entry skipped", sig.Horizon))
		return
	}

	e.checkPattern(ctx, sig, snaps, res)

	quote, err := e.market.Quote(ctx, symbol)
	if err != nil {
		res.Issues = append(res.Issues, fmt.Sprintf("quote: %v, entry skipped", err))
		return
	}
	price := quote.Ask
	if side == types.Sell {
		price = quote.Bid
	}

	spec, err := e.market.SymbolSpec(ctx, symbol)
	if err != nil {
		res.Issues = append(res.Issues, fmt.Sprintf("symbol spec: %v, entry skipped", err))
		return
	}

	levels, err := e.risk.size(price, snap.Row.ATR, side, spec.TickSize)
	if err != nil {
		logger.Risk(ctx, symbol, "RISK_UNDEFINED", "error", err.Error(), "price", price, "atr", snap.Row.ATR)
		res.Issues = append(res.Issues, fmt.Sprintf("%v, entry skipped", err))
		return
	}

	intent := types.TradeIntent{
		Symbol:     symbol,
		Side:       side,
		Volume:     e.cfg.Volume,
		Price:      price,
		StopLoss:   levels.StopLoss,
		TakeProfit: levels.TakeProfit,
		Horizon:    sig.Horizon,
		Reason:     fmt.Sprintf("%s %s alignment", sig.Horizon, strings.ToLower(string(sig.Direction))),
	}
	res.Entry = e.orders.submitEntry(ctx, intent)
}

// checkPattern runs the advisory pattern hook on the confirmation horizon.
// The outcome is reported and never blocks the entry.
func (e *Engine) checkPattern(ctx context.Context, sig align.Signal, snaps map[string]types.Snapshot, res *types.CycleResult) {
	if e.pattern == nil {
		return
	}
	label := e.cfg.Entry.ConfirmationHorizon
	snap, ok := snaps[label]
	if !ok || len(snap.Recent) == 0 {
		label, snap = sig.Horizon, snaps[sig.Horizon]
	}

	res.Pattern = e.pattern(snap.Recent)
	if ta.Confirms(res.Pattern, sig.Direction) {
		logger.Info(ctx, "Chart pattern confirms signal", "symbol", e.cfg.Symbol, "horizon", label, "pattern", res.Pattern)
		e.alert(ctx, fmt.Sprintf("Chart pattern reinforcement: %s %s pattern on %s", e.cfg.Symbol, strings.ToLower(string(res.Pattern)), label))
		return
	}
	logger.Info(ctx, "Chart pattern does not confirm signal, trading anyway",
		"symbol", e.cfg.Symbol,
		"horizon", label,
		"pattern", res.Pattern,
		"direction", sig.Direction,
	)
}

func (e *Engine) inPosition(ctx context.Context, positions []types.Position, snaps map[string]types.Snapshot, res *types.CycleResult) {
	horizons := e.cfg.Exit.MonitorHorizons
	monitor, issues := e.snapshots.reuse(ctx, horizons, snaps)
	e.noData(ctx, issues, res)
	order := labels(horizons, func(h store.Horizon) string { return h.Label })

	for _, pos := range positions {
		triggers := e.exits.reversals(pos, order, monitor)
		if len(triggers) == 0 {
			logger.Debug(ctx, "No reversal, holding position", "ticket", pos.Ticket, "side", pos.Side)
			continue
		}
		logger.Info(ctx, "Reversal detected", "ticket", pos.Ticket, "side", pos.Side, "triggers", triggers)
		intent := types.CloseIntent{
			Ticket: pos.Ticket,
			Symbol: e.cfg.Symbol,
			Side:   pos.Side.Mirror(),
			Volume: pos.Volume,
			Reason: "reversal " + strings.Join(triggers, ", "),
		}
		res.Exits = append(res.Exits, e.orders.submitExit(ctx, intent, triggers))
	}
}
