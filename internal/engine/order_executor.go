package engine

import (
	"context"
	"fmt"
	"strings"

	"mtf-signal-bot/internal/interfaces"
	"mtf-signal-bot/internal/logger"
	"mtf-signal-bot/internal/metrics"
	"mtf-signal-bot/internal/tradelog"
	"mtf-signal-bot/internal/types"
)

// orderExecutor submits intents and reports every outcome to the log, the
// trade log, the journal, the metrics and the alert channel. It never retries.
type orderExecutor struct {
	router   interfaces.OrderRouter
	recorder interfaces.TradeRecorder
	metrics  *metrics.Recorder
	alert    func(ctx context.Context, msg string)
}

func newOrderExecutor(router interfaces.OrderRouter, recorder interfaces.TradeRecorder, m *metrics.Recorder, alert func(context.Context, string)) *orderExecutor {
	return &orderExecutor{router: router, recorder: recorder, metrics: m, alert: alert}
}

func (oe *orderExecutor) submitEntry(ctx context.Context, intent types.TradeIntent) *types.EntryResult {
	res := &types.EntryResult{Intent: intent}

	ticket, err := oe.router.SubmitEntry(ctx, intent)
	oe.metrics.RecordOrder("entry", err)
	if err != nil {
		logger.ErrorWithErr(ctx, "Entry order rejected", err,
			"symbol", intent.Symbol,
			"side", intent.Side,
			"volume", intent.Volume,
			"price", intent.Price,
		)
		res.Err = err.Error()
		oe.logTrade(ctx, tradelog.Entry{
			Kind:       "ENTRY",
			Symbol:     intent.Symbol,
			Side:       string(intent.Side),
			Volume:     intent.Volume,
			Price:      intent.Price,
			StopLoss:   intent.StopLoss,
			TakeProfit: intent.TakeProfit,
			Horizon:    intent.Horizon,
			Reason:     intent.Reason,
			Error:      res.Err,
		})
		oe.alert(ctx, fmt.Sprintf("Order failed: %s %s %s: %v", intent.Side, fmtNum(intent.Volume), intent.Symbol, err))
		return res
	}

	res.Ticket = ticket
	logger.Trade(ctx, intent.Symbol, string(intent.Side), intent.Volume, intent.Price, ticket,
		"stop_loss", intent.StopLoss,
		"take_profit", intent.TakeProfit,
		"horizon", intent.Horizon,
	)
	oe.logTrade(ctx, tradelog.Entry{
		Kind:       "ENTRY",
		Symbol:     intent.Symbol,
		Side:       string(intent.Side),
		Ticket:     ticket,
		Volume:     intent.Volume,
		Price:      intent.Price,
		StopLoss:   intent.StopLoss,
		TakeProfit: intent.TakeProfit,
		Horizon:    intent.Horizon,
		Reason:     intent.Reason,
	})
	if oe.recorder != nil {
		if err := oe.recorder.RecordEntry(ctx, intent, ticket); err != nil {
			logger.ErrorWithErr(ctx, "Failed to journal entry", err, "ticket", ticket)
		}
	}
	oe.alert(ctx, fmt.Sprintf("Trade opened: %s %s %s at %s | SL: %s | TP: %s | ticket %s",
		intent.Side, fmtNum(intent.Volume), intent.Symbol,
		fmtNum(intent.Price), fmtNum(intent.StopLoss), fmtNum(intent.TakeProfit), ticket))
	return res
}

func (oe *orderExecutor) submitExit(ctx context.Context, intent types.CloseIntent, triggers []string) types.ExitResult {
	res := types.ExitResult{Intent: intent, Triggers: triggers}

	err := oe.router.SubmitExit(ctx, intent)
	oe.metrics.RecordOrder("exit", err)
	entry := tradelog.Entry{
		Kind:   "EXIT",
		Symbol: intent.Symbol,
		Side:   string(intent.Side),
		Ticket: intent.Ticket,
		Volume: intent.Volume,
		Reason: intent.Reason,
	}
	if err != nil {
		logger.ErrorWithErr(ctx, "Exit order rejected", err,
			"ticket", intent.Ticket,
			"side", intent.Side,
			"volume", intent.Volume,
		)
		res.Err = err.Error()
		entry.Error = res.Err
		oe.logTrade(ctx, entry)
		oe.alert(ctx, fmt.Sprintf("Close failed for ticket %s: %v. Will retry next cycle", intent.Ticket, err))
		return res
	}

	logger.Trade(ctx, intent.Symbol, string(intent.Side), intent.Volume, 0, intent.Ticket,
		"reason", intent.Reason,
		"triggers", triggers,
	)
	oe.logTrade(ctx, entry)
	if oe.recorder != nil {
		if err := oe.recorder.RecordExit(ctx, intent); err != nil {
			logger.ErrorWithErr(ctx, "Failed to journal exit", err, "ticket", intent.Ticket)
		}
	}
	oe.alert(ctx, fmt.Sprintf("Position closed: ticket %s (%s)", intent.Ticket, strings.Join(triggers, ", ")))
	return res
}

// logTrade appends to the trade log. The EOD report is built from that log, so
// a lost line is alerted rather than just logged.
func (oe *orderExecutor) logTrade(ctx context.Context, entry tradelog.Entry) {
	if err := tradelog.Append(entry); err != nil {
		logger.ErrorWithErr(ctx, "Failed to write trade log", err,
			"kind", entry.Kind,
			"ticket", entry.Ticket,
		)
		oe.alert(ctx, fmt.Sprintf("Trade log write failed for %s %s: %v", entry.Kind, entry.Symbol, err))
	}
}
