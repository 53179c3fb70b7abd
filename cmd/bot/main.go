package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mtf-signal-bot/internal/eod"
	"mtf-signal-bot/internal/interfaces"
	"mtf-signal-bot/internal/journal"
	"mtf-signal-bot/internal/logger"
	"mtf-signal-bot/internal/trace"
	"mtf-signal-bot/internal/tradelog"
)

func main() {
	if err := initializeSystem(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	defer func() {
		_ = trace.Shutdown(context.Background())
	}()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return 1
	}
	compressOldLogs(ctx)
	defer tradelog.Close()

	notifier := initializeNotifier(ctx, cfg)
	brk, err := initializeBroker(ctx, cfg)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to build gateway", err)
		reportStartupFailure(ctx, notifier, err)
		return 1
	}
	if err := startGateway(ctx, cfg, brk, notifier); err != nil {
		logger.ErrorWithErr(ctx, "Failed to start gateway", err)
		reportStartupFailure(ctx, notifier, err)
		brk.Stop(context.Background())
		return 1
	}

	jrnl := initializeJournal(ctx, cfg)
	m := initializeMetrics(ctx, cfg)
	eng := initializeEngine(cfg, brk, notifier, jrnl, m)

	started := time.Now()
	logger.Info(ctx, "Bot started", "symbol", cfg.Symbol, "gateway", cfg.Gateway, "mode", cfg.Mode, "poll", cfg.PollInterval())
	loop(ctx, eng, cfg.PollInterval())

	shutdown(notifier, brk, jrnl, started)
	return 0
}

// loop runs a cycle immediately and then on every tick. A cycle in flight
// is allowed to finish; the stop signal is checked between cycles.
func loop(ctx context.Context, eng interfaces.Engine, every time.Duration) {
	tick := time.NewTicker(every)
	defer tick.Stop()

	for {
		if _, err := eng.Step(context.WithoutCancel(ctx)); err != nil {
			logger.Warn(ctx, "Cycle ended with error", "error", err)
		}
		if ok, day := eod.ShouldRunNow(); ok {
			_, _ = eod.SummarizeDay(day)
		}
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

func shutdown(n interfaces.Notifier, brk interfaces.Broker, j *journal.Journal, started time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info(ctx, "Shutting down...")
	_, _ = eod.SummarizeDay(time.Now())

	msg := "Bot stopped."
	if j != nil {
		if s, err := j.Summary(ctx, started); err == nil {
			msg = fmt.Sprintf("Bot stopped. Session: %s.", s)
		} else {
			logger.Warn(ctx, "Journal summary failed", "error", err)
		}
		if err := j.Close(); err != nil {
			logger.Warn(ctx, "Journal close failed", "error", err)
		}
	}
	if err := n.Notify(ctx, msg); err != nil {
		logger.Warn(ctx, "Shutdown alert failed", "error", err)
	}
	brk.Stop(ctx)
}
