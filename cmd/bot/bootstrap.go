package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"mtf-signal-bot/internal/broker"
	"mtf-signal-bot/internal/broker/brokerobs"
	"mtf-signal-bot/internal/engine"
	"mtf-signal-bot/internal/engine/engineobs"
	"mtf-signal-bot/internal/eod"
	"mtf-signal-bot/internal/eod/eodobs"
	"mtf-signal-bot/internal/interfaces"
	"mtf-signal-bot/internal/journal"
	"mtf-signal-bot/internal/logger"
	"mtf-signal-bot/internal/metrics"
	"mtf-signal-bot/internal/notify"
	"mtf-signal-bot/internal/store"
	"mtf-signal-bot/internal/ta"
	"mtf-signal-bot/internal/trace"
	"mtf-signal-bot/internal/tradelog"

	"github.com/joho/godotenv"
)

// initializeSystem initializes logger, tracer, and EOD summarizer
func initializeSystem() error {
	// Load environment variables
	_ = godotenv.Load()

	// Initialize logger
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Initialize tracer
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	// Initialize EOD summarizer with observability
	eod.SetDefaultSummarizer(eodobs.Wrap(eod.NewSummarizer()))
	return nil
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context) (*store.Config, error) {
	path := "config.yaml"
	if v := os.Getenv("BOT_CONFIG"); v != "" {
		path = v
	}
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// compressOldLogs compresses old tradelog files if retention is configured
func compressOldLogs(ctx context.Context) {
	v := os.Getenv("TRADER_LOG_RETENTION_DAYS")
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn(ctx, "Ignoring invalid TRADER_LOG_RETENTION_DAYS", "value", v)
		return
	}
	if err := tradelog.CompressOlder(n); err != nil {
		logger.Warn(ctx, "Failed to compress old logs", "error", err)
	}
}

// initializeBroker builds the configured gateway with observability
func initializeBroker(ctx context.Context, cfg *store.Config) (interfaces.Broker, error) {
	brk, err := broker.New(cfg, broker.Credentials{
		APIKey:      os.Getenv("KITE_API_KEY"),
		AccessToken: os.Getenv("KITE_ACCESS_TOKEN"),
	})
	if err != nil {
		return nil, err
	}

	if cfg.DryRun() {
		logger.Warn(ctx, "Running in DRY_RUN mode - orders will be simulated", "gateway", cfg.Gateway)
	} else {
		logger.Warn(ctx, "Running in LIVE mode - orders go to the exchange", "gateway", cfg.Gateway)
	}

	// Wrap with observability middleware
	return brokerobs.Wrap(brk), nil
}

// initializeNotifier always logs alerts and adds Telegram when enabled
func initializeNotifier(ctx context.Context, cfg *store.Config) interfaces.Notifier {
	sinks := notify.Multi{notify.Log{}}
	if !cfg.Telegram.Enabled {
		return sinks
	}
	tg, err := notify.NewTelegram(os.Getenv("TELEGRAM_BOT_TOKEN"), cfg.Telegram.ChatID)
	if err != nil {
		logger.ErrorWithErr(ctx, "Telegram disabled", err)
		return sinks
	}
	return append(sinks, tg)
}

// initializeJournal opens the trade journal when enabled. A nil journal
// means trades are only written to the trade log.
func initializeJournal(ctx context.Context, cfg *store.Config) *journal.Journal {
	if !cfg.Journal.Enabled {
		return nil
	}
	j, err := journal.Open(ctx, cfg.Journal.Path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Trade journal disabled", err, "path", cfg.Journal.Path)
		return nil
	}
	return j
}

// initializeMetrics starts the Prometheus endpoint when an address is set
func initializeMetrics(ctx context.Context, cfg *store.Config) *metrics.Recorder {
	if cfg.Metrics.Addr == "" {
		return nil
	}
	m := metrics.New()
	go func() {
		if err := m.Serve(ctx, cfg.Metrics.Addr); err != nil {
			logger.ErrorWithErr(ctx, "Metrics server stopped", err, "addr", cfg.Metrics.Addr)
		}
	}()
	logger.Info(ctx, "Metrics endpoint listening", "addr", cfg.Metrics.Addr)
	return m
}

// initializeEngine initializes and returns the evaluation engine with observability
func initializeEngine(cfg *store.Config, brk interfaces.Broker, n interfaces.Notifier, j *journal.Journal, m *metrics.Recorder) interfaces.Engine {
	deps := engine.Deps{
		Market:   brk,
		Notifier: n,
		Metrics:  m,
		Pattern:  ta.DetectPattern,
	}
	if j != nil {
		deps.Recorder = j
	}

	// Wrap with observability middleware
	return engineobs.Wrap(engine.New(cfg, deps), m)
}

// startGateway connects the gateway, checks the instrument and announces
// the account. Any failure here is fatal.
func startGateway(ctx context.Context, cfg *store.Config, brk interfaces.Broker, n interfaces.Notifier) error {
	if err := brk.Start(ctx); err != nil {
		return err
	}
	spec, err := brk.SymbolSpec(ctx, cfg.Symbol)
	if err != nil {
		return err
	}
	if !spec.Tradable {
		return fmt.Errorf("%w: %s", interfaces.ErrSymbolNotTradable, cfg.Symbol)
	}
	acct, err := brk.Account(ctx)
	if err != nil {
		return err
	}

	msg := fmt.Sprintf("Bot started! Account: %s, Balance: %.2f %s", acct.ID, acct.Balance, acct.Currency)
	if err := n.Notify(ctx, msg); err != nil {
		logger.Warn(ctx, "Startup alert failed", "error", err)
	}
	return nil
}

// reportStartupFailure alerts before the process exits non-zero.
func reportStartupFailure(ctx context.Context, n interfaces.Notifier, err error) {
	msg := "Bot failed to start: " + err.Error()
	if errors.Is(err, interfaces.ErrSymbolNotTradable) {
		msg = "Bot failed to start, symbol is not tradable: " + err.Error()
	}
	if nerr := n.Notify(ctx, msg); nerr != nil {
		logger.Warn(ctx, "Failure alert failed", "error", nerr)
	}
}
