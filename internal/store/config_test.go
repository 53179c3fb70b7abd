package store

import (
	"strings"
	"testing"
	"time"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("symbol: EURUSD\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if c.Mode != "DRY_RUN" || c.Gateway != "PAPER" {
		t.Errorf("Expected DRY_RUN/PAPER, got %s/%s", c.Mode, c.Gateway)
	}
	if len(c.Horizons) != 5 || c.Horizons[0].Label != "4h" || c.Horizons[4].Interval != 7*24*time.Hour {
		t.Errorf("Unexpected default horizons: %+v", c.Horizons)
	}
	if len(c.Exit.MonitorHorizons) != 2 || c.Exit.MonitorHorizons[0].Bars != 50 {
		t.Errorf("Unexpected monitor horizons: %+v", c.Exit.MonitorHorizons)
	}
	if c.Risk.SLMultiplier != 1.5 || c.Risk.TPMultiplier != 3.0 {
		t.Errorf("Expected 1.5/3.0 multipliers, got %v/%v", c.Risk.SLMultiplier, c.Risk.TPMultiplier)
	}
	if c.Kite.QuoteMaxAge != 15*time.Second {
		t.Errorf("Expected 15s quote max age, got %s", c.Kite.QuoteMaxAge)
	}
	if c.Paper.Currency != "USD" {
		t.Errorf("Expected USD, got %s", c.Paper.Currency)
	}
	if c.PollInterval() != 300*time.Second {
		t.Errorf("Expected 300s poll interval, got %s", c.PollInterval())
	}
	if !c.DryRun() {
		t.Error("Expected dry run")
	}
}

func TestParseHorizonBarsDefault(t *testing.T) {
	c, err := Parse([]byte(`
horizons:
  - label: 2h
    interval: 2h
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(c.Horizons) != 1 || c.Horizons[0].Bars != 200 || c.Horizons[0].Interval != 2*time.Hour {
		t.Errorf("Unexpected horizons: %+v", c.Horizons)
	}
	if h, ok := c.HorizonByLabel("1h"); !ok || h.Bars != 50 {
		t.Errorf("Expected monitor horizon 1h to be found, got %+v %v", h, ok)
	}
	if _, ok := c.HorizonByLabel("3h"); ok {
		t.Error("Expected 3h to be unknown")
	}
}

func TestParseRejectsInvalidConfigs(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"live on paper", "mode: LIVE\n", "requires gateway KITE"},
		{"fractional kite volume", "gateway: KITE\nvolume: 0.5\n", "whole shares"},
		{"ema order", "indicators:\n  ema_short: 60\n", "ema_short"},
		{"unknown entry horizon", "entry:\n  horizons: [3h]\n", "unknown horizon"},
		{"full without confirmation", "alignment: FULL\nentry:\n  confirmation_horizon: 2h\n", "confirmation_horizon"},
		{"duplicate label", "horizons:\n  - {label: 4h, interval: 4h}\n  - {label: 4h, interval: 6h}\n", "duplicate horizon"},
		{"bad mode", "mode: PAPER\n", "Mode"},
		{"rsi bands", "exit:\n  rsi_oversold: 80\n", "rsi_oversold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("BOT_MODE", "live")
	t.Setenv("BOT_SYMBOL", "INFY")
	t.Setenv("TELEGRAM_CHAT_ID", "12345")

	c, err := Parse([]byte("gateway: KITE\nvolume: 5\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if c.Mode != "LIVE" || c.Symbol != "INFY" || c.Telegram.ChatID != 12345 {
		t.Errorf("Expected LIVE/INFY/12345, got %s/%s/%d", c.Mode, c.Symbol, c.Telegram.ChatID)
	}

	t.Setenv("TELEGRAM_CHAT_ID", "abc")
	if _, err := Parse([]byte("gateway: KITE\nvolume: 5\n")); err == nil {
		t.Error("Expected error for non-numeric chat id")
	}
}
