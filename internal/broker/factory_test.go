package broker

import (
	"context"
	"testing"

	"mtf-signal-bot/internal/broker/paper"
	"mtf-signal-bot/internal/store"
	"mtf-signal-bot/internal/types"
)

func TestNewSelectsGateway(t *testing.T) {
	cfg, err := store.Parse([]byte("symbol: EURUSD\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	brk, err := New(cfg, Credentials{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := brk.(*paper.Gateway); !ok {
		t.Errorf("Expected paper gateway, got %T", brk)
	}

	cfg.Gateway = "KITE"
	if _, err := New(cfg, Credentials{}); err == nil {
		t.Error("Expected error for Kite without credentials")
	}

	cfg.Gateway = "OTHER"
	if _, err := New(cfg, Credentials{}); err == nil {
		t.Error("Expected error for unknown gateway")
	}
}

func TestSimulatedKeepsOrdersOffTheDataGateway(t *testing.T) {
	ctx := context.Background()
	data := paper.New(paper.Params{
		Symbol: "EURUSD", Currency: "USD", Balance: 500,
		Feed: paper.FeedParams{Seed: 1, StartPrice: 1.1, TickSize: 0.00001, SpreadTicks: 10, Volatility: 0.001},
	})
	sim := newSimulated(data, 10000, "EUR")

	ticket, err := sim.SubmitEntry(ctx, types.TradeIntent{Symbol: "EURUSD", Side: types.Buy, Volume: 1})
	if err != nil {
		t.Fatalf("SubmitEntry failed: %v", err)
	}
	ps, _ := sim.OpenPositions(ctx, "EURUSD")
	if len(ps) != 1 || ps[0].Ticket != ticket {
		t.Fatalf("Expected the simulated position, got %+v", ps)
	}
	if live, _ := data.OpenPositions(ctx, "EURUSD"); len(live) != 0 {
		t.Errorf("Expected no positions on the data gateway, got %d", len(live))
	}

	acct, err := sim.Account(ctx)
	if err != nil {
		t.Fatalf("Account failed: %v", err)
	}
	if acct.ID != "paper" || acct.Balance != 10000 || acct.Currency != "EUR" {
		t.Errorf("Expected paper/10000/EUR, got %s/%v/%s", acct.ID, acct.Balance, acct.Currency)
	}

	if err := sim.SubmitExit(ctx, types.CloseIntent{Ticket: ticket, Symbol: "EURUSD", Side: types.Sell, Volume: 1}); err != nil {
		t.Fatalf("SubmitExit failed: %v", err)
	}
	if ps, _ := sim.OpenPositions(ctx, "EURUSD"); len(ps) != 0 {
		t.Errorf("Expected no positions after exit, got %d", len(ps))
	}
}
