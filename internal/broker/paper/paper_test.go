package paper

import (
	"context"
	"errors"
	"testing"
	"time"

	"mtf-signal-bot/internal/interfaces"
	"mtf-signal-bot/internal/types"
)

type fixedQuotes struct {
	q types.Quote
}

func (f *fixedQuotes) Quote(context.Context, string) (types.Quote, error) {
	return f.q, nil
}

func testFeed() *Feed {
	f := NewFeed(FeedParams{Seed: 7, StartPrice: 1.1, TickSize: 0.00001, SpreadTicks: 10, Volatility: 0.002})
	f.now = func() time.Time { return time.Date(2024, 6, 3, 10, 7, 0, 0, time.UTC) }
	return f
}

func TestFeedCandlesAreOrderedAndClosed(t *testing.T) {
	f := testFeed()
	cs, err := f.FetchCandles(context.Background(), "EURUSD", 4*time.Hour, 200)
	if err != nil {
		t.Fatalf("FetchCandles failed: %v", err)
	}
	if len(cs) != 200 {
		t.Fatalf("Expected 200 candles, got %d", len(cs))
	}
	for i := 1; i < len(cs); i++ {
		if cs[i].Ts-cs[i-1].Ts != int64(4*time.Hour/time.Second) {
			t.Fatalf("Expected 4h spacing at %d, got %d", i, cs[i].Ts-cs[i-1].Ts)
		}
	}
	last := cs[len(cs)-1]
	if last.Ts+4*3600 > f.now().Unix() {
		t.Errorf("Expected last bar to be closed, opens at %d", last.Ts)
	}
	for i, c := range cs {
		if c.High < c.Low || c.High < c.Close || c.Low > c.Open || c.TickVol <= 0 {
			t.Fatalf("Inconsistent candle %d: %+v", i, c)
		}
	}
}

func TestFeedIsDeterministic(t *testing.T) {
	a, _ := testFeed().FetchCandles(context.Background(), "EURUSD", 24*time.Hour, 50)
	b, _ := testFeed().FetchCandles(context.Background(), "EURUSD", 24*time.Hour, 50)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Expected identical candles at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestFeedQuoteSpread(t *testing.T) {
	q, err := testFeed().Quote(context.Background(), "EURUSD")
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	spread := q.Ask - q.Bid
	if spread < 0.0000999 || spread > 0.0001001 {
		t.Errorf("Expected 10 tick spread, got %v", spread)
	}
}

func TestFeedRejectsBadArgs(t *testing.T) {
	if _, err := testFeed().FetchCandles(context.Background(), "EURUSD", 0, 10); err == nil {
		t.Error("Expected error for zero interval")
	}
}

func TestBookEntryAndExit(t *testing.T) {
	ctx := context.Background()
	quotes := &fixedQuotes{q: types.Quote{Bid: 1.0999, Ask: 1.1}}
	b := NewBook(quotes, 10000, "USD")

	ticket, err := b.SubmitEntry(ctx, types.TradeIntent{Symbol: "EURUSD", Side: types.Buy, Volume: 1000, StopLoss: 1.09, TakeProfit: 1.12})
	if err != nil {
		t.Fatalf("SubmitEntry failed: %v", err)
	}
	if ticket != "PAPER-1" {
		t.Errorf("Expected PAPER-1, got %s", ticket)
	}

	pos, _ := b.OpenPositions(ctx, "EURUSD")
	if len(pos) != 1 || pos[0].OpenPrice != 1.1 || pos[0].Side != types.Buy {
		t.Fatalf("Unexpected positions: %+v", pos)
	}

	quotes.q = types.Quote{Bid: 1.105, Ask: 1.1051}
	if err := b.SubmitExit(ctx, types.CloseIntent{Ticket: ticket, Symbol: "EURUSD", Side: types.Sell, Volume: 1000}); err != nil {
		t.Fatalf("SubmitExit failed: %v", err)
	}
	pos, _ = b.OpenPositions(ctx, "EURUSD")
	if len(pos) != 0 {
		t.Errorf("Expected no positions, got %d", len(pos))
	}

	acct, _ := b.Account(ctx)
	if acct.Balance < 10004.99 || acct.Balance > 10005.01 {
		t.Errorf("Expected balance 10005, got %v", acct.Balance)
	}
}

func TestBookCloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	b := NewBook(&fixedQuotes{q: types.Quote{Bid: 1, Ask: 1}}, 0, "USD")
	if err := b.SubmitExit(ctx, types.CloseIntent{Ticket: "PAPER-42", Side: types.Sell}); err != nil {
		t.Errorf("Expected no-op on unknown ticket, got %v", err)
	}
}

func TestBookRejectsWrongCloseSide(t *testing.T) {
	ctx := context.Background()
	b := NewBook(&fixedQuotes{q: types.Quote{Bid: 1, Ask: 1}}, 0, "USD")
	ticket, _ := b.SubmitEntry(ctx, types.TradeIntent{Symbol: "X", Side: types.Sell, Volume: 1})
	if err := b.SubmitExit(ctx, types.CloseIntent{Ticket: ticket, Side: types.Sell}); err == nil {
		t.Error("Expected error when close side does not offset the position")
	}
}

func TestBookStopLossFillsOnRead(t *testing.T) {
	ctx := context.Background()
	quotes := &fixedQuotes{q: types.Quote{Bid: 1.1, Ask: 1.1001}}
	b := NewBook(quotes, 0, "USD")
	_, _ = b.SubmitEntry(ctx, types.TradeIntent{Symbol: "EURUSD", Side: types.Sell, Volume: 1, StopLoss: 1.102, TakeProfit: 1.09})
	_, _ = b.SubmitEntry(ctx, types.TradeIntent{Symbol: "EURUSD", Side: types.Buy, Volume: 1, StopLoss: 1.09, TakeProfit: 1.2})

	quotes.q = types.Quote{Bid: 1.1025, Ask: 1.1026}
	pos, err := b.OpenPositions(ctx, "EURUSD")
	if err != nil {
		t.Fatalf("OpenPositions failed: %v", err)
	}
	if len(pos) != 1 || pos[0].Ticket != "PAPER-2" {
		t.Errorf("Expected only the long to survive, got %+v", pos)
	}
}

func TestBookRejectsInvalidIntent(t *testing.T) {
	b := NewBook(&fixedQuotes{}, 0, "USD")
	if _, err := b.SubmitEntry(context.Background(), types.TradeIntent{Side: "HOLD", Volume: 1}); err == nil {
		t.Error("Expected error for invalid side")
	}
	if _, err := b.SubmitEntry(context.Background(), types.TradeIntent{Side: types.Buy}); err == nil {
		t.Error("Expected error for zero volume")
	}
}

func TestGatewaySymbolSpec(t *testing.T) {
	g := New(Params{Symbol: "EURUSD", Currency: "USD", Balance: 1, Feed: FeedParams{Seed: 1, StartPrice: 1.1, TickSize: 0.00001, Volatility: 0.001}})
	spec, err := g.SymbolSpec(context.Background(), "EURUSD")
	if err != nil || !spec.Tradable || spec.TickSize != 0.00001 {
		t.Errorf("Unexpected spec %+v, err %v", spec, err)
	}
	if _, err := g.SymbolSpec(context.Background(), "GBPUSD"); !errors.Is(err, interfaces.ErrSymbolNotTradable) {
		t.Errorf("Expected ErrSymbolNotTradable, got %v", err)
	}
}
