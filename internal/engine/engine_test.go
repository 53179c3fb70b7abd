package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mtf-signal-bot/internal/align"
	"mtf-signal-bot/internal/store"
	"mtf-signal-bot/internal/tradelog"
	"mtf-signal-bot/internal/types"
)

type fakeMarket struct {
	fetchErr  map[time.Duration]error
	fetches   map[time.Duration]int
	quote     types.Quote
	quoteErr  error
	spec      types.SymbolSpec
	positions []types.Position
	posErr    error
	entryErr  error
	exitErr   error
	entries   []types.TradeIntent
	exits     []types.CloseIntent
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		fetchErr: map[time.Duration]error{},
		fetches:  map[time.Duration]int{},
		quote:    types.Quote{Bid: 1.09990, Ask: 1.10000},
		spec:     types.SymbolSpec{Symbol: "EURUSD", TickSize: 0.00001, Tradable: true},
	}
}

// FetchCandles encodes the interval in hours into the candle timestamps so
// the fake indicator function can pick the row for each horizon.
func (f *fakeMarket) FetchCandles(_ context.Context, _ string, interval time.Duration, count int) ([]types.Candle, error) {
	f.fetches[interval]++
	if err := f.fetchErr[interval]; err != nil {
		return nil, err
	}
	h := int64(interval / time.Hour)
	return []types.Candle{
		{Ts: h, Close: 1.0, High: 1.0, Low: 0.9},
		{Ts: h, Close: 1.1, High: 1.1, Low: 1.0},
		{Ts: h, Close: 1.2, High: 1.2, Low: 1.1},
	}, nil
}

func (f *fakeMarket) Quote(context.Context, string) (types.Quote, error) {
	return f.quote, f.quoteErr
}

func (f *fakeMarket) OpenPositions(context.Context, string) ([]types.Position, error) {
	return f.positions, f.posErr
}

func (f *fakeMarket) SubmitEntry(_ context.Context, intent types.TradeIntent) (string, error) {
	if f.entryErr != nil {
		return "", f.entryErr
	}
	f.entries = append(f.entries, intent)
	return "T-1", nil
}

func (f *fakeMarket) SubmitExit(_ context.Context, intent types.CloseIntent) error {
	if f.exitErr != nil {
		return f.exitErr
	}
	f.exits = append(f.exits, intent)
	return nil
}

func (f *fakeMarket) SymbolSpec(context.Context, string) (types.SymbolSpec, error) {
	return f.spec, nil
}

func (f *fakeMarket) Account(context.Context) (types.Account, error) {
	return types.Account{ID: "paper", Balance: 10000, Currency: "USD"}, nil
}

type recordingNotifier struct {
	msgs []string
}

func (r *recordingNotifier) Notify(_ context.Context, msg string) error {
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recordingNotifier) contains(s string) bool {
	for _, m := range r.msgs {
		if strings.Contains(m, s) {
			return true
		}
	}
	return false
}

type recordingJournal struct {
	entries []string
	exits   []string
}

func (r *recordingJournal) RecordEntry(_ context.Context, _ types.TradeIntent, ticket string) error {
	r.entries = append(r.entries, ticket)
	return nil
}

func (r *recordingJournal) RecordExit(_ context.Context, intent types.CloseIntent) error {
	r.exits = append(r.exits, intent.Ticket)
	return nil
}

func bullishRow() types.IndicatorRow {
	return types.IndicatorRow{
		Close: 1.1, EMAShort: 1.2, EMALong: 1.1,
		MACD: 0.002, MACDSignal: 0.001, VolOsc: 5, SAR: 1.0,
		RSI: 60, StochK: 50, StochD: 40, ATR: 0.001,
	}
}

func bearishRow() types.IndicatorRow {
	return types.IndicatorRow{
		Close: 1.1, EMAShort: 1.0, EMALong: 1.1,
		MACD: -0.002, MACDSignal: -0.001, VolOsc: -5, SAR: 1.2,
		RSI: 40, StochK: 40, StochD: 50, ATR: 0.001,
	}
}

// neutralRow satisfies neither entry direction and no reversal rule.
func neutralRow() types.IndicatorRow {
	return types.IndicatorRow{
		Close: 1.1, EMAShort: 1.1, EMALong: 1.1,
		MACD: 0.0001, MACDSignal: 0.0001, VolOsc: 0, SAR: 1.1,
		RSI: 50, StochK: 50, StochD: 50, ATR: 0.001,
	}
}

type harness struct {
	cfg      *store.Config
	market   *fakeMarket
	notifier *recordingNotifier
	journal  *recordingJournal
	rows     map[int64]types.IndicatorRow
	deps     Deps
}

func newHarness(t *testing.T, yaml string) *harness {
	t.Helper()
	t.Setenv("TRADER_LOG_DIR", t.TempDir())
	t.Cleanup(func() { _ = tradelog.Close() })

	cfg, err := store.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Failed to parse config: %v", err)
	}
	h := &harness{
		cfg:      cfg,
		market:   newFakeMarket(),
		notifier: &recordingNotifier{},
		journal:  &recordingJournal{},
		rows:     map[int64]types.IndicatorRow{},
	}
	for _, hours := range []int64{1, 4, 6, 12, 24, 168} {
		h.rows[hours] = neutralRow()
	}
	h.deps = Deps{
		Market:   h.market,
		Notifier: h.notifier,
		Recorder: h.journal,
		Indicators: func(c []types.Candle) []types.IndicatorRow {
			if len(c) == 0 {
				return nil
			}
			row, ok := h.rows[c[0].Ts]
			if !ok {
				return nil
			}
			return []types.IndicatorRow{row}
		},
		Now: func() time.Time { return time.Unix(1700000000, 0) },
	}
	return h
}

func (h *harness) step(t *testing.T) *types.CycleResult {
	t.Helper()
	res, err := New(h.cfg, h.deps).Step(context.Background())
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	return res
}

func TestFlatTwoBullishHorizonsOpenOneTrade(t *testing.T) {
	h := newHarness(t, "symbol: EURUSD\n")
	h.rows[4] = bullishRow()
	h.rows[24] = bullishRow()

	res := h.step(t)

	if res.State != types.StateFlat {
		t.Errorf("Expected FLAT, got %s", res.State)
	}
	if len(h.market.entries) != 1 {
		t.Fatalf("Expected exactly 1 entry, got %d", len(h.market.entries))
	}
	in := h.market.entries[0]
	if in.Side != types.Buy || in.Horizon != "4h" {
		t.Errorf("Expected BUY on 4h, got %s on %s", in.Side, in.Horizon)
	}
	if in.Price != 1.10000 {
		t.Errorf("Expected ask 1.10000, got %v", in.Price)
	}
	if in.StopLoss != 1.09850 || in.TakeProfit != 1.10300 {
		t.Errorf("Expected SL 1.09850 TP 1.10300, got %v %v", in.StopLoss, in.TakeProfit)
	}
	if in.Volume != h.cfg.Volume {
		t.Errorf("Expected volume %v, got %v", h.cfg.Volume, in.Volume)
	}
	if res.Entry == nil || res.Entry.Ticket != "T-1" {
		t.Errorf("Expected entry result with ticket T-1, got %+v", res.Entry)
	}
	if len(h.journal.entries) != 1 {
		t.Errorf("Expected journaled entry, got %d", len(h.journal.entries))
	}
	if !h.notifier.contains("[4h] All bullish conditions met") || !h.notifier.contains("[1d] All bullish conditions met") {
		t.Errorf("Expected per-horizon alerts, got %v", h.notifier.msgs)
	}
	if !h.notifier.contains("Trade opened") {
		t.Errorf("Expected trade alert, got %v", h.notifier.msgs)
	}
}

func TestFlatBearishSellsAtBid(t *testing.T) {
	h := newHarness(t, "symbol: EURUSD\n")
	h.market.quote = types.Quote{Bid: 1.10000, Ask: 1.10010}
	h.rows[6] = bearishRow()

	h.step(t)

	if len(h.market.entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(h.market.entries))
	}
	in := h.market.entries[0]
	if in.Side != types.Sell || in.Price != 1.10000 {
		t.Errorf("Expected SELL at bid 1.10000, got %s at %v", in.Side, in.Price)
	}
	if in.StopLoss != 1.10150 || in.TakeProfit != 1.09700 {
		t.Errorf("Expected SL 1.10150 TP 1.09700, got %v %v", in.StopLoss, in.TakeProfit)
	}
}

func TestFlatNoSignalNoOrder(t *testing.T) {
	h := newHarness(t, "symbol: EURUSD\n")
	res := h.step(t)

	if len(h.market.entries) != 0 || res.Entry != nil {
		t.Errorf("Expected no entry, got %d", len(h.market.entries))
	}
	if len(res.Bullish) != 5 || len(res.Bearish) != 5 {
		t.Errorf("Expected 5 verdicts per direction, got %d/%d", len(res.Bullish), len(res.Bearish))
	}
}

func TestEntryHorizonsRestrictTrigger(t *testing.T) {
	h := newHarness(t, "symbol: EURUSD\nentry:\n  horizons: [\"1d\"]\n")
	h.rows[4] = bullishRow()

	h.step(t)

	if len(h.market.entries) != 0 {
		t.Errorf("Expected no entry from a horizon outside entry.horizons, got %d", len(h.market.entries))
	}
	if !h.notifier.contains("[4h] All bullish conditions met") {
		t.Error("Expected the satisfied horizon to still be alerted")
	}
}

func TestFullAlignmentNeedsEveryHorizon(t *testing.T) {
	h := newHarness(t, "symbol: EURUSD\nalignment: FULL\n")
	h.rows[4] = bullishRow()
	h.step(t)
	if len(h.market.entries) != 0 {
		t.Fatalf("Expected no entry with partial alignment, got %d", len(h.market.entries))
	}

	for _, hours := range []int64{4, 6, 12, 24, 168} {
		h.rows[hours] = bullishRow()
	}
	h.step(t)
	if len(h.market.entries) != 1 || h.market.entries[0].Horizon != "4h" {
		t.Errorf("Expected one entry sized on 4h, got %+v", h.market.entries)
	}
}

func TestSubmitFailureIsReported(t *testing.T) {
	h := newHarness(t, "symbol: EURUSD\n")
	h.rows[4] = bullishRow()
	h.market.entryErr = errors.New("market closed")

	res := h.step(t)

	if res.Entry == nil || res.Entry.Err == "" || res.Entry.Ticket != "" {
		t.Fatalf("Expected failed entry result, got %+v", res.Entry)
	}
	if res.State != types.StateFlat {
		t.Errorf("Expected state to stay FLAT, got %s", res.State)
	}
	if !h.notifier.contains("Order failed") {
		t.Errorf("Expected failure alert, got %v", h.notifier.msgs)
	}
	if len(h.journal.entries) != 0 {
		t.Error("Expected nothing journaled for a rejected order")
	}
}

func TestTradeLogFailureIsReported(t *testing.T) {
	h := newHarness(t, "symbol: EURUSD\n")
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	t.Setenv("TRADER_LOG_DIR", blocker)
	_ = tradelog.Close()
	h.rows[4] = bullishRow()

	res := h.step(t)

	if len(h.market.entries) != 1 {
		t.Fatalf("Expected the entry to go through, got %d", len(h.market.entries))
	}
	found := false
	for _, is := range res.Issues {
		if strings.HasPrefix(is, "decision log: ") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected decision log issue, got %v", res.Issues)
	}
	if !h.notifier.contains("Trade log write failed for ENTRY EURUSD") {
		t.Errorf("Expected trade log alert, got %v", h.notifier.msgs)
	}
	if !h.notifier.contains("decision log: ") {
		t.Errorf("Expected cycle issue alert, got %v", h.notifier.msgs)
	}
}

func TestPositionQueryFailureSkipsCycle(t *testing.T) {
	h := newHarness(t, "symbol: EURUSD\n")
	h.rows[4] = bullishRow()
	h.market.posErr = errors.New("timeout")

	res, err := New(h.cfg, h.deps).Step(context.Background())
	if err == nil {
		t.Fatal("Expected error when positions cannot be loaded")
	}
	if res != nil {
		t.Errorf("Expected nil result, got %+v", res)
	}
	if len(h.market.entries) != 0 || len(h.market.exits) != 0 {
		t.Error("Expected no orders")
	}
	if !h.notifier.contains("Position query failed") {
		t.Errorf("Expected alert, got %v", h.notifier.msgs)
	}
}

func TestNoDataHorizonIsReported(t *testing.T) {
	h := newHarness(t, "symbol: EURUSD\n")
	delete(h.rows, 168)
	h.market.fetchErr[12*time.Hour] = errors.New("rate limited")

	res := h.step(t)

	var found1w, found12h bool
	for _, is := range res.Issues {
		found1w = found1w || strings.HasPrefix(is, "1w:")
		found12h = found12h || strings.HasPrefix(is, "12h:")
	}
	if !found1w || !found12h {
		t.Errorf("Expected issues for 1w and 12h, got %v", res.Issues)
	}
	for _, v := range append(res.Bullish, res.Bearish...) {
		if v.Horizon != "1w" && v.Horizon != "12h" {
			continue
		}
		if v.Satisfied || len(v.Failing) != 1 || v.Failing[0] != align.NoData {
			t.Errorf("Expected no-data verdict for %s, got %+v", v.Horizon, v)
		}
	}
	if !h.notifier.contains("cycle issues") {
		t.Errorf("Expected issues alert, got %v", h.notifier.msgs)
	}
}

func TestUndefinedRiskBlocksEntry(t *testing.T) {
	h := newHarness(t, "symbol: EURUSD\n")
	h.rows[4] = bullishRow()
	h.market.spec.TickSize = 0

	res := h.step(t)

	if len(h.market.entries) != 0 {
		t.Errorf("Expected no entry with undefined risk, got %d", len(h.market.entries))
	}
	if len(res.Issues) == 0 {
		t.Error("Expected an issue for undefined risk")
	}
}

func TestPatternIsAdvisoryOnly(t *testing.T) {
	h := newHarness(t, "symbol: EURUSD\n")
	h.rows[4] = bullishRow()
	h.deps.Pattern = func([]types.Candle) types.Pattern { return types.PatternBearish }

	res := h.step(t)

	if res.Pattern != types.PatternBearish {
		t.Errorf("Expected pattern to be recorded, got %s", res.Pattern)
	}
	if len(h.market.entries) != 1 {
		t.Errorf("Expected conflicting pattern not to block entry, got %d entries", len(h.market.entries))
	}
	if h.notifier.contains("Chart pattern reinforcement") {
		t.Error("Expected no reinforcement alert for a conflicting pattern")
	}
}

func TestPatternReinforcementAlert(t *testing.T) {
	h := newHarness(t, "symbol: EURUSD\n")
	h.rows[4] = bullishRow()
	h.deps.Pattern = func([]types.Candle) types.Pattern { return types.PatternBullish }

	h.step(t)

	if !h.notifier.contains("Chart pattern reinforcement") {
		t.Errorf("Expected reinforcement alert, got %v", h.notifier.msgs)
	}
}

func TestInPositionRSIExitClosesOnce(t *testing.T) {
	h := newHarness(t, "symbol: EURUSD\n")
	h.market.positions = []types.Position{{Ticket: "T-9", Symbol: "EURUSD", Side: types.Buy, Volume: 0.02}}
	oversold := neutralRow()
	oversold.RSI = 25
	h.rows[1] = oversold
	h.rows[4] = bullishRow()

	res := h.step(t)

	if res.State != types.StateInPosition {
		t.Errorf("Expected IN_POSITION, got %s", res.State)
	}
	if len(h.market.entries) != 0 {
		t.Errorf("Expected no entry while in position, got %d", len(h.market.entries))
	}
	if len(h.market.exits) != 1 {
		t.Fatalf("Expected exactly 1 close, got %d", len(h.market.exits))
	}
	c := h.market.exits[0]
	if c.Ticket != "T-9" || c.Side != types.Sell || c.Volume != 0.02 {
		t.Errorf("Unexpected close intent: %+v", c)
	}
	if len(res.Exits) != 1 || len(res.Exits[0].Triggers) != 1 || res.Exits[0].Triggers[0] != "1h: RSI" {
		t.Errorf("Expected trigger [1h: RSI], got %+v", res.Exits)
	}
	if len(h.journal.exits) != 1 {
		t.Errorf("Expected journaled exit, got %d", len(h.journal.exits))
	}
}

func TestInPositionHoldsWithoutReversal(t *testing.T) {
	h := newHarness(t, "symbol: EURUSD\n")
	h.market.positions = []types.Position{{Ticket: "T-9", Symbol: "EURUSD", Side: types.Sell, Volume: 1}}

	res := h.step(t)

	if len(h.market.exits) != 0 || len(res.Exits) != 0 {
		t.Errorf("Expected no close, got %d", len(h.market.exits))
	}
}

func TestShortExitOnSecondMonitorHorizon(t *testing.T) {
	h := newHarness(t, "symbol: EURUSD\n")
	h.market.positions = []types.Position{{Ticket: "S-1", Symbol: "EURUSD", Side: types.Sell, Volume: 1}}
	hot := neutralRow()
	hot.StochK, hot.StochD = 85, 90
	h.rows[4] = hot

	res := h.step(t)

	if len(h.market.exits) != 1 || h.market.exits[0].Side != types.Buy {
		t.Fatalf("Expected one BUY close, got %+v", h.market.exits)
	}
	if res.Exits[0].Triggers[0] != "4h: StochRSI" {
		t.Errorf("Expected 4h: StochRSI, got %v", res.Exits[0].Triggers)
	}
	if h.market.fetches[4*time.Hour] != 1 {
		t.Errorf("Expected 4h to be fetched once and reused, got %d", h.market.fetches[4*time.Hour])
	}
	if h.market.fetches[time.Hour] != 1 {
		t.Errorf("Expected 1h to be fetched once, got %d", h.market.fetches[time.Hour])
	}
}

func TestEveryOpenPositionIsMonitored(t *testing.T) {
	h := newHarness(t, "symbol: EURUSD\n")
	h.market.positions = []types.Position{
		{Ticket: "A", Symbol: "EURUSD", Side: types.Buy, Volume: 1},
		{Ticket: "B", Symbol: "EURUSD", Side: types.Buy, Volume: 2},
	}
	oversold := neutralRow()
	oversold.RSI = 20
	h.rows[1] = oversold

	res := h.step(t)

	if len(h.market.exits) != 2 {
		t.Fatalf("Expected 2 closes, got %d", len(h.market.exits))
	}
	if len(res.Issues) == 0 {
		t.Error("Expected a warning issue for multiple positions")
	}
}

func TestExitFailureIsReported(t *testing.T) {
	h := newHarness(t, "symbol: EURUSD\n")
	h.market.positions = []types.Position{{Ticket: "T-9", Symbol: "EURUSD", Side: types.Buy, Volume: 1}}
	h.market.exitErr = errors.New("rejected")
	oversold := neutralRow()
	oversold.RSI = 25
	h.rows[1] = oversold

	res := h.step(t)

	if len(res.Exits) != 1 || res.Exits[0].Err == "" {
		t.Fatalf("Expected failed exit result, got %+v", res.Exits)
	}
	if !h.notifier.contains("Close failed") {
		t.Errorf("Expected failure alert, got %v", h.notifier.msgs)
	}
}

func TestMissingMonitorDataTakesNoExitDecision(t *testing.T) {
	h := newHarness(t, "symbol: EURUSD\n")
	h.market.positions = []types.Position{{Ticket: "T-9", Symbol: "EURUSD", Side: types.Buy, Volume: 1}}
	h.market.fetchErr[time.Hour] = errors.New("no candles")

	res := h.step(t)

	if len(h.market.exits) != 0 {
		t.Errorf("Expected no close, got %d", len(h.market.exits))
	}
	found := false
	for _, is := range res.Issues {
		found = found || strings.HasPrefix(is, "1h:")
	}
	if !found {
		t.Errorf("Expected 1h issue, got %v", res.Issues)
	}
}
