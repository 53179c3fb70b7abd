package types

type Candle struct {
	Ts                          int64 // unix seconds, bar open time
	Open, High, Low, Close, Vol float64
	TickVol                     float64
}

type IndicatorRow struct {
	Ts         int64   `json:"ts"`
	Close      float64 `json:"close"`
	EMAShort   float64 `json:"ema_short"`
	EMALong    float64 `json:"ema_long"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	MACDHist   float64 `json:"macd_hist"`
	VolOsc     float64 `json:"vol_osc"`
	SAR        float64 `json:"sar"`
	RSI        float64 `json:"rsi"`
	StochK     float64 `json:"stoch_k"`
	StochD     float64 `json:"stoch_d"`
	ATR        float64 `json:"atr"`
}

// Snapshot is the latest indicator row of one horizon. Row is nil when the
// horizon produced no usable data this cycle.
type Snapshot struct {
	Horizon string
	Row     *IndicatorRow
	Recent  []Candle
}

func (s Snapshot) HasData() bool { return s.Row != nil }

type Direction string

const (
	Bullish Direction = "BULLISH"
	Bearish Direction = "BEARISH"
)

// Side maps a signal direction to the order side that trades it.
func (d Direction) Side() (Side, bool) {
	switch d {
	case Bullish:
		return Buy, true
	case Bearish:
		return Sell, true
	}
	return "", false
}

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

func (s Side) Valid() bool { return s == Buy || s == Sell }

func (s Side) Mirror() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

type Verdict struct {
	Horizon   string    `json:"horizon"`
	Direction Direction `json:"direction"`
	Satisfied bool      `json:"satisfied"`
	Failing   []string  `json:"failing,omitempty"`
}

type RiskLevels struct {
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
}

type Pattern string

const (
	PatternNone    Pattern = "NONE"
	PatternBullish Pattern = "BULLISH"
	PatternBearish Pattern = "BEARISH"
)

type Position struct {
	Ticket     string  `json:"ticket"`
	Symbol     string  `json:"symbol"`
	Side       Side    `json:"side"`
	Volume     float64 `json:"volume"`
	OpenPrice  float64 `json:"open_price"`
	StopLoss   float64 `json:"stop_loss,omitempty"`
	TakeProfit float64 `json:"take_profit,omitempty"`
}

type TradeIntent struct {
	Symbol     string  `json:"symbol"`
	Side       Side    `json:"side"`
	Volume     float64 `json:"volume"`
	Price      float64 `json:"price"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Horizon    string  `json:"horizon"`
	Reason     string  `json:"reason"`
}

type CloseIntent struct {
	Ticket string  `json:"ticket"`
	Symbol string  `json:"symbol"`
	Side   Side    `json:"side"`
	Volume float64 `json:"volume"`
	Reason string  `json:"reason"`
}

type Quote struct {
	Bid, Ask float64
	Ts       int64
}

type SymbolSpec struct {
	Symbol   string
	TickSize float64
	Tradable bool
}

type Account struct {
	ID, Name, Currency string
	Balance            float64
}

type PositionState string

const (
	StateUnknown    PositionState = "UNKNOWN"
	StateFlat       PositionState = "FLAT"
	StateInPosition PositionState = "IN_POSITION"
)

type EntryResult struct {
	Intent TradeIntent `json:"intent"`
	Ticket string      `json:"ticket,omitempty"`
	Err    string      `json:"error,omitempty"`
}

type ExitResult struct {
	Intent   CloseIntent `json:"intent"`
	Triggers []string    `json:"triggers"`
	Err      string      `json:"error,omitempty"`
}

type CycleResult struct {
	Symbol  string        `json:"symbol"`
	Time    int64         `json:"time"`
	State   PositionState `json:"state"`
	Bullish []Verdict     `json:"bullish"`
	Bearish []Verdict     `json:"bearish"`
	Pattern Pattern       `json:"pattern,omitempty"`
	Entry   *EntryResult  `json:"entry,omitempty"`
	Exits   []ExitResult  `json:"exits,omitempty"`
	Issues  []string      `json:"issues,omitempty"`
}
