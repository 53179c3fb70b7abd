package store

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

type Horizon struct {
	Label    string        `yaml:"label" validate:"required"`
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
	Bars     int           `yaml:"bars" default:"200" validate:"gte=2"`
}

type Config struct {
	Mode         string    `yaml:"mode" default:"DRY_RUN" validate:"oneof=DRY_RUN LIVE"`
	Gateway      string    `yaml:"gateway" default:"PAPER" validate:"oneof=PAPER KITE"`
	Symbol       string    `yaml:"symbol" default:"EURUSD" validate:"required"`
	Exchange     string    `yaml:"exchange" default:"NSE" validate:"required"`
	Product      string    `yaml:"product" default:"MIS" validate:"oneof=MIS NRML CNC"`
	Volume       float64   `yaml:"volume" default:"0.01" validate:"gt=0"`
	MaxDeviation int       `yaml:"max_deviation" default:"20" validate:"gte=0"`
	OrderTag     string    `yaml:"order_tag" default:"mtfbot" validate:"required,max=20"`
	PollSeconds  int       `yaml:"poll_seconds" default:"300" validate:"gte=1"`
	Alignment    string    `yaml:"alignment" default:"INDEPENDENT" validate:"oneof=INDEPENDENT FULL"`
	Horizons     []Horizon `yaml:"horizons" validate:"required,min=1,dive"`

	Entry struct {
		ConfirmationHorizon string   `yaml:"confirmation_horizon" default:"4h"`
		Horizons            []string `yaml:"horizons"`
	} `yaml:"entry"`

	Exit struct {
		MonitorHorizons []Horizon `yaml:"monitor_horizons" validate:"required,min=1,dive"`
		RSIOversold     float64   `yaml:"rsi_oversold" default:"30" validate:"gte=0,lte=100"`
		RSIOverbought   float64   `yaml:"rsi_overbought" default:"70" validate:"gte=0,lte=100"`
		StochOversold   float64   `yaml:"stoch_oversold" default:"20" validate:"gte=0,lte=100"`
		StochOverbought float64   `yaml:"stoch_overbought" default:"80" validate:"gte=0,lte=100"`
	} `yaml:"exit"`

	Indicators Indicators `yaml:"indicators"`

	Rules struct {
		RSIMidline float64 `yaml:"rsi_midline" default:"50" validate:"gte=0,lte=100"`
		StochUpper float64 `yaml:"stoch_upper" default:"80" validate:"gte=0,lte=100"`
		StochLower float64 `yaml:"stoch_lower" default:"20" validate:"gte=0,lte=100"`
	} `yaml:"rules"`

	Risk struct {
		SLMultiplier float64 `yaml:"sl_multiplier" default:"1.5" validate:"gt=0"`
		TPMultiplier float64 `yaml:"tp_multiplier" default:"3.0" validate:"gt=0"`
	} `yaml:"risk"`

	Telegram struct {
		Enabled bool  `yaml:"enabled"`
		ChatID  int64 `yaml:"chat_id"`
	} `yaml:"telegram"`

	Journal struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"data/trades.db"`
	} `yaml:"journal"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`

	Kite Kite `yaml:"kite"`

	Paper Paper `yaml:"paper"`
}

type Kite struct {
	StreamQuotes bool          `yaml:"stream_quotes"`
	QuoteMaxAge  time.Duration `yaml:"quote_max_age" default:"15s" validate:"gt=0"`
}

type Indicators struct {
	EMAShort    int     `yaml:"ema_short" default:"20" validate:"gte=1"`
	EMALong     int     `yaml:"ema_long" default:"50" validate:"gte=1"`
	MACDFast    int     `yaml:"macd_fast" default:"12" validate:"gte=2"`
	MACDSlow    int     `yaml:"macd_slow" default:"26" validate:"gte=2"`
	MACDSignal  int     `yaml:"macd_signal" default:"9" validate:"gte=1"`
	VOFast      int     `yaml:"vo_fast" default:"12" validate:"gte=2"`
	VOSlow      int     `yaml:"vo_slow" default:"26" validate:"gte=2"`
	SARStep     float64 `yaml:"sar_step" default:"0.02" validate:"gt=0"`
	SARMax      float64 `yaml:"sar_max" default:"0.2" validate:"gt=0"`
	RSIPeriod   int     `yaml:"rsi_period" default:"14" validate:"gte=2"`
	StochLength int     `yaml:"stoch_length" default:"14" validate:"gte=2"`
	StochK      int     `yaml:"stoch_k" default:"3" validate:"gte=1"`
	StochD      int     `yaml:"stoch_d" default:"3" validate:"gte=1"`
	ATRPeriod   int     `yaml:"atr_period" default:"14" validate:"gte=1"`
}

type Paper struct {
	Seed        int64   `yaml:"seed" default:"42"`
	StartPrice  float64 `yaml:"start_price" default:"1.1" validate:"gt=0"`
	TickSize    float64 `yaml:"tick_size" default:"0.00001" validate:"gt=0"`
	SpreadTicks int     `yaml:"spread_ticks" default:"10" validate:"gte=0"`
	Volatility  float64 `yaml:"volatility" default:"0.002" validate:"gt=0"`
	Balance     float64 `yaml:"balance" default:"10000" validate:"gt=0"`
	Currency    string  `yaml:"currency" default:"USD" validate:"required"`
}

// SetDefaults fills the horizon lists, which struct tags cannot express.
func (c *Config) SetDefaults() {
	if len(c.Horizons) == 0 {
		c.Horizons = []Horizon{
			{Label: "4h", Interval: 4 * time.Hour, Bars: 200},
			{Label: "6h", Interval: 6 * time.Hour, Bars: 200},
			{Label: "12h", Interval: 12 * time.Hour, Bars: 200},
			{Label: "1d", Interval: 24 * time.Hour, Bars: 200},
			{Label: "1w", Interval: 7 * 24 * time.Hour, Bars: 200},
		}
	}
	if len(c.Exit.MonitorHorizons) == 0 {
		c.Exit.MonitorHorizons = []Horizon{
			{Label: "1h", Interval: time.Hour, Bars: 50},
			{Label: "4h", Interval: 4 * time.Hour, Bars: 200},
		}
	}
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed '%s' (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	if c.Mode == "LIVE" && c.Gateway != "KITE" {
		return fmt.Errorf("mode LIVE requires gateway KITE, got '%s'", c.Gateway)
	}

	if c.Gateway == "KITE" && (c.Volume < 1 || c.Volume != math.Trunc(c.Volume)) {
		return fmt.Errorf("gateway KITE trades whole shares, volume %v is not", c.Volume)
	}

	in := c.Indicators
	if in.EMAShort >= in.EMALong {
		return fmt.Errorf("indicators.ema_short (%d) must be below ema_long (%d)", in.EMAShort, in.EMALong)
	}
	if in.MACDFast >= in.MACDSlow {
		return fmt.Errorf("indicators.macd_fast (%d) must be below macd_slow (%d)", in.MACDFast, in.MACDSlow)
	}
	if in.VOFast >= in.VOSlow {
		return fmt.Errorf("indicators.vo_fast (%d) must be below vo_slow (%d)", in.VOFast, in.VOSlow)
	}
	if in.SARStep > in.SARMax {
		return fmt.Errorf("indicators.sar_step (%.4f) exceeds sar_max (%.4f)", in.SARStep, in.SARMax)
	}

	if c.Exit.RSIOversold >= c.Exit.RSIOverbought {
		return fmt.Errorf("exit.rsi_oversold must be below exit.rsi_overbought")
	}
	if c.Exit.StochOversold >= c.Exit.StochOverbought {
		return fmt.Errorf("exit.stoch_oversold must be below exit.stoch_overbought")
	}
	if c.Rules.StochLower >= c.Rules.StochUpper {
		return fmt.Errorf("rules.stoch_lower must be below rules.stoch_upper")
	}

	seen := map[string]bool{}
	for _, h := range c.Horizons {
		if seen[h.Label] {
			return fmt.Errorf("duplicate horizon label '%s'", h.Label)
		}
		seen[h.Label] = true
	}
	for _, l := range c.Entry.Horizons {
		if !seen[l] {
			return fmt.Errorf("entry.horizons references unknown horizon '%s'", l)
		}
	}
	if c.Alignment == "FULL" && !seen[c.Entry.ConfirmationHorizon] {
		return fmt.Errorf("alignment FULL needs entry.confirmation_horizon to be one of the horizons, got '%s'", c.Entry.ConfirmationHorizon)
	}

	mon := map[string]bool{}
	for _, h := range c.Exit.MonitorHorizons {
		if mon[h.Label] {
			return fmt.Errorf("duplicate exit monitor horizon '%s'", h.Label)
		}
		mon[h.Label] = true
	}
	return nil
}

// HorizonByLabel looks a label up in the signal horizons first, then in the
// exit monitor horizons.
func (c *Config) HorizonByLabel(label string) (Horizon, bool) {
	for _, h := range c.Horizons {
		if h.Label == label {
			return h, true
		}
	}
	for _, h := range c.Exit.MonitorHorizons {
		if h.Label == label {
			return h, true
		}
	}
	return Horizon{}, false
}

func (c *Config) DryRun() bool { return c.Mode == "DRY_RUN" }

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollSeconds) * time.Second
}

// Parse decodes YAML, applies defaults and environment overrides, then
// validates. The returned config is not modified afterwards.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("BOT_MODE"); v != "" {
		c.Mode = strings.ToUpper(v)
	}
	if v := os.Getenv("BOT_SYMBOL"); v != "" {
		c.Symbol = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		c.Telegram.ChatID = id
	}
	return nil
}
