// Package eod writes end-of-day CSV reports from the daily trade log.
package eod

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"mtf-signal-bot/internal/interfaces"
)

var now = time.Now

var defaultSummarizer interfaces.EodSummarizer = &eodSummarizer{}

// SetDefaultSummarizer allows setting a custom default summarizer (e.g., wrapped with observability)
func SetDefaultSummarizer(summarizer interfaces.EodSummarizer) {
	defaultSummarizer = summarizer
}

func NewSummarizer() interfaces.EodSummarizer {
	return &eodSummarizer{}
}

func SummarizeDay(t time.Time) (string, error) {
	return defaultSummarizer.SummarizeDay(t)
}

func ShouldRunNow() (bool, time.Time) {
	return defaultSummarizer.ShouldRunNow()
}

// tradeLine is one record of the trade log.
type tradeLine struct {
	Event   string  `json:"event"`
	Symbol  string  `json:"symbol"`
	Side    string  `json:"side"`
	Volume  float64 `json:"volume"`
	Horizon string  `json:"horizon"`
	Error   string  `json:"error"`
}

type aggRow struct {
	Symbol        string
	Entries       int
	EntriesFailed int
	Exits         int
	ExitsFailed   int
	BuyVolume     float64
	SellVolume    float64
	Horizons      map[string]int
}

type eodSummarizer struct{}

func logDir() string {
	if v := os.Getenv("TRADER_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

func tradeFile(t time.Time) string {
	return filepath.Join(logDir(), t.UTC().Format("2006-01-02")+".txt")
}

func eodCSVPath(t time.Time) string {
	return filepath.Join(logDir(), "eod", t.UTC().Format("2006-01-02")+".csv")
}

func (eodSummarizer) ShouldRunNow() (bool, time.Time) {
	day := now().UTC().AddDate(0, 0, -1)
	trades, err := os.Stat(tradeFile(day))
	if err != nil {
		return false, day
	}
	report, err := os.Stat(eodCSVPath(day))
	if errors.Is(err, os.ErrNotExist) {
		return true, day
	}
	return err == nil && report.ModTime().Before(trades.ModTime()), day
}

func (eodSummarizer) SummarizeDay(t time.Time) (string, error) {
	aggs, err := aggregate(tradeFile(t))
	if err != nil || len(aggs) == 0 {
		return "", err
	}

	keys := make([]string, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	outPath := eodCSVPath(t)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	headers := []string{"symbol", "entries", "entries_failed", "exits", "exits_failed", "buy_volume", "sell_volume", "entry_horizons"}
	if err := w.Write(headers); err != nil {
		return "", err
	}
	var total aggRow
	for _, k := range keys {
		r := aggs[k]
		if err := w.Write(r.record()); err != nil {
			return "", err
		}
		total.Entries += r.Entries
		total.EntriesFailed += r.EntriesFailed
		total.Exits += r.Exits
		total.ExitsFailed += r.ExitsFailed
		total.BuyVolume += r.BuyVolume
		total.SellVolume += r.SellVolume
	}
	total.Symbol = "TOTAL"
	if err := w.Write(total.record()); err != nil {
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return outPath, nil
}

// aggregate reads a trade log. A missing file yields no rows.
func aggregate(path string) (map[string]*aggRow, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	aggs := map[string]*aggRow{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var tl tradeLine
		if err := json.Unmarshal(sc.Bytes(), &tl); err != nil || tl.Symbol == "" {
			continue
		}
		row := aggs[tl.Symbol]
		if row == nil {
			row = &aggRow{Symbol: tl.Symbol, Horizons: map[string]int{}}
			aggs[tl.Symbol] = row
		}
		failed := tl.Error != ""
		switch tl.Event {
		case "entry":
			if failed {
				row.EntriesFailed++
				continue
			}
			row.Entries++
			if tl.Horizon != "" {
				row.Horizons[tl.Horizon]++
			}
		case "exit":
			if failed {
				row.ExitsFailed++
				continue
			}
			row.Exits++
		default:
			continue
		}
		switch tl.Side {
		case "BUY":
			row.BuyVolume += tl.Volume
		case "SELL":
			row.SellVolume += tl.Volume
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return aggs, nil
}

func (r aggRow) record() []string {
	hs := make([]string, 0, len(r.Horizons))
	for h, n := range r.Horizons {
		hs = append(hs, h+"="+strconv.Itoa(n))
	}
	sort.Strings(hs)
	return []string{
		r.Symbol,
		strconv.Itoa(r.Entries),
		strconv.Itoa(r.EntriesFailed),
		strconv.Itoa(r.Exits),
		strconv.Itoa(r.ExitsFailed),
		strconv.FormatFloat(r.BuyVolume, 'f', -1, 64),
		strconv.FormatFloat(r.SellVolume, 'f', -1, 64),
		strings.Join(hs, " "),
	}
}
