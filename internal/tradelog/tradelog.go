// Package tradelog appends trades and per-cycle signal decisions to daily
// JSON-lines files under TRADER_LOG_DIR (default "logs").
package tradelog

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mtf-signal-bot/internal/types"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	tradesStream    = ""
	decisionsStream = "decisions"
)

var (
	mu    sync.Mutex
	sinks = map[string]*sink{}
	now   = time.Now
)

type sink struct {
	path string
	f    *os.File
	log  *zap.Logger
}

type Entry struct {
	Kind       string // ENTRY or EXIT
	Symbol     string
	Side       string
	Ticket     string
	Volume     float64
	Price      float64
	StopLoss   float64
	TakeProfit float64
	Horizon    string
	Reason     string
	Error      string
}

type DecisionEntry struct {
	Symbol    string
	Horizon   string
	Direction string
	Satisfied bool
	Failing   []string
	Row       *types.IndicatorRow
}

func logDir() string {
	if v := os.Getenv("TRADER_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

func dailyFilepath(stream string, t time.Time) string {
	return filepath.Join(logDir(), stream, t.UTC().Format("2006-01-02")+".txt")
}

func encoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.MessageKey = "event"
	cfg.LevelKey = zapcore.OmitKey
	cfg.CallerKey = zapcore.OmitKey
	cfg.StacktraceKey = zapcore.OmitKey
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewJSONEncoder(cfg)
}

// loggerFor returns the zap logger writing the stream's file for t, rolling
// over to a new file when the day changes. Callers hold mu.
func loggerFor(stream string, t time.Time) (*zap.Logger, error) {
	p := dailyFilepath(stream, t)
	if s, ok := sinks[stream]; ok {
		if s.path == p {
			return s.log, nil
		}
		_ = s.log.Sync()
		_ = s.f.Close()
		delete(sinks, stream)
	}

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	l := zap.New(zapcore.NewCore(encoder(), zapcore.AddSync(f), zapcore.InfoLevel))
	sinks[stream] = &sink{path: p, f: f, log: l}
	return l, nil
}

func Append(e Entry) error {
	mu.Lock()
	defer mu.Unlock()
	l, err := loggerFor(tradesStream, now())
	if err != nil {
		return err
	}
	fields := []zap.Field{
		zap.String("symbol", e.Symbol),
		zap.String("side", e.Side),
		zap.String("ticket", e.Ticket),
		zap.Float64("volume", e.Volume),
		zap.Float64("price", e.Price),
		zap.String("horizon", e.Horizon),
		zap.String("reason", e.Reason),
	}
	if e.StopLoss != 0 || e.TakeProfit != 0 {
		fields = append(fields, zap.Float64("stop_loss", e.StopLoss), zap.Float64("take_profit", e.TakeProfit))
	}
	if e.Error != "" {
		fields = append(fields, zap.String("error", e.Error))
	}
	l.Info(strings.ToLower(e.Kind), fields...)
	return l.Sync()
}

func AppendDecision(e DecisionEntry) error {
	mu.Lock()
	defer mu.Unlock()
	l, err := loggerFor(decisionsStream, now())
	if err != nil {
		return err
	}
	fields := []zap.Field{
		zap.String("symbol", e.Symbol),
		zap.String("horizon", e.Horizon),
		zap.String("direction", e.Direction),
		zap.Bool("satisfied", e.Satisfied),
		zap.Strings("failing", e.Failing),
	}
	if e.Row != nil {
		fields = append(fields, zap.Any("indicators", e.Row))
	}
	l.Info("verdict", fields...)
	return l.Sync()
}

// Close flushes and closes the open daily files.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	var first error
	for k, s := range sinks {
		_ = s.log.Sync()
		if err := s.f.Close(); err != nil && first == nil {
			first = err
		}
		delete(sinks, k)
	}
	return first
}

// CompressOlder gzips log files last modified more than retentionDays ago
// and removes the originals.
func CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(logDir(), func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		if _, err := os.Stat(gz); err == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err != nil {
			_ = os.Remove(gz)
			return nil
		}
		_ = os.Remove(p)
		return nil
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		_ = out.Close()
		return err
	}
	if err := gw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
