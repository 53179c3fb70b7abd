// Package journal persists every order the bot submits to a local SQLite
// database for audit and the end-of-session summary.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mtf-signal-bot/internal/interfaces"
	"mtf-signal-bot/internal/logger"
	"mtf-signal-bot/internal/types"

	_ "github.com/mattn/go-sqlite3"
)

const (
	KindEntry = "ENTRY"
	KindExit  = "EXIT"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	kind        TEXT NOT NULL,
	ticket      TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	side        TEXT NOT NULL,
	volume      REAL NOT NULL,
	price       REAL DEFAULT 0,
	stop_loss   REAL DEFAULT 0,
	take_profit REAL DEFAULT 0,
	horizon     TEXT,
	reason      TEXT,
	recorded_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_ticket ON trades(ticket);
CREATE INDEX IF NOT EXISTS idx_trades_recorded_at ON trades(recorded_at);
`

type Journal struct {
	mu  sync.Mutex
	db  *sql.DB
	now func() time.Time
}

var _ interfaces.TradeRecorder = (*Journal)(nil)

// Open opens (or creates) the journal at path, creating parent directories.
func Open(ctx context.Context, path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	logger.Info(ctx, "Trade journal opened", "path", path)
	return &Journal{db: db, now: time.Now}, nil
}

func (j *Journal) RecordEntry(ctx context.Context, intent types.TradeIntent, ticket string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO trades (kind, ticket, symbol, side, volume, price, stop_loss, take_profit, horizon, reason, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		KindEntry,
		ticket,
		intent.Symbol,
		string(intent.Side),
		intent.Volume,
		intent.Price,
		intent.StopLoss,
		intent.TakeProfit,
		intent.Horizon,
		intent.Reason,
		j.now().UTC().Format(time.RFC3339),
	)
	return err
}

func (j *Journal) RecordExit(ctx context.Context, intent types.CloseIntent) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO trades (kind, ticket, symbol, side, volume, reason, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		KindExit,
		intent.Ticket,
		intent.Symbol,
		string(intent.Side),
		intent.Volume,
		intent.Reason,
		j.now().UTC().Format(time.RFC3339),
	)
	return err
}

type Record struct {
	ID         int64   `json:"id"`
	Kind       string  `json:"kind"`
	Ticket     string  `json:"ticket"`
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Volume     float64 `json:"volume"`
	Price      float64 `json:"price"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Horizon    string  `json:"horizon"`
	Reason     string  `json:"reason"`
	RecordedAt string  `json:"recorded_at"`
}

// Recent returns the last limit records, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, kind, ticket, symbol, side, volume, price, stop_loss, take_profit,
		        COALESCE(horizon, ''), COALESCE(reason, ''), recorded_at
		 FROM trades ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Kind, &r.Ticket, &r.Symbol, &r.Side, &r.Volume, &r.Price,
			&r.StopLoss, &r.TakeProfit, &r.Horizon, &r.Reason, &r.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type Summary struct {
	Entries int
	Exits   int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d entries, %d exits", s.Entries, s.Exits)
}

// Summary counts the records written at or after since.
func (j *Journal) Summary(ctx context.Context, since time.Time) (Summary, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var s Summary
	err := j.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(kind = 'ENTRY'), 0), COALESCE(SUM(kind = 'EXIT'), 0)
		 FROM trades WHERE recorded_at >= ?`,
		since.UTC().Format(time.RFC3339),
	).Scan(&s.Entries, &s.Exits)
	return s, err
}

func (j *Journal) Close() error {
	return j.db.Close()
}
