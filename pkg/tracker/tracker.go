package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/tokenledger/pkg/models"
)

// Tracker stores and queries usage events.
type Tracker interface {
	// Record stores a single event. Duplicates are ignored.
	Record(ctx context.Context, ev models.UsageEvent) error
	// RecordBatch stores events in one transaction and returns how many were new.
	RecordBatch(ctx context.Context, evs []models.UsageEvent) (int, error)
	// Query returns events matching opts ordered by timestamp.
	Query(ctx context.Context, opts QueryOpts) ([]models.UsageEvent, error)
	// Summary returns per provider/model aggregates, optionally for one month.
	Summary(ctx context.Context, month string) ([]models.EventSummary, error)
	// Months lists the distinct YYYY-MM labels present, newest first.
	Months(ctx context.Context) ([]string, error)
	// Close releases resources.
	Close() error
}

// QueryOpts filters stored events. Empty fields match everything.
type QueryOpts struct {
	Month    string
	Provider string
	Model    string
	Since    time.Time
}

// SQLiteTracker implements Tracker with a SQLite database.
type SQLiteTracker struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS usage_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	session_id TEXT NOT NULL,
	ts INTEGER NOT NULL,
	month TEXT NOT NULL,
	input_tokens INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	cache_write_tokens INTEGER NOT NULL,
	cache_read_tokens INTEGER NOT NULL,
	tool_input_tokens INTEGER NOT NULL,
	tool_output_tokens INTEGER NOT NULL,
	UNIQUE(provider, model, session_id, ts, input_tokens, output_tokens,
		cache_write_tokens, cache_read_tokens, tool_input_tokens, tool_output_tokens)
);
CREATE INDEX IF NOT EXISTS idx_usage_events_month ON usage_events(month, provider);
`

const insertEvent = `INSERT OR IGNORE INTO usage_events
	(provider, model, session_id, ts, month, input_tokens, output_tokens,
	 cache_write_tokens, cache_read_tokens, tool_input_tokens, tool_output_tokens)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// New creates a SQLiteTracker and runs auto-migration.
func New(dbPath string) (*SQLiteTracker, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open tracker db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tracker db: %w", err)
	}

	return &SQLiteTracker{db: db}, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, db execer, ev models.UsageEvent) (bool, error) {
	u := ev.Usage
	res, err := db.ExecContext(ctx, insertEvent,
		ev.Provider, ev.Model, ev.SessionID, ev.Timestamp.UTC().UnixNano(), ev.MonthLabel(),
		int64(u.InputTokens), int64(u.OutputTokens), int64(u.CacheWriteTokens),
		int64(u.CacheReadTokens), int64(u.ToolInputTokens), int64(u.ToolOutputTokens),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Record stores a usage event.
func (t *SQLiteTracker) Record(ctx context.Context, ev models.UsageEvent) error {
	if _, err := insert(ctx, t.db, ev); err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// RecordBatch stores events in a single transaction.
func (t *SQLiteTracker) RecordBatch(ctx context.Context, evs []models.UsageEvent) (int, error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	added := 0
	for i, ev := range evs {
		ok, err := insert(ctx, tx, ev)
		if err != nil {
			return 0, fmt.Errorf("record event %d: %w", i, err)
		}
		if ok {
			added++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return added, nil
}

// Query returns events matching opts ordered by timestamp.
func (t *SQLiteTracker) Query(ctx context.Context, opts QueryOpts) ([]models.UsageEvent, error) {
	query := `SELECT provider, model, session_id, ts, input_tokens, output_tokens,
		cache_write_tokens, cache_read_tokens, tool_input_tokens, tool_output_tokens
		FROM usage_events WHERE 1=1`
	var args []any

	if opts.Month != "" {
		query += ` AND month = ?`
		args = append(args, opts.Month)
	}
	if opts.Provider != "" {
		query += ` AND provider = ?`
		args = append(args, opts.Provider)
	}
	if opts.Model != "" {
		query += ` AND model = ?`
		args = append(args, opts.Model)
	}
	if !opts.Since.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, opts.Since.UTC().UnixNano())
	}
	query += ` ORDER BY ts ASC, id ASC`

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var evs []models.UsageEvent
	for rows.Next() {
		var ev models.UsageEvent
		var ts, in, out, cw, cr, ti, to int64
		if err := rows.Scan(&ev.Provider, &ev.Model, &ev.SessionID, &ts, &in, &out, &cw, &cr, &ti, &to); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Timestamp = time.Unix(0, ts).UTC()
		ev.Usage = models.TokenUsage{
			InputTokens:      uint64(in),
			OutputTokens:     uint64(out),
			CacheWriteTokens: uint64(cw),
			CacheReadTokens:  uint64(cr),
			ToolInputTokens:  uint64(ti),
			ToolOutputTokens: uint64(to),
		}
		evs = append(evs, ev)
	}
	return evs, rows.Err()
}

// Summary returns aggregated usage grouped by provider and model.
func (t *SQLiteTracker) Summary(ctx context.Context, month string) ([]models.EventSummary, error) {
	query := `SELECT provider, model, COUNT(*), COUNT(DISTINCT session_id),
		SUM(input_tokens + output_tokens + cache_write_tokens + cache_read_tokens + tool_input_tokens + tool_output_tokens)
		FROM usage_events`
	var args []any
	if month != "" {
		query += ` WHERE month = ?`
		args = append(args, month)
	}
	query += ` GROUP BY provider, model ORDER BY provider, model`

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.EventSummary
	for rows.Next() {
		var s models.EventSummary
		var total int64
		if err := rows.Scan(&s.Provider, &s.Model, &s.EventCount, &s.SessionCount, &total); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		s.TotalTokens = uint64(total)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Months lists distinct month labels, newest first.
func (t *SQLiteTracker) Months(ctx context.Context) ([]string, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT DISTINCT month FROM usage_events ORDER BY month DESC`)
	if err != nil {
		return nil, fmt.Errorf("list months: %w", err)
	}
	defer rows.Close()

	var months []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan month: %w", err)
		}
		months = append(months, m)
	}
	return months, rows.Err()
}

// Close releases the database connection.
func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}
