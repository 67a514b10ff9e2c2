// Package history keeps a SQLite log of pricing reconcile runs.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pario-ai/tokenledger/pkg/models"
	_ "modernc.org/sqlite"
)

// Store writes and queries reconcile runs in a dedicated SQLite database.
type Store struct {
	db   *sql.DB
	cfg  models.HistoryConfig
	done chan struct{}
	wg   sync.WaitGroup
}

// New opens the history database and creates the schema. A positive
// RetentionDays starts an hourly cleanup goroutine stopped by Close.
func New(cfg models.HistoryConfig) (*Store, error) {
	db, err := sql.Open("sqlite", cfg.DBPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}

	s := &Store{
		db:   db,
		cfg:  cfg,
		done: make(chan struct{}),
	}

	if cfg.RetentionDays > 0 {
		s.wg.Add(1)
		go s.retentionLoop()
	}

	return s, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS reconcile_runs (
		run_id          TEXT PRIMARY KEY,
		month           TEXT NOT NULL,
		pricing_path    TEXT NOT NULL,
		workdir         TEXT NOT NULL,
		dry_run         INTEGER NOT NULL,
		passed          INTEGER NOT NULL,
		changed         INTEGER NOT NULL,
		wrote_pricing   INTEGER NOT NULL,
		priced_count    INTEGER NOT NULL,
		unpriced_count  INTEGER NOT NULL,
		providers_added INTEGER NOT NULL,
		models_added    INTEGER NOT NULL,
		summary_json    TEXT,
		created_at      INTEGER NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_runs_month ON reconcile_runs(month)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_runs_created ON reconcile_runs(created_at)`)
	return err
}

// FromOutcome flattens a reconcile outcome into a RunRecord.
func FromOutcome(out *models.ReconcileOutcome, at time.Time) (models.RunRecord, error) {
	s := out.Summary
	raw, err := json.Marshal(s)
	if err != nil {
		return models.RunRecord{}, fmt.Errorf("marshal summary: %w", err)
	}
	month := s.PricingCheck.Month
	if s.MonthFilter != nil {
		month = *s.MonthFilter
	}
	return models.RunRecord{
		RunID:          s.RunID,
		Month:          month,
		PricingPath:    s.Pricing,
		Workdir:        s.Workdir,
		DryRun:         s.DryRun,
		Passed:         s.PricingCheck.Passed,
		Changed:        s.PricingApply.Changed,
		WrotePricing:   s.PricingApply.WrotePricing,
		PricedCount:    s.PricingCheck.PricedCount,
		UnpricedCount:  s.PricingCheck.UnpricedCount,
		ProvidersAdded: s.PricingApply.Summary.ProvidersAdded,
		ModelsAdded:    s.PricingApply.Summary.ModelsAdded,
		SummaryJSON:    string(raw),
		CreatedAt:      at,
	}, nil
}

// Record inserts or replaces a run.
func (s *Store) Record(ctx context.Context, r models.RunRecord) error {
	if s == nil || s.db == nil {
		return nil
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO reconcile_runs
		(run_id, month, pricing_path, workdir, dry_run, passed, changed, wrote_pricing,
		 priced_count, unpriced_count, providers_added, models_added, summary_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Month, r.PricingPath, r.Workdir, r.DryRun, r.Passed, r.Changed, r.WrotePricing,
		r.PricedCount, r.UnpricedCount, r.ProvidersAdded, r.ModelsAdded, r.SummaryJSON,
		r.CreatedAt.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// ObserveReconcile records a finished reconcile run.
func (s *Store) ObserveReconcile(ctx context.Context, out *models.ReconcileOutcome) error {
	if s == nil {
		return nil
	}
	r, err := FromOutcome(out, time.Now())
	if err != nil {
		return err
	}
	return s.Record(ctx, r)
}

// Query returns runs matching opts, newest first.
func (s *Store) Query(ctx context.Context, opts models.HistoryQueryOpts) ([]models.RunRecord, error) {
	q := `SELECT run_id, month, pricing_path, workdir, dry_run, passed, changed, wrote_pricing,
		priced_count, unpriced_count, providers_added, models_added, summary_json, created_at
		FROM reconcile_runs WHERE 1=1`
	var args []any

	if opts.RunID != "" {
		q += " AND run_id = ?"
		args = append(args, opts.RunID)
	}
	if opts.Month != "" {
		q += " AND month = ?"
		args = append(args, opts.Month)
	}
	if !opts.Since.IsZero() {
		q += " AND created_at >= ?"
		args = append(args, opts.Since.UTC().UnixNano())
	}
	if opts.FailedOnly {
		q += " AND passed = 0"
	}

	q += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		var r models.RunRecord
		var summary sql.NullString
		var created int64
		if err := rows.Scan(
			&r.RunID, &r.Month, &r.PricingPath, &r.Workdir,
			&r.DryRun, &r.Passed, &r.Changed, &r.WrotePricing,
			&r.PricedCount, &r.UnpricedCount, &r.ProvidersAdded, &r.ModelsAdded,
			&summary, &created,
		); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		r.SummaryJSON = summary.String
		r.CreatedAt = time.Unix(0, created).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Stats returns run and failure counts grouped by month.
func (s *Store) Stats(ctx context.Context) ([]models.HistoryStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT month, count(*), sum(CASE WHEN passed = 0 THEN 1 ELSE 0 END)
		 FROM reconcile_runs GROUP BY month ORDER BY month DESC`)
	if err != nil {
		return nil, fmt.Errorf("history stats: %w", err)
	}
	defer rows.Close()

	var stats []models.HistoryStat
	for rows.Next() {
		var st models.HistoryStat
		if err := rows.Scan(&st.Month, &st.Runs, &st.Failed); err != nil {
			return nil, fmt.Errorf("scan history stat: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// Cleanup deletes runs older than the configured retention period.
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	return s.CleanupBefore(ctx, time.Now().AddDate(0, 0, -s.cfg.RetentionDays))
}

// CleanupBefore deletes runs created before cutoff.
func (s *Store) CleanupBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM reconcile_runs WHERE created_at < ?`, cutoff.UTC().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("history cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (s *Store) Close() error {
	close(s.done)
	s.wg.Wait()
	return s.db.Close()
}

func (s *Store) retentionLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			_, _ = s.Cleanup(context.Background())
		}
	}
}
