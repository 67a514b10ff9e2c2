// Package reconcile runs the coverage, patch, apply, re-check loop against a
// pricing catalog on disk.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/pario-ai/tokenledger/pkg/coverage"
	"github.com/pario-ai/tokenledger/pkg/events"
	"github.com/pario-ai/tokenledger/pkg/models"
	"github.com/pario-ai/tokenledger/pkg/patch"
	"github.com/pario-ai/tokenledger/pkg/pricing"
)

// Artifact file names inside the workdir.
const (
	PatchFile          = "pricing-patch.reconcile.json"
	UnpricedEventsFile = "unpriced-events.reconcile.jsonl"
	SummaryFile        = "reconcile-summary.json"
)

// MetadataSource is written to meta.source when a run stamps the catalog.
const MetadataSource = "tokenledger"

// ErrNoMatchingEvents is returned when the month filter leaves nothing to reconcile.
var ErrNoMatchingEvents = errors.New("no events matched selected month filters")

// Observer is notified after a run completes.
type Observer interface {
	ObserveReconcile(ctx context.Context, outcome *models.ReconcileOutcome) error
}

// Options configures Execute.
type Options struct {
	PricingPath    string
	Month          string
	Workdir        string
	AllowUnpriced  bool
	DryRun         bool
	WriteBackup    bool
	AllowOverwrite bool
	RunID          string
	Now            func() time.Time
	Logger         *slog.Logger
	Observers      []Observer
}

// Execute reconciles the catalog at opts.PricingPath against events.
// Remaining unpriced events are reported through FailForUnpriced, not an error.
func Execute(ctx context.Context, evs []models.UsageEvent, opts Options) (*models.ReconcileOutcome, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	logger = logger.With("run_id", runID)

	if err := os.MkdirAll(opts.Workdir, 0755); err != nil {
		return nil, fmt.Errorf("create reconcile workdir %s: %w", opts.Workdir, err)
	}
	patchPath := filepath.Join(opts.Workdir, PatchFile)
	unpricedPath := filepath.Join(opts.Workdir, UnpricedEventsFile)

	book, err := pricing.Load(opts.PricingPath)
	if err != nil {
		return nil, err
	}
	filtered, err := selectEvents(evs, book, opts.Month)
	if err != nil {
		return nil, err
	}

	pre := coverage.BuildReport(filtered, book)
	unpriced := coverage.CollectUnpricedEvents(filtered, book)
	logger.Info("coverage analyzed",
		"month", pre.Month, "priced", pre.PricedCount, "unpriced", pre.UnpricedCount)

	if err := events.WriteFile(unpricedPath, unpriced); err != nil {
		return nil, err
	}
	if err := patch.WriteFile(patchPath, patch.Build(filtered, unpriced, book, now())); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	applied, err := patch.ApplyFile(ctx, patch.ApplyOptions{
		PricingPath:    opts.PricingPath,
		PatchPath:      patchPath,
		DryRun:         opts.DryRun,
		WriteBackup:    opts.WriteBackup,
		AllowOverwrite: opts.AllowOverwrite,
		Now:            now,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("patch applied",
		"changed", applied.Changed, "wrote", applied.WrotePricing,
		"providers_added", applied.Summary.ProvidersAdded, "models_added", applied.Summary.ModelsAdded)

	metadataUpdated := false
	if applied.WrotePricing {
		metadataUpdated, err = StampMetadata(opts.PricingPath, now())
		if err != nil {
			return nil, err
		}
	}

	after := applied.PricingAfter
	if !opts.DryRun {
		after, err = pricing.Load(opts.PricingPath)
		if err != nil {
			return nil, err
		}
	}
	filteredAfter, err := selectEvents(evs, after, opts.Month)
	if err != nil {
		return nil, err
	}
	post := coverage.BuildReport(filteredAfter, after)
	passed := post.UnpricedCount == 0 || opts.AllowUnpriced

	summary := models.PricingReconcileSummary{
		RunID:                    runID,
		Pricing:                  opts.PricingPath,
		Workdir:                  opts.Workdir,
		AllowUnpriced:            opts.AllowUnpriced,
		DryRun:                   opts.DryRun,
		WriteBackup:              opts.WriteBackup,
		AllowOverwriteModelRates: opts.AllowOverwrite,
		Artifacts: models.ReconcileArtifacts{
			PatchPath:          patchPath,
			UnpricedEventsPath: unpricedPath,
		},
		Coverage: *pre,
		PricingApply: models.ReconcileApplyResult{
			Changed:         applied.Changed,
			WrotePricing:    applied.WrotePricing,
			MetadataUpdated: metadataUpdated,
			Summary:         applied.Summary,
		},
		PricingCheck: models.ReconcileCheckResult{
			Passed:        passed,
			Month:         post.Month,
			PricedCount:   post.PricedCount,
			UnpricedCount: post.UnpricedCount,
			Details:       coverage.SummarizeUnpricedPairs(coverage.CollectUnpricedEvents(filteredAfter, after)),
		},
	}
	if opts.Month != "" {
		m := opts.Month
		summary.MonthFilter = &m
	}
	if applied.BackupPath != "" {
		b := applied.BackupPath
		summary.Artifacts.BackupPath = &b
	}

	outcome := &models.ReconcileOutcome{Summary: summary, FailForUnpriced: !passed}
	if err := WriteSummary(filepath.Join(opts.Workdir, SummaryFile), &summary); err != nil {
		return nil, err
	}

	for _, o := range opts.Observers {
		if err := o.ObserveReconcile(ctx, outcome); err != nil {
			logger.Warn("reconcile observer failed", "error", err)
		}
	}
	if outcome.FailForUnpriced {
		logger.Warn("unpriced events remain", "unpriced", post.UnpricedCount)
	}
	return outcome, nil
}

func selectEvents(evs []models.UsageEvent, book *models.PricingBook, month string) ([]models.UsageEvent, error) {
	filtered, err := events.FilterMonth(events.Normalize(evs, book), month)
	if err != nil {
		return nil, err
	}
	if len(filtered) == 0 {
		return nil, ErrNoMatchingEvents
	}
	return filtered, nil
}

// StampMetadata fills meta.updated_at and meta.source when either is absent.
// It reports whether the catalog was rewritten.
func StampMetadata(path string, now time.Time) (bool, error) {
	book, err := pricing.Load(path)
	if err != nil {
		return false, err
	}
	if book.Meta != nil && book.Meta.UpdatedAt != "" && book.Meta.Source != "" {
		return false, nil
	}
	if book.Meta == nil {
		book.Meta = &models.PricingMeta{}
	}
	book.Meta.UpdatedAt = now.UTC().Format("2006-01-02T15:04:05Z")
	if book.Meta.Source == "" {
		book.Meta.Source = MetadataSource
	}
	if err := pricing.Save(path, book); err != nil {
		return false, fmt.Errorf("stamp metadata: %w", err)
	}
	return true, nil
}

// WriteSummary writes the run summary as indented JSON.
func WriteSummary(path string, summary *models.PricingReconcileSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal reconcile summary: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write reconcile summary %s: %w", path, err)
	}
	return nil
}

// RunWorkdir returns the directory a run should use under base. Unless
// static is set, each run gets its own reconcile-YYYYMMDD-HHMMSS subdirectory.
func RunWorkdir(base string, static bool, now time.Time) string {
	if static {
		return base
	}
	return filepath.Join(base, "reconcile-"+now.UTC().Format("20060102-150405"))
}
