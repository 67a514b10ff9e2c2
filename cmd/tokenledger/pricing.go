package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pario-ai/tokenledger/pkg/metrics"
	"github.com/pario-ai/tokenledger/pkg/models"
	"github.com/pario-ai/tokenledger/pkg/patch"
	"github.com/pario-ai/tokenledger/pkg/pricing"
	"github.com/pario-ai/tokenledger/pkg/reconcile"
	"github.com/pario-ai/tokenledger/pkg/report"
	"github.com/spf13/cobra"
)

var timeNow = time.Now

func joinDetails(details []string) string {
	return strings.Join(details, ", ")
}

func newPricingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pricing",
		Short: "Check, patch, reconcile and audit the pricing catalog",
	}

	cmd.AddCommand(
		newPricingCheckCmd(),
		newPricingApplyCmd(),
		newPricingReconcileCmd(),
		newPricingLintCmd(),
		newPricingAuditCmd(),
	)
	return cmd
}

func newPricingApplyCmd() *cobra.Command {
	var (
		pricingPath    string
		patchPath      string
		dryRun         bool
		writeBackup    bool
		allowOverwrite bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Merge a pricing patch into the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			res, err := patch.ApplyFile(cmd.Context(), patch.ApplyOptions{
				PricingPath:    pricingPath,
				PatchPath:      patchPath,
				DryRun:         dryRun,
				WriteBackup:    writeBackup,
				AllowOverwrite: allowOverwrite,
				Now:            timeNow,
			})
			if err != nil {
				return err
			}
			e.logger.Info("pricing patch applied",
				"changed", res.Changed, "wrote", res.WrotePricing, "backup", res.BackupPath)
			return report.WriteJSON(os.Stdout, res.Summary)
		},
	}

	cmd.Flags().StringVar(&pricingPath, "pricing", "", "pricing JSON file to update")
	cmd.Flags().StringVar(&patchPath, "patch", "", "pricing patch JSON to merge")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute the merge without writing")
	cmd.Flags().BoolVar(&writeBackup, "write-backup", false, "copy the catalog to a timestamped .bak before writing")
	cmd.Flags().BoolVar(&allowOverwrite, "allow-overwrite-model-rates", false, "allow overwriting existing model rates/alias mappings")
	_ = cmd.MarkFlagRequired("pricing")
	_ = cmd.MarkFlagRequired("patch")
	return cmd
}

func newPricingReconcileCmd() *cobra.Command {
	var (
		eventPaths      []string
		fromDB          bool
		pricingPath     string
		month           string
		workdir         string
		staticArtifacts bool
		allowUnpriced   bool
		dryRun          bool
		writeBackup     bool
		allowOverwrite  bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Add missing providers and models to the catalog and re-check coverage",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			rc := e.cfg.Reconcile

			evs, err := e.loadEvents(ctx, eventPaths, fromDB, month)
			if err != nil {
				return err
			}

			base := workdir
			if base == "" {
				base = rc.Workdir
			}
			now := timeNow()
			opts := reconcile.Options{
				PricingPath:    e.pricingPath(pricingPath),
				Month:          month,
				Workdir:        reconcile.RunWorkdir(base, staticArtifacts || rc.StaticArtifacts, now),
				AllowUnpriced:  allowUnpriced || rc.AllowUnpriced,
				DryRun:         dryRun || rc.DryRun,
				WriteBackup:    writeBackup || (rc.WriteBackup && !cmd.Flags().Changed("write-backup")),
				AllowOverwrite: allowOverwrite,
				Now:            timeNow,
				Logger:         e.logger,
			}

			var collector *metrics.Collector
			if e.cfg.Metrics.Textfile != "" {
				collector = metrics.New(e.cfg.Metrics.Namespace)
				opts.Observers = append(opts.Observers, collector)
			}
			if e.cfg.History.Enabled {
				store, err := e.openHistory()
				if err != nil {
					return err
				}
				defer func() { _ = store.Close() }()
				opts.Observers = append(opts.Observers, store)
			}

			outcome, err := reconcile.Execute(ctx, evs, opts)
			if err != nil {
				return err
			}
			if collector != nil {
				if err := collector.WriteTextfile(e.cfg.Metrics.Textfile); err != nil {
					return err
				}
			}
			if err := report.WriteJSON(os.Stdout, outcome.Summary); err != nil {
				return err
			}

			if outcome.FailForUnpriced {
				return errors.New("pricing-reconcile failed: unpriced events remain after apply; re-run with --allow-unpriced to continue")
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&eventPaths, "events", nil, "usage event JSONL files (default from config)")
	f.BoolVar(&fromDB, "from-db", false, "read events from the tracker database instead of files")
	f.StringVar(&pricingPath, "pricing", "", "pricing catalog JSON (default from config)")
	f.StringVar(&month, "month", "", "month in YYYY-MM")
	f.StringVar(&workdir, "workdir", "", "directory for reconcile artifacts (default from config)")
	f.BoolVar(&staticArtifacts, "static-artifacts", false, "write artifacts directly in --workdir instead of a per-run subdirectory")
	f.BoolVar(&allowUnpriced, "allow-unpriced", false, "return success even when unpriced events remain after reconcile")
	f.BoolVar(&dryRun, "dry-run", false, "compute the merge without writing the catalog")
	f.BoolVar(&writeBackup, "write-backup", false, "copy the catalog to a timestamped .bak before writing")
	f.BoolVar(&allowOverwrite, "allow-overwrite-model-rates", false, "allow overwriting existing model rates/alias mappings")
	return cmd
}

func newPricingLintCmd() *cobra.Command {
	var (
		pricingPath       string
		allowPlaceholders bool
	)

	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Report placeholder or invalid model rates",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			path := e.pricingPath(pricingPath)
			book, err := pricing.Load(path)
			if err != nil {
				return err
			}

			violations := pricing.Lint(book)
			summary := models.PricingLintSummary{
				Pricing:               path,
				AliasIntegrityOK:      true,
				PlaceholderViolations: violations,
				AllowPlaceholders:     allowPlaceholders,
			}
			if err := report.WriteJSON(os.Stdout, summary); err != nil {
				return err
			}

			if len(violations) > 0 && !allowPlaceholders {
				return fmt.Errorf("pricing-lint failed: found %d placeholder violation(s); re-run with --allow-placeholders to continue",
					len(violations))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pricingPath, "pricing", "", "pricing catalog JSON (default from config)")
	cmd.Flags().BoolVar(&allowPlaceholders, "allow-placeholders", false, "return success even when placeholder model rates are found")
	return cmd
}

func newPricingAuditCmd() *cobra.Command {
	var (
		pricingPath        string
		maxAgeDays         int64
		allowStale         bool
		allowMissingSource bool
		jsonOutput         bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check catalog metadata freshness and provenance",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			opts := pricing.AuditOptions{
				MaxAgeDays:         e.cfg.Audit.MaxAgeDays,
				AllowStale:         allowStale || e.cfg.Audit.AllowStale,
				AllowMissingSource: allowMissingSource || e.cfg.Audit.AllowMissingSource,
			}
			if cmd.Flags().Changed("max-age-days") {
				opts.MaxAgeDays = maxAgeDays
			}

			rep, err := pricing.Audit(e.pricingPath(pricingPath), timeNow(), opts)
			if err != nil {
				return err
			}
			if jsonOutput {
				if err := report.WriteJSON(os.Stdout, rep); err != nil {
					return err
				}
			} else {
				printAudit(rep)
			}

			if !rep.Pass {
				return fmt.Errorf("pricing-audit failed with %d violation(s)", len(rep.Violations))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pricingPath, "pricing", "", "pricing catalog JSON (default from config)")
	cmd.Flags().Int64Var(&maxAgeDays, "max-age-days", 30, "maximum catalog age in days")
	cmd.Flags().BoolVar(&allowStale, "allow-stale", false, "warn instead of fail on a stale catalog")
	cmd.Flags().BoolVar(&allowMissingSource, "allow-missing-source", false, "warn instead of fail when meta.source is missing")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the report as JSON")
	return cmd
}

func printAudit(r *models.PricingAuditReport) {
	status := "passed"
	if !r.Pass {
		status = "failed"
	}
	fmt.Printf("pricing-audit %s: %s\n", status, r.PricingPath)
	fmt.Printf("  checked_at:  %s\n", r.CheckedAt)
	fmt.Printf("  metadata:    %t\n", r.MetadataPresent)
	fmt.Printf("  source:      %t\n", r.SourcePresent)
	fmt.Printf("  updated_at:  %t\n", r.UpdatedAtPresent)
	if r.AgeDays != nil {
		fmt.Printf("  age_days:    %d\n", *r.AgeDays)
	}
	fmt.Printf("  stale:       %t\n", r.Stale)
	for _, v := range r.Violations {
		fmt.Printf("  violation: %s\n", v)
	}
	for _, w := range r.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}
