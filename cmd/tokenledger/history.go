package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/pario-ai/tokenledger/pkg/models"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past pricing reconcile runs",
	}

	var (
		month      string
		failedOnly bool
		limit      int
		since      time.Duration
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded reconcile runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			store, err := e.openHistory()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			opts := models.HistoryQueryOpts{Month: month, FailedOnly: failedOnly, Limit: limit}
			if since > 0 {
				opts.Since = timeNow().Add(-since)
			}
			runs, err := store.Query(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No reconcile runs recorded.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tRUN ID\tMONTH\tRESULT\tPRICED\tUNPRICED\tPROVIDERS+\tMODELS+\tWROTE")
			for _, r := range runs {
				result := "passed"
				if !r.Passed {
					result = "failed"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%t\n",
					r.CreatedAt.Format("2006-01-02T15:04:05"), r.RunID, r.Month, result,
					r.PricedCount, r.UnpricedCount, r.ProvidersAdded, r.ModelsAdded, r.WrotePricing)
			}
			return w.Flush()
		},
	}
	listCmd.Flags().StringVar(&month, "month", "", "filter by YYYY-MM month")
	listCmd.Flags().BoolVar(&failedOnly, "failed", false, "only show runs that left events unpriced")
	listCmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")
	listCmd.Flags().DurationVar(&since, "since", 0, "only show runs newer than this duration (e.g. 72h)")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show reconcile run counts per month",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			store, err := e.openHistory()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if len(stats) == 0 {
				fmt.Println("No reconcile runs recorded.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MONTH\tRUNS\tFAILED")
			for _, s := range stats {
				fmt.Fprintf(w, "%s\t%d\t%d\n", s.Month, s.Runs, s.Failed)
			}
			return w.Flush()
		},
	}

	var olderThanDays int
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete reconcile runs older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			days := e.cfg.History.RetentionDays
			if cmd.Flags().Changed("older-than-days") {
				days = olderThanDays
			}
			if days <= 0 {
				return fmt.Errorf("history prune: retention must be positive, got %d days", days)
			}

			store, err := e.openHistory()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			n, err := store.CleanupBefore(cmd.Context(), timeNow().AddDate(0, 0, -days))
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d reconcile runs older than %d days.\n", n, days)
			return nil
		},
	}
	pruneCmd.Flags().IntVar(&olderThanDays, "older-than-days", 0, "age cutoff in days (default from config retention)")

	cmd.AddCommand(listCmd, statsCmd, pruneCmd)
	return cmd
}
