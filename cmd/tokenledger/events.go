package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/pario-ai/tokenledger/pkg/events"
	"github.com/pario-ai/tokenledger/pkg/tracker"
	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Import and inspect stored usage events",
	}

	importCmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import usage event JSONL files into the tracker database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			evs, err := events.Load(cmd.Context(), args)
			if err != nil {
				return err
			}

			tr, err := tracker.New(e.cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = tr.Close() }()

			added, err := tr.RecordBatch(cmd.Context(), evs)
			if err != nil {
				return err
			}
			e.logger.Info("events imported", "db", e.cfg.DBPath, "read", len(evs), "added", added)
			fmt.Printf("Imported %d of %d events (%d duplicates skipped).\n", added, len(evs), len(evs)-added)
			return nil
		},
	}

	var summaryMonth string
	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Show stored event counts per provider and model",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			tr, err := tracker.New(e.cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = tr.Close() }()

			rows, err := tr.Summary(cmd.Context(), summaryMonth)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Println("No events recorded.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tMODEL\tEVENTS\tSESSIONS\tTOKENS")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", r.Provider, r.Model, r.EventCount, r.SessionCount, r.TotalTokens)
			}
			return w.Flush()
		},
	}
	summaryCmd.Flags().StringVar(&summaryMonth, "month", "", "only count events in this YYYY-MM month")

	var (
		exportMonth string
		exportOut   string
	)
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored events back out as JSONL",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			tr, err := tracker.New(e.cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = tr.Close() }()

			evs, err := tr.Query(cmd.Context(), tracker.QueryOpts{Month: exportMonth})
			if err != nil {
				return err
			}
			if err := events.WriteFile(exportOut, evs); err != nil {
				return err
			}
			fmt.Printf("Exported %d events to %s.\n", len(evs), exportOut)
			return nil
		},
	}
	exportCmd.Flags().StringVar(&exportMonth, "month", "", "only export events in this YYYY-MM month")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output JSONL path")
	_ = exportCmd.MarkFlagRequired("out")

	cmd.AddCommand(importCmd, summaryCmd, exportCmd)
	return cmd
}
