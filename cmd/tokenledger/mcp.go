package main

import (
	"os"

	"github.com/pario-ai/tokenledger/pkg/budget"
	cachepkg "github.com/pario-ai/tokenledger/pkg/cache/sqlite"
	"github.com/pario-ai/tokenledger/pkg/mcp"
	"github.com/pario-ai/tokenledger/pkg/pricing"
	"github.com/pario-ai/tokenledger/pkg/tracker"
	"github.com/spf13/cobra"
)

func newMCPCmd() *cobra.Command {
	var pricingPath string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve cost reports and pricing tools over MCP (stdio)",
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

			opts := mcp.Options{
				Tracker:     tr,
				PricingPath: e.pricingPath(pricingPath),
				Audit: pricing.AuditOptions{
					MaxAgeDays:         e.cfg.Audit.MaxAgeDays,
					AllowStale:         e.cfg.Audit.AllowStale,
					AllowMissingSource: e.cfg.Audit.AllowMissingSource,
				},
				Logger: e.logger,
			}

			if e.cfg.Cache.Enabled {
				c, err := cachepkg.New(e.cfg.DBPath, e.cfg.Cache.TTL)
				if err != nil {
					return err
				}
				defer func() { _ = c.Close() }()
				opts.Cache = c
			}
			if e.cfg.Budget.Enabled {
				book, err := pricing.Load(opts.PricingPath)
				if err != nil {
					return err
				}
				opts.Enforcer = budget.New(e.cfg.Budget.Policies, tr, book)
			}
			if e.cfg.History.Enabled {
				store, err := e.openHistory()
				if err != nil {
					return err
				}
				defer func() { _ = store.Close() }()
				opts.History = store
			}

			e.logger.Info("mcp server starting", "db", e.cfg.DBPath, "pricing", opts.PricingPath)
			return mcp.New(opts, version).Run(cmd.Context(), os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&pricingPath, "pricing", "", "pricing catalog JSON (default from config)")
	return cmd
}
