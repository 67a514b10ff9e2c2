package main

import (
	"fmt"

	cachepkg "github.com/pario-ai/tokenledger/pkg/cache/sqlite"
	"github.com/pario-ai/tokenledger/pkg/pricing"
	"github.com/spf13/cobra"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the report cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			c, err := cachepkg.New(e.cfg.DBPath, e.cfg.Cache.TTL)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			stats, err := c.Stats()
			if err != nil {
				return err
			}
			fmt.Printf("Entries: %d\nHits:    %d\nMisses:  %d\n", stats.Entries, stats.Hits, stats.Misses)
			return nil
		},
	}

	var (
		staleOnly   bool
		pricingPath string
	)
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cached reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}

			var keep string
			if staleOnly {
				book, err := pricing.Load(e.pricingPath(pricingPath))
				if err != nil {
					return err
				}
				if keep, err = pricing.Hash(book); err != nil {
					return err
				}
			}

			c, err := cachepkg.New(e.cfg.DBPath, e.cfg.Cache.TTL)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			n, err := c.Clear(keep)
			if err != nil {
				return err
			}
			if staleOnly {
				fmt.Printf("Cleared %d reports built from an older pricing catalog.\n", n)
			} else {
				fmt.Printf("Cleared %d cached reports.\n", n)
			}
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&staleOnly, "stale", false, "only clear reports built from a different pricing catalog")
	clearCmd.Flags().StringVar(&pricingPath, "pricing", "", "pricing catalog JSON (default from config)")

	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}
