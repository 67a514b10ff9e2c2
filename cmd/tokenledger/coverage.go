package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/pario-ai/tokenledger/pkg/coverage"
	"github.com/pario-ai/tokenledger/pkg/events"
	"github.com/pario-ai/tokenledger/pkg/models"
	"github.com/pario-ai/tokenledger/pkg/patch"
	"github.com/pario-ai/tokenledger/pkg/pricing"
	"github.com/pario-ai/tokenledger/pkg/report"
	"github.com/spf13/cobra"
)

// coverageFlags are shared by coverage and pricing check.
type coverageFlags struct {
	events              []string
	fromDB              bool
	pricing             string
	month               string
	writePatch          string
	writeUnpricedEvents string
}

func (c *coverageFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSliceVar(&c.events, "events", nil, "usage event JSONL files (default from config)")
	f.BoolVar(&c.fromDB, "from-db", false, "read events from the tracker database instead of files")
	f.StringVar(&c.pricing, "pricing", "", "pricing catalog JSON (default from config)")
	f.StringVar(&c.month, "month", "", "month in YYYY-MM")
	f.StringVar(&c.writePatch, "write-patch", "", "write suggested pricing patch JSON to this path")
	f.StringVar(&c.writeUnpricedEvents, "write-unpriced-events", "", "write unpriced events JSONL to this path")
}

// analyze loads the catalog and events, builds the coverage report and
// writes the optional patch and unpriced-event outputs.
func (c *coverageFlags) analyze(cmd *cobra.Command, e *env) (*models.CoverageReport, []string, error) {
	book, err := pricing.Load(e.pricingPath(c.pricing))
	if err != nil {
		return nil, nil, err
	}
	evs, err := e.loadEvents(cmd.Context(), c.events, c.fromDB, c.month)
	if err != nil {
		return nil, nil, err
	}
	evs, err = events.FilterMonth(events.Normalize(evs, book), c.month)
	if err != nil {
		return nil, nil, err
	}
	if len(evs) == 0 {
		return nil, nil, errors.New("no events matched selected month filters")
	}

	rep := coverage.BuildReport(evs, book)
	unpriced := coverage.CollectUnpricedEvents(evs, book)

	if c.writeUnpricedEvents != "" {
		if err := events.WriteFile(c.writeUnpricedEvents, unpriced); err != nil {
			return nil, nil, err
		}
		e.logger.Info("wrote unpriced events", "path", c.writeUnpricedEvents, "count", len(unpriced))
	}
	if c.writePatch != "" {
		if err := patch.WriteFile(c.writePatch, patch.Build(evs, unpriced, book, timeNow())); err != nil {
			return nil, nil, err
		}
		e.logger.Info("wrote pricing patch", "path", c.writePatch)
	}
	return rep, coverage.SummarizeUnpricedPairs(unpriced), nil
}

func newCoverageCmd() *cobra.Command {
	var (
		c          coverageFlags
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "coverage",
		Short: "Show which events the pricing catalog cannot price",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			rep, _, err := c.analyze(cmd, e)
			if err != nil {
				return err
			}
			format := report.FormatTable
			if jsonOutput {
				format = report.FormatJSON
			}
			return report.WriteCoverage(os.Stdout, rep, format)
		},
	}

	c.register(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the report as JSON")
	return cmd
}

func newPricingCheckCmd() *cobra.Command {
	var (
		c             coverageFlags
		allowUnpriced bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Fail when any event is missing from the pricing catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			rep, details, err := c.analyze(cmd, e)
			if err != nil {
				return err
			}

			line := fmt.Sprintf("month=%s events=%d priced=%d unpriced=%d",
				rep.Month, rep.Totals.Events, rep.PricedCount, rep.UnpricedCount)
			if rep.UnpricedCount == 0 {
				fmt.Printf("pricing-check passed: %s\n", line)
				return nil
			}
			if allowUnpriced || e.cfg.Reconcile.AllowUnpriced {
				fmt.Fprintf(os.Stderr, "pricing-check warning: %s: %s\n", line, joinDetails(details))
				return nil
			}
			return fmt.Errorf("pricing-check failed: %s: %s. Re-run with --allow-unpriced to continue",
				line, joinDetails(details))
		},
	}

	c.register(cmd)
	cmd.Flags().BoolVar(&allowUnpriced, "allow-unpriced", false, "return success even when unpriced events are found")
	return cmd
}
