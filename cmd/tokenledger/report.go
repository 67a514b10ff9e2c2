package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	cachepkg "github.com/pario-ai/tokenledger/pkg/cache/sqlite"
	"github.com/pario-ai/tokenledger/pkg/costs"
	"github.com/pario-ai/tokenledger/pkg/events"
	"github.com/pario-ai/tokenledger/pkg/metrics"
	"github.com/pario-ai/tokenledger/pkg/models"
	"github.com/pario-ai/tokenledger/pkg/pricing"
	"github.com/pario-ai/tokenledger/pkg/report"
	"github.com/spf13/cobra"
)

// queryFlags are shared by the monthly and daily reports.
type queryFlags struct {
	events       []string
	fromDB       bool
	pricing      string
	month        string
	providers    []string
	models       []string
	topProviders int
	topModels    int
	format       string
	onUnpriced   string
	cache        bool
}

func (q *queryFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSliceVar(&q.events, "events", nil, "usage event JSONL files (default from config)")
	f.BoolVar(&q.fromDB, "from-db", false, "read events from the tracker database instead of files")
	f.StringVar(&q.pricing, "pricing", "", "pricing catalog JSON (default from config)")
	f.StringVar(&q.month, "month", "", "month in YYYY-MM")
	f.StringSliceVar(&q.providers, "provider", nil, "only include these providers")
	f.StringSliceVar(&q.models, "model", nil, "only include these models")
	f.IntVar(&q.topProviders, "top-providers", 0, "limit rows for per-provider output in table/markdown")
	f.IntVar(&q.topModels, "top-models", 0, "limit rows for per-model output in table/markdown")
	f.StringVar(&q.format, "format", "table", "output format: table, json or markdown")
	f.StringVar(&q.onUnpriced, "on-unpriced", "", "behavior for events missing from pricing: error or skip (default from config)")
	f.BoolVar(&q.cache, "cache", false, "reuse cached reports for unchanged catalog and events")
}

// querySet is the resolved input of a cost report.
type querySet struct {
	book       *models.PricingBook
	events     []models.UsageEvent
	onUnpriced costs.OnUnpriced
	format     report.Format
}

func (q *queryFlags) resolve(cmd *cobra.Command, e *env) (*querySet, error) {
	format, err := report.ParseFormat(q.format)
	if err != nil {
		return nil, err
	}
	raw := q.onUnpriced
	if raw == "" {
		raw = e.cfg.OnUnpriced
	}
	onUnpriced, err := costs.ParseOnUnpriced(raw)
	if err != nil {
		return nil, err
	}

	book, err := pricing.Load(e.pricingPath(q.pricing))
	if err != nil {
		return nil, err
	}
	evs, err := e.loadEvents(cmd.Context(), q.events, q.fromDB, q.month)
	if err != nil {
		return nil, err
	}
	evs, err = events.FilterMonth(events.Normalize(evs, book), q.month)
	if err != nil {
		return nil, err
	}
	evs = events.FilterProviderModel(evs, book, q.providers, q.models)
	if len(evs) == 0 {
		return nil, errors.New("no events matched selected month/provider/model filters")
	}
	return &querySet{book: book, events: evs, onUnpriced: onUnpriced, format: format}, nil
}

func (q *queryFlags) selector(kind string, onUnpriced costs.OnUnpriced) models.ReportSelector {
	return models.ReportSelector{
		Kind:       kind,
		Month:      q.month,
		Providers:  q.providers,
		Models:     q.models,
		OnUnpriced: onUnpriced.String(),
	}
}

func (q *queryFlags) monthLabel() string {
	if q.month == "" {
		return "all"
	}
	return q.month
}

// cachedJSON returns the cached payload for sel, or computes, stores and returns it.
func cachedJSON(e *env, enabled bool, sel models.ReportSelector, qs *querySet, compute func() (any, error)) ([]byte, error) {
	if !enabled {
		v, err := compute()
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	}

	c, err := cachepkg.New(e.cfg.DBPath, e.cfg.Cache.TTL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.Close() }()

	pricingHash, err := pricing.Hash(qs.book)
	if err != nil {
		return nil, err
	}
	fingerprint := events.Fingerprint(qs.events)
	key := cachepkg.Key(sel, pricingHash, fingerprint)

	if payload, ok := c.Get(key); ok {
		e.logger.Debug("report cache hit", "kind", sel.Kind)
		return payload, nil
	}

	v, err := compute()
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	if err := c.Put(models.CacheEntry{
		Key:               key,
		PricingHash:       pricingHash,
		EventsFingerprint: fingerprint,
		Payload:           payload,
	}); err != nil {
		e.logger.Warn("report cache write failed", "error", err)
	}
	return payload, nil
}

func newMonthlyCmd() *cobra.Command {
	var q queryFlags

	cmd := &cobra.Command{
		Use:   "monthly",
		Short: "Show monthly blended cost by provider and model",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			qs, err := q.resolve(cmd, e)
			if err != nil {
				return err
			}

			sel := q.selector("monthly", qs.onUnpriced)
			payload, err := cachedJSON(e, q.cache || e.cfg.Cache.Enabled, sel, qs, func() (any, error) {
				return costs.ComputeCosts(qs.events, qs.book, qs.onUnpriced)
			})
			if err != nil {
				return err
			}
			var b models.CostBreakdown
			if err := json.Unmarshal(payload, &b); err != nil {
				return fmt.Errorf("decode report: %w", err)
			}

			if e.cfg.Metrics.Textfile != "" {
				m := metrics.New(e.cfg.Metrics.Namespace)
				m.RecordBreakdown(q.monthLabel(), &b)
				if err := m.WriteTextfile(e.cfg.Metrics.Textfile); err != nil {
					return err
				}
			}

			top := report.Top{Providers: q.topProviders, Models: q.topModels}
			return report.WriteBreakdown(os.Stdout, q.monthLabel(), &b, top, qs.format)
		},
	}
	q.register(cmd)
	return cmd
}

func newDailyCmd() *cobra.Command {
	var q queryFlags

	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Show per-day cost for a month",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			qs, err := q.resolve(cmd, e)
			if err != nil {
				return err
			}

			sel := q.selector("daily", qs.onUnpriced)
			payload, err := cachedJSON(e, q.cache || e.cfg.Cache.Enabled, sel, qs, func() (any, error) {
				r, err := costs.BuildDailyReport(qs.events, qs.book, qs.onUnpriced)
				if err != nil {
					return nil, err
				}
				if q.month != "" {
					r.Month = q.month
				}
				return r, nil
			})
			if err != nil {
				return err
			}
			var r models.DailyReport
			if err := json.Unmarshal(payload, &r); err != nil {
				return fmt.Errorf("decode report: %w", err)
			}

			if err := report.WriteDaily(os.Stdout, &r, qs.format); err != nil {
				return err
			}
			if qs.format != report.FormatJSON && (q.topProviders > 0 || q.topModels > 0) {
				fmt.Println()
				top := report.Top{Providers: q.topProviders, Models: q.topModels}
				return report.WriteBreakdown(os.Stdout, r.Month, &r.Totals, top, qs.format)
			}
			return nil
		},
	}
	q.register(cmd)
	return cmd
}
