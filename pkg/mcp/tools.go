package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pario-ai/tokenledger/pkg/costs"
	"github.com/pario-ai/tokenledger/pkg/coverage"
	"github.com/pario-ai/tokenledger/pkg/events"
	"github.com/pario-ai/tokenledger/pkg/models"
	"github.com/pario-ai/tokenledger/pkg/pricing"
	"github.com/pario-ai/tokenledger/pkg/report"
	"github.com/pario-ai/tokenledger/pkg/tracker"
)

// Tool argument structs.

type monthArgs struct {
	Month string `json:"month"`
}

type monthlyReportArgs struct {
	Month      string   `json:"month"`
	Providers  []string `json:"providers"`
	Models     []string `json:"models"`
	OnUnpriced string   `json:"on_unpriced"`
	Top        int      `json:"top"`
}

type auditArgs struct {
	MaxAgeDays *int64 `json:"max_age_days"`
}

type historyArgs struct {
	Month      string `json:"month"`
	FailedOnly bool   `json:"failed_only"`
	Limit      int    `json:"limit"`
}

// toolHandler is a function that handles a tool call.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

// toolHandlers maps tool names to their handlers.
var toolHandlers = map[string]toolHandler{
	"tokenledger_events_summary": handleEventsSummary,
	"tokenledger_monthly_report": handleMonthlyReport,
	"tokenledger_coverage":       handleCoverage,
	"tokenledger_pricing_audit":  handlePricingAudit,
	"tokenledger_budget":         handleBudget,
	"tokenledger_cache_stats":    handleCacheStats,
	"tokenledger_history":        handleHistory,
}

var monthProperty = Property{
	Type:        "string",
	Description: "Month in YYYY-MM format (optional, defaults to the latest month with events)",
}

// allTools is the list of tool definitions exposed via tools/list.
var allTools = []ToolDefinition{
	{
		Name:        "tokenledger_events_summary",
		Description: "Show stored usage events aggregated by provider and model.",
		InputSchema: objectSchema(map[string]Property{
			"month": {Type: "string", Description: "Month in YYYY-MM format (optional, omit for all months)"},
		}),
	},
	{
		Name:        "tokenledger_monthly_report",
		Description: "Show the monthly LLM cost breakdown by provider and model, including allocated subscriptions.",
		InputSchema: objectSchema(map[string]Property{
			"month":     monthProperty,
			"providers": stringList("Only include these providers (optional)"),
			"models":    stringList("Only include these models (optional)"),
			"on_unpriced": {
				Type:        "string",
				Enum:        []string{"error", "skip"},
				Description: "What to do with events missing from the pricing catalog (default error)",
			},
			"top": {Type: "integer", Description: "Show only the N largest providers and models (optional)"},
		}),
	},
	{
		Name:        "tokenledger_coverage",
		Description: "Show which events the pricing catalog cannot price, with alias suggestions.",
		InputSchema: objectSchema(map[string]Property{"month": monthProperty}),
	},
	{
		Name:        "tokenledger_pricing_audit",
		Description: "Check pricing catalog metadata for staleness and a missing source.",
		InputSchema: objectSchema(map[string]Property{
			"max_age_days": {Type: "integer", Description: "Maximum catalog age in days (optional, defaults to config)"},
		}),
	},
	{
		Name:        "tokenledger_budget",
		Description: "Show USD spend against all configured budget policies.",
		InputSchema: objectSchema(nil),
	},
	{
		Name:        "tokenledger_cache_stats",
		Description: "Show report cache statistics (entries, hits, misses, hit rate).",
		InputSchema: objectSchema(nil),
	},
	{
		Name:        "tokenledger_history",
		Description: "List recent pricing reconcile runs.",
		InputSchema: objectSchema(map[string]Property{
			"month":       {Type: "string", Description: "Filter by month (optional)"},
			"failed_only": {Type: "boolean", Description: "Only show runs that left events unpriced (optional)"},
			"limit":       {Type: "integer", Description: "Max runs to return (optional, default 20)"},
		}),
	},
}

var errNoEvents = errors.New("no usage events recorded")

// monthEvents loads the catalog and the normalized events of one month.
func (s *Server) monthEvents(ctx context.Context, month string) (*models.PricingBook, []models.UsageEvent, string, error) {
	book, err := pricing.Load(s.pricingPath)
	if err != nil {
		return nil, nil, "", err
	}

	if month == "" {
		months, err := s.tracker.Months(ctx)
		if err != nil {
			return nil, nil, "", err
		}
		if len(months) == 0 {
			return nil, nil, "", errNoEvents
		}
		month = months[0]
	} else if _, _, err := events.ParseMonth(month); err != nil {
		return nil, nil, "", err
	}

	evs, err := s.tracker.Query(ctx, tracker.QueryOpts{Month: month})
	if err != nil {
		return nil, nil, "", err
	}
	return book, events.Normalize(evs, book), month, nil
}

func handleEventsSummary(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args monthArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	rows, err := s.tracker.Summary(ctx, args.Month)
	if err != nil {
		return errorResult("Error fetching event summary: " + err.Error())
	}
	return textResult(formatEventSummary(rows))
}

func handleMonthlyReport(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args monthlyReportArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	onUnpriced, err := costs.ParseOnUnpriced(args.OnUnpriced)
	if err != nil {
		return errorResult(err.Error())
	}

	book, evs, month, err := s.monthEvents(ctx, args.Month)
	if errors.Is(err, errNoEvents) {
		return textResult("No usage events found.")
	}
	if err != nil {
		return errorResult("Error loading events: " + err.Error())
	}

	evs = events.FilterProviderModel(evs, book, args.Providers, args.Models)
	if len(evs) == 0 {
		return textResult(fmt.Sprintf("No usage events found for %s.", month))
	}

	b, err := costs.ComputeCosts(evs, book, onUnpriced)
	if err != nil {
		return errorResult(err.Error())
	}

	var buf bytes.Buffer
	if err := report.WriteBreakdown(&buf, month, b, report.Top{Providers: args.Top, Models: args.Top}, report.FormatTable); err != nil {
		return errorResult("Error rendering report: " + err.Error())
	}
	return textResult(buf.String())
}

func handleCoverage(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args monthArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	book, evs, _, err := s.monthEvents(ctx, args.Month)
	if errors.Is(err, errNoEvents) {
		return textResult("No usage events found.")
	}
	if err != nil {
		return errorResult("Error loading events: " + err.Error())
	}
	return textResult(report.CoverageText(coverage.BuildReport(evs, book)))
}

func handlePricingAudit(_ context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args auditArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	opts := s.audit
	if args.MaxAgeDays != nil {
		opts.MaxAgeDays = *args.MaxAgeDays
	}
	rep, err := pricing.Audit(s.pricingPath, s.now(), opts)
	if err != nil {
		return errorResult("Error auditing pricing: " + err.Error())
	}
	return textResult(formatPricingAudit(rep))
}

func handleBudget(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.enforcer == nil {
		return textResult("Budget enforcement is not configured.")
	}
	statuses, err := s.enforcer.Status(ctx)
	if err != nil {
		return errorResult("Error fetching budget status: " + err.Error())
	}
	return textResult(formatBudgetStatus(statuses))
}

func handleHistory(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.history == nil {
		return textResult("Reconcile history is not configured.")
	}
	var args historyArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	limit := args.Limit
	if limit <= 0 {
		limit = 20
	}
	runs, err := s.history.Query(ctx, models.HistoryQueryOpts{
		Month:      args.Month,
		FailedOnly: args.FailedOnly,
		Limit:      limit,
	})
	if err != nil {
		return errorResult("Error fetching reconcile history: " + err.Error())
	}
	return textResult(formatHistory(runs))
}

func handleCacheStats(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.cache == nil {
		return textResult("Cache is not configured.")
	}
	stats, err := s.cache.Stats()
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	return textResult(formatCacheStats(stats))
}
