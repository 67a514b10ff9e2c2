package mcp

import (
	"fmt"
	"strings"

	"github.com/pario-ai/tokenledger/pkg/models"
)

// formatEventSummary formats event summaries as a text table.
func formatEventSummary(rows []models.EventSummary) string {
	if len(rows) == 0 {
		return "No usage data found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-15s %-30s %8s %8s %14s\n",
		"Provider", "Model", "Events", "Sessions", "Tokens")
	b.WriteString(strings.Repeat("-", 79) + "\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-15s %-30s %8d %8d %14d\n",
			r.Provider, r.Model, r.EventCount, r.SessionCount, r.TotalTokens)
	}
	return b.String()
}

// formatBudgetStatus formats budget statuses as a text table.
func formatBudgetStatus(statuses []models.BudgetStatus) string {
	if len(statuses) == 0 {
		return "No budget policies found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-25s %-8s %10s %10s %10s %6s\n",
		"Policy", "Scope", "Period", "Max USD", "Spent", "Remaining", "Usage%")
	b.WriteString(strings.Repeat("-", 96) + "\n")
	for _, s := range statuses {
		pct := float64(0)
		if s.Policy.MaxUSD > 0 {
			pct = s.SpentUSD / s.Policy.MaxUSD * 100
		}
		flag := ""
		if s.Exceeded {
			flag = "  EXCEEDED"
		}
		fmt.Fprintf(&b, "%-20s %-25s %-8s %10.2f %10.2f %10.2f %5.1f%%%s\n",
			s.Policy.Name, policyScope(s.Policy), s.Policy.Period,
			s.Policy.MaxUSD, s.SpentUSD, s.RemainingUSD, pct, flag)
	}
	return b.String()
}

func policyScope(p models.BudgetPolicy) string {
	switch {
	case p.Provider != "" && p.Model != "":
		return p.Provider + "/" + p.Model
	case p.Provider != "":
		return p.Provider
	case p.Model != "":
		return "*/" + p.Model
	}
	return "*"
}

// formatPricingAudit formats a pricing metadata audit.
func formatPricingAudit(r *models.PricingAuditReport) string {
	var b strings.Builder
	status := "PASS"
	if !r.Pass {
		status = "FAIL"
	}
	fmt.Fprintf(&b, "Pricing audit: %s (%s)\n", status, r.PricingPath)
	if r.AgeDays != nil {
		fmt.Fprintf(&b, "  Age:     %d days\n", *r.AgeDays)
	}
	fmt.Fprintf(&b, "  Source:  %t\n", r.SourcePresent)
	fmt.Fprintf(&b, "  Stale:   %t\n", r.Stale)
	for _, v := range r.Violations {
		fmt.Fprintf(&b, "  violation: %s\n", v)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "  warning: %s\n", w)
	}
	return b.String()
}

// formatHistory formats reconcile runs as a text table.
func formatHistory(runs []models.RunRecord) string {
	if len(runs) == 0 {
		return "No reconcile runs found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-8s %-6s %8s %8s %6s %6s %-8s\n",
		"Time", "Month", "Result", "Priced", "Unpriced", "+Prov", "+Model", "Mode")
	b.WriteString(strings.Repeat("-", 80) + "\n")
	for _, r := range runs {
		result := "pass"
		if !r.Passed {
			result = "fail"
		}
		mode := "write"
		if r.DryRun {
			mode = "dry-run"
		} else if !r.WrotePricing {
			mode = "noop"
		}
		fmt.Fprintf(&b, "%-20s %-8s %-6s %8d %8d %6d %6d %-8s\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.Month, result,
			r.PricedCount, r.UnpricedCount, r.ProvidersAdded, r.ModelsAdded, mode)
	}
	return b.String()
}

// formatCacheStats formats cache stats as text.
func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	return fmt.Sprintf("Cache Statistics\n"+
		"  Entries:  %d\n"+
		"  Hits:     %d\n"+
		"  Misses:   %d\n"+
		"  Hit Rate: %.1f%%\n",
		stats.Entries, stats.Hits, stats.Misses, hitRate)
}
