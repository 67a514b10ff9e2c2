// Package report renders cost and coverage reports as tables, markdown or JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/pario-ai/tokenledger/pkg/costs"
	"github.com/pario-ai/tokenledger/pkg/models"
)

// Format selects an output rendering.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a --format value.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(raw)) {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown format %q (use table, json or markdown)", raw)
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// Top limits provider and model rows in table and markdown output. Zero
// shows every row.
type Top struct {
	Providers int
	Models    int
}

// WriteBreakdown renders a monthly cost breakdown.
func WriteBreakdown(w io.Writer, month string, b *models.CostBreakdown, top Top, f Format) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, b)
	case FormatMarkdown:
		_, err := io.WriteString(w, breakdownMarkdown(month, b, top))
		return err
	}
	return breakdownTable(w, month, b, top)
}

func breakdownTable(w io.Writer, month string, b *models.CostBreakdown, top Top) error {
	fmt.Fprintf(w, "Month:          %s\n", month)
	fmt.Fprintf(w, "Total:          $%.2f (variable $%.2f + subscription $%.2f)\n",
		b.MonthlyTotalUSD, b.VariableCostUSD, b.SubscriptionAllocatedUSD)
	fmt.Fprintf(w, "Tokens:         %d (%.4f MTok)\n", b.TotalTokens, b.TotalMTok)
	fmt.Fprintf(w, "Blended:        $%.4f / MTok\n", b.BlendedUSDPerMTok)
	fmt.Fprintf(w, "Sessions:       %d\n", b.SessionCount)
	if b.SkippedUnpricedCount > 0 {
		fmt.Fprintf(w, "Skipped:        %d unpriced events\n", b.SkippedUnpricedCount)
	}

	for _, section := range []struct {
		title string
		rows  []models.NamedMetric
		top   int
	}{
		{"PROVIDER", b.ProviderBreakdown, top.Providers},
		{"MODEL", b.ModelBreakdown, top.Models},
	} {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "%s\tTOKENS\tVARIABLE\tSUBSCRIPTION\tTOTAL\t$/MTOK\tSESSIONS\tTOOL SHARE\n", section.title)
		for _, r := range limitRows(section.rows, section.top) {
			fmt.Fprintf(tw, "%s\t%d\t$%.2f\t$%.2f\t$%.2f\t%.4f\t%d\t%.1f%%\n",
				r.Name, r.Tokens, r.VariableCostUSD, r.SubscriptionAllocatedUSD,
				r.TotalCostUSD, r.BlendedUSDPerMTok, r.SessionCount, r.ToolShare*100)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(b.Suggestions) > 0 {
		fmt.Fprintln(w, "\nSuggestions:")
		for _, s := range b.Suggestions {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
	return nil
}

func breakdownMarkdown(month string, b *models.CostBreakdown, top Top) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# LLM cost report %s\n\n", month)
	fmt.Fprintf(&sb, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Monthly total | $%.2f |\n", b.MonthlyTotalUSD)
	fmt.Fprintf(&sb, "| Variable cost | $%.2f |\n", b.VariableCostUSD)
	fmt.Fprintf(&sb, "| Subscription allocated | $%.2f |\n", b.SubscriptionAllocatedUSD)
	fmt.Fprintf(&sb, "| Tokens | %d |\n", b.TotalTokens)
	fmt.Fprintf(&sb, "| Blended $/MTok | %.4f |\n", b.BlendedUSDPerMTok)
	fmt.Fprintf(&sb, "| Sessions | %d |\n", b.SessionCount)

	writeRows := func(title string, rows []models.NamedMetric, n int) {
		fmt.Fprintf(&sb, "\n## %s\n\n", title)
		sb.WriteString("| Name | Tokens | Variable | Subscription | Total | $/MTok | Sessions |\n")
		sb.WriteString("|---|---:|---:|---:|---:|---:|---:|\n")
		for _, r := range limitRows(rows, n) {
			fmt.Fprintf(&sb, "| %s | %d | $%.2f | $%.2f | $%.2f | %.4f | %d |\n",
				r.Name, r.Tokens, r.VariableCostUSD, r.SubscriptionAllocatedUSD,
				r.TotalCostUSD, r.BlendedUSDPerMTok, r.SessionCount)
		}
	}
	writeRows("Providers", b.ProviderBreakdown, top.Providers)
	writeRows("Models", b.ModelBreakdown, top.Models)

	if len(b.Suggestions) > 0 {
		sb.WriteString("\n## Suggestions\n\n")
		for _, s := range b.Suggestions {
			fmt.Fprintf(&sb, "- %s\n", s)
		}
	}
	return sb.String()
}

func limitRows(rows []models.NamedMetric, top int) []models.NamedMetric {
	if top <= 0 {
		return rows
	}
	return costs.TopRows(rows, top)
}

// WriteDaily renders a per-day report.
func WriteDaily(w io.Writer, r *models.DailyReport, f Format) error {
	if f == FormatJSON {
		return WriteJSON(w, r)
	}
	if f == FormatMarkdown {
		var sb strings.Builder
		fmt.Fprintf(&sb, "# Daily LLM cost %s\n\n", r.Month)
		sb.WriteString("| Day | Tokens | Variable | Subscription | Total |\n|---|---:|---:|---:|---:|\n")
		for _, d := range r.Days {
			fmt.Fprintf(&sb, "| %s | %d | $%.2f | $%.2f | $%.2f |\n", d.Day, d.Breakdown.TotalTokens,
				d.Breakdown.VariableCostUSD, d.Breakdown.SubscriptionAllocatedUSD, d.Breakdown.MonthlyTotalUSD)
		}
		fmt.Fprintf(&sb, "| **Total** | %d | $%.2f | $%.2f | $%.2f |\n", r.Totals.TotalTokens,
			r.Totals.VariableCostUSD, r.Totals.SubscriptionAllocatedUSD, r.Totals.MonthlyTotalUSD)
		_, err := io.WriteString(w, sb.String())
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DAY\tTOKENS\tVARIABLE\tSUBSCRIPTION\tTOTAL\tSESSIONS")
	for _, d := range r.Days {
		b := d.Breakdown
		fmt.Fprintf(tw, "%s\t%d\t$%.2f\t$%.2f\t$%.2f\t%d\n",
			d.Day, b.TotalTokens, b.VariableCostUSD, b.SubscriptionAllocatedUSD, b.MonthlyTotalUSD, b.SessionCount)
	}
	t := r.Totals
	fmt.Fprintf(tw, "TOTAL\t%d\t$%.2f\t$%.2f\t$%.2f\t%d\n",
		t.TotalTokens, t.VariableCostUSD, t.SubscriptionAllocatedUSD, t.MonthlyTotalUSD, t.SessionCount)
	return tw.Flush()
}

// WriteCoverage renders a coverage report.
func WriteCoverage(w io.Writer, r *models.CoverageReport, f Format) error {
	if f == FormatJSON {
		return WriteJSON(w, r)
	}
	_, err := io.WriteString(w, CoverageText(r))
	return err
}

// CoverageText is the plain-text rendering of a coverage report.
func CoverageText(r *models.CoverageReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Month:    %s\n", r.Month)
	fmt.Fprintf(&sb, "Events:   %d (%d tokens)\n", r.Totals.Events, r.Totals.Tokens)
	fmt.Fprintf(&sb, "Priced:   %d\n", r.PricedCount)
	fmt.Fprintf(&sb, "Unpriced: %d\n", r.UnpricedCount)

	if len(r.MissingProviders) > 0 {
		sb.WriteString("\nMissing providers:\n")
		for _, p := range r.MissingProviders {
			fmt.Fprintf(&sb, "  - %s", p)
			if s := r.SuggestedProviderAliases[p]; len(s) > 0 {
				fmt.Fprintf(&sb, " (did you mean: %s)", strings.Join(s, ", "))
			}
			sb.WriteString("\n")
		}
	}

	if len(r.MissingModelsByProvider) > 0 {
		sb.WriteString("\nMissing models:\n")
		providers := make([]string, 0, len(r.MissingModelsByProvider))
		for p := range r.MissingModelsByProvider {
			providers = append(providers, p)
		}
		sort.Strings(providers)
		for _, p := range providers {
			counts := make(map[string]int)
			for _, s := range r.SuggestedModelAliasesByProvider[p] {
				counts[s.Model] = s.Count
			}
			for _, m := range r.MissingModelsByProvider[p] {
				fmt.Fprintf(&sb, "  - %s/%s (%d events)\n", p, m, counts[m])
			}
		}
	}

	if r.UnpricedCount == 0 {
		sb.WriteString("\nAll events are priced.\n")
	}
	return sb.String()
}
