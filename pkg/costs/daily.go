package costs

import (
	"sort"

	"github.com/pario-ai/tokenledger/pkg/models"
)

// BuildDailyReport computes month totals plus one breakdown per UTC day.
// Subscription allocation inside a day uses that day's provider totals.
func BuildDailyReport(events []models.UsageEvent, book *models.PricingBook, onUnpriced OnUnpriced) (*models.DailyReport, error) {
	if len(events) == 0 {
		return nil, ErrNoEvents
	}
	totals, err := ComputeCosts(events, book, onUnpriced)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string][]models.UsageEvent)
	for _, evt := range events {
		day := evt.DayLabel()
		byDay[day] = append(byDay[day], evt)
	}
	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	report := &models.DailyReport{
		Month:  events[0].MonthLabel(),
		Totals: *totals,
		Days:   make([]models.DailyEntry, 0, len(days)),
	}
	for _, day := range days {
		b, err := ComputeCosts(byDay[day], book, onUnpriced)
		if err != nil {
			return nil, err
		}
		report.Days = append(report.Days, models.DailyEntry{Day: day, Breakdown: *b})
	}
	return report, nil
}

// TopRows returns rows ordered by tokens descending then name, truncated to n.
// n <= 0 keeps every row. The input slice is not modified.
func TopRows(rows []models.NamedMetric, n int) []models.NamedMetric {
	out := make([]models.NamedMetric, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Tokens != out[j].Tokens {
			return out[i].Tokens > out[j].Tokens
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
