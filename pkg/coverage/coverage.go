// Package coverage reports which events a pricing catalog cannot price.
package coverage

import (
	"fmt"
	"sort"

	"github.com/pario-ai/tokenledger/pkg/models"
	"github.com/pario-ai/tokenledger/pkg/pricing"
)

// EmptyMonth labels a report built from no events.
const EmptyMonth = "0000-00"

// BuildReport classifies every event as priced or unpriced and explains the gaps.
// Missing providers and models are keyed by their canonical names.
func BuildReport(events []models.UsageEvent, book *models.PricingBook) *models.CoverageReport {
	report := &models.CoverageReport{
		Month:                           EmptyMonth,
		MissingProviders:                []string{},
		MissingModelsByProvider:         map[string][]string{},
		SuggestedProviderAliases:        map[string][]string{},
		SuggestedModelAliasesByProvider: map[string][]models.UnknownModelSuggestion{},
	}
	if len(events) > 0 {
		report.Month = events[0].MonthLabel()
	}

	missingProviders := make(map[string]struct{})
	unknownModels := make(map[string]map[string]int)

	for _, evt := range events {
		report.Totals.Events++
		report.Totals.Tokens += evt.Usage.Total()

		m, ok := pricing.Lookup(book, evt.Provider, evt.Model)
		if ok {
			report.PricedCount++
			continue
		}
		report.UnpricedCount++

		if !m.ProviderKnown {
			missingProviders[m.Provider] = struct{}{}
			continue
		}
		counts, ok := unknownModels[m.Provider]
		if !ok {
			counts = make(map[string]int)
			unknownModels[m.Provider] = counts
		}
		counts[m.Model]++
	}

	aliasKeys := pricing.ProviderAliasKeys(book)
	for name := range missingProviders {
		report.MissingProviders = append(report.MissingProviders, name)
	}
	sort.Strings(report.MissingProviders)
	for _, name := range report.MissingProviders {
		report.SuggestedProviderAliases[name] = pricing.SuggestAliases(name, aliasKeys)
	}

	for provider, counts := range unknownModels {
		names := make([]string, 0, len(counts))
		suggestions := make([]models.UnknownModelSuggestion, 0, len(counts))
		for model, n := range counts {
			names = append(names, model)
			suggestions = append(suggestions, models.UnknownModelSuggestion{Model: model, Count: n})
		}
		sort.Strings(names)
		sort.Slice(suggestions, func(i, j int) bool {
			if suggestions[i].Count != suggestions[j].Count {
				return suggestions[i].Count > suggestions[j].Count
			}
			return suggestions[i].Model < suggestions[j].Model
		})
		report.MissingModelsByProvider[provider] = names
		report.SuggestedModelAliasesByProvider[provider] = suggestions
	}

	return report
}

// CollectUnpricedEvents returns the events the catalog cannot price, in input order.
func CollectUnpricedEvents(events []models.UsageEvent, book *models.PricingBook) []models.UsageEvent {
	out := []models.UsageEvent{}
	for _, evt := range events {
		if _, ok := pricing.Lookup(book, evt.Provider, evt.Model); !ok {
			out = append(out, evt)
		}
	}
	return out
}

// SummarizeUnpricedPairs renders "provider:model (events=N)" lines, sorted.
func SummarizeUnpricedPairs(unpriced []models.UsageEvent) []string {
	counts := make(map[string]int)
	for _, evt := range unpriced {
		counts[evt.Provider+":"+evt.Model]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s (events=%d)", k, counts[k]))
	}
	return out
}
