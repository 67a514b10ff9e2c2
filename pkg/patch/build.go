// Package patch builds additive pricing patches and applies them to a catalog.
package patch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pario-ai/tokenledger/pkg/coverage"
	"github.com/pario-ai/tokenledger/pkg/models"
	"github.com/pario-ai/tokenledger/pkg/pricing"
)

// Build proposes placeholder catalog entries for every unpriced event.
// Rates are zero placeholders for a human to fill in; aliases are only suggested.
func Build(all, unpriced []models.UsageEvent, book *models.PricingBook, now time.Time) *models.PricingPatch {
	month := coverage.EmptyMonth
	if len(all) > 0 {
		month = all[0].MonthLabel()
	}

	p := &models.PricingPatch{
		Metadata: models.PatchMetadata{
			GeneratedAt:       now.UTC(),
			SourceEventsCount: len(all),
			Month:             month,
		},
		MissingProviders:        map[string]models.MissingProviderPatch{},
		MissingModelsByProvider: map[string]map[string]models.ModelRate{},
		SuggestedAliases: models.SuggestedAliasesPatch{
			ProviderAliases:        map[string][]string{},
			ModelAliasesByProvider: map[string]map[string][]string{},
		},
	}

	unknownProviders := make(map[string]map[string]struct{})
	unknownModels := make(map[string]map[string]struct{})
	for _, evt := range unpriced {
		m, _ := pricing.Lookup(book, evt.Provider, evt.Model)
		target := unknownModels
		if !m.ProviderKnown {
			target = unknownProviders
		}
		set, ok := target[m.Provider]
		if !ok {
			set = make(map[string]struct{})
			target[m.Provider] = set
		}
		set[m.Model] = struct{}{}
	}

	aliasKeys := pricing.ProviderAliasKeys(book)
	for provider, modelSet := range unknownProviders {
		suggested := pricing.SuggestAliases(provider, aliasKeys)
		p.MissingProviders[provider] = models.MissingProviderPatch{
			Models:                   map[string]models.ModelRate{},
			ModelAliases:             map[string]string{},
			ObservedUnpricedModels:   sortedSet(modelSet),
			SuggestedProviderAliases: suggested,
		}
		p.SuggestedAliases.ProviderAliases[provider] = suggested
	}

	for provider, modelSet := range unknownModels {
		known := pricing.KnownModelNames(book.Providers[provider])
		rates := make(map[string]models.ModelRate, len(modelSet))
		suggestions := make(map[string][]string, len(modelSet))
		for model := range modelSet {
			rates[model] = models.ModelRate{}
			suggestions[model] = pricing.SuggestAliases(model, known)
		}
		p.MissingModelsByProvider[provider] = rates
		p.SuggestedAliases.ModelAliasesByProvider[provider] = suggestions
	}

	return p
}

// WriteFile writes a patch as indented JSON, creating parent directories.
func WriteFile(path string, p *models.PricingPatch) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal patch: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write patch %s: %w", path, err)
	}
	return nil
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
