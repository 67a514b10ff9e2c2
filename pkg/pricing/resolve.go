package pricing

import (
	"sort"
	"strings"

	"github.com/pario-ai/tokenledger/pkg/models"
)

// Match is the outcome of classifying an event's provider and model.
// Provider and Model are the canonical names even when no rate was found.
type Match struct {
	Provider      string
	Model         string
	ProviderKnown bool
	Pricing       models.ProviderPricing
	Rate          models.ModelRate
}

// ResolveProvider maps a raw provider name through provider_aliases.
// Unknown names are returned unchanged.
func ResolveProvider(book *models.PricingBook, raw string) string {
	if canonical, ok := book.ProviderAliases[raw]; ok {
		return canonical
	}
	return raw
}

// ResolveModel maps a raw model name through the provider's model_aliases.
func ResolveModel(book *models.PricingBook, provider, raw string) string {
	p, ok := book.Providers[provider]
	if !ok {
		return raw
	}
	if canonical, ok := p.ModelAliases[raw]; ok {
		return canonical
	}
	return raw
}

// Lookup resolves provider then model and reports whether a rate exists.
// Every component that decides priced vs unpriced goes through here.
func Lookup(book *models.PricingBook, provider, model string) (Match, bool) {
	m := Match{Provider: ResolveProvider(book, provider), Model: model}
	p, ok := book.Providers[m.Provider]
	if !ok {
		return m, false
	}
	m.ProviderKnown = true
	m.Pricing = p
	m.Model = ResolveModel(book, m.Provider, model)
	rate, ok := p.Models[m.Model]
	if !ok {
		return m, false
	}
	m.Rate = rate
	return m, true
}

// NormalizeAliasKey lowercases raw and strips '-' and '_'.
func NormalizeAliasKey(raw string) string {
	return strings.NewReplacer("-", "", "_", "").Replace(strings.ToLower(raw))
}

// SuggestAliases returns candidates whose normalized form contains the
// normalized unknown name, in candidate order.
func SuggestAliases(unknown string, candidates []string) []string {
	key := NormalizeAliasKey(unknown)
	out := []string{}
	for _, c := range candidates {
		if strings.Contains(NormalizeAliasKey(c), key) {
			out = append(out, c)
		}
	}
	return out
}

// Validate checks that every alias points at an existing target.
// Keys are visited in sorted order so the reported violation is stable.
func Validate(book *models.PricingBook) error {
	for _, alias := range sortedKeys(book.ProviderAliases) {
		target := book.ProviderAliases[alias]
		if _, ok := book.Providers[target]; !ok {
			return &AliasIntegrityError{Kind: ProviderAlias, Alias: alias, Target: target}
		}
	}
	for _, name := range sortedKeys(book.Providers) {
		p := book.Providers[name]
		for _, alias := range sortedKeys(p.ModelAliases) {
			target := p.ModelAliases[alias]
			if _, ok := p.Models[target]; !ok {
				return &AliasIntegrityError{Kind: ModelAlias, Provider: name, Alias: alias, Target: target}
			}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ProviderAliasKeys returns the catalog's provider alias names, sorted.
func ProviderAliasKeys(book *models.PricingBook) []string {
	return sortedKeys(book.ProviderAliases)
}

// KnownModelNames returns a provider's model names followed by its alias names, each sorted.
func KnownModelNames(p models.ProviderPricing) []string {
	return append(sortedKeys(p.Models), sortedKeys(p.ModelAliases)...)
}
