package models

// CoverageTotals counts the events a coverage report was built from.
type CoverageTotals struct {
	Events int    `json:"events"`
	Tokens uint64 `json:"tokens"`
}

// UnknownModelSuggestion is a model missing from a known provider with its event count.
type UnknownModelSuggestion struct {
	Model string `json:"model"`
	Count int    `json:"count"`
}

// CoverageReport describes how much of an event set the catalog prices.
type CoverageReport struct {
	Month                           string                              `json:"month"`
	Totals                          CoverageTotals                      `json:"totals"`
	PricedCount                     int                                 `json:"priced_count"`
	UnpricedCount                   int                                 `json:"unpriced_count"`
	MissingProviders                []string                            `json:"missing_providers"`
	MissingModelsByProvider         map[string][]string                 `json:"missing_models_by_provider"`
	SuggestedProviderAliases        map[string][]string                 `json:"suggested_provider_aliases"`
	SuggestedModelAliasesByProvider map[string][]UnknownModelSuggestion `json:"suggested_model_aliases_by_provider"`
}
