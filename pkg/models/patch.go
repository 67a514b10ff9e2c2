package models

import "time"

// PatchMetadata describes where a pricing patch came from.
type PatchMetadata struct {
	GeneratedAt       time.Time `json:"generated_at"`
	SourceEventsCount int       `json:"source_events_count"`
	Month             string    `json:"month"`
}

// MissingProviderPatch is a skeleton catalog entry for an unknown provider.
type MissingProviderPatch struct {
	SubscriptionUSDMonth     float64              `json:"subscription_usd_month"`
	Models                   map[string]ModelRate `json:"models"`
	ModelAliases             map[string]string    `json:"model_aliases"`
	ObservedUnpricedModels   []string             `json:"observed_unpriced_models"`
	SuggestedProviderAliases []string             `json:"suggested_provider_aliases"`
}

// SuggestedAliasesPatch lists alias candidates for a human to review.
type SuggestedAliasesPatch struct {
	ProviderAliases        map[string][]string            `json:"provider_aliases"`
	ModelAliasesByProvider map[string]map[string][]string `json:"model_aliases_by_provider"`
}

// PricingPatch is an additive correction proposal for a catalog.
type PricingPatch struct {
	Metadata                PatchMetadata                   `json:"metadata"`
	MissingProviders        map[string]MissingProviderPatch `json:"missing_providers"`
	MissingModelsByProvider map[string]map[string]ModelRate `json:"missing_models_by_provider"`
	SuggestedAliases        SuggestedAliasesPatch           `json:"suggested_aliases"`
}

// PricingApplySummary counts what a merge added or skipped.
type PricingApplySummary struct {
	ProvidersAdded        int `json:"providers_added"`
	ModelsAdded           int `json:"models_added"`
	AliasesAdded          int `json:"aliases_added"`
	ModelsSkippedExisting int `json:"models_skipped_existing"`
}
