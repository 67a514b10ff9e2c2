package models

// ModelRate is the USD-per-million-token price card of one model.
// Nil optional rates fall back to the defaults applied by the cost aggregator.
type ModelRate struct {
	InputUSDPerMTok      float64  `json:"input_usd_per_mtok"`
	OutputUSDPerMTok     float64  `json:"output_usd_per_mtok"`
	CacheWriteUSDPerMTok *float64 `json:"cache_write_usd_per_mtok"`
	CacheReadUSDPerMTok  *float64 `json:"cache_read_usd_per_mtok"`
	ToolInputUSDPerMTok  *float64 `json:"tool_input_usd_per_mtok"`
	ToolOutputUSDPerMTok *float64 `json:"tool_output_usd_per_mtok"`
}

// Clone returns a deep copy of r.
func (r ModelRate) Clone() ModelRate {
	out := r
	out.CacheWriteUSDPerMTok = cloneFloat(r.CacheWriteUSDPerMTok)
	out.CacheReadUSDPerMTok = cloneFloat(r.CacheReadUSDPerMTok)
	out.ToolInputUSDPerMTok = cloneFloat(r.ToolInputUSDPerMTok)
	out.ToolOutputUSDPerMTok = cloneFloat(r.ToolOutputUSDPerMTok)
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// ProviderPricing is a provider's catalog entry.
type ProviderPricing struct {
	SubscriptionUSDMonth float64              `json:"subscription_usd_month"`
	Models               map[string]ModelRate `json:"models"`
	ModelAliases         map[string]string    `json:"model_aliases"`
}

// Clone returns a deep copy of p with non-nil maps.
func (p ProviderPricing) Clone() ProviderPricing {
	out := ProviderPricing{
		SubscriptionUSDMonth: p.SubscriptionUSDMonth,
		Models:               make(map[string]ModelRate, len(p.Models)),
		ModelAliases:         make(map[string]string, len(p.ModelAliases)),
	}
	for name, rate := range p.Models {
		out.Models[name] = rate.Clone()
	}
	for alias, target := range p.ModelAliases {
		out.ModelAliases[alias] = target
	}
	return out
}

// PricingMeta carries catalog provenance.
type PricingMeta struct {
	UpdatedAt string `json:"updated_at,omitempty"`
	Source    string `json:"source,omitempty"`
	Version   string `json:"version,omitempty"`
}

// PricingBook is the full pricing catalog.
type PricingBook struct {
	Providers       map[string]ProviderPricing `json:"providers"`
	ProviderAliases map[string]string          `json:"provider_aliases"`
	Meta            *PricingMeta               `json:"meta,omitempty"`
}

// Clone returns a deep copy of b. The original is never shared with the copy.
func (b *PricingBook) Clone() *PricingBook {
	out := &PricingBook{
		Providers:       make(map[string]ProviderPricing, len(b.Providers)),
		ProviderAliases: make(map[string]string, len(b.ProviderAliases)),
	}
	for name, p := range b.Providers {
		out.Providers[name] = p.Clone()
	}
	for alias, target := range b.ProviderAliases {
		out.ProviderAliases[alias] = target
	}
	if b.Meta != nil {
		m := *b.Meta
		out.Meta = &m
	}
	return out
}

// PricingLintSummary is the result of linting a catalog.
type PricingLintSummary struct {
	Pricing               string   `json:"pricing"`
	AliasIntegrityOK      bool     `json:"alias_integrity_ok"`
	PlaceholderViolations []string `json:"placeholder_violations"`
	AllowPlaceholders     bool     `json:"allow_placeholders"`
}

// PricingAuditReport is the result of auditing catalog metadata freshness.
type PricingAuditReport struct {
	PricingPath      string   `json:"pricing_path"`
	CheckedAt        string   `json:"checked_at"`
	MetadataPresent  bool     `json:"metadata_present"`
	SourcePresent    bool     `json:"source_present"`
	UpdatedAtPresent bool     `json:"updated_at_present"`
	AgeDays          *int64   `json:"age_days,omitempty"`
	Stale            bool     `json:"stale"`
	Pass             bool     `json:"pass"`
	Violations       []string `json:"violations"`
	Warnings         []string `json:"warnings"`
}
