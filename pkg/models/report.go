package models

// NamedMetric is one row of a provider or model breakdown.
type NamedMetric struct {
	Name                     string  `json:"name"`
	Tokens                   uint64  `json:"tokens"`
	MTok                     float64 `json:"mtok"`
	VariableCostUSD          float64 `json:"variable_cost_usd"`
	SubscriptionAllocatedUSD float64 `json:"subscription_allocated_usd"`
	TotalCostUSD             float64 `json:"total_cost_usd"`
	BlendedUSDPerMTok        float64 `json:"blended_usd_per_mtok"`
	SessionCount             int     `json:"session_count"`
	ToolShare                float64 `json:"tool_share"`
}

// CostBreakdown is the aggregated cost report for a set of events.
type CostBreakdown struct {
	VariableCostUSD          float64       `json:"variable_cost_usd"`
	SubscriptionAllocatedUSD float64       `json:"subscription_allocated_usd"`
	MonthlyTotalUSD          float64       `json:"monthly_total_usd"`
	BlendedUSDPerMTok        float64       `json:"blended_usd_per_mtok"`
	TotalTokens              uint64        `json:"total_tokens"`
	TotalMTok                float64       `json:"total_mtok"`
	InputTokens              uint64        `json:"input_tokens"`
	OutputTokens             uint64        `json:"output_tokens"`
	CacheWriteTokens         uint64        `json:"cache_write_tokens"`
	CacheReadTokens          uint64        `json:"cache_read_tokens"`
	ToolInputTokens          uint64        `json:"tool_input_tokens"`
	ToolOutputTokens         uint64        `json:"tool_output_tokens"`
	SessionCount             int           `json:"session_count"`
	SkippedUnpricedCount     int           `json:"skipped_unpriced_count"`
	ProviderBreakdown        []NamedMetric `json:"provider_breakdown"`
	ModelBreakdown           []NamedMetric `json:"model_breakdown"`
	Suggestions              []string      `json:"suggestions"`
}

// DailyEntry is the breakdown for a single UTC day.
type DailyEntry struct {
	Day       string        `json:"day"`
	Breakdown CostBreakdown `json:"breakdown"`
}

// DailyReport holds month totals plus a per-day series.
type DailyReport struct {
	Month  string        `json:"month"`
	Totals CostBreakdown `json:"totals"`
	Days   []DailyEntry  `json:"days"`
}
