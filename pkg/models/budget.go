package models

// BudgetPeriod defines the time window for a budget policy.
type BudgetPeriod string

const (
	BudgetDaily   BudgetPeriod = "daily"
	BudgetMonthly BudgetPeriod = "monthly"
)

// BudgetPolicy caps USD spend, optionally scoped to a provider or model.
type BudgetPolicy struct {
	Name     string       `json:"name" yaml:"name"`
	Provider string       `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model    string       `json:"model,omitempty" yaml:"model,omitempty"`
	MaxUSD   float64      `json:"max_usd" yaml:"max_usd"`
	Period   BudgetPeriod `json:"period" yaml:"period"`
}

// BudgetStatus shows current spend against a policy.
type BudgetStatus struct {
	Policy       BudgetPolicy `json:"policy"`
	SpentUSD     float64      `json:"spent_usd"`
	RemainingUSD float64      `json:"remaining_usd"`
	Exceeded     bool         `json:"exceeded"`
}
