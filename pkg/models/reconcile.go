package models

import "time"

// ReconcileArtifacts lists the files a reconcile run produced.
type ReconcileArtifacts struct {
	PatchPath          string  `json:"patch_path"`
	UnpricedEventsPath string  `json:"unpriced_events_path"`
	BackupPath         *string `json:"backup_path"`
}

// ReconcileApplyResult is the apply stage outcome inside a reconcile summary.
type ReconcileApplyResult struct {
	Changed         bool                `json:"changed"`
	WrotePricing    bool                `json:"wrote_pricing"`
	MetadataUpdated bool                `json:"metadata_updated"`
	Summary         PricingApplySummary `json:"summary"`
}

// ReconcileCheckResult is the post-merge coverage verdict.
type ReconcileCheckResult struct {
	Passed        bool     `json:"passed"`
	Month         string   `json:"month"`
	PricedCount   int      `json:"priced_count"`
	UnpricedCount int      `json:"unpriced_count"`
	Details       []string `json:"details"`
}

// PricingReconcileSummary is the machine-readable record of one reconcile run.
type PricingReconcileSummary struct {
	RunID                    string               `json:"run_id"`
	Pricing                  string               `json:"pricing"`
	MonthFilter              *string              `json:"month_filter"`
	Workdir                  string               `json:"workdir"`
	AllowUnpriced            bool                 `json:"allow_unpriced"`
	DryRun                   bool                 `json:"dry_run"`
	WriteBackup              bool                 `json:"write_backup"`
	AllowOverwriteModelRates bool                 `json:"allow_overwrite_model_rates"`
	Artifacts                ReconcileArtifacts   `json:"artifacts"`
	Coverage                 CoverageReport       `json:"coverage"`
	PricingApply             ReconcileApplyResult `json:"pricing_apply"`
	PricingCheck             ReconcileCheckResult `json:"pricing_check"`
}

// ReconcileOutcome pairs a summary with the caller-facing failure flag.
type ReconcileOutcome struct {
	Summary         PricingReconcileSummary `json:"summary"`
	FailForUnpriced bool                    `json:"fail_for_unpriced"`
}

// RunRecord is one reconcile run persisted in the history store.
type RunRecord struct {
	RunID          string    `json:"run_id"`
	Month          string    `json:"month"`
	PricingPath    string    `json:"pricing_path"`
	Workdir        string    `json:"workdir"`
	DryRun         bool      `json:"dry_run"`
	Passed         bool      `json:"passed"`
	Changed        bool      `json:"changed"`
	WrotePricing   bool      `json:"wrote_pricing"`
	PricedCount    int       `json:"priced_count"`
	UnpricedCount  int       `json:"unpriced_count"`
	ProvidersAdded int       `json:"providers_added"`
	ModelsAdded    int       `json:"models_added"`
	SummaryJSON    string    `json:"summary_json,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// HistoryConfig controls the reconcile history store.
type HistoryConfig struct {
	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days"`
}

// HistoryQueryOpts specifies filters for querying run history.
type HistoryQueryOpts struct {
	Month      string
	RunID      string
	Since      time.Time
	FailedOnly bool
	Limit      int
}

// HistoryStat holds aggregate run counts for a month.
type HistoryStat struct {
	Month  string `json:"month"`
	Runs   int    `json:"runs"`
	Failed int    `json:"failed"`
}
