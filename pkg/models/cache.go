package models

import "time"

// ReportSelector identifies which slice of events a cached report covers.
type ReportSelector struct {
	Kind       string   `json:"kind"`
	Month      string   `json:"month,omitempty"`
	Providers  []string `json:"providers,omitempty"`
	Models     []string `json:"models,omitempty"`
	OnUnpriced string   `json:"on_unpriced"`
}

// CacheEntry stores a rendered report keyed by its inputs.
type CacheEntry struct {
	Key               string    `json:"key"`
	PricingHash       string    `json:"pricing_hash"`
	EventsFingerprint string    `json:"events_fingerprint"`
	Payload           []byte    `json:"payload"`
	CreatedAt         time.Time `json:"created_at"`
}

// CacheStats reports cache performance metrics.
type CacheStats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}
