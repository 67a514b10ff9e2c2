package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pario-ai/tokenledger/pkg/models"
	"gopkg.in/yaml.v3"
)

// Config holds all tokenledger configuration.
type Config struct {
	PricingPath string          `yaml:"pricing_path"`
	Events      []string        `yaml:"events"`
	DBPath      string          `yaml:"db_path"`
	OnUnpriced  string          `yaml:"on_unpriced"`
	Log         LogConfig       `yaml:"log"`
	Reconcile   ReconcileConfig `yaml:"reconcile"`
	Audit       AuditConfig     `yaml:"audit"`
	History     HistoryConfig   `yaml:"history"`
	Cache       CacheConfig     `yaml:"cache"`
	Budget      BudgetConfig    `yaml:"budget"`
	Metrics     MetricsConfig   `yaml:"metrics"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ReconcileConfig holds defaults for pricing reconcile runs.
type ReconcileConfig struct {
	Workdir         string `yaml:"workdir"`
	StaticArtifacts bool   `yaml:"static_artifacts"`
	AllowUnpriced   bool   `yaml:"allow_unpriced"`
	DryRun          bool   `yaml:"dry_run"`
	WriteBackup     bool   `yaml:"write_backup"`
}

// AuditConfig controls pricing metadata audits.
type AuditConfig struct {
	MaxAgeDays         int64 `yaml:"max_age_days"`
	AllowStale         bool  `yaml:"allow_stale"`
	AllowMissingSource bool  `yaml:"allow_missing_source"`
}

// HistoryConfig controls the reconcile run history.
type HistoryConfig struct {
	Enabled       bool `yaml:"enabled"`
	RetentionDays int  `yaml:"retention_days"`
}

// CacheConfig controls the report cache. A zero TTL keeps entries until the
// catalog or event set changes.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// BudgetConfig controls USD budget checks.
type BudgetConfig struct {
	Enabled  bool                  `yaml:"enabled"`
	Policies []models.BudgetPolicy `yaml:"policies"`
}

// MetricsConfig controls Prometheus textfile export.
type MetricsConfig struct {
	Textfile  string `yaml:"textfile"`
	Namespace string `yaml:"namespace"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		PricingPath: "pricing.json",
		DBPath:      "tokenledger.db",
		OnUnpriced:  "error",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Reconcile: ReconcileConfig{
			Workdir:     "reconcile",
			WriteBackup: true,
		},
		Audit: AuditConfig{
			MaxAgeDays: 30,
		},
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: 180,
		},
		Cache: CacheConfig{
			Enabled: true,
		},
		Metrics: MetricsConfig{
			Namespace: "tokenledger",
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields Default().
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}
