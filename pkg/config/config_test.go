package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.PricingPath != "pricing.json" {
		t.Errorf("expected pricing.json, got %s", cfg.PricingPath)
	}
	if cfg.Audit.MaxAgeDays != 30 {
		t.Errorf("expected 30 day max age, got %d", cfg.Audit.MaxAgeDays)
	}
	if !cfg.Reconcile.WriteBackup {
		t.Error("expected backups on by default")
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("LEDGER_DIR", "/var/lib/ledger")

	content := `
pricing_path: ${LEDGER_DIR}/pricing.json
events:
  - ${LEDGER_DIR}/events.jsonl
on_unpriced: skip
log:
  level: debug
  format: json
reconcile:
  workdir: out
  dry_run: true
budget:
  enabled: true
  policies:
    - name: anthropic-monthly
      provider: anthropic
      max_usd: 250
      period: monthly
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.PricingPath != "/var/lib/ledger/pricing.json" {
		t.Errorf("env var not expanded: got %s", cfg.PricingPath)
	}
	if len(cfg.Events) != 1 || cfg.Events[0] != "/var/lib/ledger/events.jsonl" {
		t.Errorf("unexpected events %v", cfg.Events)
	}
	if cfg.OnUnpriced != "skip" {
		t.Errorf("expected skip, got %s", cfg.OnUnpriced)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("expected json log format, got %s", cfg.Log.Format)
	}
	if !cfg.Reconcile.DryRun || !cfg.Reconcile.WriteBackup {
		t.Errorf("expected dry_run set and write_backup default kept, got %+v", cfg.Reconcile)
	}
	if !cfg.Budget.Enabled || len(cfg.Budget.Policies) != 1 {
		t.Fatal("expected one budget policy")
	}
	if cfg.Budget.Policies[0].MaxUSD != 250 {
		t.Errorf("expected 250, got %v", cfg.Budget.Policies[0].MaxUSD)
	}
	if cfg.DBPath != "tokenledger.db" {
		t.Errorf("expected default db path kept, got %s", cfg.DBPath)
	}
}

func TestLoadOrDefaultMissing(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != "tokenledger.db" {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("log: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}
