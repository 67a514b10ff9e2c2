package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pario-ai/tokenledger/pkg/events"
	"github.com/pario-ai/tokenledger/pkg/history"
	"github.com/pario-ai/tokenledger/pkg/models"
	"github.com/pario-ai/tokenledger/pkg/pricing"
	"github.com/spf13/cobra"
)

type fixture struct {
	dir         string
	pricingPath string
	eventsPath  string
	dbPath      string
}

func setupCLI(t *testing.T, evs []models.UsageEvent) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:         dir,
		pricingPath: filepath.Join(dir, "pricing.json"),
		eventsPath:  filepath.Join(dir, "events.jsonl"),
		dbPath:      filepath.Join(dir, "tokenledger.db"),
	}

	book := &models.PricingBook{
		Providers: map[string]models.ProviderPricing{
			"openai": {
				Models:       map[string]models.ModelRate{"gpt-4": {InputUSDPerMTok: 1, OutputUSDPerMTok: 2}},
				ModelAliases: map[string]string{},
			},
		},
		ProviderAliases: map[string]string{},
	}
	if err := pricing.Save(f.pricingPath, book); err != nil {
		t.Fatal(err)
	}
	if err := events.WriteFile(f.eventsPath, evs); err != nil {
		t.Fatal(err)
	}

	cfg := "db_path: " + f.dbPath + "\n" +
		"pricing_path: " + f.pricingPath + "\n" +
		"log:\n  level: error\n" +
		"history:\n  enabled: true\n  retention_days: 0\n"
	cfgPath := filepath.Join(dir, "tokenledger.yaml")
	if err := os.WriteFile(cfgPath, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}

	prev := configPath
	configPath = cfgPath
	t.Cleanup(func() { configPath = prev })
	return f
}

func usage(provider, model string) models.UsageEvent {
	return models.UsageEvent{
		Provider:  provider,
		Model:     model,
		SessionID: "s1",
		Timestamp: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
		Usage:     models.TokenUsage{InputTokens: 1000, OutputTokens: 500},
	}
}

func run(cmd *cobra.Command, args ...string) error {
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return cmd.ExecuteContext(context.Background())
}

func TestPricingCheckFailsOnUnpriced(t *testing.T) {
	f := setupCLI(t, []models.UsageEvent{usage("openai", "gpt-4"), usage("openai", "o3")})

	err := run(newPricingCheckCmd(), "--events", f.eventsPath)
	if err == nil {
		t.Fatal("expected pricing check to fail")
	}
	msg := err.Error()
	if !strings.Contains(msg, "pricing-check failed") || !strings.Contains(msg, "openai:o3 (events=1)") {
		t.Errorf("unexpected error: %s", msg)
	}
	if !strings.Contains(msg, "--allow-unpriced") {
		t.Errorf("expected hint about --allow-unpriced, got: %s", msg)
	}

	if err := run(newPricingCheckCmd(), "--events", f.eventsPath, "--allow-unpriced"); err != nil {
		t.Errorf("expected --allow-unpriced to pass, got %v", err)
	}
}

func TestPricingCheckWritesPatch(t *testing.T) {
	f := setupCLI(t, []models.UsageEvent{usage("openai", "o3")})
	patchPath := filepath.Join(f.dir, "out", "patch.json")

	_ = run(newPricingCheckCmd(), "--events", f.eventsPath, "--write-patch", patchPath, "--allow-unpriced")

	if _, err := os.Stat(patchPath); err != nil {
		t.Errorf("expected patch file: %v", err)
	}
}

func TestPricingReconcileRecordsHistory(t *testing.T) {
	f := setupCLI(t, []models.UsageEvent{usage("openai", "gpt-4"), usage("openai", "o3")})
	workdir := filepath.Join(f.dir, "work")

	err := run(newPricingReconcileCmd(), "--events", f.eventsPath, "--workdir", workdir, "--static-artifacts")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	book, err := pricing.Load(f.pricingPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := book.Providers["openai"].Models["o3"]; !ok {
		t.Error("expected o3 placeholder in catalog")
	}
	if _, err := os.Stat(filepath.Join(workdir, "reconcile-summary.json")); err != nil {
		t.Errorf("expected summary artifact: %v", err)
	}

	store, err := history.New(models.HistoryConfig{DBPath: f.dbPath})
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	runs, err := store.Query(context.Background(), models.HistoryQueryOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || !runs[0].Passed || runs[0].ModelsAdded != 1 {
		t.Errorf("expected one passing run adding one model, got %+v", runs)
	}
}

func TestPricingReconcileNewProviderFails(t *testing.T) {
	f := setupCLI(t, []models.UsageEvent{usage("mistral", "large")})

	err := run(newPricingReconcileCmd(), "--events", f.eventsPath,
		"--workdir", filepath.Join(f.dir, "work"), "--static-artifacts")
	if err == nil || !strings.Contains(err.Error(), "pricing-reconcile failed") {
		t.Errorf("expected reconcile failure, got %v", err)
	}
}

func TestPricingLintReportsPlaceholders(t *testing.T) {
	f := setupCLI(t, []models.UsageEvent{usage("openai", "o3")})
	if err := run(newPricingReconcileCmd(), "--events", f.eventsPath,
		"--workdir", filepath.Join(f.dir, "work"), "--static-artifacts"); err != nil {
		t.Fatal(err)
	}

	err := run(newPricingLintCmd())
	if err == nil || !strings.Contains(err.Error(), "found 1 placeholder violation(s)") {
		t.Errorf("expected one placeholder violation, got %v", err)
	}
	if err := run(newPricingLintCmd(), "--allow-placeholders"); err != nil {
		t.Errorf("expected --allow-placeholders to pass, got %v", err)
	}
}

func TestBudgetScope(t *testing.T) {
	tests := []struct {
		provider, model, want string
	}{
		{"", "", "*"},
		{"openai", "", "openai"},
		{"", "gpt-4", "gpt-4"},
		{"openai", "gpt-4", "openai/gpt-4"},
	}
	for _, tt := range tests {
		if got := budgetScope(tt.provider, tt.model); got != tt.want {
			t.Errorf("budgetScope(%q, %q) = %q, want %q", tt.provider, tt.model, got, tt.want)
		}
	}
}
