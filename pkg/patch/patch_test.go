package patch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/pario-ai/tokenledger/pkg/coverage"
	"github.com/pario-ai/tokenledger/pkg/models"
	"github.com/pario-ai/tokenledger/pkg/pricing"
)

var fixedNow = time.Date(2026, 4, 2, 9, 30, 15, 0, time.UTC)

func testBook() *models.PricingBook {
	return &models.PricingBook{
		Providers: map[string]models.ProviderPricing{
			"openai": {
				Models:       map[string]models.ModelRate{"gpt-4": {InputUSDPerMTok: 1, OutputUSDPerMTok: 2}},
				ModelAliases: map[string]string{"gpt4": "gpt-4"},
			},
		},
		ProviderAliases: map[string]string{"oai": "openai", "claude_code": "openai"},
	}
}

func evt(provider, model string) models.UsageEvent {
	return models.UsageEvent{
		Provider:  provider,
		Model:     model,
		SessionID: "s",
		Timestamp: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Usage:     models.TokenUsage{InputTokens: 10},
	}
}

func sampleEvents() []models.UsageEvent {
	return []models.UsageEvent{
		evt("openai", "gpt-4"),
		evt("openai", "gpt-4-mini"),
		evt("oai", "gpt-4-mini"),
		evt("claude-code", "sonnet"),
	}
}

func writeBook(t *testing.T, book *models.PricingBook) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pricing.json")
	if err := pricing.Save(path, book); err != nil {
		t.Fatal(err)
	}
	return path
}

func writePatch(t *testing.T, dir string, p *models.PricingPatch) string {
	t.Helper()
	path := filepath.Join(dir, "patch.json")
	if err := WriteFile(path, p); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuild(t *testing.T) {
	book := testBook()
	all := sampleEvents()
	p := Build(all, coverage.CollectUnpricedEvents(all, book), book, fixedNow)

	if p.Metadata.Month != "2026-03" || p.Metadata.SourceEventsCount != 4 {
		t.Errorf("unexpected metadata %+v", p.Metadata)
	}
	mp, ok := p.MissingProviders["claude-code"]
	if !ok {
		t.Fatalf("expected claude-code in missing providers, got %v", p.MissingProviders)
	}
	if !reflect.DeepEqual(mp.ObservedUnpricedModels, []string{"sonnet"}) {
		t.Errorf("expected observed [sonnet], got %v", mp.ObservedUnpricedModels)
	}
	if !reflect.DeepEqual(mp.SuggestedProviderAliases, []string{"claude_code"}) {
		t.Errorf("expected claude_code suggestion, got %v", mp.SuggestedProviderAliases)
	}
	rate, ok := p.MissingModelsByProvider["openai"]["gpt-4-mini"]
	if !ok {
		t.Fatalf("expected openai/gpt-4-mini placeholder, got %v", p.MissingModelsByProvider)
	}
	if rate.InputUSDPerMTok != 0 || rate.CacheReadUSDPerMTok != nil {
		t.Errorf("expected zero placeholder rate, got %+v", rate)
	}
	if got := p.SuggestedAliases.ModelAliasesByProvider["openai"]["gpt-4-mini"]; len(got) != 0 {
		t.Errorf("expected no candidates for gpt-4-mini, got %v", got)
	}
}

func TestBuildSerializesNullOptionals(t *testing.T) {
	book := testBook()
	all := sampleEvents()
	path := writePatch(t, t.TempDir(), Build(all, coverage.CollectUnpricedEvents(all, book), book, fixedNow))
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte(`"cache_write_usd_per_mtok": null`)) {
		t.Errorf("expected null optional rates in patch, got:\n%s", data)
	}
}

func TestMergeAdditive(t *testing.T) {
	book := testBook()
	p := &models.PricingPatch{
		MissingProviders: map[string]models.MissingProviderPatch{
			"mistral": {SubscriptionUSDMonth: 5},
			"openai":  {SubscriptionUSDMonth: 999},
		},
		MissingModelsByProvider: map[string]map[string]models.ModelRate{
			"openai":  {"gpt-4": {}, "o3": {InputUSDPerMTok: 2}},
			"missing": {"x": {}},
		},
	}

	merged, summary, changed := Merge(book, p, true)
	if !changed {
		t.Fatal("expected change")
	}
	want := models.PricingApplySummary{ProvidersAdded: 1, ModelsAdded: 1, ModelsSkippedExisting: 1}
	if summary != want {
		t.Errorf("expected %+v, got %+v", want, summary)
	}
	if merged.Providers["openai"].Models["gpt-4"].InputUSDPerMTok != 1 {
		t.Error("existing model rate was overwritten")
	}
	if merged.Providers["openai"].SubscriptionUSDMonth != 0 {
		t.Error("existing provider was overwritten")
	}
	if merged.Providers["mistral"].Models == nil {
		t.Error("expected added provider to have a models map")
	}
	if _, ok := book.Providers["mistral"]; ok {
		t.Error("Merge mutated its input book")
	}
	if _, ok := book.Providers["openai"].Models["o3"]; ok {
		t.Error("Merge mutated nested input maps")
	}
}

func TestApplyFileIdempotent(t *testing.T) {
	pricingPath := writeBook(t, testBook())
	all := sampleEvents()
	book := testBook()
	patchPath := writePatch(t, t.TempDir(), Build(all, coverage.CollectUnpricedEvents(all, book), book, fixedNow))
	ctx := context.Background()

	first, err := ApplyFile(ctx, ApplyOptions{PricingPath: pricingPath, PatchPath: patchPath})
	if err != nil {
		t.Fatal(err)
	}
	if !first.Changed || !first.WrotePricing {
		t.Fatalf("expected first apply to write, got %+v", first)
	}
	if first.Summary.ProvidersAdded != 1 || first.Summary.ModelsAdded != 1 {
		t.Errorf("unexpected summary %+v", first.Summary)
	}

	before, _ := os.ReadFile(pricingPath)
	statBefore, _ := os.Stat(pricingPath)

	second, err := ApplyFile(ctx, ApplyOptions{PricingPath: pricingPath, PatchPath: patchPath, WriteBackup: true})
	if err != nil {
		t.Fatal(err)
	}
	if second.Changed || second.WrotePricing || second.BackupPath != "" {
		t.Errorf("expected no-op second apply, got %+v", second)
	}
	after, _ := os.ReadFile(pricingPath)
	statAfter, _ := os.Stat(pricingPath)
	if !bytes.Equal(before, after) {
		t.Error("catalog bytes changed on second apply")
	}
	if !statBefore.ModTime().Equal(statAfter.ModTime()) {
		t.Error("catalog mtime changed on second apply")
	}
}

func TestApplyFileDryRun(t *testing.T) {
	pricingPath := writeBook(t, testBook())
	before, _ := os.ReadFile(pricingPath)
	patchPath := writePatch(t, t.TempDir(), &models.PricingPatch{
		MissingProviders: map[string]models.MissingProviderPatch{"mistral": {}},
	})

	exec, err := ApplyFile(context.Background(), ApplyOptions{PricingPath: pricingPath, PatchPath: patchPath, DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if !exec.Changed || exec.WrotePricing {
		t.Errorf("expected changed without write, got %+v", exec)
	}
	if _, ok := exec.PricingAfter.Providers["mistral"]; !ok {
		t.Error("expected merged catalog in PricingAfter")
	}
	after, _ := os.ReadFile(pricingPath)
	if !bytes.Equal(before, after) {
		t.Error("dry run modified the catalog")
	}
}

func TestApplyFileBackup(t *testing.T) {
	pricingPath := writeBook(t, testBook())
	original, _ := os.ReadFile(pricingPath)
	patchPath := writePatch(t, t.TempDir(), &models.PricingPatch{
		MissingProviders: map[string]models.MissingProviderPatch{"mistral": {}},
	})

	exec, err := ApplyFile(context.Background(), ApplyOptions{
		PricingPath: pricingPath,
		PatchPath:   patchPath,
		WriteBackup: true,
		Now:         func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(filepath.Dir(pricingPath), "pricing.20260402_093015.bak")
	if exec.BackupPath != want {
		t.Errorf("expected backup %s, got %s", want, exec.BackupPath)
	}
	backup, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(backup, original) {
		t.Error("backup does not hold the pre-merge catalog")
	}
}

func TestApplyFileInvalidPatch(t *testing.T) {
	pricingPath := writeBook(t, testBook())
	patchPath := filepath.Join(t.TempDir(), "patch.json")
	if err := os.WriteFile(patchPath, []byte(`{"missing_providers": [1,2]}`), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := ApplyFile(context.Background(), ApplyOptions{PricingPath: pricingPath, PatchPath: patchPath})
	var invalid *InvalidPatchError
	if !errors.As(err, &invalid) {
		t.Errorf("expected InvalidPatchError, got %v", err)
	}
}

func TestApplyFileRejectsBrokenAliases(t *testing.T) {
	pricingPath := writeBook(t, testBook())
	before, _ := os.ReadFile(pricingPath)
	patchPath := writePatch(t, t.TempDir(), &models.PricingPatch{
		MissingProviders: map[string]models.MissingProviderPatch{
			"mistral": {ModelAliases: map[string]string{"large": "mistral-large"}},
		},
	})

	_, err := ApplyFile(context.Background(), ApplyOptions{PricingPath: pricingPath, PatchPath: patchPath})
	var aliasErr *pricing.AliasIntegrityError
	if !errors.As(err, &aliasErr) {
		t.Fatalf("expected AliasIntegrityError, got %v", err)
	}
	after, _ := os.ReadFile(pricingPath)
	if !bytes.Equal(before, after) {
		t.Error("catalog written despite validation failure")
	}
}

func TestBackupPath(t *testing.T) {
	got := BackupPath(filepath.Join("conf", "prices.v2.json"), fixedNow)
	if !strings.HasSuffix(got, "prices.v2.20260402_093015.bak") {
		t.Errorf("unexpected backup path %s", got)
	}
}
