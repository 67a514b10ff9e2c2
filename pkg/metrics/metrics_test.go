package metrics

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pario-ai/tokenledger/pkg/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordBreakdown(t *testing.T) {
	c := New("tokenledger")
	c.RecordBreakdown("2026-03", &models.CostBreakdown{
		ProviderBreakdown: []models.NamedMetric{{Name: "anthropic", Tokens: 1500, TotalCostUSD: 21.5}},
		ModelBreakdown:    []models.NamedMetric{{Name: "claude-sonnet-4", Tokens: 1500, TotalCostUSD: 21.5}},
	})

	if got := testutil.ToFloat64(c.providerCost.WithLabelValues("2026-03", "anthropic")); got != 21.5 {
		t.Errorf("expected 21.5, got %v", got)
	}
	if got := testutil.ToFloat64(c.tokens.WithLabelValues("2026-03", "anthropic")); got != 1500 {
		t.Errorf("expected 1500 tokens, got %v", got)
	}
	if got := testutil.ToFloat64(c.modelCost.WithLabelValues("2026-03", "claude-sonnet-4")); got != 21.5 {
		t.Errorf("expected 21.5, got %v", got)
	}
}

func TestObserveReconcile(t *testing.T) {
	c := New("tokenledger")
	ctx := context.Background()

	passed := &models.ReconcileOutcome{}
	passed.Summary.PricingCheck = models.ReconcileCheckResult{Passed: true, PricedCount: 4}
	passed.Summary.PricingApply.Summary.ModelsAdded = 1

	failed := &models.ReconcileOutcome{FailForUnpriced: true}
	failed.Summary.PricingCheck = models.ReconcileCheckResult{PricedCount: 3, UnpricedCount: 2}

	if err := c.ObserveReconcile(ctx, passed); err != nil {
		t.Fatal(err)
	}
	if err := c.ObserveReconcile(ctx, failed); err != nil {
		t.Fatal(err)
	}

	allowed := &models.ReconcileOutcome{}
	allowed.Summary.AllowUnpriced = true
	allowed.Summary.PricingCheck = models.ReconcileCheckResult{Passed: true, PricedCount: 3, UnpricedCount: 2}
	if err := c.ObserveReconcile(ctx, allowed); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(c.reconcileRuns.WithLabelValues("allowed_unpriced")); got != 1 {
		t.Errorf("expected 1 allowed_unpriced run, got %v", got)
	}
	if err := c.ObserveReconcile(ctx, failed); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(c.reconcileRuns.WithLabelValues("passed")); got != 1 {
		t.Errorf("expected 1 passed run, got %v", got)
	}
	if got := testutil.ToFloat64(c.reconcileRuns.WithLabelValues("failed")); got != 2 {
		t.Errorf("expected 2 failed runs, got %v", got)
	}
	if got := testutil.ToFloat64(c.reconcileEvts.WithLabelValues("unpriced")); got != 2 {
		t.Errorf("expected last run's 2 unpriced, got %v", got)
	}
	if got := testutil.ToFloat64(c.additions.WithLabelValues("model")); got != 0 {
		t.Errorf("expected additions reset by last run, got %v", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	c := New("tokenledger")
	c.RecordBreakdown("2026-03", &models.CostBreakdown{
		ProviderBreakdown: []models.NamedMetric{{Name: "openai", TotalCostUSD: 3}},
	})

	path := filepath.Join(t.TempDir(), "textfile", "tokenledger.prom")
	if err := c.WriteTextfile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `tokenledger_cost_usd{month="2026-03",provider="openai"} 3`) {
		t.Errorf("unexpected textfile:\n%s", data)
	}
}
