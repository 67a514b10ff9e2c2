// Package metrics exports cost and reconcile results as Prometheus metrics.
//
// Metrics:
//   - <ns>_cost_usd: monthly total cost by provider
//   - <ns>_model_cost_usd: monthly total cost by model
//   - <ns>_tokens: tokens by provider
//   - <ns>_reconcile_runs_total: reconcile runs by result
//   - <ns>_reconcile_events: priced/unpriced events after the last run
//   - <ns>_pricing_patch_additions: providers/models added by the last run
package metrics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pario-ai/tokenledger/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns a registry and the tokenledger metric families.
type Collector struct {
	registry *prometheus.Registry

	providerCost  *prometheus.GaugeVec
	modelCost     *prometheus.GaugeVec
	tokens        *prometheus.GaugeVec
	reconcileRuns *prometheus.CounterVec
	reconcileEvts *prometheus.GaugeVec
	additions     *prometheus.GaugeVec
}

// New creates and registers the metric families under namespace.
func New(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		providerCost: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cost_usd",
				Help:      "Total cost in USD by provider for the reported month",
			},
			[]string{"month", "provider"},
		),
		modelCost: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "model_cost_usd",
				Help:      "Total cost in USD by model for the reported month",
			},
			[]string{"month", "model"},
		),
		tokens: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tokens",
				Help:      "Tokens by provider for the reported month",
			},
			[]string{"month", "provider"},
		),
		reconcileRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_runs_total",
				Help:      "Pricing reconcile runs by result",
			},
			[]string{"result"},
		),
		reconcileEvts: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reconcile_events",
				Help:      "Events by pricing state after the last reconcile run",
			},
			[]string{"state"},
		),
		additions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pricing_patch_additions",
				Help:      "Catalog entries added by the last reconcile run",
			},
			[]string{"kind"},
		),
	}

	c.registry.MustRegister(
		c.providerCost,
		c.modelCost,
		c.tokens,
		c.reconcileRuns,
		c.reconcileEvts,
		c.additions,
	)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordBreakdown sets the cost gauges for month from b.
func (c *Collector) RecordBreakdown(month string, b *models.CostBreakdown) {
	for _, m := range b.ProviderBreakdown {
		c.providerCost.WithLabelValues(month, m.Name).Set(m.TotalCostUSD)
		c.tokens.WithLabelValues(month, m.Name).Set(float64(m.Tokens))
	}
	for _, m := range b.ModelBreakdown {
		c.modelCost.WithLabelValues(month, m.Name).Set(m.TotalCostUSD)
	}
}

// ObserveReconcile records a finished reconcile run.
func (c *Collector) ObserveReconcile(_ context.Context, out *models.ReconcileOutcome) error {
	s := out.Summary
	result := "passed"
	switch {
	case out.FailForUnpriced:
		result = "failed"
	case s.PricingCheck.UnpricedCount > 0 && s.AllowUnpriced:
		result = "allowed_unpriced"
	}
	c.reconcileRuns.WithLabelValues(result).Inc()
	c.reconcileEvts.WithLabelValues("priced").Set(float64(s.PricingCheck.PricedCount))
	c.reconcileEvts.WithLabelValues("unpriced").Set(float64(s.PricingCheck.UnpricedCount))
	c.additions.WithLabelValues("provider").Set(float64(s.PricingApply.Summary.ProvidersAdded))
	c.additions.WithLabelValues("model").Set(float64(s.PricingApply.Summary.ModelsAdded))
	return nil
}

// WriteTextfile writes all metrics in the node_exporter textfile format.
func (c *Collector) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
