package costs

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/pario-ai/tokenledger/pkg/models"
)

func ptr(v float64) *float64 { return &v }

func testBook() *models.PricingBook {
	return &models.PricingBook{
		Providers: map[string]models.ProviderPricing{
			"openai": {
				Models: map[string]models.ModelRate{
					"gpt-4": {InputUSDPerMTok: 0.5, OutputUSDPerMTok: 1.0},
				},
				ModelAliases: map[string]string{"gpt4": "gpt-4"},
			},
			"anthropic": {
				SubscriptionUSDMonth: 100,
				Models: map[string]models.ModelRate{
					"sonnet": {InputUSDPerMTok: 3, OutputUSDPerMTok: 15, CacheReadUSDPerMTok: ptr(0.3)},
				},
				ModelAliases: map[string]string{},
			},
		},
		ProviderAliases: map[string]string{"claude": "anthropic"},
	}
}

func event(provider, model, session string, u models.TokenUsage) models.UsageEvent {
	return models.UsageEvent{
		Provider:  provider,
		Model:     model,
		SessionID: session,
		Timestamp: time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC),
		Usage:     u,
	}
}

func TestComputeCostsWorkedExample(t *testing.T) {
	events := []models.UsageEvent{
		event("openai", "gpt-4", "s1", models.TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}),
	}
	got, err := ComputeCosts(events, testBook(), OnUnpricedError)
	if err != nil {
		t.Fatal(err)
	}
	if got.VariableCostUSD != 1.50 {
		t.Errorf("expected variable 1.50, got %v", got.VariableCostUSD)
	}
	if got.MonthlyTotalUSD != 1.50 {
		t.Errorf("expected monthly 1.50, got %v", got.MonthlyTotalUSD)
	}
	if got.BlendedUSDPerMTok != 0.75 {
		t.Errorf("expected blended 0.75, got %v", got.BlendedUSDPerMTok)
	}
	if got.TotalTokens != 2_000_000 || got.TotalMTok != 2 {
		t.Errorf("unexpected token totals: %d / %v", got.TotalTokens, got.TotalMTok)
	}
	if got.SessionCount != 1 {
		t.Errorf("expected 1 session, got %d", got.SessionCount)
	}
}

func TestAllocateSubscription(t *testing.T) {
	if got := AllocateSubscription(500_000, 1_000_000, 100); got != 50 {
		t.Errorf("expected 50, got %v", got)
	}
	if got := AllocateSubscription(123, 0, 100); got != 0 {
		t.Errorf("expected 0 for zero total, got %v", got)
	}
}

func TestAllocationConservation(t *testing.T) {
	events := []models.UsageEvent{
		event("anthropic", "sonnet", "a", models.TokenUsage{InputTokens: 333_333}),
		event("claude", "sonnet", "b", models.TokenUsage{InputTokens: 333_333, OutputTokens: 1}),
		event("anthropic", "sonnet", "c", models.TokenUsage{OutputTokens: 333_335}),
	}
	got, err := ComputeCosts(events, testBook(), OnUnpricedError)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got.SubscriptionAllocatedUSD-100) > 0.01 {
		t.Errorf("expected allocation to sum to 100, got %v", got.SubscriptionAllocatedUSD)
	}
	if len(got.ProviderBreakdown) != 1 || got.ProviderBreakdown[0].Name != "anthropic" {
		t.Fatalf("expected alias to fold into anthropic, got %+v", got.ProviderBreakdown)
	}
	if got.ProviderBreakdown[0].SessionCount != 3 {
		t.Errorf("expected 3 sessions, got %d", got.ProviderBreakdown[0].SessionCount)
	}
}

func TestBreakdownConservation(t *testing.T) {
	events := []models.UsageEvent{
		event("openai", "gpt-4", "s1", models.TokenUsage{InputTokens: 120_000, OutputTokens: 40_000}),
		event("openai", "gpt4", "s2", models.TokenUsage{InputTokens: 10_000, CacheReadTokens: 5_000}),
		event("claude", "sonnet", "s1", models.TokenUsage{InputTokens: 70_000, ToolOutputTokens: 9_000}),
	}
	got, err := ComputeCosts(events, testBook(), OnUnpricedError)
	if err != nil {
		t.Fatal(err)
	}

	var providerTokens, modelTokens uint64
	var providerCost float64
	for _, m := range got.ProviderBreakdown {
		providerTokens += m.Tokens
		providerCost += m.TotalCostUSD
	}
	for _, m := range got.ModelBreakdown {
		modelTokens += m.Tokens
	}
	if providerTokens != got.TotalTokens || modelTokens != got.TotalTokens {
		t.Errorf("token sums %d/%d differ from total %d", providerTokens, modelTokens, got.TotalTokens)
	}
	if math.Abs(providerCost-got.MonthlyTotalUSD) > 0.01*float64(len(got.ProviderBreakdown)) {
		t.Errorf("provider cost %v differs from monthly %v", providerCost, got.MonthlyTotalUSD)
	}
	if got.ModelBreakdown[0].Name != "gpt-4" || got.ModelBreakdown[1].Name != "sonnet" {
		t.Errorf("expected model rows sorted by canonical name, got %+v", got.ModelBreakdown)
	}
	// sessions are (provider, session) pairs: s1 appears under two providers.
	if got.SessionCount != 3 {
		t.Errorf("expected 3 sessions, got %d", got.SessionCount)
	}
}

func TestComputeCostsUnpricedError(t *testing.T) {
	events := []models.UsageEvent{
		event("openai", "gpt-4", "s1", models.TokenUsage{InputTokens: 10}),
		event("mistral", "large", "s1", models.TokenUsage{InputTokens: 10}),
		event("mistral", "large", "s2", models.TokenUsage{InputTokens: 10}),
		event("openai", "o3", "s2", models.TokenUsage{InputTokens: 10}),
	}
	_, err := ComputeCosts(events, testBook(), OnUnpricedError)
	var unpriced *UnpricedEventsError
	if !errors.As(err, &unpriced) {
		t.Fatalf("expected UnpricedEventsError, got %v", err)
	}
	want := "unpriced events found: mistral:large (events=2), openai:o3 (events=1). Re-run with --on-unpriced skip to ignore them"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestComputeCostsUnpricedSkip(t *testing.T) {
	events := []models.UsageEvent{
		event("openai", "gpt-4", "s1", models.TokenUsage{InputTokens: 1_000_000}),
		event("mistral", "large", "s1", models.TokenUsage{InputTokens: 10}),
	}
	got, err := ComputeCosts(events, testBook(), OnUnpricedSkip)
	if err != nil {
		t.Fatal(err)
	}
	if got.SkippedUnpricedCount != 1 {
		t.Errorf("expected 1 skipped, got %d", got.SkippedUnpricedCount)
	}
	if got.TotalTokens != 1_000_000 {
		t.Errorf("expected unpriced tokens excluded, got %d", got.TotalTokens)
	}
}

func TestEffectiveRateDefaults(t *testing.T) {
	rate := models.ModelRate{InputUSDPerMTok: 2, OutputUSDPerMTok: 8}
	tests := []struct {
		kind TokenKind
		want float64
	}{
		{Input, 2},
		{Output, 8},
		{CacheWrite, 2},
		{CacheRead, 0.2},
		{ToolInput, 2},
		{ToolOutput, 8},
	}
	for _, tt := range tests {
		if got := EffectiveRate(rate, tt.kind); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("%s: expected %v, got %v", tt.kind, tt.want, got)
		}
	}
	rate.CacheReadUSDPerMTok = ptr(0.05)
	if got := EffectiveRate(rate, CacheRead); got != 0.05 {
		t.Errorf("expected explicit cache read 0.05, got %v", got)
	}
}

func TestRounding(t *testing.T) {
	if got := Round2(2.675000001); got != 2.68 {
		t.Errorf("expected 2.68, got %v", got)
	}
	if got := Round2(-0.125); got != -0.13 {
		t.Errorf("expected half away from zero -0.13, got %v", got)
	}
	if got := Round4(0.123456); got != 0.1235 {
		t.Errorf("expected 0.1235, got %v", got)
	}
}

func TestSuggestions(t *testing.T) {
	book := &models.PricingBook{
		Providers: map[string]models.ProviderPricing{
			"p": {
				SubscriptionUSDMonth: 1000,
				Models:               map[string]models.ModelRate{"m": {InputUSDPerMTok: 20, OutputUSDPerMTok: 20}},
			},
		},
	}

	tests := []struct {
		name  string
		usage models.TokenUsage
		want  []string
	}{
		{
			name:  "tool heavy, no cache, expensive, subscription heavy",
			usage: models.TokenUsage{InputTokens: 100, ToolInputTokens: 100},
			want:  []string{SuggestToolShare, SuggestCacheRead, SuggestVariableRate, SuggestSubscription},
		},
		{
			name:  "cache heavy",
			usage: models.TokenUsage{InputTokens: 100, CacheReadTokens: 900},
			want:  []string{SuggestSubscription},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeCosts([]models.UsageEvent{event("p", "m", "s", tt.usage)}, book, OnUnpricedError)
			if err != nil {
				t.Fatal(err)
			}
			if strings.Join(got.Suggestions, "|") != strings.Join(tt.want, "|") {
				t.Errorf("expected %v, got %v", tt.want, got.Suggestions)
			}
		})
	}

	got, _ := ComputeCosts(nil, book, OnUnpricedError)
	if len(got.Suggestions) != 1 || got.Suggestions[0] != SuggestNone {
		t.Errorf("expected neutral suggestion for empty input, got %v", got.Suggestions)
	}
}

func TestParseOnUnpriced(t *testing.T) {
	if v, err := ParseOnUnpriced("skip"); err != nil || v != OnUnpricedSkip {
		t.Errorf("expected skip, got %v %v", v, err)
	}
	if v, err := ParseOnUnpriced(""); err != nil || v != OnUnpricedError {
		t.Errorf("expected error default, got %v %v", v, err)
	}
	if _, err := ParseOnUnpriced("ignore"); err == nil {
		t.Error("expected error for unknown action")
	}
}
