package costs

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pario-ai/tokenledger/pkg/models"
	"github.com/pario-ai/tokenledger/pkg/pricing"
)

// OnUnpriced selects how ComputeCosts treats events without a rate.
type OnUnpriced int

const (
	// OnUnpricedError fails the whole computation.
	OnUnpricedError OnUnpriced = iota
	// OnUnpricedSkip excludes them and counts them in SkippedUnpricedCount.
	OnUnpricedSkip
)

func (o OnUnpriced) String() string {
	if o == OnUnpricedSkip {
		return "skip"
	}
	return "error"
}

// ParseOnUnpriced parses "error" or "skip".
func ParseOnUnpriced(raw string) (OnUnpriced, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "error":
		return OnUnpricedError, nil
	case "skip":
		return OnUnpricedSkip, nil
	}
	return OnUnpricedError, fmt.Errorf("invalid on-unpriced action %q (use error or skip)", raw)
}

// ErrNoEvents is returned when a report is requested for an empty event set.
var ErrNoEvents = errors.New("no events to report")

// UnpricedPair counts events for one provider/model pair without a rate.
type UnpricedPair struct {
	Key   string
	Count int
}

// UnpricedEventsError is returned under OnUnpricedError when any event is unpriced.
type UnpricedEventsError struct {
	Missing []UnpricedPair
}

func (e *UnpricedEventsError) Error() string {
	parts := make([]string, 0, len(e.Missing))
	for _, m := range e.Missing {
		parts = append(parts, fmt.Sprintf("%s (events=%d)", m.Key, m.Count))
	}
	return fmt.Sprintf("unpriced events found: %s. Re-run with --on-unpriced skip to ignore them",
		strings.Join(parts, ", "))
}

type classified struct {
	event models.UsageEvent
	match pricing.Match
}

// ComputeCosts aggregates variable and allocated subscription cost for events.
// Provider and model keys are the canonical names after alias resolution.
func ComputeCosts(events []models.UsageEvent, book *models.PricingBook, onUnpriced OnUnpriced) (*models.CostBreakdown, error) {
	priced := make([]classified, 0, len(events))
	providerTotals := make(map[string]uint64)
	missing := make(map[string]int)
	skipped := 0

	for _, evt := range events {
		m, ok := pricing.Lookup(book, evt.Provider, evt.Model)
		if !ok {
			missing[m.Provider+":"+m.Model]++
			skipped++
			continue
		}
		providerTotals[m.Provider] += evt.Usage.Total()
		priced = append(priced, classified{event: evt, match: m})
	}

	if onUnpriced == OnUnpricedError && len(missing) > 0 {
		return nil, &UnpricedEventsError{Missing: sortedPairs(missing)}
	}

	global := newAccumulator()
	byProvider := tier{}
	byModel := tier{}

	for _, c := range priced {
		total, ok := providerTotals[c.match.Provider]
		if !ok {
			return nil, fmt.Errorf("missing token totals for provider %s", c.match.Provider)
		}
		variable := VariableCost(c.event.Usage, c.match.Rate)
		sub := AllocateSubscription(c.event.Usage.Total(), total, c.match.Pricing.SubscriptionUSDMonth)

		global.add(c.match.Provider, c.event, variable, sub)
		byProvider.get(c.match.Provider).add(c.match.Provider, c.event, variable, sub)
		byModel.get(c.match.Model).add(c.match.Provider, c.event, variable, sub)
	}

	monthly := global.variableCost + global.subscriptionUSD
	m := float64(global.tokens) / mtok
	var blended float64
	if m > 0 {
		blended = monthly / m
	}

	return &models.CostBreakdown{
		VariableCostUSD:          Round2(global.variableCost),
		SubscriptionAllocatedUSD: Round2(global.subscriptionUSD),
		MonthlyTotalUSD:          Round2(monthly),
		BlendedUSDPerMTok:        Round4(blended),
		TotalTokens:              global.tokens,
		TotalMTok:                Round4(m),
		InputTokens:              global.usage.InputTokens,
		OutputTokens:             global.usage.OutputTokens,
		CacheWriteTokens:         global.usage.CacheWriteTokens,
		CacheReadTokens:          global.usage.CacheReadTokens,
		ToolInputTokens:          global.usage.ToolInputTokens,
		ToolOutputTokens:         global.usage.ToolOutputTokens,
		SessionCount:             len(global.sessions),
		SkippedUnpricedCount:     skipped,
		ProviderBreakdown:        byProvider.breakdown(),
		ModelBreakdown:           byModel.breakdown(),
		Suggestions:              suggestions(global),
	}, nil
}

func sortedPairs(counts map[string]int) []UnpricedPair {
	out := make([]UnpricedPair, 0, len(counts))
	for k, n := range counts {
		out = append(out, UnpricedPair{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Advisory messages emitted by suggestions.
const (
	SuggestToolShare    = "Tool-token share is high (>35%): add per-tool budgets and short-circuit low-value tool calls."
	SuggestCacheRead    = "Cache-read share is low (<10%): improve prompt prefix reuse and session stickiness for Claude-style caching."
	SuggestVariableRate = "Blended variable $/MTok is high: route low-complexity jobs to cheaper models/providers via policy rules."
	SuggestSubscription = "Subscriptions dominate monthly cost (>70%): consolidate seats/plans or increase utilization with shared routing."
	SuggestNone         = "No obvious anomalies detected; keep collecting session-level data and compare 4-week trend deltas."
)

func suggestions(global *accumulator) []string {
	var tips []string
	if global.tokens > 0 {
		tokens := float64(global.tokens)
		if float64(global.toolTokens())/tokens > toolShareThreshold {
			tips = append(tips, SuggestToolShare)
		}
		if float64(global.usage.CacheReadTokens)/tokens < cacheReadShareThreshold {
			tips = append(tips, SuggestCacheRead)
		}
		if global.variableCost/(tokens/mtok) > variablePerMTokThreshold {
			tips = append(tips, SuggestVariableRate)
		}
	}
	monthly := global.variableCost + global.subscriptionUSD
	if monthly > 0 && global.subscriptionUSD/monthly > subscriptionShareThreshold {
		tips = append(tips, SuggestSubscription)
	}
	if len(tips) == 0 {
		tips = append(tips, SuggestNone)
	}
	return tips
}
