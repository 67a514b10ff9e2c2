package costs

import (
	"sort"

	"github.com/pario-ai/tokenledger/pkg/models"
)

type sessionKey struct {
	provider string
	session  string
}

// accumulator folds priced events at one aggregation tier.
type accumulator struct {
	usage           models.TokenUsage
	tokens          uint64
	variableCost    float64
	subscriptionUSD float64
	sessions        map[sessionKey]struct{}
}

func newAccumulator() *accumulator {
	return &accumulator{sessions: make(map[sessionKey]struct{})}
}

func (a *accumulator) add(provider string, evt models.UsageEvent, variable, sub float64) {
	a.usage.Add(evt.Usage)
	a.tokens += evt.Usage.Total()
	a.variableCost += variable
	a.subscriptionUSD += sub
	a.sessions[sessionKey{provider: provider, session: evt.SessionID}] = struct{}{}
}

func (a *accumulator) toolTokens() uint64 {
	return a.usage.ToolInputTokens + a.usage.ToolOutputTokens
}

func (a *accumulator) metric(name string) models.NamedMetric {
	total := a.variableCost + a.subscriptionUSD
	m := float64(a.tokens) / mtok
	var blended, toolShare float64
	if m > 0 {
		blended = total / m
	}
	if a.tokens > 0 {
		toolShare = float64(a.toolTokens()) / float64(a.tokens)
	}
	return models.NamedMetric{
		Name:                     name,
		Tokens:                   a.tokens,
		MTok:                     Round4(m),
		VariableCostUSD:          Round2(a.variableCost),
		SubscriptionAllocatedUSD: Round2(a.subscriptionUSD),
		TotalCostUSD:             Round2(total),
		BlendedUSDPerMTok:        Round4(blended),
		SessionCount:             len(a.sessions),
		ToolShare:                Round4(toolShare),
	}
}

type tier map[string]*accumulator

func (t tier) get(name string) *accumulator {
	acc, ok := t[name]
	if !ok {
		acc = newAccumulator()
		t[name] = acc
	}
	return acc
}

// breakdown renders a tier ordered by name.
func (t tier) breakdown() []models.NamedMetric {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]models.NamedMetric, 0, len(names))
	for _, name := range names {
		out = append(out, t[name].metric(name))
	}
	return out
}
