package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pario-ai/tokenledger/pkg/costs"
	"github.com/pario-ai/tokenledger/pkg/events"
	"github.com/pario-ai/tokenledger/pkg/models"
	"github.com/pario-ai/tokenledger/pkg/pricing"
	"github.com/pario-ai/tokenledger/pkg/tracker"
)

// ErrBudgetExceeded is returned when spend reaches a policy's cap.
var ErrBudgetExceeded = errors.New("budget exceeded")

// Enforcer checks USD spend of stored events against budget policies.
type Enforcer struct {
	policies []models.BudgetPolicy
	tracker  tracker.Tracker
	book     *models.PricingBook
	now      func() time.Time
}

// New creates an Enforcer pricing tracker events with book.
func New(policies []models.BudgetPolicy, t tracker.Tracker, book *models.PricingBook) *Enforcer {
	return &Enforcer{policies: policies, tracker: t, book: book, now: time.Now}
}

// Check returns ErrBudgetExceeded if any policy covering provider/model is spent.
func (e *Enforcer) Check(ctx context.Context, provider, model string) error {
	provider = pricing.ResolveProvider(e.book, provider)
	model = pricing.ResolveModel(e.book, provider, model)

	var applicable []models.BudgetPolicy
	for _, p := range e.policies {
		if e.covers(p, provider, model) {
			applicable = append(applicable, p)
		}
	}
	statuses, err := e.statuses(ctx, applicable)
	if err != nil {
		return fmt.Errorf("budget check: %w", err)
	}
	for _, s := range statuses {
		if s.Exceeded {
			return fmt.Errorf("%w: %s spent $%.2f of $%.2f", ErrBudgetExceeded, s.Policy.Name, s.SpentUSD, s.Policy.MaxUSD)
		}
	}
	return nil
}

// Status returns spend against every policy.
func (e *Enforcer) Status(ctx context.Context) ([]models.BudgetStatus, error) {
	statuses, err := e.statuses(ctx, e.policies)
	if err != nil {
		return nil, fmt.Errorf("budget status: %w", err)
	}
	return statuses, nil
}

func (e *Enforcer) statuses(ctx context.Context, policies []models.BudgetPolicy) ([]models.BudgetStatus, error) {
	now := e.now().UTC()
	loaded := make(map[models.BudgetPeriod][]models.UsageEvent)
	out := make([]models.BudgetStatus, 0, len(policies))

	for _, p := range policies {
		evs, ok := loaded[p.Period]
		if !ok {
			stored, err := e.tracker.Query(ctx, tracker.QueryOpts{Since: periodStart(p.Period, now)})
			if err != nil {
				return nil, err
			}
			evs = events.Normalize(stored, e.book)
			loaded[p.Period] = evs
		}

		spent, err := e.spend(evs, p)
		if err != nil {
			return nil, err
		}
		remaining := p.MaxUSD - spent
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, models.BudgetStatus{
			Policy:       p,
			SpentUSD:     spent,
			RemainingUSD: costs.Round2(remaining),
			Exceeded:     spent >= p.MaxUSD,
		})
	}
	return out, nil
}

// spend prices evs for one policy. Daily policies count variable cost only
// since subscriptions are billed per month.
func (e *Enforcer) spend(evs []models.UsageEvent, p models.BudgetPolicy) (float64, error) {
	provider := ""
	if p.Provider != "" {
		provider = pricing.ResolveProvider(e.book, p.Provider)
	}
	if provider != "" && p.Model != "" {
		evs = events.FilterProviderModel(evs, e.book, []string{provider}, nil)
	}

	b, err := costs.ComputeCosts(evs, e.book, costs.OnUnpricedSkip)
	if err != nil {
		return 0, err
	}

	pick := func(m models.NamedMetric) float64 {
		if p.Period == models.BudgetDaily {
			return m.VariableCostUSD
		}
		return m.TotalCostUSD
	}

	switch {
	case p.Model != "":
		names := e.modelNames(provider, p.Model)
		var total float64
		for _, m := range b.ModelBreakdown {
			if names[m.Name] {
				total += pick(m)
			}
		}
		return costs.Round2(total), nil
	case provider != "":
		for _, m := range b.ProviderBreakdown {
			if m.Name == provider {
				return pick(m), nil
			}
		}
		return 0, nil
	case p.Period == models.BudgetDaily:
		return b.VariableCostUSD, nil
	}
	return b.MonthlyTotalUSD, nil
}

// modelNames returns the canonical names a policy model refers to. Without a
// provider the alias is resolved against every provider.
func (e *Enforcer) modelNames(provider, model string) map[string]bool {
	if provider != "" {
		return map[string]bool{pricing.ResolveModel(e.book, provider, model): true}
	}
	names := map[string]bool{model: true}
	for _, pp := range e.book.Providers {
		if canonical, ok := pp.ModelAliases[model]; ok {
			names[canonical] = true
		}
	}
	return names
}

func (e *Enforcer) covers(p models.BudgetPolicy, provider, model string) bool {
	if p.Provider != "" && pricing.ResolveProvider(e.book, p.Provider) != provider {
		return false
	}
	if p.Model != "" && pricing.ResolveModel(e.book, provider, p.Model) != model {
		return false
	}
	return true
}

func periodStart(period models.BudgetPeriod, now time.Time) time.Time {
	switch period {
	case models.BudgetMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	default: // daily
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
}
