package pricing

import (
	"fmt"
	"math"
	"sort"

	"github.com/pario-ai/tokenledger/pkg/models"
)

// Lint reports rates that look like unfilled placeholders or are invalid.
// An all-zero input/output card is what a generated patch leaves behind.
func Lint(book *models.PricingBook) []string {
	var violations []string
	for _, provider := range sortedKeys(book.Providers) {
		p := book.Providers[provider]
		for _, model := range sortedKeys(p.Models) {
			rate := p.Models[model]
			switch {
			case rate.InputUSDPerMTok == 0 && rate.OutputUSDPerMTok == 0:
				violations = append(violations, rateViolation(provider, model, "placeholder rate marker"))
			case invalidRate(rate.InputUSDPerMTok) || invalidRate(rate.OutputUSDPerMTok):
				violations = append(violations, rateViolation(provider, model, "negative or non-finite rate"))
			}
			for _, opt := range []*float64{
				rate.CacheWriteUSDPerMTok, rate.CacheReadUSDPerMTok,
				rate.ToolInputUSDPerMTok, rate.ToolOutputUSDPerMTok,
			} {
				if opt != nil && invalidRate(*opt) {
					violations = append(violations, rateViolation(provider, model, "negative or non-finite optional rate"))
					break
				}
			}
		}
		if p.SubscriptionUSDMonth < 0 {
			violations = append(violations,
				fmt.Sprintf("%s: subscription is negative ($%.4f)", provider, p.SubscriptionUSDMonth))
		}
	}
	sort.Strings(violations)
	return violations
}

func rateViolation(provider, model, reason string) string {
	return fmt.Sprintf("%s / %s: %s", provider, model, reason)
}

func invalidRate(v float64) bool {
	return v < 0 || math.IsNaN(v) || math.IsInf(v, 0)
}
