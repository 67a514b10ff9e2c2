package costs

import (
	"fmt"
	"math"

	"github.com/pario-ai/tokenledger/pkg/models"
)

const mtok = 1_000_000.0

// Suggestion thresholds. These are policy constants.
const (
	toolShareThreshold         = 0.35
	cacheReadShareThreshold    = 0.10
	variablePerMTokThreshold   = 12.0
	subscriptionShareThreshold = 0.70
)

// TokenKind names one of the six token categories.
type TokenKind int

const (
	Input TokenKind = iota
	Output
	CacheWrite
	CacheRead
	ToolInput
	ToolOutput
)

func (k TokenKind) String() string {
	switch k {
	case Input:
		return "input"
	case Output:
		return "output"
	case CacheWrite:
		return "cache_write"
	case CacheRead:
		return "cache_read"
	case ToolInput:
		return "tool_input"
	case ToolOutput:
		return "tool_output"
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// EffectiveRate returns the USD/MTok rate for kind, applying defaults for
// unset optional rates: cache write and tool input bill as input, cache read
// as a tenth of input, tool output as output.
func EffectiveRate(rate models.ModelRate, kind TokenKind) float64 {
	switch kind {
	case Input:
		return rate.InputUSDPerMTok
	case Output:
		return rate.OutputUSDPerMTok
	case CacheWrite:
		return orDefault(rate.CacheWriteUSDPerMTok, rate.InputUSDPerMTok)
	case CacheRead:
		return orDefault(rate.CacheReadUSDPerMTok, rate.InputUSDPerMTok*0.1)
	case ToolInput:
		return orDefault(rate.ToolInputUSDPerMTok, rate.InputUSDPerMTok)
	case ToolOutput:
		return orDefault(rate.ToolOutputUSDPerMTok, rate.OutputUSDPerMTok)
	}
	return 0
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// VariableCost prices one event's usage against rate.
func VariableCost(u models.TokenUsage, rate models.ModelRate) float64 {
	return float64(u.InputTokens)/mtok*EffectiveRate(rate, Input) +
		float64(u.OutputTokens)/mtok*EffectiveRate(rate, Output) +
		float64(u.CacheWriteTokens)/mtok*EffectiveRate(rate, CacheWrite) +
		float64(u.CacheReadTokens)/mtok*EffectiveRate(rate, CacheRead) +
		float64(u.ToolInputTokens)/mtok*EffectiveRate(rate, ToolInput) +
		float64(u.ToolOutputTokens)/mtok*EffectiveRate(rate, ToolOutput)
}

// AllocateSubscription returns the item's pro-rata share of subscription.
// A zero total yields zero.
func AllocateSubscription(itemTokens, totalTokens uint64, subscription float64) float64 {
	if totalTokens == 0 {
		return 0
	}
	return subscription * (float64(itemTokens) / float64(totalTokens))
}

// Round2 rounds to cents, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round4 rounds to four decimals, half away from zero.
func Round4(v float64) float64 {
	return math.Round(v*10_000) / 10_000
}
