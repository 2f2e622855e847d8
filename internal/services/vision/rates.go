package vision

import "strings"

// Rate holds per-1K-token unit prices in USD.
type Rate struct {
	Input  float64
	Output float64
}

var (
	rateMini    = Rate{Input: 0.00015, Output: 0.0006}
	rateFull    = Rate{Input: 0.0025, Output: 0.01}
	rateDefault = Rate{Input: 0.0005, Output: 0.002}
)

// RateFor returns the billing rate for a model identifier. The "4o-mini"
// check must run before the broader "4o" match.
func RateFor(model string) Rate {
	lowered := strings.ToLower(model)
	switch {
	case strings.Contains(lowered, "4o-mini"):
		return rateMini
	case strings.Contains(lowered, "4o"):
		return rateFull
	default:
		return rateDefault
	}
}

// EstimateCost converts token usage into estimated USD spend.
func EstimateCost(model string, usage Usage) float64 {
	rate := RateFor(model)
	return float64(usage.PromptTokens)/1000*rate.Input +
		float64(usage.CompletionTokens)/1000*rate.Output
}
