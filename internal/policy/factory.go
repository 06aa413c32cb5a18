package policy

import (
	"fmt"
	"strings"
)

// Params expresses the threshold knobs policy constructors accept.
type Params struct {
	RSIOversold        float64
	RSIOverbought      float64
	SentimentThreshold float64
}

// Build returns the policy implementation matching the configured mode.
// Exactly one variant is active per deployment.
func Build(mode string, params Params) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "rsi", "rsi_reversion":
		return NewRSIReversion(params.RSIOversold, params.RSIOverbought), nil
	case "sentiment", "sentiment_gated":
		return NewSentimentGated(params.SentimentThreshold), nil
	default:
		return nil, fmt.Errorf("unknown policy mode %q", mode)
	}
}
