package policy

import (
	"fmt"
	"time"

	"stockbot-go/internal/indicator"
	"stockbot-go/internal/market"
	"stockbot-go/internal/risk"
)

// SentimentGated trades on fused social sentiment: above +threshold is a
// BUY, below -threshold a SELL, else HOLD.
type SentimentGated struct {
	threshold float64
	now       func() time.Time
}

// NewSentimentGated builds the sentiment policy; a non-positive threshold
// falls back to 0.7.
func NewSentimentGated(threshold float64) *SentimentGated {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.7
	}
	return &SentimentGated{threshold: threshold, now: time.Now}
}

// Name returns the configured identifier for logging.
func (p *SentimentGated) Name() string { return "sentiment_gated" }

// Sufficient requires a sentiment score and a positive price. A neutral
// score is still a score; only a missing one is insufficient.
func (p *SentimentGated) Sufficient(snap indicator.Snapshot, sentiment *float64) bool {
	return sentiment != nil && snap.Price > 0
}

// Decide applies the symmetric threshold gate. Requires Sufficient.
func (p *SentimentGated) Decide(cycleID string, snap indicator.Snapshot, sentiment *float64, _ market.AccountState, limits risk.Limits) Decision {
	score := *sentiment
	side := Hold
	switch {
	case score > p.threshold:
		side = Buy
	case score < -p.threshold:
		side = Sell
	}
	reason := fmt.Sprintf("sentiment=%.2f threshold=%.2f", score, p.threshold)
	return sizeOrHold(cycleID, snap.Symbol, side, reason, snap.Price, limits, p.now())
}
