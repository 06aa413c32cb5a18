package policy

import (
	"fmt"
	"time"

	"stockbot-go/internal/indicator"
	"stockbot-go/internal/market"
	"stockbot-go/internal/risk"
)

// RSIReversion buys oversold and sells overbought: RSI below the oversold
// threshold is a BUY, above the overbought threshold a SELL, else HOLD.
type RSIReversion struct {
	oversold   float64
	overbought float64
	now        func() time.Time
}

// NewRSIReversion builds the indicator-only policy with the classic 30/70
// defaults when the thresholds are unset or inverted.
func NewRSIReversion(oversold, overbought float64) *RSIReversion {
	if oversold <= 0 || overbought <= 0 || oversold >= overbought {
		oversold, overbought = 30, 70
	}
	return &RSIReversion{oversold: oversold, overbought: overbought, now: time.Now}
}

// Name returns the configured identifier for logging.
func (p *RSIReversion) Name() string { return "rsi_reversion" }

// Sufficient requires a defined RSI and a positive price.
func (p *RSIReversion) Sufficient(snap indicator.Snapshot, _ *float64) bool {
	return snap.RSI != nil && snap.Price > 0
}

// Decide applies the thresholds. Requires Sufficient.
func (p *RSIReversion) Decide(cycleID string, snap indicator.Snapshot, _ *float64, _ market.AccountState, limits risk.Limits) Decision {
	rsi := *snap.RSI
	side := Hold
	switch {
	case rsi < p.oversold:
		side = Buy
	case rsi > p.overbought:
		side = Sell
	}
	reason := fmt.Sprintf("rsi=%.1f thresholds=%.0f/%.0f", rsi, p.oversold, p.overbought)
	return sizeOrHold(cycleID, snap.Symbol, side, reason, snap.Price, limits, p.now())
}
