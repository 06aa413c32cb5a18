// Package policy turns indicator and sentiment signals into trade decisions.
//
// Policies are pure functions of their inputs: no hidden state, no side
// effects. Callers must check Sufficient before invoking Decide; calling
// Decide with insufficient data is a programming error, not a runtime
// condition the policy defends against.
package policy

import (
	"time"

	"stockbot-go/internal/indicator"
	"stockbot-go/internal/market"
	"stockbot-go/internal/risk"
)

// Side is the direction of a decision.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
	Hold Side = "HOLD"
)

// OrderSide maps a decision side onto the broker's wire enum. Only valid
// for Buy and Sell; Hold decisions never reach the broker.
func (s Side) OrderSide() market.Side {
	if s == Sell {
		return market.Sell
	}
	return market.Buy
}

// Decision is the immutable outcome for one symbol in one cycle. It is
// created once by a policy and consumed exactly once by the execution
// controller.
type Decision struct {
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	Qty       int64     `json:"qty"`
	Signal    string    `json:"signal"`
	CycleID   string    `json:"cycle_id"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

// Actionable reports whether the decision should be submitted. HOLD
// decisions are terminal for the cycle.
func (d Decision) Actionable() bool {
	return d.Side != Hold && d.Qty > 0
}

// Policy is one deployed decision variant. Exactly one is active per
// deployment, selected and parameterized through configuration.
type Policy interface {
	Name() string
	// Sufficient reports whether the inputs carry the data this policy
	// requires. Undefined indicators are insufficient data, never a
	// neutral signal.
	Sufficient(snap indicator.Snapshot, sentiment *float64) bool
	// Decide produces the decision for one symbol. Requires Sufficient.
	Decide(cycleID string, snap indicator.Snapshot, sentiment *float64, account market.AccountState, limits risk.Limits) Decision
}

// sizeOrHold applies the quantity floor: a side with zero computed shares
// collapses to HOLD so zero-share orders are never emitted.
func sizeOrHold(cycleID, symbol string, side Side, reason string, price float64, limits risk.Limits, now time.Time) Decision {
	d := Decision{
		Symbol:    symbol,
		Side:      side,
		Signal:    reason,
		CycleID:   cycleID,
		Price:     price,
		CreatedAt: now,
	}
	if side == Hold {
		return d
	}
	d.Qty = limits.Shares(price)
	if d.Qty == 0 {
		d.Side = Hold
		d.Signal = reason + " (sized to zero shares)"
	}
	return d
}
