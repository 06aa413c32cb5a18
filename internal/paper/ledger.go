package paper

import (
	"sync"

	"stockbot-go/internal/market"
)

// Ledger keeps the session's fills in memory so tests and operators can
// audit what the offline broker actually traded.
type Ledger struct {
	mu    sync.Mutex
	fills []Fill
}

// NewLedger creates an empty ledger optionally pre-sizing storage.
func NewLedger(capacity int) *Ledger {
	if capacity < 0 {
		capacity = 0
	}
	return &Ledger{fills: make([]Fill, 0, capacity)}
}

// Record appends a fill to the ledger.
func (l *Ledger) Record(fill Fill) {
	l.mu.Lock()
	l.fills = append(l.fills, fill)
	l.mu.Unlock()
}

// Snapshot returns a copy of the recorded fills in execution order.
func (l *Ledger) Snapshot() []Fill {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Fill, len(l.fills))
	copy(out, l.fills)
	return out
}

// NetShares sums the recorded fills for symbol, buys positive and sells
// negative; the result should match the account's open position.
func (l *Ledger) NetShares(symbol string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var net float64
	for _, f := range l.fills {
		if f.Symbol != symbol {
			continue
		}
		if f.Side == market.Sell {
			net -= f.Qty
		} else {
			net += f.Qty
		}
	}
	return net
}

// Reset clears all stored fills.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.fills = l.fills[:0]
	l.mu.Unlock()
}
