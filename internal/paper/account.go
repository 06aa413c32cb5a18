// Package paper implements an offline brokerage with virtual balances and
// synthetic market data, letting the engine run end to end without
// credentials or network access.
package paper

import (
	"errors"
	"sync"
	"time"

	"stockbot-go/internal/market"
)

// Fill is one executed paper trade.
type Fill struct {
	OrderID  string      `json:"order_id"`
	Symbol   string      `json:"symbol"`
	Side     market.Side `json:"side"`
	Qty      float64     `json:"qty"`
	Price    float64     `json:"price"`
	FilledAt time.Time   `json:"filled_at"`
}

// FillRecorder captures paper fills for later inspection.
type FillRecorder interface {
	Record(Fill)
}

const epsilon = 1e-9

type positionState struct {
	Qty     float64
	AvgCost float64
}

// Account tracks virtual cash, realized PnL, and per-symbol positions.
type Account struct {
	mu           sync.Mutex
	startingCash float64
	cash         float64
	realizedPnL  float64
	positions    map[string]positionState
}

// NewAccount constructs an account populated with starting cash.
func NewAccount(startingCash float64) *Account {
	return &Account{
		startingCash: startingCash,
		cash:         startingCash,
		positions:    make(map[string]positionState),
	}
}

// StartingCash returns the initial bankroll.
func (a *Account) StartingCash() float64 { return a.startingCash }

// MarketFill executes an order at the provided price, mutating balances if
// the account can support it.
func (a *Account) MarketFill(symbol string, side market.Side, qty, price float64) error {
	if qty <= 0 {
		return errors.New("quantity must be positive")
	}
	if price <= 0 {
		return errors.New("price must be positive")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	state := a.positions[symbol]
	notional := qty * price

	switch side {
	case market.Buy:
		if notional > a.cash+epsilon {
			return errors.New("insufficient cash for buy")
		}
		newQty := state.Qty + qty
		newAvg := ((state.AvgCost * state.Qty) + notional) / newQty
		a.cash -= notional
		a.positions[symbol] = positionState{Qty: newQty, AvgCost: newAvg}

	case market.Sell:
		if state.Qty <= 0 || state.Qty+epsilon < qty {
			return errors.New("insufficient position to sell")
		}
		a.realizedPnL += (price - state.AvgCost) * qty
		a.cash += notional
		newQty := state.Qty - qty
		if newQty <= epsilon {
			delete(a.positions, symbol)
		} else {
			a.positions[symbol] = positionState{Qty: newQty, AvgCost: state.AvgCost}
		}

	default:
		return errors.New("unknown order side")
	}
	return nil
}

// State marks the account to market using the supplied prices and returns
// a brokerage-shaped snapshot.
func (a *Account) State(prices map[string]float64) market.AccountState {
	a.mu.Lock()
	defer a.mu.Unlock()

	equity := a.cash
	for sym, pos := range a.positions {
		equity += pos.Qty * prices[sym]
	}
	return market.AccountState{
		Cash:           a.cash,
		Equity:         equity,
		LastEquity:     a.startingCash,
		BuyingPower:    a.cash,
		PortfolioValue: equity,
		Status:         "ACTIVE",
	}
}

// Positions returns open positions marked with the supplied prices.
func (a *Account) Positions(prices map[string]float64) []market.Position {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]market.Position, 0, len(a.positions))
	for sym, pos := range a.positions {
		mark := prices[sym]
		out = append(out, market.Position{
			Symbol:        sym,
			Qty:           pos.Qty,
			AvgEntryPrice: pos.AvgCost,
			CurrentPrice:  mark,
			MarketValue:   pos.Qty * mark,
			UnrealizedPnL: (mark - pos.AvgCost) * pos.Qty,
		})
	}
	return out
}

// Position returns the current position size for the supplied symbol.
func (a *Account) Position(symbol string) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.positions[symbol].Qty
}

// RealizedPnL returns total closed-trade profit and loss.
func (a *Account) RealizedPnL() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.realizedPnL
}
