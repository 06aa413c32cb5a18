package market

import (
	"context"
	"time"
)

// DataProvider supplies historical bars and latest quotes. Implementations
// talk to a real brokerage data API or a paper simulator.
type DataProvider interface {
	GetBars(ctx context.Context, symbols []string, tf TimeFrame, start, end time.Time) (map[string][]Bar, error)
	GetLatestQuote(ctx context.Context, symbol string) (Quote, error)
}

// Broker exposes account state, open positions, the session clock, and
// order submission. Account and position reads must always be fresh.
type Broker interface {
	GetAccount(ctx context.Context) (AccountState, error)
	GetPositions(ctx context.Context) ([]Position, error)
	GetClock(ctx context.Context) (Clock, error)
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}
