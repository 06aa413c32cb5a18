// Package risk encodes sizing guard-rails applied to every decision.
package risk

import "math"

// Limits bounds how much size a single decision may take on.
type Limits struct {
	MaxPositionDollars float64
	MaxDailyLoss       float64
}

// Shares converts the dollar cap into a whole-share quantity at the given
// price: floor(MaxPositionDollars / price). A non-positive price yields 0,
// and a 0 quantity means the decision collapses to HOLD upstream.
func (l Limits) Shares(price float64) int64 {
	if price <= 0 || l.MaxPositionDollars <= 0 {
		return 0
	}
	return int64(math.Floor(l.MaxPositionDollars / price))
}

// DailyLossBreached reports whether the account's loss for the day has
// exceeded the configured cap. A zero cap disables the check.
func (l Limits) DailyLossBreached(dailyPnL float64) bool {
	return l.MaxDailyLoss > 0 && dailyPnL <= -l.MaxDailyLoss
}
