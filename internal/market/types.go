// Package market standardizes payloads shared between the brokerage boundary
// and the decision pipeline.
package market

import "time"

// TimeFrame identifies the bar granularity requested from the data provider.
type TimeFrame string

const (
	TimeFrameMinute TimeFrame = "1Min"
	TimeFrame5Min   TimeFrame = "5Min"
	TimeFrameHour   TimeFrame = "1Hour"
	TimeFrameDay    TimeFrame = "1Day"
)

// Bar is one OHLCV sample for a symbol. Series are ordered by timestamp
// ascending and immutable once returned by the provider.
type Bar struct {
	Timestamp time.Time `json:"t"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    float64   `json:"v"`
}

// TypicalPrice is (high+low+close)/3, the price used for VWAP accumulation.
func (b Bar) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3
}

// Quote is the latest traded price for a symbol.
type Quote struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Ts     time.Time `json:"ts"`
}

// AccountState is a fresh snapshot of the brokerage account. It is never
// cached: it feeds both position sizing and safety checks.
type AccountState struct {
	Cash           float64 `json:"cash"`
	Equity         float64 `json:"equity"`
	LastEquity     float64 `json:"last_equity"`
	BuyingPower    float64 `json:"buying_power"`
	PortfolioValue float64 `json:"portfolio_value"`
	Status         string  `json:"status"`
}

// DailyPnL reports equity change since the previous close.
func (a AccountState) DailyPnL() float64 {
	return a.Equity - a.LastEquity
}

// Position is a read-only snapshot of an open brokerage position.
type Position struct {
	Symbol        string  `json:"symbol"`
	Qty           float64 `json:"qty"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
	CurrentPrice  float64 `json:"current_price"`
	MarketValue   float64 `json:"market_value"`
	UnrealizedPnL float64 `json:"unrealized_pl"`
}

// Side enumerates order directions.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// OrderRequest is a market day-order placement request.
type OrderRequest struct {
	Symbol        string  `json:"symbol"`
	Qty           float64 `json:"qty"`
	Side          Side    `json:"side"`
	ClientOrderID string  `json:"client_order_id,omitempty"`
}

// OrderResult is the broker's acknowledgement of a submitted order.
type OrderResult struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Qty         float64   `json:"qty"`
	Side        Side      `json:"side"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
	FilledPrice float64   `json:"filled_avg_price,omitempty"`
}

// Clock is the broker's view of the trading session.
type Clock struct {
	Timestamp time.Time `json:"timestamp"`
	IsOpen    bool      `json:"is_open"`
	NextOpen  time.Time `json:"next_open"`
	NextClose time.Time `json:"next_close"`
}

// TextItem is one short free-text item returned by the social search
// collaborator.
type TextItem struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
