// Package indicator computes technical indicators from bar series.
//
// Fields that lack sufficient history are nil, never zero: callers must
// treat a nil indicator as "insufficient data", not as a neutral signal.
package indicator

import (
	"sort"
	"time"

	"stockbot-go/internal/market"
)

// Snapshot is the per-symbol indicator set computed once per decision
// cycle. It is derived data and never persisted.
type Snapshot struct {
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	SMAShort   *float64  `json:"sma_short"`
	SMALong    *float64  `json:"sma_long"`
	RSI        *float64  `json:"rsi"`
	VWAP       *float64  `json:"vwap"`
	Volume     float64   `json:"volume"`
	ComputedAt time.Time `json:"computed_at"`
}

// Engine computes snapshots with fixed window parameters.
type Engine struct {
	shortWindow int
	longWindow  int
	rsiPeriod   int
	loc         *time.Location
	now         func() time.Time
}

// Option configures Engine construction.
type Option func(*Engine)

// WithNow injects the clock stamped onto snapshots (tests).
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLocation sets the timezone used to delimit trading sessions for VWAP.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// NewEngine builds an engine with the classic 5/20 SMA pair and 14-period RSI.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		shortWindow: 5,
		longWindow:  20,
		rsiPeriod:   14,
		loc:         time.UTC,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute derives a snapshot from a bar series ordered by timestamp
// ascending. An empty series yields a zero-price snapshot with every
// indicator undefined.
func (e *Engine) Compute(symbol string, bars []market.Bar) Snapshot {
	snap := Snapshot{Symbol: symbol, ComputedAt: e.now()}
	if len(bars) == 0 {
		return snap
	}
	last := bars[len(bars)-1]
	snap.Price = last.Close
	snap.Volume = last.Volume
	snap.SMAShort = sma(bars, e.shortWindow)
	snap.SMALong = sma(bars, e.longWindow)
	snap.RSI = rsi(bars, e.rsiPeriod)
	snap.VWAP = e.sessionVWAP(bars)
	return snap
}

// sma returns the arithmetic mean of the last n closes, or nil with fewer
// than n bars.
func sma(bars []market.Bar, n int) *float64 {
	if n <= 0 || len(bars) < n {
		return nil
	}
	var sum float64
	for _, b := range bars[len(bars)-n:] {
		sum += b.Close
	}
	v := sum / float64(n)
	return &v
}

// rsi computes the rolling-mean RSI over the last period deltas.
//
// With avgLoss zero and avgGain positive the value saturates at 100; with
// avgGain zero and avgLoss positive it is 0. A perfectly flat window has
// no momentum either way and stays undefined.
func rsi(bars []market.Bar, period int) *float64 {
	if period <= 0 || len(bars) < period+1 {
		return nil
	}
	var gains, losses float64
	window := bars[len(bars)-period-1:]
	for i := 1; i < len(window); i++ {
		delta := window[i].Close - window[i-1].Close
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		if avgGain == 0 {
			return nil
		}
		v := 100.0
		return &v
	}
	rs := avgGain / avgLoss
	v := 100 - 100/(1+rs)
	return &v
}

// sessionVWAP accumulates typical price x volume over bars belonging to
// the current trading session, delimited by calendar day in the engine's
// location. Prior sessions are excluded.
func (e *Engine) sessionVWAP(bars []market.Bar) *float64 {
	last := bars[len(bars)-1].Timestamp.In(e.loc)
	y, m, d := last.Date()

	var pv, vol float64
	for _, b := range bars {
		ts := b.Timestamp.In(e.loc)
		by, bm, bd := ts.Date()
		if by != y || bm != m || bd != d {
			continue
		}
		pv += b.TypicalPrice() * b.Volume
		vol += b.Volume
	}
	if vol == 0 {
		return nil
	}
	v := pv / vol
	return &v
}

// Mover is one basket symbol ranked by percent change over the lookback.
type Mover struct {
	Symbol    string  `json:"symbol"`
	ChangePct float64 `json:"change_pct"`
}

// Breadth summarizes advancing/declining counts across a reference basket
// plus the five largest movers in each direction.
type Breadth struct {
	Advancing  int     `json:"advancing"`
	Declining  int     `json:"declining"`
	TopGainers []Mover `json:"top_gainers"`
	TopLosers  []Mover `json:"top_losers"`
}

// ComputeBreadth classifies each basket symbol by the sign of
// (last close - first close) over its series. Symbols with fewer than two
// bars are skipped. Ties rank by symbol lexical order.
func ComputeBreadth(series map[string][]market.Bar) Breadth {
	movers := make([]Mover, 0, len(series))
	for sym, bars := range series {
		if len(bars) < 2 {
			continue
		}
		first := bars[0].Close
		if first == 0 {
			continue
		}
		change := (bars[len(bars)-1].Close - first) / first * 100
		movers = append(movers, Mover{Symbol: sym, ChangePct: change})
	}

	var breadth Breadth
	for _, m := range movers {
		switch {
		case m.ChangePct > 0:
			breadth.Advancing++
		case m.ChangePct < 0:
			breadth.Declining++
		}
	}

	gainers := filterMovers(movers, func(m Mover) bool { return m.ChangePct > 0 })
	sort.Slice(gainers, func(i, j int) bool {
		if gainers[i].ChangePct != gainers[j].ChangePct {
			return gainers[i].ChangePct > gainers[j].ChangePct
		}
		return gainers[i].Symbol < gainers[j].Symbol
	})
	losers := filterMovers(movers, func(m Mover) bool { return m.ChangePct < 0 })
	sort.Slice(losers, func(i, j int) bool {
		if losers[i].ChangePct != losers[j].ChangePct {
			return losers[i].ChangePct < losers[j].ChangePct
		}
		return losers[i].Symbol < losers[j].Symbol
	})

	breadth.TopGainers = capMovers(gainers, 5)
	breadth.TopLosers = capMovers(losers, 5)
	return breadth
}

func filterMovers(movers []Mover, keep func(Mover) bool) []Mover {
	out := make([]Mover, 0, len(movers))
	for _, m := range movers {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

func capMovers(movers []Mover, n int) []Mover {
	if len(movers) > n {
		movers = movers[:n]
	}
	return movers
}
