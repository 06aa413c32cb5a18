package paper

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stockbot-go/internal/market"
)

// Broker is an offline brokerage. Prices come from a deterministic
// per-symbol random walk, orders fill instantly at the walk's current
// price, and balances live in a virtual Account. It satisfies both
// market.Broker and market.DataProvider.
type Broker struct {
	account  *Account
	recorder FillRecorder
	log      zerolog.Logger
	now      func() time.Time
}

// Option configures Broker construction.
type Option func(*Broker)

// WithNow injects the wall clock (tests).
func WithNow(now func() time.Time) Option {
	return func(b *Broker) {
		if now != nil {
			b.now = now
		}
	}
}

// WithRecorder attaches a fill recorder; nil disables recording.
func WithRecorder(r FillRecorder) Option {
	return func(b *Broker) { b.recorder = r }
}

// NewBroker builds an offline broker with the given starting cash.
func NewBroker(startingCash float64, log zerolog.Logger, opts ...Option) *Broker {
	b := &Broker{
		account: NewAccount(startingCash),
		log:     log.With().Str("component", "paper").Logger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Account exposes the virtual account for inspection.
func (b *Broker) Account() *Account { return b.account }

// basePrice derives a stable starting price per symbol so repeated runs see
// the same synthetic market.
func basePrice(symbol string) float64 {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return 50 + float64(h.Sum32()%400)
}

// price walks the synthetic series forward to t, minute steps from a fixed
// epoch, so the same (symbol, time) always yields the same price.
func (b *Broker) price(symbol string, t time.Time) float64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))
	p := basePrice(symbol)
	steps := int(t.Unix()/60) % 2048
	if steps < 0 {
		steps = -steps
	}
	for i := 0; i < steps; i++ {
		p *= 1 + (rng.Float64()-0.5)*0.004
	}
	return math.Round(p*100) / 100
}

// GetBars synthesizes minute-spaced bars covering [start, end].
func (b *Broker) GetBars(_ context.Context, symbols []string, tf market.TimeFrame, start, end time.Time) (map[string][]market.Bar, error) {
	step := time.Minute
	switch tf {
	case market.TimeFrame5Min:
		step = 5 * time.Minute
	case market.TimeFrameHour:
		step = time.Hour
	case market.TimeFrameDay:
		step = 24 * time.Hour
	}

	out := make(map[string][]market.Bar, len(symbols))
	for _, sym := range symbols {
		var series []market.Bar
		for t := start; !t.After(end); t = t.Add(step) {
			open := b.price(sym, t)
			closing := b.price(sym, t.Add(step))
			series = append(series, market.Bar{
				Timestamp: t,
				Open:      open,
				High:      math.Max(open, closing) * 1.001,
				Low:       math.Min(open, closing) * 0.999,
				Close:     closing,
				Volume:    1000 + float64(int(t.Unix())%500),
			})
		}
		out[sym] = series
	}
	return out, nil
}

// GetLatestQuote returns the walk's current price.
func (b *Broker) GetLatestQuote(_ context.Context, symbol string) (market.Quote, error) {
	now := b.now()
	return market.Quote{Symbol: symbol, Price: b.price(symbol, now), Ts: now}, nil
}

// GetAccount marks the virtual account to the current synthetic prices.
func (b *Broker) GetAccount(_ context.Context) (market.AccountState, error) {
	return b.account.State(b.markPrices()), nil
}

// GetPositions returns the virtual positions marked to current prices.
func (b *Broker) GetPositions(_ context.Context) ([]market.Position, error) {
	return b.account.Positions(b.markPrices()), nil
}

// GetClock always reports an open market; paper trading runs whenever the
// operator wants it to.
func (b *Broker) GetClock(_ context.Context) (market.Clock, error) {
	now := b.now()
	return market.Clock{
		Timestamp: now,
		IsOpen:    true,
		NextClose: now.Add(24 * time.Hour),
	}, nil
}

// SubmitOrder fills immediately at the synthetic price and updates the
// virtual account. Account-level refusals (insufficient cash, short sells)
// surface as non-transient API errors.
func (b *Broker) SubmitOrder(_ context.Context, req market.OrderRequest) (market.OrderResult, error) {
	now := b.now()
	price := b.price(req.Symbol, now)

	if err := b.account.MarketFill(req.Symbol, req.Side, req.Qty, price); err != nil {
		return market.OrderResult{}, &market.APIError{
			StatusCode: 422,
			Endpoint:   "paper/orders",
			Message:    err.Error(),
		}
	}

	id := req.ClientOrderID
	if id == "" {
		id = uuid.NewString()
	}
	fill := Fill{OrderID: id, Symbol: req.Symbol, Side: req.Side, Qty: req.Qty, Price: price, FilledAt: now}
	if b.recorder != nil {
		b.recorder.Record(fill)
	}
	b.log.Info().Str("symbol", req.Symbol).Str("side", string(req.Side)).
		Float64("qty", req.Qty).Float64("price", price).Msg("paper fill")

	return market.OrderResult{
		ID:          id,
		Symbol:      req.Symbol,
		Qty:         req.Qty,
		Side:        req.Side,
		Status:      "filled",
		SubmittedAt: now,
		FilledPrice: price,
	}, nil
}

func (b *Broker) markPrices() map[string]float64 {
	now := b.now()
	prices := make(map[string]float64)
	for _, pos := range b.account.Positions(nil) {
		prices[pos.Symbol] = b.price(pos.Symbol, now)
	}
	return prices
}

var _ market.Broker = (*Broker)(nil)
var _ market.DataProvider = (*Broker)(nil)

// String identifies the broker in startup logs.
func (b *Broker) String() string {
	return fmt.Sprintf("paper(cash=%.2f)", b.account.StartingCash())
}
