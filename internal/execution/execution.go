// Package execution submits decisions to the brokerage and owns the
// retry/backoff state machine around order placement.
package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"

	"stockbot-go/internal/cache"
	"stockbot-go/internal/market"
	"stockbot-go/internal/metrics"
	"stockbot-go/internal/policy"
)

// Outcome is the terminal (or pending) state of an order attempt sequence.
type Outcome string

const (
	OutcomePending  Outcome = "PENDING"
	OutcomeFilled   Outcome = "FILLED"
	OutcomeRejected Outcome = "REJECTED"
	OutcomeFailed   Outcome = "FAILED"
)

// Attempt records the outcome of executing one decision. Attempts counts
// submissions actually made; RefPrice is the execution-time reference
// quote, best-effort.
type Attempt struct {
	Decision    policy.Decision    `json:"decision"`
	Attempts    int                `json:"attempts"`
	SubmittedAt time.Time          `json:"submitted_at"`
	Outcome     Outcome            `json:"outcome"`
	Order       market.OrderResult `json:"order,omitempty"`
	RefPrice    *float64           `json:"ref_price,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// ErrDuplicateDecision rejects a second decision for the same
// (symbol, cycle) pair: only one attempt sequence may exist per pair.
var ErrDuplicateDecision = errors.New("duplicate decision for symbol in cycle")

// Sleeper waits for the backoff delay, honoring cancellation. Injected so
// tests run without real timers.
type Sleeper func(ctx context.Context, d time.Duration) error

func defaultSleeper(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Controller drives order submission with bounded exponential retry and
// per-(symbol, cycle) idempotency.
type Controller struct {
	broker      market.Broker
	data        market.DataProvider
	quotes      *cache.QuoteCache
	maxAttempts int
	baseDelay   time.Duration
	sleep       Sleeper
	log         zerolog.Logger
	now         func() time.Time

	mu       sync.Mutex
	inflight map[string]map[string]struct{} // cycleID -> symbols
}

// Option configures Controller construction.
type Option func(*Controller)

// WithSleeper overrides the backoff sleeper (tests).
func WithSleeper(s Sleeper) Option {
	return func(c *Controller) {
		if s != nil {
			c.sleep = s
		}
	}
}

// WithNow injects the clock used for attempt timestamps (tests).
func WithNow(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// NewController wires the controller. maxAttempts and baseDelay fall back
// to 3 and 1s.
func NewController(broker market.Broker, data market.DataProvider, quotes *cache.QuoteCache, maxAttempts int, baseDelay time.Duration, log zerolog.Logger, opts ...Option) *Controller {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	c := &Controller{
		broker:      broker,
		data:        data,
		quotes:      quotes,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		sleep:       defaultSleeper,
		log:         log.With().Str("component", "execution").Logger(),
		now:         time.Now,
		inflight:    make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetAccountState reads the account fresh from the broker, never cached.
func (c *Controller) GetAccountState(ctx context.Context) (market.AccountState, error) {
	return c.broker.GetAccount(ctx)
}

// GetOpenPositions reads positions fresh from the broker, never cached.
func (c *Controller) GetOpenPositions(ctx context.Context) ([]market.Position, error) {
	return c.broker.GetPositions(ctx)
}

// Execute runs the submission state machine for one decision:
//
//	SUBMITTED -> success -> FILLED
//	SUBMITTED -> transient error -> backoff (base * 2^(n-1)) -> SUBMITTED, up to maxAttempts
//	SUBMITTED -> permanent error -> REJECTED (not retried)
//	retries exhausted -> FAILED
//
// A second decision for the same (symbol, cycle) returns
// ErrDuplicateDecision without touching the broker. Terminal FAILED and
// REJECTED outcomes come back as the Attempt, not as an error.
func (c *Controller) Execute(ctx context.Context, decision policy.Decision) (Attempt, error) {
	attempt := Attempt{Decision: decision, Outcome: OutcomePending}
	if !decision.Actionable() {
		return attempt, fmt.Errorf("decision for %s is not actionable", decision.Symbol)
	}
	if !c.claim(decision) {
		return attempt, ErrDuplicateDecision
	}

	req := market.OrderRequest{
		Symbol:        decision.Symbol,
		Qty:           float64(decision.Qty),
		Side:          decision.Side.OrderSide(),
		ClientOrderID: uuid.NewString(),
	}
	delay := &backoff.Backoff{Min: c.baseDelay, Factor: 2, Jitter: false}

	for n := 1; n <= c.maxAttempts; n++ {
		attempt.Attempts = n
		attempt.SubmittedAt = c.now()

		order, err := c.broker.SubmitOrder(ctx, req)
		if err == nil {
			attempt.Outcome = OutcomeFilled
			attempt.Order = order
			attempt.RefPrice = c.referencePrice(ctx, decision.Symbol)
			metrics.OrdersTotal.WithLabelValues(decision.Symbol, string(req.Side), "filled").Inc()
			c.log.Info().Str("symbol", decision.Symbol).Str("side", string(decision.Side)).
				Int64("qty", decision.Qty).Int("attempts", n).Msg("order filled")
			return attempt, nil
		}

		if !market.IsTransient(err) {
			attempt.Outcome = OutcomeRejected
			attempt.Error = err.Error()
			metrics.OrdersTotal.WithLabelValues(decision.Symbol, string(req.Side), "rejected").Inc()
			c.log.Warn().Err(err).Str("symbol", decision.Symbol).Msg("order rejected")
			return attempt, nil
		}

		attempt.Error = err.Error()
		if n == c.maxAttempts {
			break
		}
		wait := delay.Duration()
		c.log.Warn().Err(err).Str("symbol", decision.Symbol).Int("attempt", n).
			Dur("backoff", wait).Msg("transient order failure, retrying")
		if err := c.sleep(ctx, wait); err != nil {
			attempt.Outcome = OutcomeFailed
			metrics.OrdersTotal.WithLabelValues(decision.Symbol, string(req.Side), "failed").Inc()
			return attempt, err
		}
	}

	attempt.Outcome = OutcomeFailed
	metrics.OrdersTotal.WithLabelValues(decision.Symbol, string(req.Side), "failed").Inc()
	c.log.Error().Str("symbol", decision.Symbol).Int("attempts", attempt.Attempts).
		Str("last_error", attempt.Error).Msg("order failed after retries")
	return attempt, nil
}

// EndCycle releases the idempotency claims for a finished cycle so the
// tracked set stays bounded.
func (c *Controller) EndCycle(cycleID string) {
	c.mu.Lock()
	delete(c.inflight, cycleID)
	c.mu.Unlock()
}

// claim registers the (symbol, cycle) pair; false means a sequence already
// exists and the new decision must be refused.
func (c *Controller) claim(decision policy.Decision) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	symbols := c.inflight[decision.CycleID]
	if symbols == nil {
		symbols = make(map[string]struct{})
		c.inflight[decision.CycleID] = symbols
	}
	if _, dup := symbols[decision.Symbol]; dup {
		return false
	}
	symbols[decision.Symbol] = struct{}{}
	return true
}

// referencePrice fetches the latest quote through the cache to attach an
// execution-time price to the fill notification. Failure here never
// invalidates the fill.
func (c *Controller) referencePrice(ctx context.Context, symbol string) *float64 {
	if c.quotes == nil || c.data == nil {
		return nil
	}
	key := cache.Fingerprint("latest_quote", []string{symbol})
	v, err := c.quotes.FetchOrCompute(key, func() (any, error) {
		return c.data.GetLatestQuote(ctx, symbol)
	})
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("reference price unavailable")
		return nil
	}
	quote, ok := v.(market.Quote)
	if !ok {
		return nil
	}
	return &quote.Price
}
