// Package loop runs the periodic decision cycle: gate on market hours,
// then per symbol fetch data, compute indicators, score sentiment, decide,
// and execute, reporting every step to observers.
package loop

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stockbot-go/internal/cache"
	"stockbot-go/internal/config"
	"stockbot-go/internal/execution"
	"stockbot-go/internal/indicator"
	"stockbot-go/internal/market"
	"stockbot-go/internal/metrics"
	"stockbot-go/internal/observer"
	"stockbot-go/internal/policy"
	"stockbot-go/internal/risk"
)

// barLookback is how much history each indicator fetch covers; enough for
// the long SMA and RSI windows on 5-minute bars plus the current session
// for VWAP.
const barLookback = 24 * time.Hour

// SentimentScorer produces a bounded sentiment score for a symbol plus a
// best-effort advisory summary anchored on the supplied market brief.
// sentiment.Fusion satisfies it; the loop only needs this one method.
type SentimentScorer interface {
	Assess(ctx context.Context, symbol, marketSummary string, keywords []string, lookback time.Duration) (score float64, summary string)
}

// Executor drives order submission. execution.Controller satisfies it.
type Executor interface {
	Execute(ctx context.Context, decision policy.Decision) (execution.Attempt, error)
	EndCycle(cycleID string)
	GetAccountState(ctx context.Context) (market.AccountState, error)
	GetOpenPositions(ctx context.Context) ([]market.Position, error)
}

// Config carries the loop's tunables, already resolved from the
// application configuration.
type Config struct {
	Symbols        []string
	Keywords       []string
	Lookback       time.Duration
	BreadthBasket  []string
	PassInterval   time.Duration
	ClosedInterval time.Duration
	Hours          config.MarketHours
	Limits         risk.Limits
}

// Loop is the engine's top-level driver. One instance runs per process.
type Loop struct {
	cfg    Config
	data   market.DataProvider
	broker market.Broker
	engine *indicator.Engine
	scorer SentimentScorer
	policy policy.Policy
	exec   Executor
	quotes *cache.QuoteCache
	hub    *observer.Hub
	log    zerolog.Logger
	now    func() time.Time
}

// Option configures Loop construction.
type Option func(*Loop)

// WithNow injects the wall clock (tests).
func WithNow(now func() time.Time) Option {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
	}
}

// New wires the loop. scorer may be nil when the active policy does not
// consume sentiment.
func New(cfg Config, data market.DataProvider, broker market.Broker, engine *indicator.Engine,
	scorer SentimentScorer, pol policy.Policy, exec Executor, quotes *cache.QuoteCache,
	hub *observer.Hub, log zerolog.Logger, opts ...Option) *Loop {
	if cfg.PassInterval <= 0 {
		cfg.PassInterval = 5 * time.Second
	}
	if cfg.ClosedInterval <= 0 {
		cfg.ClosedInterval = time.Minute
	}
	l := &Loop{
		cfg:    cfg,
		data:   data,
		broker: broker,
		engine: engine,
		scorer: scorer,
		policy: pol,
		exec:   exec,
		quotes: quotes,
		hub:    hub,
		log:    log.With().Str("component", "loop").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run drives cycles until ctx is canceled. It returns ctx.Err() on
// shutdown so callers can distinguish a clean stop.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info().Str("policy", l.policy.Name()).Strs("symbols", l.cfg.Symbols).Msg("engine started")
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !l.marketOpen(ctx) {
			l.log.Info().Dur("wait", l.cfg.ClosedInterval).Msg("market closed")
			if err := l.wait(ctx, l.cfg.ClosedInterval); err != nil {
				return err
			}
			continue
		}

		l.RunCycle(ctx)
		if err := l.wait(ctx, l.cfg.PassInterval); err != nil {
			return err
		}
	}
}

// RunCycle executes one full decision pass over every configured symbol.
// Failures are contained at the symbol boundary: one symbol's error never
// aborts the others.
func (l *Loop) RunCycle(ctx context.Context) {
	cycleID := uuid.NewString()
	started := l.now()

	account, err := l.exec.GetAccountState(ctx)
	if err != nil {
		l.log.Error().Err(err).Str("cycle", cycleID).Msg("account read failed, skipping cycle")
		return
	}

	lossBreached := l.cfg.Limits.DailyLossBreached(account.DailyPnL())
	if lossBreached {
		l.log.Warn().Float64("daily_pnl", account.DailyPnL()).
			Float64("max_daily_loss", l.cfg.Limits.MaxDailyLoss).
			Str("cycle", cycleID).Msg("daily loss cap breached, suppressing new buys")
	}

	for _, symbol := range l.cfg.Symbols {
		if ctx.Err() != nil {
			break
		}
		if err := l.runSymbol(ctx, cycleID, symbol, account, lossBreached); err != nil {
			metrics.SymbolErrorsTotal.WithLabelValues(symbol).Inc()
			l.log.Error().Err(err).Str("symbol", symbol).Str("cycle", cycleID).Msg("symbol pass failed")
		}
	}

	l.publishPortfolio(ctx, cycleID)
	l.exec.EndCycle(cycleID)
	metrics.CyclesTotal.Inc()
	l.log.Info().Str("cycle", cycleID).Dur("took", l.now().Sub(started)).Msg("cycle complete")
}

func (l *Loop) runSymbol(ctx context.Context, cycleID, symbol string, account market.AccountState, lossBreached bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("symbol pipeline panicked: %v", r)
		}
	}()

	bars, err := l.fetchBars(ctx, symbol)
	if err != nil {
		return fmt.Errorf("fetch bars: %w", err)
	}

	snap := l.engine.Compute(symbol, bars)
	l.hub.Publish(observer.EventIndicators, snap)

	var sentimentScore *float64
	if l.scorer != nil {
		score, summary := l.scorer.Assess(ctx, symbol, marketBrief(snap), l.cfg.Keywords, l.cfg.Lookback)
		sentimentScore = &score
		payload := map[string]any{"symbol": symbol, "score": score}
		if summary != "" {
			payload["summary"] = summary
		}
		l.hub.Publish(observer.EventSentiment, payload)
	}

	if !l.policy.Sufficient(snap, sentimentScore) {
		l.log.Debug().Str("symbol", symbol).Msg("insufficient data, skipping")
		return nil
	}

	decision := l.policy.Decide(cycleID, snap, sentimentScore, account, l.cfg.Limits)
	l.hub.Publish(observer.EventDecision, decision)
	if !decision.Actionable() {
		return nil
	}
	// The daily loss guard blocks new exposure only; sells may still
	// reduce it.
	if lossBreached && decision.Side == policy.Buy {
		l.log.Warn().Str("symbol", symbol).Str("cycle", cycleID).Msg("buy suppressed by daily loss guard")
		return nil
	}

	attempt, err := l.exec.Execute(ctx, decision)
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	l.hub.Publish(observer.EventExecution, attempt)
	return nil
}

// marketBrief renders the snapshot as the short market-data summary handed
// to the advisory analyzer.
func marketBrief(snap indicator.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s price %.2f volume %.0f", snap.Symbol, snap.Price, snap.Volume)
	if snap.RSI != nil {
		fmt.Fprintf(&b, " RSI %.1f", *snap.RSI)
	}
	if snap.SMAShort != nil && snap.SMALong != nil {
		fmt.Fprintf(&b, " SMA5 %.2f SMA20 %.2f", *snap.SMAShort, *snap.SMALong)
	}
	if snap.VWAP != nil {
		fmt.Fprintf(&b, " VWAP %.2f", *snap.VWAP)
	}
	return b.String()
}

// fetchBars pulls the indicator window through the quote cache so repeated
// passes inside the TTL reuse one provider call per symbol.
func (l *Loop) fetchBars(ctx context.Context, symbol string) ([]market.Bar, error) {
	key := cache.Fingerprint("bars", []string{symbol}, string(market.TimeFrame5Min))
	v, err := l.quotes.FetchOrCompute(key, func() (any, error) {
		end := l.now()
		series, err := l.data.GetBars(ctx, []string{symbol}, market.TimeFrame5Min, end.Add(-barLookback), end)
		if err != nil {
			return nil, err
		}
		return series[symbol], nil
	})
	if err != nil {
		return nil, err
	}
	bars, _ := v.([]market.Bar)
	return bars, nil
}

// publishPortfolio emits the end-of-cycle portfolio view: fresh account
// and positions plus market breadth over the reference basket. Breadth is
// advisory; its failure only logs.
func (l *Loop) publishPortfolio(ctx context.Context, cycleID string) {
	account, err := l.exec.GetAccountState(ctx)
	if err != nil {
		l.log.Warn().Err(err).Str("cycle", cycleID).Msg("portfolio account read failed")
		return
	}
	positions, err := l.exec.GetOpenPositions(ctx)
	if err != nil {
		l.log.Warn().Err(err).Str("cycle", cycleID).Msg("portfolio positions read failed")
		return
	}

	payload := map[string]any{
		"cycle_id":  cycleID,
		"account":   account,
		"positions": positions,
		"daily_pnl": account.DailyPnL(),
	}
	if breadth, err := l.fetchBreadth(ctx); err == nil {
		payload["breadth"] = breadth
	} else {
		l.log.Warn().Err(err).Msg("breadth unavailable")
	}
	l.hub.Publish(observer.EventPortfolio, payload)
}

func (l *Loop) fetchBreadth(ctx context.Context) (indicator.Breadth, error) {
	if len(l.cfg.BreadthBasket) == 0 {
		return indicator.Breadth{}, nil
	}
	key := cache.Fingerprint("breadth_bars", l.cfg.BreadthBasket, string(market.TimeFrame5Min))
	v, err := l.quotes.FetchOrCompute(key, func() (any, error) {
		end := l.now()
		return l.data.GetBars(ctx, l.cfg.BreadthBasket, market.TimeFrame5Min, end.Add(-barLookback), end)
	})
	if err != nil {
		return indicator.Breadth{}, err
	}
	series, _ := v.(map[string][]market.Bar)
	return indicator.ComputeBreadth(series), nil
}

// marketOpen consults the broker clock first; only when that endpoint is
// unreachable does the configured local window decide.
func (l *Loop) marketOpen(ctx context.Context) bool {
	clock, err := l.broker.GetClock(ctx)
	if err == nil {
		return clock.IsOpen
	}
	l.log.Warn().Err(err).Msg("broker clock unavailable, using configured hours")
	open, herr := l.cfg.Hours.Contains(l.now())
	if herr != nil {
		l.log.Error().Err(herr).Msg("market hours fallback misconfigured")
		return false
	}
	return open
}

func (l *Loop) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
