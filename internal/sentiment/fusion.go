// Package sentiment turns short free-text items into a bounded trading
// sentiment score by delegating to external search and analysis
// collaborators.
package sentiment

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"stockbot-go/internal/market"
	"stockbot-go/internal/metrics"
)

// Searcher retrieves recent text items matching a query.
type Searcher interface {
	SearchRecent(ctx context.Context, query string, since time.Time, maxResults int) ([]market.TextItem, error)
}

// Analyzer scores a batch of texts and produces advisory summaries.
type Analyzer interface {
	ScoreSentiment(ctx context.Context, texts []string) (float64, error)
	SummarizeContext(ctx context.Context, marketSummary string, texts []string) (string, error)
}

// Neutral is the fallback score returned on any collaborator failure.
// Sentiment failure is never fatal to the control loop.
const Neutral = 0.0

// Fusion aggregates at most maxItems recent texts into one clamped score.
// A shared limiter serializes outbound search requests so the component
// never issues more than one per configured interval, system-wide.
type Fusion struct {
	searcher Searcher
	analyzer Analyzer
	limiter  *rate.Limiter
	maxItems int
	log      zerolog.Logger
	now      func() time.Time
}

// NewFusion wires the collaborators. interval is the minimum spacing
// between search requests; maxItems bounds the texts per analysis call.
func NewFusion(searcher Searcher, analyzer Analyzer, interval time.Duration, maxItems int, log zerolog.Logger) *Fusion {
	if interval <= 0 {
		interval = 20 * time.Second
	}
	if maxItems <= 0 || maxItems > 5 {
		maxItems = 5
	}
	return &Fusion{
		searcher: searcher,
		analyzer: analyzer,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		maxItems: maxItems,
		log:      log.With().Str("component", "sentiment").Logger(),
		now:      time.Now,
	}
}

// Score returns the fused sentiment for symbol in [-1, 1]. Any failure —
// rate-limit wait interrupted, search error, analysis error, malformed
// response — degrades to Neutral.
func (f *Fusion) Score(ctx context.Context, symbol string, keywords []string, lookback time.Duration) float64 {
	score, _ := f.Assess(ctx, symbol, "", keywords, lookback)
	return score
}

// Assess scores like Score and, when marketSummary is non-empty,
// additionally asks the analyzer for an advisory text covering the market
// context and the fetched texts. The summary is best-effort and purely
// informational: its failure never touches the score, and it is never used
// in decisioning.
func (f *Fusion) Assess(ctx context.Context, symbol, marketSummary string, keywords []string, lookback time.Duration) (float64, string) {
	if f.searcher == nil || f.analyzer == nil {
		return Neutral, ""
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return Neutral, ""
	}

	since := f.now().Add(-lookback)
	query := buildQuery(symbol, keywords)
	items, err := f.searcher.SearchRecent(ctx, query, since, f.maxItems)
	if err != nil {
		metrics.SentimentRequestsTotal.WithLabelValues("search", "error").Inc()
		f.log.Warn().Err(err).Str("symbol", symbol).Msg("social search failed, using neutral sentiment")
		return Neutral, ""
	}
	metrics.SentimentRequestsTotal.WithLabelValues("search", "ok").Inc()
	if len(items) == 0 {
		return Neutral, ""
	}

	texts := make([]string, 0, f.maxItems)
	for _, item := range items {
		if len(texts) == f.maxItems {
			break
		}
		if strings.TrimSpace(item.Text) != "" {
			texts = append(texts, item.Text)
		}
	}
	if len(texts) == 0 {
		return Neutral, ""
	}

	raw, err := f.analyzer.ScoreSentiment(ctx, texts)
	if err != nil {
		metrics.SentimentRequestsTotal.WithLabelValues("analyze", "error").Inc()
		f.log.Warn().Err(err).Str("symbol", symbol).Msg("sentiment analysis failed, using neutral sentiment")
		return Neutral, ""
	}
	metrics.SentimentRequestsTotal.WithLabelValues("analyze", "ok").Inc()

	return Clamp(raw), f.summarize(ctx, symbol, marketSummary, texts)
}

// summarize fetches the advisory context analysis. Skipped when the caller
// supplied no market summary to anchor it.
func (f *Fusion) summarize(ctx context.Context, symbol, marketSummary string, texts []string) string {
	if marketSummary == "" {
		return ""
	}
	summary, err := f.analyzer.SummarizeContext(ctx, marketSummary, texts)
	if err != nil {
		metrics.SentimentRequestsTotal.WithLabelValues("summarize", "error").Inc()
		f.log.Warn().Err(err).Str("symbol", symbol).Msg("context summary failed")
		return ""
	}
	metrics.SentimentRequestsTotal.WithLabelValues("summarize", "ok").Inc()
	return strings.TrimSpace(summary)
}

// Clamp bounds a raw analyzer output to [-1, 1]; non-finite values become
// Neutral. The analyzer's output is never trusted as-is.
func Clamp(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Neutral
	}
	return math.Max(-1, math.Min(1, v))
}

// buildQuery composes a single recent-search query covering the symbol and
// its keywords, excluding retweets and non-English items.
func buildQuery(symbol string, keywords []string) string {
	terms := make([]string, 0, len(keywords)+1)
	if s := strings.TrimSpace(symbol); s != "" {
		terms = append(terms, s)
	}
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			terms = append(terms, kw)
		}
	}
	var b strings.Builder
	if len(terms) > 1 {
		b.WriteString("(" + strings.Join(terms, " OR ") + ")")
	} else if len(terms) == 1 {
		b.WriteString(terms[0])
	}
	b.WriteString(" -is:retweet lang:en")
	return strings.TrimSpace(b.String())
}
