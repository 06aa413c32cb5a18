// Package cache provides TTL-bounded memoization of market-data queries.
//
// The key set is unbounded; the engine targets a universe of tens of
// symbols and a handful of operations, so no eviction beyond TTL expiry
// is performed.
package cache

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"stockbot-go/internal/metrics"
)

// DefaultTTL matches the freshness window the market data service has
// always used.
const DefaultTTL = 60 * time.Second

type entry struct {
	value    any
	storedAt time.Time
}

// QuoteCache memoizes producer results under fingerprinted keys for at
// most one TTL. Concurrent FetchOrCompute calls for the same key collapse
// to a single in-flight producer invocation.
type QuoteCache struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group
}

// Option configures QuoteCache construction.
type Option func(*QuoteCache)

// WithNow injects the clock used for freshness checks (tests).
func WithNow(now func() time.Time) Option {
	return func(c *QuoteCache) {
		if now != nil {
			c.now = now
		}
	}
}

// New builds a cache with the given TTL; non-positive falls back to DefaultTTL.
func New(ttl time.Duration, opts ...Option) *QuoteCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &QuoteCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fingerprint derives a deterministic key from the operation name, the
// symbol set (order-insensitive), and normalized parameters.
func Fingerprint(operation string, symbols []string, params ...string) string {
	sorted := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym != "" {
			sorted = append(sorted, sym)
		}
	}
	sort.Strings(sorted)
	normalized := make([]string, 0, len(params))
	for _, p := range params {
		normalized = append(normalized, strings.ToLower(strings.TrimSpace(p)))
	}
	return fmt.Sprintf("%s|%s|%s", operation, strings.Join(sorted, ","), strings.Join(normalized, ","))
}

// Get returns the cached value for key when it is younger than the TTL.
func (c *QuoteCache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.storedAt) >= c.ttl {
		return nil, false
	}
	return e.value, true
}

// Put stores value under key with the current timestamp.
func (c *QuoteCache) Put(key string, value any) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, storedAt: c.now()}
	c.mu.Unlock()
}

// FetchOrCompute returns the fresh cached value for key, or invokes
// producer, stores its result, and returns it. Producer failures propagate
// uncached so a failed fetch never poisons the cache.
func (c *QuoteCache) FetchOrCompute(key string, producer func() (any, error)) (any, error) {
	if v, ok := c.Get(key); ok {
		metrics.CacheHitsTotal.Inc()
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check: another caller may have stored the value while this
		// one was waiting on the flight group.
		if v, ok := c.Get(key); ok {
			metrics.CacheHitsTotal.Inc()
			return v, nil
		}
		metrics.CacheMissesTotal.Inc()
		v, err := producer()
		if err != nil {
			return nil, err
		}
		c.Put(key, v)
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Len reports the number of stored entries, fresh or expired.
func (c *QuoteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
