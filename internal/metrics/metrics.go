// Package metrics registers engine counters and serves them over HTTP.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "decision_cycles_total", Help: "Completed control loop passes"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Order attempts by terminal outcome"},
		[]string{"symbol", "side", "outcome"},
	)
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "quote_cache_hits_total", Help: "Quote cache lookups served from a fresh entry"},
	)
	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "quote_cache_misses_total", Help: "Quote cache lookups that invoked the producer"},
	)
	SentimentRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sentiment_requests_total", Help: "Outbound sentiment collaborator calls"},
		[]string{"collaborator", "result"},
	)
	SymbolErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "symbol_errors_total", Help: "Pipeline failures caught at the symbol boundary"},
		[]string{"symbol"},
	)
)

func init() {
	prometheus.MustRegister(
		CyclesTotal,
		OrdersTotal,
		CacheHitsTotal,
		CacheMissesTotal,
		SentimentRequestsTotal,
		SymbolErrorsTotal,
	)
}

// Serve exposes /metrics on addr in the background and returns the server
// so the caller can shut it down.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
