package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestCountersExposed(t *testing.T) {
	OrdersTotal.WithLabelValues("AAPL", "buy", "filled").Inc()
	CacheHitsTotal.Inc()

	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	out := string(body)
	if !strings.Contains(out, "orders_total") {
		t.Fatalf("expected orders_total in metrics output")
	}
	if !strings.Contains(out, "quote_cache_hits_total") {
		t.Fatalf("expected quote_cache_hits_total in metrics output")
	}
}
