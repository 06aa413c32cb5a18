package broker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stockbot-go/internal/market"
)

func newTestAlpaca(t *testing.T, handler http.Handler) (*Alpaca, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAlpaca(srv.URL, srv.URL, "key-id", "key-secret", zerolog.Nop()), srv
}

func TestGetBarsParsesSeries(t *testing.T) {
	var gotQuery map[string]string
	client, _ := newTestAlpaca(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/stocks/bars" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("APCA-API-KEY-ID") != "key-id" {
			t.Fatalf("missing auth header")
		}
		gotQuery = map[string]string{
			"symbols":   r.URL.Query().Get("symbols"),
			"timeframe": r.URL.Query().Get("timeframe"),
		}
		json.NewEncoder(w).Encode(map[string]any{
			"bars": map[string]any{
				"AAPL": []map[string]any{
					{"t": "2026-08-28T14:30:00Z", "o": 100.0, "h": 101.0, "l": 99.5, "c": 100.5, "v": 1200.0},
					{"t": "2026-08-28T14:35:00Z", "o": 100.5, "h": 102.0, "l": 100.0, "c": 101.5, "v": 900.0},
				},
			},
		})
	}))

	start := time.Date(2026, 8, 28, 13, 0, 0, 0, time.UTC)
	bars, err := client.GetBars(context.Background(), []string{"AAPL", "SPY"}, market.TimeFrame5Min, start, start.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("GetBars returned error: %v", err)
	}
	if gotQuery["symbols"] != "AAPL,SPY" || gotQuery["timeframe"] != "5Min" {
		t.Fatalf("unexpected query: %+v", gotQuery)
	}
	series := bars["AAPL"]
	if len(series) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(series))
	}
	if series[1].Close != 101.5 || series[1].Volume != 900 {
		t.Fatalf("unexpected last bar: %+v", series[1])
	}
}

func TestGetLatestQuote(t *testing.T) {
	client, _ := newTestAlpaca(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/stocks/AAPL/trades/latest" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"trade": map[string]any{"p": 187.42, "t": "2026-08-28T15:00:01Z"},
		})
	}))

	quote, err := client.GetLatestQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetLatestQuote returned error: %v", err)
	}
	if quote.Symbol != "AAPL" || quote.Price != 187.42 {
		t.Fatalf("unexpected quote: %+v", quote)
	}
}

func TestGetAccountParsesStringNumbers(t *testing.T) {
	client, _ := newTestAlpaca(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"cash":            "25000.50",
			"equity":          "31000",
			"last_equity":     "30000",
			"buying_power":    "50000",
			"portfolio_value": "31000",
			"status":          "ACTIVE",
		})
	}))

	account, err := client.GetAccount(context.Background())
	if err != nil {
		t.Fatalf("GetAccount returned error: %v", err)
	}
	if account.Cash != 25000.50 || account.Status != "ACTIVE" {
		t.Fatalf("unexpected account: %+v", account)
	}
	if account.DailyPnL() != 1000 {
		t.Fatalf("unexpected daily pnl: %v", account.DailyPnL())
	}
}

func TestGetPositions(t *testing.T) {
	client, _ := newTestAlpaca(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]string{
			{"symbol": "AAPL", "qty": "10", "avg_entry_price": "180.00", "current_price": "187.42", "market_value": "1874.20", "unrealized_pl": "74.20"},
		})
	}))

	positions, err := client.GetPositions(context.Background())
	if err != nil {
		t.Fatalf("GetPositions returned error: %v", err)
	}
	if len(positions) != 1 || positions[0].Symbol != "AAPL" || positions[0].Qty != 10 {
		t.Fatalf("unexpected positions: %+v", positions)
	}
	if positions[0].UnrealizedPnL != 74.20 {
		t.Fatalf("unexpected pnl: %v", positions[0].UnrealizedPnL)
	}
}

func TestGetClock(t *testing.T) {
	client, _ := newTestAlpaca(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/clock" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"is_open":    true,
			"timestamp":  "2026-08-28T15:00:00Z",
			"next_open":  "2026-08-31T13:30:00Z",
			"next_close": "2026-08-28T20:00:00Z",
		})
	}))

	clock, err := client.GetClock(context.Background())
	if err != nil {
		t.Fatalf("GetClock returned error: %v", err)
	}
	if !clock.IsOpen {
		t.Fatalf("expected open market")
	}
	if clock.NextClose.Hour() != 20 {
		t.Fatalf("unexpected next close: %v", clock.NextClose)
	}
}

func TestSubmitOrderPostsMarketDayOrder(t *testing.T) {
	var gotBody map[string]string
	client, _ := newTestAlpaca(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/orders" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id": "ord-123", "symbol": "AAPL", "qty": "5", "side": "buy",
			"status": "accepted", "submitted_at": "2026-08-28T15:00:02Z",
		})
	}))

	result, err := client.SubmitOrder(context.Background(), market.OrderRequest{
		Symbol: "AAPL", Qty: 5, Side: market.Buy, ClientOrderID: "cyc-1-AAPL",
	})
	if err != nil {
		t.Fatalf("SubmitOrder returned error: %v", err)
	}
	if gotBody["type"] != "market" || gotBody["time_in_force"] != "day" {
		t.Fatalf("unexpected order body: %+v", gotBody)
	}
	if gotBody["client_order_id"] != "cyc-1-AAPL" {
		t.Fatalf("client order id not forwarded: %+v", gotBody)
	}
	if result.ID != "ord-123" || result.Side != market.Buy || result.Qty != 5 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestErrorsCarryStatusAndTransience(t *testing.T) {
	client, _ := newTestAlpaca(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"rate limit exceeded"}`, http.StatusTooManyRequests)
	}))

	_, err := client.GetAccount(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	var apiErr *market.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests || apiErr.Endpoint != "account" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if !market.IsTransient(err) {
		t.Fatalf("429 must be transient")
	}
}

func TestPermanentErrorNotTransient(t *testing.T) {
	client, _ := newTestAlpaca(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"insufficient buying power"}`, http.StatusForbidden)
	}))

	_, err := client.SubmitOrder(context.Background(), market.OrderRequest{Symbol: "AAPL", Qty: 1, Side: market.Buy})
	if err == nil {
		t.Fatalf("expected error")
	}
	if market.IsTransient(err) {
		t.Fatalf("403 must not be transient")
	}
}
