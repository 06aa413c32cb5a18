// Package broker hosts brokerage collaborator implementations.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"stockbot-go/internal/market"
)

// Alpaca talks to the Alpaca-compatible REST API: trading endpoints on the
// account host, market data on the data host. It implements both
// market.Broker and market.DataProvider.
type Alpaca struct {
	baseURL     string
	dataBaseURL string
	apiKey      string
	apiSecret   string
	client      *http.Client
	log         zerolog.Logger
}

// NewAlpaca builds a client against the given hosts. The paper/live switch
// is purely a matter of which baseURL the caller passes.
func NewAlpaca(baseURL, dataBaseURL, apiKey, apiSecret string, log zerolog.Logger) *Alpaca {
	return &Alpaca{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		dataBaseURL: strings.TrimSuffix(dataBaseURL, "/"),
		apiKey:      apiKey,
		apiSecret:   apiSecret,
		client:      &http.Client{Timeout: 15 * time.Second},
		log:         log.With().Str("component", "alpaca").Logger(),
	}
}

type alpacaBar struct {
	Timestamp time.Time `json:"t"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    float64   `json:"v"`
}

type alpacaBarsResponse struct {
	Bars map[string][]alpacaBar `json:"bars"`
}

// GetBars fetches bar series for the symbols, ascending by timestamp.
func (a *Alpaca) GetBars(ctx context.Context, symbols []string, tf market.TimeFrame, start, end time.Time) (map[string][]market.Bar, error) {
	q := url.Values{}
	q.Set("symbols", strings.Join(symbols, ","))
	q.Set("timeframe", string(tf))
	q.Set("start", start.UTC().Format(time.RFC3339))
	q.Set("end", end.UTC().Format(time.RFC3339))

	var payload alpacaBarsResponse
	if err := a.get(ctx, a.dataBaseURL+"/v2/stocks/bars?"+q.Encode(), "stocks/bars", &payload); err != nil {
		return nil, err
	}

	out := make(map[string][]market.Bar, len(payload.Bars))
	for sym, bars := range payload.Bars {
		series := make([]market.Bar, len(bars))
		for i, b := range bars {
			series[i] = market.Bar{
				Timestamp: b.Timestamp,
				Open:      b.Open,
				High:      b.High,
				Low:       b.Low,
				Close:     b.Close,
				Volume:    b.Volume,
			}
		}
		out[sym] = series
	}
	return out, nil
}

type alpacaLatestTrade struct {
	Trade struct {
		Price     float64   `json:"p"`
		Timestamp time.Time `json:"t"`
	} `json:"trade"`
}

// GetLatestQuote returns the most recent traded price for symbol.
func (a *Alpaca) GetLatestQuote(ctx context.Context, symbol string) (market.Quote, error) {
	var payload alpacaLatestTrade
	endpoint := fmt.Sprintf("%s/v2/stocks/%s/trades/latest", a.dataBaseURL, url.PathEscape(symbol))
	if err := a.get(ctx, endpoint, "trades/latest", &payload); err != nil {
		return market.Quote{}, err
	}
	return market.Quote{Symbol: symbol, Price: payload.Trade.Price, Ts: payload.Trade.Timestamp}, nil
}

// The trading API reports numeric account fields as strings.
type alpacaAccount struct {
	Cash           string `json:"cash"`
	Equity         string `json:"equity"`
	LastEquity     string `json:"last_equity"`
	BuyingPower    string `json:"buying_power"`
	PortfolioValue string `json:"portfolio_value"`
	Status         string `json:"status"`
}

// GetAccount reads a fresh account snapshot.
func (a *Alpaca) GetAccount(ctx context.Context) (market.AccountState, error) {
	var payload alpacaAccount
	if err := a.get(ctx, a.baseURL+"/v2/account", "account", &payload); err != nil {
		return market.AccountState{}, err
	}
	return market.AccountState{
		Cash:           parseDollar(payload.Cash),
		Equity:         parseDollar(payload.Equity),
		LastEquity:     parseDollar(payload.LastEquity),
		BuyingPower:    parseDollar(payload.BuyingPower),
		PortfolioValue: parseDollar(payload.PortfolioValue),
		Status:         payload.Status,
	}, nil
}

type alpacaPosition struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	AvgEntryPrice string `json:"avg_entry_price"`
	CurrentPrice  string `json:"current_price"`
	MarketValue   string `json:"market_value"`
	UnrealizedPnL string `json:"unrealized_pl"`
}

// GetPositions reads the open positions fresh.
func (a *Alpaca) GetPositions(ctx context.Context) ([]market.Position, error) {
	var payload []alpacaPosition
	if err := a.get(ctx, a.baseURL+"/v2/positions", "positions", &payload); err != nil {
		return nil, err
	}
	out := make([]market.Position, len(payload))
	for i, p := range payload {
		out[i] = market.Position{
			Symbol:        p.Symbol,
			Qty:           parseDollar(p.Qty),
			AvgEntryPrice: parseDollar(p.AvgEntryPrice),
			CurrentPrice:  parseDollar(p.CurrentPrice),
			MarketValue:   parseDollar(p.MarketValue),
			UnrealizedPnL: parseDollar(p.UnrealizedPnL),
		}
	}
	return out, nil
}

// GetClock reads the broker's session clock, the canonical market-hours
// source.
func (a *Alpaca) GetClock(ctx context.Context) (market.Clock, error) {
	var payload market.Clock
	if err := a.get(ctx, a.baseURL+"/v2/clock", "clock", &payload); err != nil {
		return market.Clock{}, err
	}
	return payload, nil
}

type alpacaOrderRequest struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	TimeInForce   string `json:"time_in_force"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

type alpacaOrder struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	Qty            string    `json:"qty"`
	Side           string    `json:"side"`
	Status         string    `json:"status"`
	SubmittedAt    time.Time `json:"submitted_at"`
	FilledAvgPrice string    `json:"filled_avg_price"`
}

// SubmitOrder places a market day order.
func (a *Alpaca) SubmitOrder(ctx context.Context, req market.OrderRequest) (market.OrderResult, error) {
	body, err := json.Marshal(alpacaOrderRequest{
		Symbol:        req.Symbol,
		Qty:           strconv.FormatFloat(req.Qty, 'f', -1, 64),
		Side:          string(req.Side),
		Type:          "market",
		TimeInForce:   "day",
		ClientOrderID: req.ClientOrderID,
	})
	if err != nil {
		return market.OrderResult{}, fmt.Errorf("marshal order: %w", err)
	}

	var payload alpacaOrder
	if err := a.do(ctx, http.MethodPost, a.baseURL+"/v2/orders", "orders", bytes.NewReader(body), &payload); err != nil {
		return market.OrderResult{}, err
	}
	a.log.Info().Str("symbol", req.Symbol).Str("side", string(req.Side)).
		Float64("qty", req.Qty).Str("order_id", payload.ID).Msg("order submitted")
	return market.OrderResult{
		ID:          payload.ID,
		Symbol:      payload.Symbol,
		Qty:         parseDollar(payload.Qty),
		Side:        market.Side(payload.Side),
		Status:      payload.Status,
		SubmittedAt: payload.SubmittedAt,
		FilledPrice: parseDollar(payload.FilledAvgPrice),
	}, nil
}

func (a *Alpaca) get(ctx context.Context, endpoint, name string, out any) error {
	return a.do(ctx, http.MethodGet, endpoint, name, nil, out)
}

func (a *Alpaca) do(ctx context.Context, method, endpoint, name string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("APCA-API-KEY-ID", a.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", a.apiSecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &market.APIError{StatusCode: resp.StatusCode, Endpoint: name, Message: strings.TrimSpace(string(msg))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", name, err)
	}
	return nil
}

// parseDollar converts the API's stringly numeric fields; empty or
// malformed values read as 0.
func parseDollar(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
