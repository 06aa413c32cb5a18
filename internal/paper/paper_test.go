package paper

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stockbot-go/internal/market"
)

func TestAccountBuyThenSellRealizesPnL(t *testing.T) {
	account := NewAccount(10000)

	if err := account.MarketFill("AAPL", market.Buy, 10, 100); err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if got := account.Position("AAPL"); got != 10 {
		t.Fatalf("expected position 10, got %v", got)
	}
	if err := account.MarketFill("AAPL", market.Sell, 10, 110); err != nil {
		t.Fatalf("sell failed: %v", err)
	}
	if got := account.RealizedPnL(); got != 100 {
		t.Fatalf("expected realized pnl 100, got %v", got)
	}
	if got := account.Position("AAPL"); got != 0 {
		t.Fatalf("position must close, got %v", got)
	}
}

func TestAccountRefusesOverdraftAndShortSell(t *testing.T) {
	account := NewAccount(100)

	if err := account.MarketFill("AAPL", market.Buy, 10, 100); err == nil {
		t.Fatalf("expected insufficient cash error")
	}
	if err := account.MarketFill("AAPL", market.Sell, 1, 100); err == nil {
		t.Fatalf("expected short sell refusal")
	}
}

func TestAccountStateMarksToMarket(t *testing.T) {
	account := NewAccount(10000)
	if err := account.MarketFill("AAPL", market.Buy, 10, 100); err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	state := account.State(map[string]float64{"AAPL": 120})
	if state.Cash != 9000 {
		t.Fatalf("expected cash 9000, got %v", state.Cash)
	}
	if state.Equity != 9000+1200 {
		t.Fatalf("expected equity 10200, got %v", state.Equity)
	}

	positions := account.Positions(map[string]float64{"AAPL": 120})
	if len(positions) != 1 || positions[0].UnrealizedPnL != 200 {
		t.Fatalf("unexpected positions: %+v", positions)
	}
}

func TestBrokerPricesAreDeterministic(t *testing.T) {
	at := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)
	b := NewBroker(10000, zerolog.Nop(), WithNow(func() time.Time { return at }))

	first, err := b.GetLatestQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	second, _ := b.GetLatestQuote(context.Background(), "AAPL")
	if first.Price != second.Price {
		t.Fatalf("same instant must price identically: %v vs %v", first.Price, second.Price)
	}
	if first.Price <= 0 {
		t.Fatalf("price must be positive, got %v", first.Price)
	}

	other, _ := b.GetLatestQuote(context.Background(), "MSFT")
	if other.Price == first.Price {
		t.Fatalf("different symbols should walk differently")
	}
}

func TestBrokerGetBarsCoversWindow(t *testing.T) {
	b := NewBroker(10000, zerolog.Nop())
	start := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)

	bars, err := b.GetBars(context.Background(), []string{"AAPL"}, market.TimeFrameMinute, start, start.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("GetBars failed: %v", err)
	}
	series := bars["AAPL"]
	if len(series) != 11 {
		t.Fatalf("expected 11 bars, got %d", len(series))
	}
	for i, bar := range series {
		if bar.Volume <= 0 || bar.High < bar.Low {
			t.Fatalf("malformed bar %d: %+v", i, bar)
		}
		if i > 0 && !bar.Timestamp.After(series[i-1].Timestamp) {
			t.Fatalf("bars must be ascending")
		}
	}
}

func TestBrokerSubmitOrderFillsAndRecords(t *testing.T) {
	ledger := NewLedger(4)
	at := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)
	b := NewBroker(100000, zerolog.Nop(), WithNow(func() time.Time { return at }), WithRecorder(ledger))

	result, err := b.SubmitOrder(context.Background(), market.OrderRequest{
		Symbol: "AAPL", Qty: 5, Side: market.Buy, ClientOrderID: "c1-AAPL",
	})
	if err != nil {
		t.Fatalf("SubmitOrder failed: %v", err)
	}
	if result.Status != "filled" || result.ID != "c1-AAPL" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got := b.Account().Position("AAPL"); got != 5 {
		t.Fatalf("expected position 5, got %v", got)
	}

	fills := ledger.Snapshot()
	if len(fills) != 1 || fills[0].Symbol != "AAPL" || fills[0].Price != result.FilledPrice {
		t.Fatalf("unexpected fills: %+v", fills)
	}
}

func TestBrokerRefusalIsPermanentAPIError(t *testing.T) {
	b := NewBroker(1, zerolog.Nop())

	_, err := b.SubmitOrder(context.Background(), market.OrderRequest{Symbol: "AAPL", Qty: 100, Side: market.Buy})
	if err == nil {
		t.Fatalf("expected refusal")
	}
	if market.IsTransient(err) {
		t.Fatalf("account refusals must not be retried")
	}
}

func TestBrokerClockAlwaysOpen(t *testing.T) {
	b := NewBroker(10000, zerolog.Nop())
	clock, err := b.GetClock(context.Background())
	if err != nil {
		t.Fatalf("GetClock failed: %v", err)
	}
	if !clock.IsOpen {
		t.Fatalf("paper market must always be open")
	}
}

func TestLedgerNetSharesBySide(t *testing.T) {
	ledger := NewLedger(4)
	ledger.Record(Fill{Symbol: "AAPL", Side: market.Buy, Qty: 10, Price: 100})
	ledger.Record(Fill{Symbol: "AAPL", Side: market.Sell, Qty: 4, Price: 110})
	ledger.Record(Fill{Symbol: "MSFT", Side: market.Buy, Qty: 3, Price: 300})

	if got := ledger.NetShares("AAPL"); got != 6 {
		t.Fatalf("expected net 6 AAPL shares, got %v", got)
	}
	if got := ledger.NetShares("MSFT"); got != 3 {
		t.Fatalf("expected net 3 MSFT shares, got %v", got)
	}
	if got := ledger.NetShares("SPY"); got != 0 {
		t.Fatalf("expected net 0 for untraded symbol, got %v", got)
	}

	ledger.Reset()
	if got := ledger.NetShares("AAPL"); got != 0 {
		t.Fatalf("reset must clear the ledger, got %v", got)
	}
}

func TestJSONLRecorderAppendsFills(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fills", "out.jsonl")
	rec, err := NewJSONLRecorder(path)
	if err != nil {
		t.Fatalf("NewJSONLRecorder failed: %v", err)
	}

	rec.Record(Fill{OrderID: "o1", Symbol: "AAPL", Side: market.Buy, Qty: 5, Price: 100})
	rec.Record(Fill{OrderID: "o2", Symbol: "MSFT", Side: market.Sell, Qty: 2, Price: 300})
	if err := rec.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open fills: %v", err)
	}
	defer file.Close()

	var fills []Fill
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var fill Fill
		if err := json.Unmarshal(scanner.Bytes(), &fill); err != nil {
			t.Fatalf("bad line: %v", err)
		}
		fills = append(fills, fill)
	}
	if len(fills) != 2 || fills[1].Symbol != "MSFT" {
		t.Fatalf("unexpected fills: %+v", fills)
	}
}
