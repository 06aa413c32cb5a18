package policy

import (
	"testing"

	"stockbot-go/internal/indicator"
	"stockbot-go/internal/market"
	"stockbot-go/internal/risk"
)

func ptr(v float64) *float64 { return &v }

func snap(price float64, rsi *float64) indicator.Snapshot {
	return indicator.Snapshot{Symbol: "AAPL", Price: price, RSI: rsi}
}

func TestRSIReversionOversoldBuys(t *testing.T) {
	p := NewRSIReversion(30, 70)
	limits := risk.Limits{MaxPositionDollars: 1000}

	d := p.Decide("c1", snap(100, ptr(25)), nil, market.AccountState{}, limits)
	if d.Side != Buy {
		t.Fatalf("expected BUY, got %s", d.Side)
	}
	if d.Qty != 10 {
		t.Fatalf("expected 10 shares, got %d", d.Qty)
	}
	if d.CycleID != "c1" || d.Symbol != "AAPL" {
		t.Fatalf("decision not stamped: %+v", d)
	}
}

func TestRSIReversionOverboughtSells(t *testing.T) {
	p := NewRSIReversion(30, 70)
	d := p.Decide("c1", snap(100, ptr(80)), nil, market.AccountState{}, risk.Limits{MaxPositionDollars: 1000})
	if d.Side != Sell {
		t.Fatalf("expected SELL, got %s", d.Side)
	}
}

func TestRSIReversionNeutralHolds(t *testing.T) {
	p := NewRSIReversion(30, 70)
	d := p.Decide("c1", snap(100, ptr(50)), nil, market.AccountState{}, risk.Limits{MaxPositionDollars: 1000})
	if d.Side != Hold {
		t.Fatalf("expected HOLD, got %s", d.Side)
	}
	if d.Actionable() {
		t.Fatalf("HOLD must not be actionable")
	}
}

func TestRSIZeroIsNotOversoldSell(t *testing.T) {
	// 14 straight declines drive avgGain to 0 and RSI to 0. That must
	// read as "not overbought" (HOLD for a 30/70 sell gate), not as a
	// SELL trigger.
	p := NewRSIReversion(30, 70)
	d := p.Decide("c1", snap(90, ptr(0)), nil, market.AccountState{}, risk.Limits{MaxPositionDollars: 1000})
	if d.Side == Sell {
		t.Fatalf("RSI 0 must never SELL")
	}
	if d.Side != Buy {
		// 0 < 30 reads oversold, which is a BUY under this policy.
		t.Fatalf("expected BUY at RSI 0, got %s", d.Side)
	}
}

func TestRSISufficiency(t *testing.T) {
	p := NewRSIReversion(30, 70)
	if p.Sufficient(snap(100, nil), nil) {
		t.Fatalf("nil RSI must be insufficient")
	}
	if p.Sufficient(snap(0, ptr(50)), nil) {
		t.Fatalf("zero price must be insufficient")
	}
	if !p.Sufficient(snap(100, ptr(50)), nil) {
		t.Fatalf("expected sufficient inputs")
	}
}

func TestSizingFloorCollapsesToHold(t *testing.T) {
	p := NewRSIReversion(30, 70)
	limits := risk.Limits{MaxPositionDollars: 1000}

	d := p.Decide("c1", snap(1500, ptr(25)), nil, market.AccountState{}, limits)
	if d.Qty != 0 {
		t.Fatalf("expected 0 quantity, got %d", d.Qty)
	}
	if d.Side != Hold {
		t.Fatalf("zero-share decision must collapse to HOLD, got %s", d.Side)
	}
}

func TestSentimentGated(t *testing.T) {
	p := NewSentimentGated(0.7)
	limits := risk.Limits{MaxPositionDollars: 1000}
	account := market.AccountState{}

	if d := p.Decide("c1", snap(100, nil), ptr(0.8), account, limits); d.Side != Buy {
		t.Fatalf("expected BUY above threshold, got %s", d.Side)
	}
	if d := p.Decide("c1", snap(100, nil), ptr(-0.9), account, limits); d.Side != Sell {
		t.Fatalf("expected SELL below -threshold, got %s", d.Side)
	}
	if d := p.Decide("c1", snap(100, nil), ptr(0.7), account, limits); d.Side != Hold {
		t.Fatalf("expected HOLD at exactly threshold, got %s", d.Side)
	}
	if d := p.Decide("c1", snap(100, nil), ptr(0), account, limits); d.Side != Hold {
		t.Fatalf("expected HOLD at neutral, got %s", d.Side)
	}
}

func TestSentimentSufficiency(t *testing.T) {
	p := NewSentimentGated(0.7)
	if p.Sufficient(snap(100, nil), nil) {
		t.Fatalf("missing sentiment must be insufficient")
	}
	if !p.Sufficient(snap(100, nil), ptr(0)) {
		t.Fatalf("neutral sentiment is still a score")
	}
}

func TestBuild(t *testing.T) {
	p, err := Build("rsi", Params{RSIOversold: 30, RSIOverbought: 70})
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if p.Name() != "rsi_reversion" {
		t.Fatalf("unexpected policy: %s", p.Name())
	}

	p, err = Build("sentiment", Params{SentimentThreshold: 0.7})
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if p.Name() != "sentiment_gated" {
		t.Fatalf("unexpected policy: %s", p.Name())
	}

	if _, err := Build("astrology", Params{}); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestOrderSideMapping(t *testing.T) {
	if Buy.OrderSide() != market.Buy {
		t.Fatalf("BUY should map to broker buy")
	}
	if Sell.OrderSide() != market.Sell {
		t.Fatalf("SELL should map to broker sell")
	}
}
