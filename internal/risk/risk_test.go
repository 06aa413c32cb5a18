package risk

import "testing"

func TestSharesFloors(t *testing.T) {
	limits := Limits{MaxPositionDollars: 1000}
	if got := limits.Shares(300); got != 3 {
		t.Fatalf("expected 3 shares, got %d", got)
	}
}

func TestSharesZeroWhenPriceExceedsCap(t *testing.T) {
	limits := Limits{MaxPositionDollars: 1000}
	if got := limits.Shares(1500); got != 0 {
		t.Fatalf("expected 0 shares, got %d", got)
	}
}

func TestSharesInvalidPrice(t *testing.T) {
	limits := Limits{MaxPositionDollars: 1000}
	if got := limits.Shares(0); got != 0 {
		t.Fatalf("expected 0 shares at zero price, got %d", got)
	}
	if got := limits.Shares(-5); got != 0 {
		t.Fatalf("expected 0 shares at negative price, got %d", got)
	}
}

func TestDailyLossBreached(t *testing.T) {
	limits := Limits{MaxDailyLoss: 500}
	if limits.DailyLossBreached(-499) {
		t.Fatalf("loss under cap should not breach")
	}
	if !limits.DailyLossBreached(-500) {
		t.Fatalf("loss at cap should breach")
	}
	if (Limits{}).DailyLossBreached(-1e9) {
		t.Fatalf("zero cap disables the check")
	}
}
