package bankroll

import (
	"testing"

	"github.com/bankroll-py/bankroll/date"
	"github.com/shopspring/decimal"
)

func TestNewPositionRejectsForeignBasis(t *testing.T) {
	aapl := mustStock(t, "AAPL", "USD")
	if _, err := NewPosition(aapl, Q(10), C(1500, "EUR"), "csv"); err == nil {
		t.Error("expected error for cost basis in a different currency")
	}
}

func TestPositionCombine(t *testing.T) {
	aapl := mustStock(t, "AAPL", "USD")
	a, _ := NewPosition(aapl, Q(10), C(1500, "USD"), "api")
	b, _ := NewPosition(aapl, Q(5), C(1500, "USD"), "csv")

	merged, err := a.Combine(b)
	if err != nil {
		t.Fatalf("Combine(): %v", err)
	}
	if !merged.Quantity.Equal(Q(15)) {
		t.Errorf("merged quantity = %v, want 15", merged.Quantity)
	}
	// Summed bases make the merged basis a quantity-weighted average.
	if want := C(3000, "USD"); !merged.CostBasis.Equal(want) {
		t.Errorf("merged basis = %v, want %v", merged.CostBasis, want)
	}
	if want := C(200, "USD"); !merged.AveragePrice().Equal(want) {
		t.Errorf("average price = %v, want %v", merged.AveragePrice(), want)
	}
}

func TestPositionCombineDifferentInstruments(t *testing.T) {
	a, _ := NewPosition(mustStock(t, "AAPL", "USD"), Q(10), Cash{}, "api")
	b, _ := NewPosition(mustStock(t, "GOOG", "USD"), Q(5), Cash{}, "api")
	if _, err := a.Combine(b); err == nil {
		t.Error("expected error combining positions in different instruments")
	}
}

func TestPositionCombineUnderPolicy(t *testing.T) {
	a, _ := NewPosition(mustStock(t, "BRK.B", "USD"), Q(10), C(4000, "USD"), "broker-a")
	b, _ := NewPosition(mustStock(t, "BRK B", "USD"), Q(5), C(2000, "USD"), "broker-b")

	// Exact combine must still reject the separator variants.
	if _, err := a.Combine(b); err == nil {
		t.Error("Combine() should require exact instrument equality")
	}

	merged, err := a.CombineUnder(b, DefaultSymbolPolicy())
	if err != nil {
		t.Fatalf("CombineUnder(): %v", err)
	}
	if !merged.Quantity.Equal(Q(15)) {
		t.Errorf("merged quantity = %v, want 15", merged.Quantity)
	}
	if got := merged.Instrument.Symbol(); got != "BRK.B" {
		t.Errorf("canonical symbol = %q, want the receiver's %q", got, "BRK.B")
	}
	if want := C(6000, "USD"); !merged.CostBasis.Equal(want) {
		t.Errorf("merged basis = %v, want %v", merged.CostBasis, want)
	}
}

func TestPositionCombinePartialBasis(t *testing.T) {
	aapl := mustStock(t, "AAPL", "USD")
	a, _ := NewPosition(aapl, Q(10), C(1500, "USD"), "api")
	b, _ := NewPosition(aapl, Q(5), Cash{}, "csv")

	merged, err := a.Combine(b)
	if err != nil {
		t.Fatalf("Combine(): %v", err)
	}
	if want := C(1500, "USD"); !merged.CostBasis.Equal(want) {
		t.Errorf("merged basis = %v, want the one reported basis %v", merged.CostBasis, want)
	}
}

func TestAveragePriceUsesMultiplier(t *testing.T) {
	opt, err := NewOption("", "AAPL", "USD", Call, date.MustParse("2025-01-17"),
		decimal.NewFromInt(150), decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("NewOption(): %v", err)
	}
	// 2 contracts bought for $700 total: $3.50 per share across 100 shares each.
	p, _ := NewPosition(opt, Q(2), C(700, "USD"), "api")
	if want := C(3.5, "USD"); !p.AveragePrice().Equal(want) {
		t.Errorf("average price = %v, want %v", p.AveragePrice(), want)
	}
}

func TestAveragePriceZeroQuantity(t *testing.T) {
	p, _ := NewPosition(mustStock(t, "AAPL", "USD"), Q(0), Cash{}, "api")
	if want := C(0, "USD"); !p.AveragePrice().Equal(want) {
		t.Errorf("average price = %v, want %v", p.AveragePrice(), want)
	}
}
