package bankroll

import (
	"errors"
	"testing"
)

func TestCashAdd(t *testing.T) {
	testCases := []struct {
		name    string
		a, b    Cash
		want    Cash
		wantErr bool
	}{
		{name: "same currency", a: C(100, "USD"), b: C(25.5, "USD"), want: C(125.5, "USD")},
		{name: "negative amounts", a: C(100, "USD"), b: C(-150, "USD"), want: C(-50, "USD")},
		{name: "different currencies", a: C(100, "USD"), b: C(100, "EUR"), wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.a.Add(tc.b)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Add() error = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr {
				if !errors.Is(err, ErrCurrencyMismatch) {
					t.Errorf("Add() error = %v, want ErrCurrencyMismatch", err)
				}
				return
			}
			if !got.Equal(tc.want) {
				t.Errorf("Add() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSumCashRejectsMixedCurrencies(t *testing.T) {
	_, err := SumCash(C(10, "USD"), C(20, "USD"), C(5, "EUR"))
	if !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("SumCash() error = %v, want ErrCurrencyMismatch", err)
	}
}

func TestSumCash(t *testing.T) {
	got, err := SumCash(C(10, "USD"), C(20, "USD"), C(-5, "USD"))
	if err != nil {
		t.Fatalf("SumCash() unexpected error: %v", err)
	}
	if want := C(25, "USD"); !got.Equal(want) {
		t.Errorf("SumCash() = %v, want %v", got, want)
	}
}

func TestCashMul(t *testing.T) {
	got := C(150, "USD").Mul(Q(10))
	if want := C(1500, "USD"); !got.Equal(want) {
		t.Errorf("Mul() = %v, want %v", got, want)
	}
}

func TestCashString(t *testing.T) {
	testCases := []struct {
		cash Cash
		want string
	}{
		{cash: C(1234.56, "USD"), want: "$1,234.56"},
		{cash: C(-42, "USD"), want: "-$42.00"},
	}
	for _, tc := range testCases {
		if got := tc.cash.String(); got != tc.want {
			t.Errorf("String() of %v = %q, want %q", tc.cash.Amount(), got, tc.want)
		}
	}
}

func TestValidCurrency(t *testing.T) {
	if !ValidCurrency("USD") || !ValidCurrency("EUR") || !ValidCurrency("JPY") {
		t.Error("expected common ISO codes to be valid")
	}
	if ValidCurrency("XXXX") || ValidCurrency("usd") || ValidCurrency("") {
		t.Error("expected non-ISO codes to be invalid")
	}
}

func TestCashCmp(t *testing.T) {
	cmp, err := C(1, "USD").Cmp(C(2, "USD"))
	if err != nil || cmp != -1 {
		t.Errorf("Cmp() = %d, %v; want -1, nil", cmp, err)
	}
	if _, err := C(1, "USD").Cmp(C(2, "EUR")); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("Cmp() across currencies error = %v, want ErrCurrencyMismatch", err)
	}
}
