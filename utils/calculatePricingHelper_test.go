package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCalculateLineTotal(t *testing.T) {
	cases := []struct {
		name     string
		qty      int
		price    string
		discount string
		want     string
	}{
		{"no discount", 2, "25", "0", "50"},
		{"half discount", 2, "25", "50", "25"},
		{"full discount", 3, "10", "100", "0"},
		{"keeps sub-cent precision", 3, "1.115", "0", "3.345"},
		{"fractional discount not rounded", 1, "10", "33.33", "6.667"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CalculateLineTotal(tc.qty, dec(tc.price), dec(tc.discount))
			if !got.Equal(dec(tc.want)) {
				t.Fatalf("CalculateLineTotal(%d, %s, %s) = %s, want %s",
					tc.qty, tc.price, tc.discount, got, tc.want)
			}
		})
	}
}

func TestCalculateOrderSubtotal(t *testing.T) {
	got := CalculateOrderSubtotal([]decimal.Decimal{dec("10.005"), dec("4.995")})
	if !got.Equal(dec("15")) {
		t.Fatalf("subtotal = %s, want 15", got)
	}
	if !CalculateOrderSubtotal(nil).IsZero() {
		t.Fatalf("empty subtotal should be zero")
	}
}

func TestCalculateOrderTotalWithTax(t *testing.T) {
	// 2 x 25 at the default 20% rate.
	got := CalculateOrderTotalWithTax(dec("50"), DefaultTaxRatePercent)
	if got.String() != "60" {
		t.Fatalf("total = %s, want 60", got)
	}
	if got.StringFixed(2) != "60.00" {
		t.Fatalf("total fixed = %s, want 60.00", got.StringFixed(2))
	}
}

func TestCalculateOrderTotalWithTaxRoundsHalfUpOnce(t *testing.T) {
	// 8.3375 * 1.20 = 10.005 exactly; half-up gives 10.01.
	got := CalculateOrderTotalWithTax(dec("8.3375"), dec("20"))
	if got.StringFixed(2) != "10.01" {
		t.Fatalf("total = %s, want 10.01", got.StringFixed(2))
	}

	// The subtotal itself must not have been rounded beforehand: rounding
	// 8.3375 first (8.34) would yield 10.008 -> 10.01 too, so use a case
	// that distinguishes. 8.3291 * 1.20 = 9.99492 -> 9.99; pre-rounding the
	// subtotal to 8.33 would give 9.996 -> 10.00.
	got = CalculateOrderTotalWithTax(dec("8.3291"), dec("20"))
	if got.StringFixed(2) != "9.99" {
		t.Fatalf("total = %s, want 9.99 (no intermediate rounding)", got.StringFixed(2))
	}
}

func TestCalculateOrderTotalZeroRate(t *testing.T) {
	got := CalculateOrderTotalWithTax(dec("12.345"), decimal.Zero)
	if got.StringFixed(2) != "12.35" {
		t.Fatalf("total = %s, want 12.35", got.StringFixed(2))
	}
}
