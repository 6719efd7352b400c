package utils

import (
	"github.com/shopspring/decimal"
)

// DefaultTaxRatePercent applies when an order carries no tax reference.
var DefaultTaxRatePercent = decimal.NewFromInt(20)

var decimalOneHundred = decimal.NewFromInt(100)

// CalculateLineTotal returns qty * unitPrice * (100 - discountPct) / 100.
// No rounding happens here; only the order total is rounded, at the end.
func CalculateLineTotal(quantity int, unitPrice decimal.Decimal, discountPct decimal.Decimal) decimal.Decimal {
	gross := decimal.NewFromInt(int64(quantity)).Mul(unitPrice)
	return gross.Mul(decimalOneHundred.Sub(discountPct)).Div(decimalOneHundred)
}

// CalculateOrderSubtotal sums already-discounted line totals.
func CalculateOrderSubtotal(lineTotals []decimal.Decimal) decimal.Decimal {
	subTotal := decimal.Zero
	for _, t := range lineTotals {
		subTotal = subTotal.Add(t)
	}
	return subTotal
}

// CalculateOrderTotalWithTax applies the percentage tax rate and rounds the
// result to 2 decimal places, half up. This is the only rounding step in the
// whole pricing chain.
func CalculateOrderTotalWithTax(subTotal decimal.Decimal, taxRatePct decimal.Decimal) decimal.Decimal {
	return subTotal.Mul(decimalOneHundred.Add(taxRatePct)).Div(decimalOneHundred).Round(2)
}
