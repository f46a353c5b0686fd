// Package money computes document totals. Everything here is pure: no
// state, no I/O, deterministic for identical inputs.
package money

import "github.com/shopspring/decimal"

// MinorUnitTolerance is half of the smallest currency unit handled by the
// engine (two decimal places). Cumulative payments within this distance of
// the invoice amount count as full settlement.
var MinorUnitTolerance = decimal.New(5, -3) // 0.005

var hundred = decimal.NewFromInt(100)

// Item is a single billable line used for totals computation.
type Item struct {
	Quantity  int
	UnitPrice decimal.Decimal
}

// Totals is the result of a totals computation.
type Totals struct {
	Subtotal    decimal.Decimal
	TaxableBase decimal.Decimal
	TaxAmount   decimal.Decimal
	GrandTotal  decimal.Decimal
}

// LineTotal derives a line amount from quantity and unit price. Client
// supplied line totals are never trusted; this is the only derivation.
func LineTotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// ComputeTotals turns line items plus discount and GST rate into subtotal,
// tax amount, and grand total. The discount applies before tax and the
// taxable base is clamped at zero, so a discount larger than the subtotal
// never produces a negative total. The GST rate is a percentage. Rounding
// (half up, two decimal places) happens once at the grand total, not per
// line. Negative discount or rate inputs are treated as zero; callers
// validate them upstream.
func ComputeTotals(items []Item, discount, gstRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(LineTotal(item.Quantity, item.UnitPrice))
	}

	if discount.IsNegative() {
		discount = decimal.Zero
	}
	base := subtotal.Sub(discount)
	if base.IsNegative() {
		base = decimal.Zero
	}

	if gstRate.IsNegative() {
		gstRate = decimal.Zero
	}
	tax := base.Mul(gstRate).Div(hundred)

	return Totals{
		Subtotal:    subtotal,
		TaxableBase: base,
		TaxAmount:   tax,
		GrandTotal:  base.Add(tax).Round(2),
	}
}

// Settled reports whether paid covers amount within the minor unit tolerance.
func Settled(paid, amount decimal.Decimal) bool {
	return paid.GreaterThanOrEqual(amount.Sub(MinorUnitTolerance))
}
