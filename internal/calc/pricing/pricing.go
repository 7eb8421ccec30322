// Package pricing computes POS sale and invoice totals.
//
// All functions are pure. Callers validate lines with ValidateLine before
// computing totals; the calculator never clamps silently.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNegativeDiscount     = errors.New("discount must not be negative")
	ErrDiscountExceedsTotal = errors.New("discount exceeds total")
	ErrInvalidQuantity      = errors.New("quantity must be at least 1")
	ErrNegativePrice        = errors.New("unit price must not be negative")
)

// Line is one priced row of a sale or invoice.
type Line struct {
	Quantity  int
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
}

// Summary holds the aggregate totals for a set of lines.
type Summary struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
}

// Gross returns quantity × unit price.
func Gross(l Line) decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LineTotal returns quantity × unit price − discount.
func LineTotal(l Line) decimal.Decimal {
	return Gross(l).Sub(l.Discount)
}

// Totals sums the lines. An empty slice yields zero totals.
func Totals(items []Line) Summary {
	sub := decimal.Zero
	disc := decimal.Zero
	for _, l := range items {
		sub = sub.Add(Gross(l))
		disc = disc.Add(l.Discount)
	}
	return Summary{
		Subtotal:      sub,
		TotalDiscount: disc,
		GrandTotal:    sub.Sub(disc),
	}
}

// ValidateLine checks quantity >= 1, unit price >= 0 and
// 0 <= discount <= quantity × unit price.
func ValidateLine(l Line) error {
	if l.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if l.UnitPrice.IsNegative() {
		return ErrNegativePrice
	}
	if l.Discount.IsNegative() {
		return ErrNegativeDiscount
	}
	if l.Discount.GreaterThan(Gross(l)) {
		return fmt.Errorf("%w: %s > %s", ErrDiscountExceedsTotal, l.Discount.StringFixed(2), Gross(l).StringFixed(2))
	}
	return nil
}

// ClampDiscount bounds the discount to [0, quantity × unit price].
func ClampDiscount(l Line) decimal.Decimal {
	if l.Discount.IsNegative() {
		return decimal.Zero
	}
	gross := Gross(l)
	if gross.IsNegative() {
		return decimal.Zero
	}
	if l.Discount.GreaterThan(gross) {
		return gross
	}
	return l.Discount
}

// Payable applies a global discount to the grand total.
func Payable(s Summary, globalDiscount decimal.Decimal) (decimal.Decimal, error) {
	if globalDiscount.IsNegative() {
		return decimal.Zero, ErrNegativeDiscount
	}
	if globalDiscount.GreaterThan(s.GrandTotal) {
		return decimal.Zero, ErrDiscountExceedsTotal
	}
	return s.GrandTotal.Sub(globalDiscount), nil
}

// Round rounds half away from zero to two decimal places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
