// Package pricing computes order totals. It performs no I/O.
package pricing

import "github.com/shopspring/decimal"

// Line is one priced order line.
type Line struct {
	Price     decimal.Decimal
	SalePrice decimal.NullDecimal
	Quantity  int
}

// UnitPrice prefers the sale price.
func (l Line) UnitPrice() decimal.Decimal {
	if l.SalePrice.Valid {
		return l.SalePrice.Decimal
	}
	return l.Price
}

// Total is unit price times quantity, rounded half up to cents.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity))).Round(2)
}

// CouponEffect is what an applied coupon contributes.
type CouponEffect struct {
	Discount     decimal.Decimal
	FreeShipping bool
}

type Input struct {
	Lines        []Line
	ShippingCost decimal.Decimal
	Coupon       *CouponEffect
}

type Totals struct {
	Subtotal       decimal.Decimal
	ShippingAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
}

// Subtotal sums every line total.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Total())
	}
	return sum.Round(2)
}

// Compute returns subtotal, shipping, discount and total. The total never
// drops below zero. Tax is carried as zero.
func Compute(in Input) Totals {
	subtotal := Subtotal(in.Lines)
	shipping := in.ShippingCost.Round(2)
	discount := decimal.Zero

	if in.Coupon != nil {
		if in.Coupon.FreeShipping {
			shipping = decimal.Zero
		}
		discount = in.Coupon.Discount.Round(2)
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	total := subtotal.Add(shipping).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Totals{
		Subtotal:       subtotal,
		ShippingAmount: shipping,
		TaxAmount:      decimal.Zero,
		DiscountAmount: discount,
		Total:          total.Round(2),
	}
}
