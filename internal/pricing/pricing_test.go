package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeWithPercentageCoupon(t *testing.T) {
	t.Parallel()
	got := Compute(Input{
		Lines:        []Line{{Price: dec("20"), Quantity: 2}},
		ShippingCost: dec("5"),
		Coupon:       &CouponEffect{Discount: dec("4")},
	})
	require.True(t, got.Subtotal.Equal(dec("40")))
	require.True(t, got.ShippingAmount.Equal(dec("5")))
	require.True(t, got.DiscountAmount.Equal(dec("4")))
	require.True(t, got.Total.Equal(dec("41")))
	require.True(t, got.TaxAmount.IsZero())
}

func TestComputeUsesSalePrice(t *testing.T) {
	t.Parallel()
	got := Compute(Input{Lines: []Line{
		{Price: dec("10"), SalePrice: decimal.NewNullDecimal(dec("7.5")), Quantity: 3},
		{Price: dec("1.99"), Quantity: 1},
	}})
	require.True(t, got.Subtotal.Equal(dec("24.49")))
	require.True(t, got.Total.Equal(dec("24.49")))
}

func TestComputeFreeShippingZeroesShipping(t *testing.T) {
	t.Parallel()
	got := Compute(Input{
		Lines:        []Line{{Price: dec("12"), Quantity: 1}},
		ShippingCost: dec("9.99"),
		Coupon:       &CouponEffect{FreeShipping: true},
	})
	require.True(t, got.ShippingAmount.IsZero())
	require.True(t, got.Total.Equal(dec("12")))
}

func TestComputeFloorsAtZero(t *testing.T) {
	t.Parallel()
	got := Compute(Input{
		Lines:  []Line{{Price: dec("3"), Quantity: 1}},
		Coupon: &CouponEffect{Discount: dec("10")},
	})
	require.True(t, got.Total.IsZero())
}

func TestDecimalAvoidsFloatDrift(t *testing.T) {
	t.Parallel()
	// 0.1 + 0.2 in binary floating point is 0.30000000000000004
	got := Compute(Input{Lines: []Line{{Price: dec("0.1"), Quantity: 1}, {Price: dec("0.2"), Quantity: 1}}})
	require.Equal(t, "0.3", got.Subtotal.String())
}
