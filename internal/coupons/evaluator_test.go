package coupons

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/storefront-backend/pkg/db/types"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

var fixedNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestEvaluator(t *testing.T) (*Evaluator, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	ev, err := NewEvaluator(NewRepository(conn), func() time.Time { return fixedNow })
	require.NoError(t, err)
	return ev, conn
}

func seedCoupon(t *testing.T, conn *gorm.DB, c models.Coupon) *models.Coupon {
	t.Helper()
	if c.Name == "" {
		c.Name = c.Code
	}
	c.IsActive = true
	require.NoError(t, conn.Create(&c).Error)
	return &c
}

func TestEvaluatePercentage(t *testing.T) {
	t.Parallel()
	ev, conn := newTestEvaluator(t)
	seedCoupon(t, conn, models.Coupon{Code: "SAVE10", Type: enums.CouponTypePercentage, Value: dec("10")})

	got, err := ev.Evaluate(context.Background(), EvaluateInput{Code: "save10", OrderTotal: dec("200"), Currency: "USD"})
	require.NoError(t, err)
	require.True(t, got.Discount.Equal(dec("20")), got.Discount.String())
	require.False(t, got.FreeShipping)
	require.Equal(t, "SAVE10", got.Code)
}

func TestEvaluatePercentageClampedByMax(t *testing.T) {
	t.Parallel()
	ev, conn := newTestEvaluator(t)
	seedCoupon(t, conn, models.Coupon{
		Code: "BIG50", Type: enums.CouponTypePercentage, Value: dec("50"),
		MaxDiscountAmount: decimal.NewNullDecimal(dec("25")),
	})

	got, err := ev.Evaluate(context.Background(), EvaluateInput{Code: "BIG50", OrderTotal: dec("200")})
	require.NoError(t, err)
	require.True(t, got.Discount.Equal(dec("25")))
}

func TestEvaluateFixedClampedToTotal(t *testing.T) {
	t.Parallel()
	ev, conn := newTestEvaluator(t)
	seedCoupon(t, conn, models.Coupon{Code: "FLAT30", Type: enums.CouponTypeFixedAmount, Value: dec("30")})

	got, err := ev.Evaluate(context.Background(), EvaluateInput{Code: "FLAT30", OrderTotal: dec("12.50")})
	require.NoError(t, err)
	require.True(t, got.Discount.Equal(dec("12.50")))
}

func TestEvaluateFreeShipping(t *testing.T) {
	t.Parallel()
	ev, conn := newTestEvaluator(t)
	seedCoupon(t, conn, models.Coupon{Code: "SHIPFREE", Type: enums.CouponTypeFreeShipping})

	got, err := ev.Evaluate(context.Background(), EvaluateInput{Code: "SHIPFREE", OrderTotal: dec("10")})
	require.NoError(t, err)
	require.True(t, got.FreeShipping)
	require.True(t, got.Discount.IsZero())
}

func TestEvaluateRejections(t *testing.T) {
	t.Parallel()
	ev, conn := newTestEvaluator(t)
	future := fixedNow.Add(24 * time.Hour)
	past := fixedNow.Add(-24 * time.Hour)
	limit := 1
	allowed := uuid.New()

	seedCoupon(t, conn, models.Coupon{Code: "SOON", Type: enums.CouponTypeFixedAmount, Value: dec("1"), StartDate: &future})
	seedCoupon(t, conn, models.Coupon{Code: "OLD", Type: enums.CouponTypeFixedAmount, Value: dec("1"), EndDate: &past})
	seedCoupon(t, conn, models.Coupon{Code: "USED", Type: enums.CouponTypeFixedAmount, Value: dec("1"), UsageLimit: &limit, UsedCount: 1})
	seedCoupon(t, conn, models.Coupon{Code: "MIN50", Type: enums.CouponTypeFixedAmount, Value: dec("1"), MinOrderAmount: decimal.NewNullDecimal(dec("50"))})
	seedCoupon(t, conn, models.Coupon{Code: "EURO", Type: enums.CouponTypeFixedAmount, Value: dec("1"), AllowedCurrencies: pq.StringArray{"EUR"}})
	seedCoupon(t, conn, models.Coupon{Code: "VIP", Type: enums.CouponTypeFixedAmount, Value: dec("1"), AllowedUserIDs: dbtypes.UUIDArray{allowed}})

	stranger := uuid.New()
	cases := []struct {
		code string
		user *uuid.UUID
		want pkgerrors.Code
		msg  string
	}{
		{"NOPE", nil, pkgerrors.CodeNotFound, "Invalid coupon code"},
		{"SOON", nil, pkgerrors.CodeBusinessRule, "Coupon is not yet active"},
		{"OLD", nil, pkgerrors.CodeBusinessRule, "Coupon has expired"},
		{"USED", nil, pkgerrors.CodeBusinessRule, "Coupon usage limit exceeded"},
		{"MIN50", nil, pkgerrors.CodeBusinessRule, "Minimum order amount of USD 50.00 required"},
		{"EURO", nil, pkgerrors.CodeBusinessRule, "Coupon not valid for this currency"},
		{"VIP", &stranger, pkgerrors.CodeBusinessRule, "Coupon not valid for this user"},
	}
	for _, tc := range cases {
		_, err := ev.Evaluate(context.Background(), EvaluateInput{Code: tc.code, UserID: tc.user, OrderTotal: dec("40"), Currency: "USD"})
		typed := pkgerrors.As(err)
		require.NotNil(t, typed, tc.code)
		require.Equal(t, tc.want, typed.Code(), tc.code)
		require.Equal(t, tc.msg, typed.Message(), tc.code)
	}
}

func TestEvaluateFirstFailureWins(t *testing.T) {
	t.Parallel()
	ev, conn := newTestEvaluator(t)
	past := fixedNow.Add(-time.Hour)
	limit := 1
	// expired and exhausted and below minimum: the date check runs first
	seedCoupon(t, conn, models.Coupon{
		Code: "MANY", Type: enums.CouponTypeFixedAmount, Value: dec("1"),
		EndDate: &past, UsageLimit: &limit, UsedCount: 5,
		MinOrderAmount: decimal.NewNullDecimal(dec("1000")),
	})

	_, err := ev.Evaluate(context.Background(), EvaluateInput{Code: "MANY", OrderTotal: dec("1")})
	require.Equal(t, "Coupon has expired", pkgerrors.As(err).Message())
}

func TestEvaluateExcludedProducts(t *testing.T) {
	t.Parallel()
	ev, conn := newTestEvaluator(t)
	excluded := uuid.New()
	seedCoupon(t, conn, models.Coupon{Code: "NOGIFT", Type: enums.CouponTypeFixedAmount, Value: dec("5"), ExcludedProductIDs: dbtypes.UUIDArray{excluded}})

	_, err := ev.Evaluate(context.Background(), EvaluateInput{Code: "NOGIFT", OrderTotal: dec("40"), ProductIDs: []uuid.UUID{excluded}})
	require.Equal(t, "Coupon not valid for these products", pkgerrors.As(err).Message())

	got, err := ev.Evaluate(context.Background(), EvaluateInput{Code: "NOGIFT", OrderTotal: dec("40"), ProductIDs: []uuid.UUID{excluded, uuid.New()}})
	require.NoError(t, err)
	require.True(t, got.Discount.Equal(dec("5")))
}

func TestIncrementUsageStopsAtLimit(t *testing.T) {
	t.Parallel()
	ev, conn := newTestEvaluator(t)
	limit := 2
	c := seedCoupon(t, conn, models.Coupon{Code: "TWICE", Type: enums.CouponTypeFixedAmount, Value: dec("1"), UsageLimit: &limit})
	ctx := context.Background()

	for i := 0; i < limit; i++ {
		_, err := ev.Evaluate(ctx, EvaluateInput{Code: "TWICE", OrderTotal: dec("10")})
		require.NoError(t, err)
		require.NoError(t, ev.IncrementUsage(ctx, conn, c.ID))
	}

	_, err := ev.Evaluate(ctx, EvaluateInput{Code: "TWICE", OrderTotal: dec("10")})
	require.Equal(t, "Coupon usage limit exceeded", pkgerrors.As(err).Message())

	err = ev.IncrementUsage(ctx, conn, c.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBusinessRule))

	var reloaded models.Coupon
	require.NoError(t, conn.First(&reloaded, "id = ?", c.ID).Error)
	require.Equal(t, limit, reloaded.UsedCount)
}
