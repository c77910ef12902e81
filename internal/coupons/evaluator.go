package coupons

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	msgInvalidCode      = "Invalid coupon code"
	msgNotYetActive     = "Coupon is not yet active"
	msgExpired          = "Coupon has expired"
	msgUsageExceeded    = "Coupon usage limit exceeded"
	msgWrongCurrency    = "Coupon not valid for this currency"
	msgWrongUser        = "Coupon not valid for this user"
	msgExcludedProducts = "Coupon not valid for these products"
)

var hundred = decimal.NewFromInt(100)

// EvaluateInput is everything the evaluator needs to price a coupon.
type EvaluateInput struct {
	Code       string
	UserID     *uuid.UUID
	OrderTotal decimal.Decimal
	Currency   string
	ProductIDs []uuid.UUID
}

// Evaluation is a successful coupon check.
type Evaluation struct {
	CouponID     uuid.UUID
	Code         string
	Type         enums.CouponType
	Discount     decimal.Decimal
	FreeShipping bool
}

// Evaluator validates coupons without mutating them.
type Evaluator struct {
	repo *Repository
	now  func() time.Time
}

// NewEvaluator builds an evaluator; now defaults to time.Now.
func NewEvaluator(repo *Repository, now func() time.Time) (*Evaluator, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if now == nil {
		now = time.Now
	}
	return &Evaluator{repo: repo, now: now}, nil
}

// Evaluate runs the checks in order and stops at the first failure. It
// never writes; usage is counted by IncrementUsage once an order exists.
func (e *Evaluator) Evaluate(ctx context.Context, input EvaluateInput) (*Evaluation, error) {
	code := NormalizeCode(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}

	coupon, err := e.repo.FindActiveByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgInvalidCode)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load coupon")
	}

	if err := Check(coupon, input, e.now()); err != nil {
		return nil, err
	}

	discount, freeShipping := ComputeDiscount(coupon, input.OrderTotal)
	return &Evaluation{
		CouponID:     coupon.ID,
		Code:         coupon.Code,
		Type:         coupon.Type,
		Discount:     discount,
		FreeShipping: freeShipping,
	}, nil
}

// Check applies the eligibility rules to an already loaded coupon.
func Check(coupon *models.Coupon, input EvaluateInput, now time.Time) error {
	if coupon.StartDate != nil && now.Before(*coupon.StartDate) {
		return rejected(msgNotYetActive)
	}
	if coupon.EndDate != nil && now.After(*coupon.EndDate) {
		return rejected(msgExpired)
	}
	if coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit {
		return rejected(msgUsageExceeded)
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = string(enums.CurrencyUSD)
	}
	if coupon.MinOrderAmount.Valid && input.OrderTotal.LessThan(coupon.MinOrderAmount.Decimal) {
		return rejected(fmt.Sprintf("Minimum order amount of %s %s required", currency, coupon.MinOrderAmount.Decimal.StringFixed(2)))
	}
	if len(coupon.AllowedCurrencies) > 0 && !containsFold(coupon.AllowedCurrencies, currency) {
		return rejected(msgWrongCurrency)
	}
	if len(coupon.AllowedUserIDs) > 0 {
		if input.UserID == nil || !coupon.AllowedUserIDs.Contains(*input.UserID) {
			return rejected(msgWrongUser)
		}
	}
	if len(coupon.ExcludedProductIDs) > 0 && len(input.ProductIDs) > 0 {
		eligible := false
		for _, id := range input.ProductIDs {
			if !coupon.ExcludedProductIDs.Contains(id) {
				eligible = true
				break
			}
		}
		if !eligible {
			return rejected(msgExcludedProducts)
		}
	}
	return nil
}

// ComputeDiscount prices the coupon against orderTotal. The result never
// exceeds orderTotal.
func ComputeDiscount(coupon *models.Coupon, orderTotal decimal.Decimal) (decimal.Decimal, bool) {
	discount := decimal.Zero
	freeShipping := false

	switch coupon.Type {
	case enums.CouponTypePercentage:
		discount = orderTotal.Mul(coupon.Value).Div(hundred).Round(2)
		if coupon.MaxDiscountAmount.Valid && discount.GreaterThan(coupon.MaxDiscountAmount.Decimal) {
			discount = coupon.MaxDiscountAmount.Decimal
		}
	case enums.CouponTypeFixedAmount:
		discount = coupon.Value
	case enums.CouponTypeFreeShipping:
		freeShipping = true
	}

	if discount.GreaterThan(orderTotal) {
		discount = orderTotal
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return discount.Round(2), freeShipping
}

// IncrementUsage counts one redemption inside the order transaction.
func (e *Evaluator) IncrementUsage(ctx context.Context, tx *gorm.DB, couponID uuid.UUID) error {
	ok, err := e.repo.WithTx(tx).IncrementUsage(ctx, couponID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "increment coupon usage")
	}
	if !ok {
		return rejected(msgUsageExceeded)
	}
	return nil
}

func rejected(msg string) error {
	return pkgerrors.New(pkgerrors.CodeBusinessRule, msg)
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return true
		}
	}
	return false
}
