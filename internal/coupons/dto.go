package coupons

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

type CouponDTO struct {
	ID                 uuid.UUID        `json:"id"`
	Code               string           `json:"code"`
	Name               string           `json:"name"`
	Description        *string          `json:"description,omitempty"`
	Type               enums.CouponType `json:"type"`
	Value              decimal.Decimal  `json:"value"`
	MaxDiscountAmount  *decimal.Decimal `json:"max_discount_amount,omitempty"`
	MinOrderAmount     *decimal.Decimal `json:"min_order_amount,omitempty"`
	UsageLimit         *int             `json:"usage_limit,omitempty"`
	UsedCount          int              `json:"used_count"`
	StartDate          *time.Time       `json:"start_date,omitempty"`
	EndDate            *time.Time       `json:"end_date,omitempty"`
	AllowedCurrencies  []string         `json:"allowed_currencies,omitempty"`
	AllowedUserIDs     []uuid.UUID      `json:"allowed_user_ids,omitempty"`
	ExcludedProductIDs []uuid.UUID      `json:"excluded_product_ids,omitempty"`
	IsActive           bool             `json:"is_active"`
	CreatedAt          time.Time        `json:"created_at"`
}

// PublicCouponDTO hides usage and targeting data from shoppers.
type PublicCouponDTO struct {
	Code           string           `json:"code"`
	Name           string           `json:"name"`
	Description    *string          `json:"description,omitempty"`
	Type           enums.CouponType `json:"type"`
	Value          decimal.Decimal  `json:"value"`
	MinOrderAmount *decimal.Decimal `json:"min_order_amount,omitempty"`
	EndDate        *time.Time       `json:"end_date,omitempty"`
}

type CouponListResult struct {
	Coupons    []CouponDTO `json:"coupons"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// ApplyResult is the shopper-facing answer to "does this code work".
type ApplyResult struct {
	Valid        bool             `json:"valid"`
	Discount     decimal.Decimal  `json:"discount"`
	FreeShipping bool             `json:"free_shipping"`
	Message      string           `json:"message,omitempty"`
	Coupon       *PublicCouponDTO `json:"coupon,omitempty"`
}

func nullPtr(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := v.Decimal
	return &d
}

func NewCouponDTO(c *models.Coupon) CouponDTO {
	return CouponDTO{
		ID:                 c.ID,
		Code:               c.Code,
		Name:               c.Name,
		Description:        c.Description,
		Type:               c.Type,
		Value:              c.Value,
		MaxDiscountAmount:  nullPtr(c.MaxDiscountAmount),
		MinOrderAmount:     nullPtr(c.MinOrderAmount),
		UsageLimit:         c.UsageLimit,
		UsedCount:          c.UsedCount,
		StartDate:          c.StartDate,
		EndDate:            c.EndDate,
		AllowedCurrencies:  c.AllowedCurrencies,
		AllowedUserIDs:     c.AllowedUserIDs,
		ExcludedProductIDs: c.ExcludedProductIDs,
		IsActive:           c.IsActive,
		CreatedAt:          c.CreatedAt,
	}
}

func NewPublicCouponDTO(c *models.Coupon) PublicCouponDTO {
	return PublicCouponDTO{
		Code:           c.Code,
		Name:           c.Name,
		Description:    c.Description,
		Type:           c.Type,
		Value:          c.Value,
		MinOrderAmount: nullPtr(c.MinOrderAmount),
		EndDate:        c.EndDate,
	}
}
