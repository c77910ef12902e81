package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/storefront-backend/pkg/db/types"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Coupon codes are stored uppercase. UsedCount only moves through the
// conditional increment inside the order transaction.
type Coupon struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Code               string              `gorm:"column:code;not null;uniqueIndex"`
	Name               string              `gorm:"column:name;not null"`
	Description        *string             `gorm:"column:description"`
	Type               enums.CouponType    `gorm:"column:type;not null"`
	Value              decimal.Decimal     `gorm:"column:value;type:numeric(12,2);not null"`
	MaxDiscountAmount  decimal.NullDecimal `gorm:"column:max_discount_amount;type:numeric(12,2)"`
	MinOrderAmount     decimal.NullDecimal `gorm:"column:min_order_amount;type:numeric(12,2)"`
	UsageLimit         *int                `gorm:"column:usage_limit"`
	UsedCount          int                 `gorm:"column:used_count;not null;default:0"`
	StartDate          *time.Time          `gorm:"column:start_date"`
	EndDate            *time.Time          `gorm:"column:end_date"`
	AllowedCurrencies  pq.StringArray      `gorm:"column:allowed_currencies;type:text[]"`
	AllowedUserIDs     dbtypes.UUIDArray   `gorm:"column:allowed_user_ids;type:uuid[]"`
	ExcludedProductIDs dbtypes.UUIDArray   `gorm:"column:excluded_product_ids;type:uuid[]"`
	IsActive           bool                `gorm:"column:is_active;not null"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}
