package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ShippingMethod struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Name             string              `gorm:"column:name;not null"`
	Description      *string             `gorm:"column:description"`
	Price            decimal.Decimal     `gorm:"column:price;type:numeric(12,2);not null"`
	EstimatedDaysMin *int                `gorm:"column:estimated_days_min"`
	EstimatedDaysMax *int                `gorm:"column:estimated_days_max"`
	MinOrderAmount   decimal.NullDecimal `gorm:"column:min_order_amount;type:numeric(12,2)"`
	MaxOrderAmount   decimal.NullDecimal `gorm:"column:max_order_amount;type:numeric(12,2)"`
	Countries        pq.StringArray      `gorm:"column:countries;type:text[]"`
	SortOrder        int                 `gorm:"column:sort_order;not null;default:0"`
	IsActive         bool                `gorm:"column:is_active;not null"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *ShippingMethod) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}
