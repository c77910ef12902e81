package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Cart belongs to exactly one of a user or an anonymous session token.
// TotalItems and TotalAmount are derived from Items and rewritten on every
// mutation.
type Cart struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	UserID         *uuid.UUID      `gorm:"column:user_id;type:uuid;uniqueIndex"`
	SessionID      *string         `gorm:"column:session_id;uniqueIndex"`
	Currency       string          `gorm:"column:currency;not null;default:'USD'"`
	TotalItems     int             `gorm:"column:total_items;not null;default:0"`
	TotalAmount    decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null;default:0"`
	LastActivityAt time.Time       `gorm:"column:last_activity_at;not null"`
	Items          []CartItem      `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	if c.LastActivityAt.IsZero() {
		c.LastActivityAt = time.Now().UTC()
	}
	return nil
}

// IsGuest reports whether the cart is keyed by a session token.
func (c Cart) IsGuest() bool {
	return c.UserID == nil
}
