package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Payment is an append-only ledger row. Refunds are new rows pointing at
// the original payment.
type Payment struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	UserID            uuid.UUID             `gorm:"column:user_id;type:uuid;not null"`
	Method            enums.PaymentMethod   `gorm:"column:method;not null"`
	Type              enums.PaymentType     `gorm:"column:type;not null;default:'payment'"`
	Status            enums.PaymentStatus   `gorm:"column:status;not null"`
	Amount            decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency          string                `gorm:"column:currency;not null"`
	GatewayPaymentID  *string               `gorm:"column:gateway_payment_id;index"`
	TransactionID     *string               `gorm:"column:transaction_id"`
	GatewayResponse   types.GatewayResponse `gorm:"column:gateway_response;type:jsonb"`
	FailureReason     *string               `gorm:"column:failure_reason"`
	OriginalPaymentID *uuid.UUID            `gorm:"column:original_payment_id;type:uuid"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
