package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderCreatedEvent is queued in the same transaction that writes the order.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	UserID        uuid.UUID           `json:"user_id"`
	ItemCount     int                 `json:"item_count"`
	Total         decimal.Decimal     `json:"total"`
	Currency      string              `json:"currency"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	CouponCode    *string             `json:"coupon_code,omitempty"`
}

// OrderStatusChangedEvent covers admin transitions and cancellations.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	OrderNumber    string            `json:"order_number"`
	UserID         uuid.UUID         `json:"user_id"`
	From           enums.OrderStatus `json:"from"`
	To             enums.OrderStatus `json:"to"`
	Reason         string            `json:"reason,omitempty"`
	TrackingNumber *string           `json:"tracking_number,omitempty"`
	ChangedAt      time.Time         `json:"changed_at"`
}

// PaymentEvent is shared by payment completed, failed, and refunded.
type PaymentEvent struct {
	PaymentID     uuid.UUID           `json:"payment_id"`
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	UserID        uuid.UUID           `json:"user_id"`
	Method        enums.PaymentMethod `json:"method"`
	Status        enums.PaymentStatus `json:"status"`
	Amount        decimal.Decimal     `json:"amount"`
	Currency      string              `json:"currency"`
	TransactionID *string             `json:"transaction_id,omitempty"`
	FailureReason *string             `json:"failure_reason,omitempty"`
}

// GetOrderNumber is exposed as a Pub/Sub message attribute.
func (e OrderCreatedEvent) GetOrderNumber() string { return e.OrderNumber }

func (e OrderStatusChangedEvent) GetOrderNumber() string { return e.OrderNumber }

func (e PaymentEvent) GetOrderNumber() string { return e.OrderNumber }
