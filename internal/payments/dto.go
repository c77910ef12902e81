package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// IntentInput starts a payment for an order.
type IntentInput struct {
	OrderID uuid.UUID           `json:"order_id" validate:"required"`
	Method  enums.PaymentMethod `json:"payment_method" validate:"required"`
}

// ProcessInput confirms a payment. PaymentID is the gateway reference the
// intent returned (Stripe intent, Razorpay order, PayPal order, crypto
// invoice); MethodID is what the gateway needs to settle it (Stripe payment
// method, Razorpay payment id, crypto transaction hash).
type ProcessInput struct {
	OrderID   uuid.UUID           `json:"order_id" validate:"required"`
	Method    enums.PaymentMethod `json:"payment_method" validate:"required"`
	PaymentID string              `json:"payment_id,omitempty" validate:"omitempty,max=255"`
	MethodID  string              `json:"payment_method_id,omitempty" validate:"omitempty,max=255"`
}

// RefundInput reverses a completed payment. A nil Amount refunds whatever
// is still refundable.
type RefundInput struct {
	OrderID        uuid.UUID        `json:"order_id" validate:"required"`
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	Reason         string           `json:"reason,omitempty" validate:"omitempty,max=500"`
	IdempotencyKey string           `json:"-"`
}

// MethodDTO describes a payment method offered for a currency.
type MethodDTO struct {
	Method     enums.PaymentMethod `json:"method"`
	Currencies []string            `json:"currencies"`
}

// PaymentDTO is a ledger row as returned to callers.
type PaymentDTO struct {
	ID                uuid.UUID             `json:"id"`
	OrderID           uuid.UUID             `json:"order_id"`
	Method            enums.PaymentMethod   `json:"method"`
	Type              enums.PaymentType     `json:"type"`
	Status            enums.PaymentStatus   `json:"status"`
	Amount            decimal.Decimal       `json:"amount"`
	Currency          string                `json:"currency"`
	GatewayPaymentID  *string               `json:"gateway_payment_id,omitempty"`
	TransactionID     *string               `json:"transaction_id,omitempty"`
	GatewayResponse   types.GatewayResponse `json:"gateway_response"`
	FailureReason     *string               `json:"failure_reason,omitempty"`
	OriginalPaymentID *uuid.UUID            `json:"original_payment_id,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
}

func NewPaymentDTO(p *models.Payment) PaymentDTO {
	return PaymentDTO{
		ID:                p.ID,
		OrderID:           p.OrderID,
		Method:            p.Method,
		Type:              p.Type,
		Status:            p.Status,
		Amount:            p.Amount,
		Currency:          p.Currency,
		GatewayPaymentID:  p.GatewayPaymentID,
		TransactionID:     p.TransactionID,
		GatewayResponse:   p.GatewayResponse,
		FailureReason:     p.FailureReason,
		OriginalPaymentID: p.OriginalPaymentID,
		CreatedAt:         p.CreatedAt,
	}
}

// StatusDTO pairs the ledger row with the gateway's live view when the row
// is still pending.
type StatusDTO struct {
	Payment PaymentDTO `json:"payment"`
	Live    *Result    `json:"live,omitempty"`
}

// RefundDTO is the outcome of a refund request.
type RefundDTO struct {
	Success      bool                `json:"success"`
	Refund       PaymentDTO          `json:"refund"`
	OrderStatus  enums.PaymentStatus `json:"order_payment_status"`
	Refundable   decimal.Decimal     `json:"refundable"`
	ErrorMessage string              `json:"error_message,omitempty"`
}
