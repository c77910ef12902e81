package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// GatewayTimeout bounds every outbound gateway HTTP call.
const GatewayTimeout = 30 * time.Second

// IntentRequest asks a gateway to prepare a payment for an order.
type IntentRequest struct {
	OrderID        uuid.UUID
	OrderNumber    string
	Amount         decimal.Decimal
	Currency       string
	IdempotencyKey string
	Metadata       map[string]string
}

// RefundRequest reverses all of a payment when Amount is nil. TransactionID
// is the capture reference for gateways that refund captures rather than
// orders.
type RefundRequest struct {
	PaymentID      string
	TransactionID  string
	Amount         *decimal.Decimal
	Currency       string
	IdempotencyKey string
}

// Result is the normalized outcome of an intent, confirmation or status call.
type Result struct {
	Success       bool                  `json:"success"`
	PaymentID     string                `json:"payment_id,omitempty"`
	TransactionID string                `json:"transaction_id,omitempty"`
	Status        enums.PaymentStatus   `json:"status"`
	Amount        decimal.Decimal       `json:"amount"`
	Currency      string                `json:"currency,omitempty"`
	ClientSecret  string                `json:"client_secret,omitempty"`
	RedirectURL   string                `json:"redirect_url,omitempty"`
	Gateway       types.GatewayResponse `json:"-"`
	ErrorMessage  string                `json:"error_message,omitempty"`
}

// RefundResult is the normalized outcome of a refund call.
type RefundResult struct {
	Success      bool                  `json:"success"`
	RefundID     string                `json:"refund_id,omitempty"`
	Amount       decimal.Decimal       `json:"amount"`
	Status       enums.PaymentStatus   `json:"status"`
	Gateway      types.GatewayResponse `json:"-"`
	ErrorMessage string                `json:"error_message,omitempty"`
}

// Gateway is the capability every external payment adapter offers.
type Gateway interface {
	Method() enums.PaymentMethod
	CreateIntent(ctx context.Context, req IntentRequest) (Result, error)
	Confirm(ctx context.Context, paymentID, methodID string) (Result, error)
	Refund(ctx context.Context, req RefundRequest) (RefundResult, error)
	Status(ctx context.Context, paymentID string) (Result, error)
}

// Registry maps payment methods to their adapters. It is built once at
// startup and read-only afterwards. Cash on delivery never has an adapter.
type Registry struct {
	gateways map[enums.PaymentMethod]Gateway
}

// NewRegistry indexes the adapters by method.
func NewRegistry(gateways ...Gateway) (*Registry, error) {
	out := make(map[enums.PaymentMethod]Gateway, len(gateways))
	for _, gw := range gateways {
		if gw == nil {
			continue
		}
		method := gw.Method()
		if !method.IsValid() {
			return nil, fmt.Errorf("gateway for unknown payment method %q", method)
		}
		if method == enums.PaymentMethodCashOnDelivery {
			return nil, fmt.Errorf("cash on delivery is settled without a gateway")
		}
		if _, dup := out[method]; dup {
			return nil, fmt.Errorf("duplicate gateway for %s", method)
		}
		out[method] = gw
	}
	return &Registry{gateways: out}, nil
}

// Get returns the adapter registered for method.
func (r *Registry) Get(method enums.PaymentMethod) (Gateway, bool) {
	if r == nil {
		return nil, false
	}
	gw, ok := r.gateways[method]
	return gw, ok
}

// Methods lists every usable method in display order. Cash on delivery is
// always available.
func (r *Registry) Methods() []enums.PaymentMethod {
	out := make([]enums.PaymentMethod, 0, len(enums.AllPaymentMethods()))
	for _, method := range enums.AllPaymentMethods() {
		if method == enums.PaymentMethodCashOnDelivery {
			out = append(out, method)
			continue
		}
		if _, ok := r.Get(method); ok {
			out = append(out, method)
		}
	}
	return out
}
