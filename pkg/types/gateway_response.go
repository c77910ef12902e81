package types

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// GatewayKind tags which payload a GatewayResponse carries.
type GatewayKind string

const (
	GatewayKindStripe         GatewayKind = "stripe"
	GatewayKindRazorpay       GatewayKind = "razorpay"
	GatewayKindPayPal         GatewayKind = "paypal"
	GatewayKindCrypto         GatewayKind = "crypto"
	GatewayKindCashOnDelivery GatewayKind = "cod"
)

type StripeResponse struct {
	IntentID     string `json:"intent_id"`
	Status       string `json:"status"`
	AmountMinor  int64  `json:"amount_minor"`
	Currency     string `json:"currency"`
	LatestCharge string `json:"latest_charge,omitempty"`
	RefundID     string `json:"refund_id,omitempty"`
}

type RazorpayResponse struct {
	OrderID     string `json:"order_id"`
	PaymentID   string `json:"payment_id,omitempty"`
	Status      string `json:"status"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	RefundID    string `json:"refund_id,omitempty"`
}

type PayPalResponse struct {
	OrderID     string `json:"order_id"`
	CaptureID   string `json:"capture_id,omitempty"`
	Status      string `json:"status"`
	ApprovalURL string `json:"approval_url,omitempty"`
	RefundID    string `json:"refund_id,omitempty"`
}

type CryptoResponse struct {
	InvoiceID string    `json:"invoice_id"`
	Address   string    `json:"address"`
	Network   string    `json:"network"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CashOnDeliveryResponse struct {
	Reference         string `json:"reference"`
	CollectOnDelivery bool   `json:"collect_on_delivery"`
}

// GatewayResponse is the raw gateway payload persisted with each payment
// row. Exactly one pointer matching Kind is set.
type GatewayResponse struct {
	Kind           GatewayKind
	Stripe         *StripeResponse
	Razorpay       *RazorpayResponse
	PayPal         *PayPalResponse
	Crypto         *CryptoResponse
	CashOnDelivery *CashOnDeliveryResponse
}

func NewStripeResponse(r StripeResponse) GatewayResponse {
	return GatewayResponse{Kind: GatewayKindStripe, Stripe: &r}
}

func NewRazorpayResponse(r RazorpayResponse) GatewayResponse {
	return GatewayResponse{Kind: GatewayKindRazorpay, Razorpay: &r}
}

func NewPayPalResponse(r PayPalResponse) GatewayResponse {
	return GatewayResponse{Kind: GatewayKindPayPal, PayPal: &r}
}

func NewCryptoResponse(r CryptoResponse) GatewayResponse {
	return GatewayResponse{Kind: GatewayKindCrypto, Crypto: &r}
}

func NewCashOnDeliveryResponse(r CashOnDeliveryResponse) GatewayResponse {
	return GatewayResponse{Kind: GatewayKindCashOnDelivery, CashOnDelivery: &r}
}

// IsZero reports whether no payload is attached.
func (g GatewayResponse) IsZero() bool {
	return g.Kind == ""
}

func (g GatewayResponse) payload() (any, error) {
	switch g.Kind {
	case GatewayKindStripe:
		if g.Stripe != nil {
			return g.Stripe, nil
		}
	case GatewayKindRazorpay:
		if g.Razorpay != nil {
			return g.Razorpay, nil
		}
	case GatewayKindPayPal:
		if g.PayPal != nil {
			return g.PayPal, nil
		}
	case GatewayKindCrypto:
		if g.Crypto != nil {
			return g.Crypto, nil
		}
	case GatewayKindCashOnDelivery:
		if g.CashOnDelivery != nil {
			return g.CashOnDelivery, nil
		}
	default:
		return nil, fmt.Errorf("gateway response: unknown kind %q", g.Kind)
	}
	return nil, fmt.Errorf("gateway response: %s payload missing", g.Kind)
}

type gatewayEnvelope struct {
	Kind GatewayKind     `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalJSON encodes the response as {"kind": ..., "data": {...}}.
func (g GatewayResponse) MarshalJSON() ([]byte, error) {
	if g.IsZero() {
		return []byte("null"), nil
	}
	payload, err := g.payload()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(gatewayEnvelope{Kind: g.Kind, Data: data})
}

// UnmarshalJSON decodes the envelope and rejects unknown kinds or payload
// fields that do not belong to the tagged gateway.
func (g *GatewayResponse) UnmarshalJSON(raw []byte) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*g = GatewayResponse{}
		return nil
	}

	var env gatewayEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return fmt.Errorf("gateway response: %w", err)
	}

	out := GatewayResponse{Kind: GatewayKind(strings.ToLower(string(env.Kind)))}
	var target any
	switch out.Kind {
	case GatewayKindStripe:
		out.Stripe = &StripeResponse{}
		target = out.Stripe
	case GatewayKindRazorpay:
		out.Razorpay = &RazorpayResponse{}
		target = out.Razorpay
	case GatewayKindPayPal:
		out.PayPal = &PayPalResponse{}
		target = out.PayPal
	case GatewayKindCrypto:
		out.Crypto = &CryptoResponse{}
		target = out.Crypto
	case GatewayKindCashOnDelivery:
		out.CashOnDelivery = &CashOnDeliveryResponse{}
		target = out.CashOnDelivery
	default:
		return fmt.Errorf("gateway response: unknown kind %q", env.Kind)
	}

	if len(env.Data) > 0 {
		dec := json.NewDecoder(bytes.NewReader(env.Data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(target); err != nil {
			return fmt.Errorf("gateway response: decode %s: %w", out.Kind, err)
		}
	}

	*g = out
	return nil
}

// Value stores the response as JSON text; a zero response stores NULL.
func (g GatewayResponse) Value() (driver.Value, error) {
	if g.IsZero() {
		return nil, nil
	}
	b, err := g.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan decodes a jsonb column.
func (g *GatewayResponse) Scan(value interface{}) error {
	if value == nil {
		*g = GatewayResponse{}
		return nil
	}
	raw, ok := toString(value)
	if !ok {
		return fmt.Errorf("gateway response: unsupported scan type %T", value)
	}
	return g.UnmarshalJSON([]byte(raw))
}
