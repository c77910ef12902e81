package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v78"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgstripe "github.com/angelmondragon/storefront-backend/pkg/stripe"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type stripeIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Confirm(id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeRefundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

// StripeGateway drives Stripe payment intents and refunds.
type StripeGateway struct {
	intents stripeIntentAPI
	refunds stripeRefundAPI
	calls   callLog
}

// NewStripeGateway builds the adapter on an initialized Stripe client.
func NewStripeGateway(client *pkgstripe.Client, logg *logger.Logger) (*StripeGateway, error) {
	if client == nil || client.API() == nil {
		return nil, errors.New("stripe client required")
	}
	api := client.API()
	return newStripeGateway(api.PaymentIntents, api.Refunds, logg)
}

func newStripeGateway(intents stripeIntentAPI, refunds stripeRefundAPI, logg *logger.Logger) (*StripeGateway, error) {
	if intents == nil || refunds == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}
	return &StripeGateway{
		intents: intents,
		refunds: refunds,
		calls:   callLog{gateway: "stripe", logger: logg},
	}, nil
}

func (g *StripeGateway) Method() enums.PaymentMethod { return enums.PaymentMethodStripe }

func (g *StripeGateway) CreateIntent(ctx context.Context, req IntentRequest) (Result, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(toMinor(req.Amount, req.Currency)),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	params.AddMetadata("order_id", req.OrderID.String())
	params.AddMetadata("order_number", req.OrderNumber)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	g.calls.log(ctx, "request", "create_intent", map[string]any{
		"order_id":     req.OrderID.String(),
		"amount_minor": *params.Amount,
		"currency":     req.Currency,
	})
	intent, err := g.intents.New(params)
	if err != nil {
		g.calls.log(ctx, "error", "create_intent", map[string]any{"error": err.Error()})
		return Result{}, stripeError(err, "create payment intent")
	}
	g.calls.log(ctx, "response", "create_intent", map[string]any{"intent_id": intent.ID, "status": intent.Status})
	return stripeResult(intent), nil
}

func (g *StripeGateway) Confirm(ctx context.Context, paymentID, methodID string) (Result, error) {
	params := &stripe.PaymentIntentConfirmParams{}
	params.Context = ctx
	if methodID = strings.TrimSpace(methodID); methodID != "" {
		params.PaymentMethod = stripe.String(methodID)
	}

	g.calls.log(ctx, "request", "confirm_intent", map[string]any{"intent_id": paymentID})
	intent, err := g.intents.Confirm(paymentID, params)
	if err != nil {
		g.calls.log(ctx, "error", "confirm_intent", map[string]any{"error": err.Error()})
		return Result{}, stripeError(err, "confirm payment intent")
	}
	g.calls.log(ctx, "response", "confirm_intent", map[string]any{"intent_id": intent.ID, "status": intent.Status})
	return stripeResult(intent), nil
}

func (g *StripeGateway) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(req.PaymentID)}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if req.Amount != nil {
		params.Amount = stripe.Int64(toMinor(*req.Amount, req.Currency))
	}

	g.calls.log(ctx, "request", "refund", map[string]any{"intent_id": req.PaymentID})
	refund, err := g.refunds.New(params)
	if err != nil {
		g.calls.log(ctx, "error", "refund", map[string]any{"error": err.Error()})
		return RefundResult{}, stripeError(err, "refund payment intent")
	}
	g.calls.log(ctx, "response", "refund", map[string]any{"refund_id": refund.ID, "status": refund.Status})

	currency := strings.ToUpper(string(refund.Currency))
	if currency == "" {
		currency = normalizeCurrency(req.Currency)
	}
	status := stripeRefundStatus(refund.Status)
	return RefundResult{
		Success:  status != enums.PaymentStatusFailed,
		RefundID: refund.ID,
		Amount:   fromMinor(refund.Amount, currency),
		Status:   status,
		Gateway: types.NewStripeResponse(types.StripeResponse{
			IntentID:    req.PaymentID,
			Status:      string(refund.Status),
			AmountMinor: refund.Amount,
			Currency:    currency,
			RefundID:    refund.ID,
		}),
	}, nil
}

func (g *StripeGateway) Status(ctx context.Context, paymentID string) (Result, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := g.intents.Get(paymentID, params)
	if err != nil {
		return Result{}, stripeError(err, "lookup payment intent")
	}
	return stripeResult(intent), nil
}

func stripeResult(intent *stripe.PaymentIntent) Result {
	if intent == nil {
		return Result{Status: enums.PaymentStatusFailed, ErrorMessage: "empty payment intent"}
	}
	currency := strings.ToUpper(string(intent.Currency))
	var charge string
	if intent.LatestCharge != nil {
		charge = intent.LatestCharge.ID
	}
	status := stripeIntentStatus(intent.Status)
	res := Result{
		Success:       status != enums.PaymentStatusFailed && status != enums.PaymentStatusCancelled,
		PaymentID:     intent.ID,
		TransactionID: charge,
		Status:        status,
		Amount:        fromMinor(intent.Amount, currency),
		Currency:      currency,
		ClientSecret:  intent.ClientSecret,
		Gateway: types.NewStripeResponse(types.StripeResponse{
			IntentID:     intent.ID,
			Status:       string(intent.Status),
			AmountMinor:  intent.Amount,
			Currency:     currency,
			LatestCharge: charge,
		}),
	}
	if !res.Success {
		res.ErrorMessage = "payment intent " + string(intent.Status)
		if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
			res.ErrorMessage = intent.LastPaymentError.Msg
		}
	}
	return res
}

func stripeIntentStatus(status stripe.PaymentIntentStatus) enums.PaymentStatus {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return enums.PaymentStatusCompleted
	case stripe.PaymentIntentStatusCanceled:
		return enums.PaymentStatusCancelled
	default:
		return enums.PaymentStatusPending
	}
}

func stripeRefundStatus(status stripe.RefundStatus) enums.PaymentStatus {
	switch status {
	case stripe.RefundStatusSucceeded:
		return enums.PaymentStatusCompleted
	case stripe.RefundStatusFailed, stripe.RefundStatusCanceled:
		return enums.PaymentStatusFailed
	default:
		return enums.PaymentStatusPending
	}
}

func stripeError(err error, op string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return mapUpstreamError("stripe", op, stripeErr.HTTPStatusCode, err)
	}
	return mapUpstreamError("stripe", op, 0, err)
}

var _ Gateway = (*StripeGateway)(nil)
