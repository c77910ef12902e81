package payments

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type razorpayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Receipt  string `json:"receipt"`
}

type razorpayPayment struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	ErrorDescription string `json:"error_description"`
}

type razorpayRefund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
}

// RazorpayGateway talks to the Razorpay REST API. Amounts travel in paise.
type RazorpayGateway struct {
	rest  restClient
	calls callLog
}

func NewRazorpayGateway(cfg config.RazorpayConfig, httpClient *http.Client, logg *logger.Logger) (*RazorpayGateway, error) {
	if !cfg.Enabled() {
		return nil, errors.New("razorpay key id and secret are required")
	}
	keyID := strings.TrimSpace(cfg.KeyID)
	secret := strings.TrimSpace(cfg.KeySecret)
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = "https://api.razorpay.com/v1"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: GatewayTimeout}
	}
	return &RazorpayGateway{
		rest: restClient{
			http:    httpClient,
			baseURL: baseURL,
			auth:    func(r *http.Request) { r.SetBasicAuth(keyID, secret) },
		},
		calls: callLog{gateway: "razorpay", logger: logg},
	}, nil
}

func (g *RazorpayGateway) Method() enums.PaymentMethod { return enums.PaymentMethodRazorpay }

func (g *RazorpayGateway) CreateIntent(ctx context.Context, req IntentRequest) (Result, error) {
	notes := map[string]string{"order_id": req.OrderID.String()}
	for k, v := range req.Metadata {
		notes[k] = v
	}
	body := map[string]any{
		"amount":   toMinor(req.Amount, req.Currency),
		"currency": normalizeCurrency(req.Currency),
		"receipt":  req.OrderNumber,
		"notes":    notes,
	}

	g.calls.log(ctx, "request", "create_order", map[string]any{"order_id": req.OrderID.String(), "receipt": req.OrderNumber})
	var order razorpayOrder
	status, err := g.rest.do(ctx, http.MethodPost, "/orders", nil, body, &order)
	if err != nil {
		g.calls.log(ctx, "error", "create_order", map[string]any{"error": err.Error()})
		return Result{}, mapUpstreamError("razorpay", "create order", status, err)
	}
	g.calls.log(ctx, "response", "create_order", map[string]any{"razorpay_order_id": order.ID, "status": order.Status})

	return Result{
		Success:   true,
		PaymentID: order.ID,
		Status:    enums.PaymentStatusPending,
		Amount:    fromMinor(order.Amount, order.Currency),
		Currency:  order.Currency,
		Gateway: types.NewRazorpayResponse(types.RazorpayResponse{
			OrderID:     order.ID,
			Status:      order.Status,
			AmountMinor: order.Amount,
			Currency:    order.Currency,
		}),
	}, nil
}

// Confirm captures an authorized payment. orderID is the Razorpay order the
// intent created and paymentID the payment checkout returned for it.
func (g *RazorpayGateway) Confirm(ctx context.Context, orderID, paymentID string) (Result, error) {
	payment, err := g.fetchPayment(ctx, paymentID)
	if err != nil {
		return Result{}, err
	}
	if payment.OrderID != orderID {
		return Result{}, pkgerrors.Newf(pkgerrors.CodeBusinessRule, "razorpay payment %s does not belong to order %s", payment.ID, orderID)
	}
	if payment.Status == "authorized" {
		g.calls.log(ctx, "request", "capture", map[string]any{"payment_id": payment.ID})
		body := map[string]any{"amount": payment.Amount, "currency": payment.Currency}
		status, err := g.rest.do(ctx, http.MethodPost, "/payments/"+url.PathEscape(payment.ID)+"/capture", nil, body, &payment)
		if err != nil {
			g.calls.log(ctx, "error", "capture", map[string]any{"error": err.Error()})
			return Result{}, mapUpstreamError("razorpay", "capture payment", status, err)
		}
		g.calls.log(ctx, "response", "capture", map[string]any{"payment_id": payment.ID, "status": payment.Status})
	}
	return razorpayResult(payment), nil
}

func (g *RazorpayGateway) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	paymentID := req.TransactionID
	if paymentID == "" {
		paymentID = req.PaymentID
	}
	body := map[string]any{}
	if req.Amount != nil {
		body["amount"] = toMinor(*req.Amount, req.Currency)
	}

	g.calls.log(ctx, "request", "refund", map[string]any{"payment_id": paymentID})
	var refund razorpayRefund
	status, err := g.rest.do(ctx, http.MethodPost, "/payments/"+url.PathEscape(paymentID)+"/refund", nil, body, &refund)
	if err != nil {
		g.calls.log(ctx, "error", "refund", map[string]any{"error": err.Error()})
		return RefundResult{}, mapUpstreamError("razorpay", "refund payment", status, err)
	}
	g.calls.log(ctx, "response", "refund", map[string]any{"refund_id": refund.ID, "status": refund.Status})

	currency := refund.Currency
	if currency == "" {
		currency = normalizeCurrency(req.Currency)
	}
	refundStatus := enums.PaymentStatusPending
	switch refund.Status {
	case "processed":
		refundStatus = enums.PaymentStatusCompleted
	case "failed":
		refundStatus = enums.PaymentStatusFailed
	}
	return RefundResult{
		Success:  refundStatus != enums.PaymentStatusFailed,
		RefundID: refund.ID,
		Amount:   fromMinor(refund.Amount, currency),
		Status:   refundStatus,
		Gateway: types.NewRazorpayResponse(types.RazorpayResponse{
			PaymentID:   paymentID,
			Status:      refund.Status,
			AmountMinor: refund.Amount,
			Currency:    currency,
			RefundID:    refund.ID,
		}),
	}, nil
}

// Status accepts a Razorpay order id (pending intents) or a payment id.
func (g *RazorpayGateway) Status(ctx context.Context, paymentID string) (Result, error) {
	if strings.HasPrefix(paymentID, "order_") {
		return g.orderStatus(ctx, paymentID)
	}
	payment, err := g.fetchPayment(ctx, paymentID)
	if err != nil {
		return Result{}, err
	}
	return razorpayResult(payment), nil
}

// orderStatus reports the newest payment made against a Razorpay order, or
// a pending result while there is none.
func (g *RazorpayGateway) orderStatus(ctx context.Context, orderID string) (Result, error) {
	var page struct {
		Items []razorpayPayment `json:"items"`
	}
	status, err := g.rest.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID)+"/payments", nil, nil, &page)
	if err != nil {
		g.calls.log(ctx, "error", "order_payments", map[string]any{"error": err.Error()})
		return Result{}, mapUpstreamError("razorpay", "fetch order payments", status, err)
	}
	if len(page.Items) == 0 {
		return Result{Success: true, PaymentID: orderID, Status: enums.PaymentStatusPending}, nil
	}
	return razorpayResult(page.Items[0]), nil
}

func (g *RazorpayGateway) fetchPayment(ctx context.Context, paymentID string) (razorpayPayment, error) {
	var payment razorpayPayment
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return payment, mapUpstreamError("razorpay", "fetch payment", http.StatusBadRequest, errors.New("payment id required"))
	}
	status, err := g.rest.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil, nil, &payment)
	if err != nil {
		g.calls.log(ctx, "error", "fetch_payment", map[string]any{"error": err.Error()})
		return payment, mapUpstreamError("razorpay", "fetch payment", status, err)
	}
	return payment, nil
}

func razorpayResult(p razorpayPayment) Result {
	status := razorpayStatus(p.Status)
	res := Result{
		Success:       status != enums.PaymentStatusFailed,
		PaymentID:     p.OrderID,
		TransactionID: p.ID,
		Status:        status,
		Amount:        fromMinor(p.Amount, p.Currency),
		Currency:      p.Currency,
		Gateway: types.NewRazorpayResponse(types.RazorpayResponse{
			OrderID:     p.OrderID,
			PaymentID:   p.ID,
			Status:      p.Status,
			AmountMinor: p.Amount,
			Currency:    p.Currency,
		}),
	}
	if res.PaymentID == "" {
		res.PaymentID = p.ID
	}
	if !res.Success {
		res.ErrorMessage = p.ErrorDescription
		if res.ErrorMessage == "" {
			res.ErrorMessage = "payment " + p.Status
		}
	}
	return res
}

func razorpayStatus(raw string) enums.PaymentStatus {
	switch raw {
	case "captured":
		return enums.PaymentStatusCompleted
	case "failed":
		return enums.PaymentStatusFailed
	case "refunded":
		return enums.PaymentStatusRefunded
	default:
		return enums.PaymentStatusPending
	}
}

var _ Gateway = (*RazorpayGateway)(nil)
