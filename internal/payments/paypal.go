package payments

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type paypalMoney struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type paypalCapture struct {
	ID     string      `json:"id"`
	Status string      `json:"status"`
	Amount paypalMoney `json:"amount"`
}

type paypalOrder struct {
	ID            string       `json:"id"`
	Status        string       `json:"status"`
	Links         []paypalLink `json:"links"`
	PurchaseUnits []struct {
		ReferenceID string      `json:"reference_id"`
		Amount      paypalMoney `json:"amount"`
		Payments    struct {
			Captures []paypalCapture `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

type paypalRefund struct {
	ID     string      `json:"id"`
	Status string      `json:"status"`
	Amount paypalMoney `json:"amount"`
}

// PayPalGateway drives the v2 Orders API. Access tokens come from the
// client-credentials grant and are cached by the oauth2 transport.
type PayPalGateway struct {
	rest      restClient
	returnURL string
	cancelURL string
	calls     callLog
}

func NewPayPalGateway(ctx context.Context, cfg config.PayPalConfig, logg *logger.Logger) (*PayPalGateway, error) {
	if !cfg.Enabled() {
		return nil, errors.New("paypal client id and secret are required")
	}
	return newPayPalGateway(ctx, cfg.BaseURL(), cfg, logg), nil
}

func newPayPalGateway(ctx context.Context, baseURL string, cfg config.PayPalConfig, logg *logger.Logger) *PayPalGateway {
	baseURL = strings.TrimRight(baseURL, "/")
	creds := clientcredentials.Config{
		ClientID:     strings.TrimSpace(cfg.ClientID),
		ClientSecret: strings.TrimSpace(cfg.ClientSecret),
		TokenURL:     baseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: GatewayTimeout})
	httpClient := creds.Client(ctx)
	httpClient.Timeout = GatewayTimeout
	return &PayPalGateway{
		rest:      restClient{http: httpClient, baseURL: baseURL},
		returnURL: strings.TrimSpace(cfg.ReturnURL),
		cancelURL: strings.TrimSpace(cfg.CancelURL),
		calls:     callLog{gateway: "paypal", logger: logg},
	}
}

func (g *PayPalGateway) Method() enums.PaymentMethod { return enums.PaymentMethodPayPal }

func (g *PayPalGateway) CreateIntent(ctx context.Context, req IntentRequest) (Result, error) {
	currency := normalizeCurrency(req.Currency)
	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": req.OrderNumber,
			"custom_id":    req.OrderID.String(),
			"amount":       paypalMoney{CurrencyCode: currency, Value: paypalValue(req.Amount, currency)},
		}},
	}
	if g.returnURL != "" || g.cancelURL != "" {
		body["application_context"] = map[string]string{
			"return_url": g.returnURL,
			"cancel_url": g.cancelURL,
		}
	}

	g.calls.log(ctx, "request", "create_order", map[string]any{"order_id": req.OrderID.String()})
	var order paypalOrder
	status, err := g.rest.do(ctx, http.MethodPost, "/v2/checkout/orders",
		map[string]string{"PayPal-Request-Id": req.IdempotencyKey}, body, &order)
	if err != nil {
		g.calls.log(ctx, "error", "create_order", map[string]any{"error": err.Error()})
		return Result{}, mapUpstreamError("paypal", "create order", status, err)
	}
	g.calls.log(ctx, "response", "create_order", map[string]any{"paypal_order_id": order.ID, "status": order.Status})

	res := paypalResult(order)
	res.Amount = req.Amount.Round(2)
	res.Currency = currency
	return res, nil
}

// Confirm captures an approved order. paymentID is the PayPal order id.
func (g *PayPalGateway) Confirm(ctx context.Context, paymentID, _ string) (Result, error) {
	g.calls.log(ctx, "request", "capture", map[string]any{"paypal_order_id": paymentID})
	var order paypalOrder
	status, err := g.rest.do(ctx, http.MethodPost, "/v2/checkout/orders/"+url.PathEscape(paymentID)+"/capture",
		map[string]string{"PayPal-Request-Id": "capture-" + paymentID}, map[string]any{}, &order)
	if err != nil {
		g.calls.log(ctx, "error", "capture", map[string]any{"error": err.Error()})
		return Result{}, mapUpstreamError("paypal", "capture order", status, err)
	}
	g.calls.log(ctx, "response", "capture", map[string]any{"paypal_order_id": order.ID, "status": order.Status})
	return paypalResult(order), nil
}

func (g *PayPalGateway) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	captureID := req.TransactionID
	if captureID == "" {
		return RefundResult{}, mapUpstreamError("paypal", "refund capture", http.StatusBadRequest, errors.New("capture id required"))
	}
	currency := normalizeCurrency(req.Currency)
	body := map[string]any{}
	if req.Amount != nil {
		body["amount"] = paypalMoney{CurrencyCode: currency, Value: paypalValue(*req.Amount, currency)}
	}

	g.calls.log(ctx, "request", "refund", map[string]any{"capture_id": captureID})
	var refund paypalRefund
	status, err := g.rest.do(ctx, http.MethodPost, "/v2/payments/captures/"+url.PathEscape(captureID)+"/refund",
		map[string]string{"PayPal-Request-Id": req.IdempotencyKey}, body, &refund)
	if err != nil {
		g.calls.log(ctx, "error", "refund", map[string]any{"error": err.Error()})
		return RefundResult{}, mapUpstreamError("paypal", "refund capture", status, err)
	}
	g.calls.log(ctx, "response", "refund", map[string]any{"refund_id": refund.ID, "status": refund.Status})

	refundStatus := enums.PaymentStatusPending
	switch refund.Status {
	case "COMPLETED":
		refundStatus = enums.PaymentStatusCompleted
	case "FAILED", "CANCELLED":
		refundStatus = enums.PaymentStatusFailed
	}
	amount := decimal.Zero
	if refund.Amount.Value != "" {
		amount, _ = decimal.NewFromString(refund.Amount.Value)
	} else if req.Amount != nil {
		amount = *req.Amount
	}
	return RefundResult{
		Success:  refundStatus != enums.PaymentStatusFailed,
		RefundID: refund.ID,
		Amount:   amount,
		Status:   refundStatus,
		Gateway: types.NewPayPalResponse(types.PayPalResponse{
			OrderID:   req.PaymentID,
			CaptureID: captureID,
			Status:    refund.Status,
			RefundID:  refund.ID,
		}),
	}, nil
}

func (g *PayPalGateway) Status(ctx context.Context, paymentID string) (Result, error) {
	var order paypalOrder
	status, err := g.rest.do(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(paymentID), nil, nil, &order)
	if err != nil {
		return Result{}, mapUpstreamError("paypal", "get order", status, err)
	}
	return paypalResult(order), nil
}

func paypalResult(order paypalOrder) Result {
	status := paypalStatus(order.Status)
	res := Result{
		Success:   status != enums.PaymentStatusFailed && status != enums.PaymentStatusCancelled,
		PaymentID: order.ID,
		Status:    status,
	}
	gw := types.PayPalResponse{OrderID: order.ID, Status: order.Status}
	for _, link := range order.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			res.RedirectURL = link.Href
			gw.ApprovalURL = link.Href
		}
	}
	if len(order.PurchaseUnits) > 0 {
		unit := order.PurchaseUnits[0]
		res.Currency = unit.Amount.CurrencyCode
		res.Amount, _ = decimal.NewFromString(unit.Amount.Value)
		if captures := unit.Payments.Captures; len(captures) > 0 {
			capture := captures[0]
			res.TransactionID = capture.ID
			gw.CaptureID = capture.ID
			if capture.Amount.Value != "" {
				res.Amount, _ = decimal.NewFromString(capture.Amount.Value)
				res.Currency = capture.Amount.CurrencyCode
			}
		}
	}
	res.Gateway = types.NewPayPalResponse(gw)
	if !res.Success {
		res.ErrorMessage = "paypal order " + strings.ToLower(order.Status)
	}
	return res
}

func paypalStatus(raw string) enums.PaymentStatus {
	switch strings.ToUpper(raw) {
	case "COMPLETED":
		return enums.PaymentStatusCompleted
	case "VOIDED":
		return enums.PaymentStatusCancelled
	case "DECLINED", "FAILED":
		return enums.PaymentStatusFailed
	default:
		return enums.PaymentStatusPending
	}
}

func paypalValue(amount decimal.Decimal, currency string) string {
	if zeroDecimalCurrencies[currency] {
		return amount.Round(0).StringFixed(0)
	}
	return amount.StringFixed(2)
}

var _ Gateway = (*PayPalGateway)(nil)
