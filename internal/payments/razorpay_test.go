package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func newRazorpayTestGateway(t *testing.T, handler http.HandlerFunc) *RazorpayGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	gw, err := NewRazorpayGateway(config.RazorpayConfig{KeyID: "rzp_test", KeySecret: "shh", BaseURL: srv.URL}, srv.Client(), nil)
	require.NoError(t, err)
	return gw
}

func TestRazorpayCreateOrderInPaise(t *testing.T) {
	var body map[string]any
	gw := newRazorpayTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "rzp_test", user)
		require.Equal(t, "shh", pass)
		require.Equal(t, "/orders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"id":"order_1","amount":349900,"currency":"INR","status":"created"}`))
	})

	res, err := gw.CreateIntent(context.Background(), IntentRequest{
		OrderID:     uuid.New(),
		OrderNumber: "ORD2603150001",
		Amount:      decimal.RequireFromString("3499.00"),
		Currency:    "inr",
	})
	require.NoError(t, err)
	require.Equal(t, float64(349900), body["amount"])
	require.Equal(t, "INR", body["currency"])
	require.Equal(t, "ORD2603150001", body["receipt"])
	require.Equal(t, "order_1", res.PaymentID)
	require.Equal(t, enums.PaymentStatusPending, res.Status)
	require.True(t, decimal.RequireFromString("3499").Equal(res.Amount))
}

func TestRazorpayConfirmCapturesAuthorizedPayment(t *testing.T) {
	captured := false
	gw := newRazorpayTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/payments/pay_1":
			_, _ = w.Write([]byte(`{"id":"pay_1","order_id":"order_1","amount":50000,"currency":"INR","status":"authorized"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/payments/pay_1/capture":
			captured = true
			_, _ = w.Write([]byte(`{"id":"pay_1","order_id":"order_1","amount":50000,"currency":"INR","status":"captured"}`))
		default:
			http.NotFound(w, r)
		}
	})

	res, err := gw.Confirm(context.Background(), "order_1", "pay_1")
	require.NoError(t, err)
	require.True(t, captured)
	require.True(t, res.Success)
	require.Equal(t, enums.PaymentStatusCompleted, res.Status)
	require.Equal(t, "order_1", res.PaymentID)
	require.Equal(t, "pay_1", res.TransactionID)
	require.True(t, decimal.NewFromInt(500).Equal(res.Amount))
}

func TestRazorpayFailedPaymentIsUnsuccessful(t *testing.T) {
	gw := newRazorpayTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"pay_2","order_id":"order_2","amount":100,"currency":"INR","status":"failed","error_description":"bank declined"}`))
	})
	res, err := gw.Confirm(context.Background(), "order_2", "pay_2")
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, enums.PaymentStatusFailed, res.Status)
	require.Equal(t, "bank declined", res.ErrorMessage)
}

func TestRazorpayConfirmRejectsPaymentForAnotherOrder(t *testing.T) {
	captured := false
	gw := newRazorpayTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			captured = true
		}
		_, _ = w.Write([]byte(`{"id":"pay_3","order_id":"order_other","amount":100,"currency":"INR","status":"authorized"}`))
	})
	_, err := gw.Confirm(context.Background(), "order_3", "pay_3")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBusinessRule), "got %v", err)
	require.False(t, captured)
}

func TestRazorpayStatusOfOrderUsesLatestPayment(t *testing.T) {
	gw := newRazorpayTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orders/order_4/payments":
			_, _ = w.Write([]byte(`{"items":[{"id":"pay_4","order_id":"order_4","amount":100,"currency":"INR","status":"captured"}]}`))
		case "/orders/order_5/payments":
			_, _ = w.Write([]byte(`{"items":[]}`))
		default:
			http.NotFound(w, r)
		}
	})

	res, err := gw.Status(context.Background(), "order_4")
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusCompleted, res.Status)
	require.Equal(t, "pay_4", res.TransactionID)

	res, err = gw.Status(context.Background(), "order_5")
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPending, res.Status)
	require.Equal(t, "order_5", res.PaymentID)
}

func TestRazorpayRefundAndErrors(t *testing.T) {
	gw := newRazorpayTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/payments/pay_missing" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"description":"not found"}}`))
			return
		}
		require.Equal(t, "/payments/pay_1/refund", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, float64(2500), body["amount"])
		_, _ = w.Write([]byte(`{"id":"rfnd_1","payment_id":"pay_1","amount":2500,"currency":"INR","status":"processed"}`))
	})

	amount := decimal.NewFromInt(25)
	res, err := gw.Refund(context.Background(), RefundRequest{PaymentID: "order_1", TransactionID: "pay_1", Amount: &amount, Currency: "INR"})
	require.NoError(t, err)
	require.Equal(t, "rfnd_1", res.RefundID)
	require.Equal(t, enums.PaymentStatusCompleted, res.Status)
	require.True(t, amount.Equal(res.Amount))

	_, err = gw.Status(context.Background(), "pay_missing")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestNewRazorpayGatewayRequiresCredentials(t *testing.T) {
	_, err := NewRazorpayGateway(config.RazorpayConfig{}, nil, nil)
	require.Error(t, err)
}
