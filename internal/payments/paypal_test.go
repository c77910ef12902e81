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
)

func newPayPalTestGateway(t *testing.T, api http.HandlerFunc) *PayPalGateway {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok_1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/v2/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok_1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		api(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := config.PayPalConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		ReturnURL:    "https://shop.test/return",
		CancelURL:    "https://shop.test/cancel",
	}
	return newPayPalGateway(context.Background(), srv.URL, cfg, nil)
}

func TestPayPalCreateOrderReturnsApprovalLink(t *testing.T) {
	gw := newPayPalTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/checkout/orders", r.URL.Path)
		require.Equal(t, "intent-1", r.Header.Get("PayPal-Request-Id"))
		var body struct {
			Intent        string `json:"intent"`
			PurchaseUnits []struct {
				ReferenceID string      `json:"reference_id"`
				Amount      paypalMoney `json:"amount"`
			} `json:"purchase_units"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "CAPTURE", body.Intent)
		require.Equal(t, "41.00", body.PurchaseUnits[0].Amount.Value)
		require.Equal(t, "EUR", body.PurchaseUnits[0].Amount.CurrencyCode)
		_, _ = w.Write([]byte(`{"id":"PP-1","status":"CREATED","links":[{"href":"https://paypal.test/approve/PP-1","rel":"approve"}]}`))
	})

	res, err := gw.CreateIntent(context.Background(), IntentRequest{
		OrderID:        uuid.New(),
		OrderNumber:    "ORD2603150001",
		Amount:         decimal.NewFromInt(41),
		Currency:       "eur",
		IdempotencyKey: "intent-1",
	})
	require.NoError(t, err)
	require.Equal(t, "PP-1", res.PaymentID)
	require.Equal(t, enums.PaymentStatusPending, res.Status)
	require.Equal(t, "https://paypal.test/approve/PP-1", res.RedirectURL)
	require.Equal(t, "https://paypal.test/approve/PP-1", res.Gateway.PayPal.ApprovalURL)
}

func TestPayPalCaptureCompletes(t *testing.T) {
	gw := newPayPalTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/checkout/orders/PP-1/capture", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"PP-1","status":"COMPLETED","purchase_units":[{"reference_id":"ORD1","amount":{"currency_code":"USD","value":"41.00"},"payments":{"captures":[{"id":"CAP-1","status":"COMPLETED","amount":{"currency_code":"USD","value":"41.00"}}]}}]}`))
	})

	res, err := gw.Confirm(context.Background(), "PP-1", "PAYER")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, enums.PaymentStatusCompleted, res.Status)
	require.Equal(t, "CAP-1", res.TransactionID)
	require.Equal(t, "USD", res.Currency)
	require.True(t, decimal.NewFromInt(41).Equal(res.Amount))
}

func TestPayPalRefundUsesCapture(t *testing.T) {
	gw := newPayPalTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/payments/captures/CAP-1/refund", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"REF-1","status":"COMPLETED","amount":{"currency_code":"USD","value":"10.00"}}`))
	})

	amount := decimal.NewFromInt(10)
	res, err := gw.Refund(context.Background(), RefundRequest{PaymentID: "PP-1", TransactionID: "CAP-1", Amount: &amount, Currency: "USD"})
	require.NoError(t, err)
	require.Equal(t, "REF-1", res.RefundID)
	require.Equal(t, enums.PaymentStatusCompleted, res.Status)
	require.True(t, amount.Equal(res.Amount))

	_, err = gw.Refund(context.Background(), RefundRequest{PaymentID: "PP-1", Currency: "USD"})
	require.Error(t, err, "refunds need the capture id")
}

func TestPayPalStatusMapping(t *testing.T) {
	require.Equal(t, enums.PaymentStatusCompleted, paypalStatus("COMPLETED"))
	require.Equal(t, enums.PaymentStatusPending, paypalStatus("APPROVED"))
	require.Equal(t, enums.PaymentStatusCancelled, paypalStatus("VOIDED"))
	require.Equal(t, enums.PaymentStatusFailed, paypalStatus("declined"))
	require.Equal(t, "1500", paypalValue(decimal.RequireFromString("1500.4"), "JPY"))
}
