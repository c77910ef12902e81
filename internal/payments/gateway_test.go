package payments

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestRegistry(t *testing.T) {
	stripeGW := &fakeGateway{method: enums.PaymentMethodStripe}
	paypalGW := &fakeGateway{method: enums.PaymentMethodPayPal}

	reg, err := NewRegistry(paypalGW, nil, stripeGW)
	require.NoError(t, err)
	got, ok := reg.Get(enums.PaymentMethodStripe)
	require.True(t, ok)
	require.Same(t, stripeGW, got)
	_, ok = reg.Get(enums.PaymentMethodCashOnDelivery)
	require.False(t, ok)
	require.Equal(t, []enums.PaymentMethod{
		enums.PaymentMethodStripe,
		enums.PaymentMethodPayPal,
		enums.PaymentMethodCashOnDelivery,
	}, reg.Methods())

	_, err = NewRegistry(stripeGW, &fakeGateway{method: enums.PaymentMethodStripe})
	require.Error(t, err)
	_, err = NewRegistry(&fakeGateway{method: enums.PaymentMethodCashOnDelivery})
	require.Error(t, err)
	_, err = NewRegistry(&fakeGateway{method: "cheque"})
	require.Error(t, err)

	var empty *Registry
	require.Equal(t, []enums.PaymentMethod{enums.PaymentMethodCashOnDelivery}, empty.Methods())
}

func TestCryptoGateway(t *testing.T) {
	gw := NewCryptoGateway(config.CryptoConfig{Enabled: true}, nil)
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	gw.now = func() time.Time { return now }
	ctx := context.Background()

	res, err := gw.CreateIntent(ctx, IntentRequest{OrderID: uuid.New(), Amount: decimal.NewFromInt(41), Currency: "btc"})
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPending, res.Status)
	invoice := res.Gateway.Crypto
	require.NotNil(t, invoice)
	require.Equal(t, "bitcoin", invoice.Network)
	require.True(t, strings.HasPrefix(invoice.Address, "bc1q"))
	require.Len(t, invoice.Address, 42)
	require.Equal(t, now.Add(cryptoInvoiceTTL), invoice.ExpiresAt)

	res, err = gw.Confirm(ctx, res.PaymentID, "")
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPending, res.Status)

	res, err = gw.Confirm(ctx, res.PaymentID, "txhash")
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusCompleted, res.Status)
	status, err := gw.Status(ctx, res.PaymentID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusCompleted, status.Status)

	late, err := gw.CreateIntent(ctx, IntentRequest{OrderID: uuid.New(), Amount: decimal.NewFromInt(1), Currency: "ETH"})
	require.NoError(t, err)
	now = now.Add(time.Hour)
	late, err = gw.Confirm(ctx, late.PaymentID, "txhash")
	require.NoError(t, err)
	require.False(t, late.Success)
	require.Equal(t, enums.PaymentStatusFailed, late.Status)

	_, err = gw.Confirm(ctx, "crypto_missing", "")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = gw.Refund(ctx, RefundRequest{PaymentID: res.PaymentID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBusinessRule))
}

func TestDepositAddressShape(t *testing.T) {
	orderID := uuid.New()
	require.Equal(t, depositAddress("bitcoin", orderID, "inv"), depositAddress("bitcoin", orderID, "inv"))
	eth := depositAddress("ethereum", orderID, "inv")
	require.True(t, strings.HasPrefix(eth, "0x"))
	require.Len(t, eth, 42)
}

func TestRedact(t *testing.T) {
	require.Equal(t, "[REDACTED]", redact("client_secret", "pi_secret"))
	require.Equal(t, "[REDACTED]", redact("CardNumber", "4242"))
	require.Equal(t, "pi_1", redact("intent_id", "pi_1"))
}

func TestDomainCodeForStatus(t *testing.T) {
	cases := map[int]pkgerrors.Code{
		http.StatusBadRequest:          pkgerrors.CodeValidation,
		http.StatusUnauthorized:        pkgerrors.CodeUpstream,
		http.StatusNotFound:            pkgerrors.CodeNotFound,
		http.StatusConflict:            pkgerrors.CodeConflict,
		http.StatusUnprocessableEntity: pkgerrors.CodeValidation,
		http.StatusTooManyRequests:     pkgerrors.CodeRateLimit,
		http.StatusBadGateway:          pkgerrors.CodeUpstream,
		0:                              pkgerrors.CodeUpstream,
	}
	for status, want := range cases {
		require.Equal(t, want, domainCodeForStatus(status), status)
	}
}
