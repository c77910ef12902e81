package models

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func TestEffectivePricePrefersSalePrice(t *testing.T) {
	p := Product{Price: decimal.RequireFromString("20.00")}
	require.True(t, p.EffectivePrice().Equal(decimal.RequireFromString("20.00")))

	p.SalePrice = decimal.NewNullDecimal(decimal.RequireFromString("15.50"))
	require.True(t, p.EffectivePrice().Equal(decimal.RequireFromString("15.50")))
}

func TestCartItemSameLine(t *testing.T) {
	productID := uuid.New()
	variantID := uuid.New()
	other := uuid.New()

	plain := CartItem{ProductID: productID}
	require.True(t, plain.SameLine(productID, nil))
	require.False(t, plain.SameLine(productID, &variantID))
	require.False(t, plain.SameLine(uuid.New(), nil))

	withVariant := CartItem{ProductID: productID, VariantID: &variantID}
	require.True(t, withVariant.SameLine(productID, &variantID))
	require.False(t, withVariant.SameLine(productID, &other))
	require.False(t, withVariant.SameLine(productID, nil))
}

func TestBeforeCreateAssignsID(t *testing.T) {
	o := &Order{}
	require.NoError(t, o.BeforeCreate(nil))
	require.NotEqual(t, uuid.Nil, o.ID)

	fixed := uuid.New()
	a := &Address{ID: fixed}
	require.NoError(t, a.BeforeCreate(nil))
	require.Equal(t, fixed, a.ID)
}

func TestOutboxEventDeadLetter(t *testing.T) {
	event := OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventPaymentFailed,
		AggregateType: enums.AggregatePayment,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1}`),
		AttemptCount:  4,
	}
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.FixedZone("EST", -5*3600))

	entry := event.DeadLetter(enums.OutboxDLQReasonMaxAttempts, errors.New("deadline exceeded"), at)
	require.Equal(t, event.ID, entry.EventID)
	require.Equal(t, 4, entry.AttemptCount)
	require.Equal(t, time.UTC, entry.FailedAt.Location())
	require.NotNil(t, entry.ErrorMessage)
	require.Equal(t, "deadline exceeded", *entry.ErrorMessage)

	require.Nil(t, event.DeadLetter(enums.OutboxDLQReasonNonRetryable, nil, at).ErrorMessage)
}
