package registry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

func TestResolveOrderCreated(t *testing.T) {
	reg := testRegistry(t)
	orderID := uuid.New()
	data, err := json.Marshal(payloads.OrderCreatedEvent{
		OrderID:     orderID,
		OrderNumber: "ORD2603150001",
		UserID:      uuid.New(),
		ItemCount:   2,
		Total:       decimal.RequireFromString("41.00"),
		Currency:    "USD",
	})
	require.NoError(t, err)

	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       envelopeOf(t, outbox.EnvelopeVersion, data),
	})
	require.NoError(t, err)
	require.Equal(t, "orders-topic", resolved.Descriptor.Topic)
	require.NotEmpty(t, resolved.Envelope.EventID)

	payload, ok := resolved.Payload.(*payloads.OrderCreatedEvent)
	require.True(t, ok, "payload type %T", resolved.Payload)
	require.Equal(t, "ORD2603150001", payload.OrderNumber)
	require.True(t, payload.Total.Equal(decimal.NewFromInt(41)))
}

func TestResolvePaymentEventsUsePaymentsTopic(t *testing.T) {
	reg := testRegistry(t)
	data := []byte(`{"payment_id":"` + uuid.NewString() + `","status":"completed"}`)

	for _, eventType := range []enums.OutboxEventType{
		enums.EventPaymentCompleted,
		enums.EventPaymentFailed,
		enums.EventPaymentRefunded,
	} {
		resolved, err := reg.Resolve(models.OutboxEvent{
			EventType:     eventType,
			AggregateType: enums.AggregatePayment,
			AggregateID:   uuid.New(),
			Payload:       envelopeOf(t, outbox.EnvelopeVersion, data),
		})
		require.NoError(t, err, eventType)
		require.Equal(t, "payments-topic", resolved.Descriptor.Topic, eventType)
		require.IsType(t, &payloads.PaymentEvent{}, resolved.Payload)
	}
}

func TestResolveRejectsBadRows(t *testing.T) {
	reg := testRegistry(t)
	orderData := []byte(`{"order_id":"` + uuid.NewString() + `"}`)

	cases := map[string]models.OutboxEvent{
		"unknown event type": {
			EventType:     enums.OutboxEventType("inventory_synced"),
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       envelopeOf(t, outbox.EnvelopeVersion, orderData),
		},
		"aggregate mismatch": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregatePayment,
			AggregateID:   uuid.New(),
			Payload:       envelopeOf(t, outbox.EnvelopeVersion, orderData),
		},
		"missing aggregate id": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			Payload:       envelopeOf(t, outbox.EnvelopeVersion, orderData),
		},
		"null data": {
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       envelopeOf(t, outbox.EnvelopeVersion, []byte("null")),
		},
		"future envelope version": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       envelopeOf(t, outbox.EnvelopeVersion+1, orderData),
		},
		"data of wrong shape": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       envelopeOf(t, outbox.EnvelopeVersion, []byte(`["not","an","object"]`)),
		},
	}

	for name, row := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(row)
			var nonRetry NonRetryableError
			require.ErrorAs(t, err, &nonRetry)
		})
	}
}

func TestNewEventRegistryRequiresBothTopics(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders"})
	require.ErrorContains(t, err, "payments topic is required")

	_, err = NewEventRegistry(config.PubSubConfig{})
	require.ErrorContains(t, err, "orders topic is required")
	require.ErrorContains(t, err, "payments topic is required")
}

func TestTopicsAreSortedAndDistinct(t *testing.T) {
	require.Equal(t, []string{"orders-topic", "payments-topic"}, testRegistry(t).Topics())
}

func testRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{
		OrdersTopic:   "orders-topic",
		PaymentsTopic: "payments-topic",
	})
	require.NoError(t, err)
	return reg
}

func envelopeOf(t *testing.T, version int, data []byte) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    version,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	require.NoError(t, err)
	return raw
}
