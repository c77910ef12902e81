// Package registry maps outbox rows to the Pub/Sub topic and typed payload
// the publisher sends them as.
package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// EventDescriptor is one routable event type.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	newPayload    func() any
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that will fail the same way on every attempt.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable outbox event"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func permanent(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

type EventRegistry struct {
	routes map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry routes order events to the orders topic and payment
// events to the payments topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	var missing error
	if cfg.OrdersTopic == "" {
		missing = multierr.Append(missing, errors.New("orders topic is required"))
	}
	if cfg.PaymentsTopic == "" {
		missing = multierr.Append(missing, errors.New("payments topic is required"))
	}
	if missing != nil {
		return nil, missing
	}

	orderCreated := func() any { return &payloads.OrderCreatedEvent{} }
	orderStatus := func() any { return &payloads.OrderStatusChangedEvent{} }
	payment := func() any { return &payloads.PaymentEvent{} }

	reg := &EventRegistry{routes: map[enums.OutboxEventType]EventDescriptor{}}
	reg.add(enums.EventOrderCreated, enums.AggregateOrder, cfg.OrdersTopic, orderCreated)
	reg.add(enums.EventOrderStatusChanged, enums.AggregateOrder, cfg.OrdersTopic, orderStatus)
	reg.add(enums.EventPaymentCompleted, enums.AggregatePayment, cfg.PaymentsTopic, payment)
	reg.add(enums.EventPaymentFailed, enums.AggregatePayment, cfg.PaymentsTopic, payment)
	reg.add(enums.EventPaymentRefunded, enums.AggregatePayment, cfg.PaymentsTopic, payment)
	return reg, nil
}

func (r *EventRegistry) add(eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string, newPayload func() any) {
	r.routes[eventType] = EventDescriptor{
		EventType:     eventType,
		AggregateType: aggregate,
		Topic:         topic,
		newPayload:    newPayload,
	}
}

// Topics returns the distinct topics in sorted order.
func (r *EventRegistry) Topics() []string {
	set := make(map[string]struct{}, len(r.routes))
	for _, route := range r.routes {
		set[route.Topic] = struct{}{}
	}
	topics := make([]string, 0, len(set))
	for topic := range set {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// Resolve checks the row against its route and decodes the envelope data.
// Every failure is a NonRetryableError.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	route, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return nil, permanent("no route for event type %q", event.EventType)
	case route.AggregateType != event.AggregateType:
		return nil, permanent("%s belongs to %s aggregates, row has %s", event.EventType, route.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, permanent("%s row has no aggregate id", event.EventType)
	}

	envelope, err := outbox.ParseEnvelope(event.Payload)
	if err != nil {
		return nil, permanent("%s envelope: %w", event.EventType, err)
	}
	payload := route.newPayload()
	if err := envelope.DecodeData(payload); err != nil {
		return nil, permanent("%s data: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: route, Envelope: envelope, Payload: payload}, nil
}
