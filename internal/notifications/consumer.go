package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// ConsumerName scopes this consumer's processed-event keys.
const ConsumerName = "user-notifications"

type notifier interface {
	Notify(ctx context.Context, msg Message) ([]models.Notification, error)
}

// Consumer watches order and payment events and notifies the affected user.
type Consumer struct {
	notifier     notifier
	subscription *pubsub.Subscriber
	dedupe       *idempotency.Guard
	logg         *logger.Logger
}

// NewConsumer builds a notification consumer.
func NewConsumer(n notifier, subscription *pubsub.Subscriber, dedupe *idempotency.Guard, logg *logger.Logger) (*Consumer, error) {
	if n == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if dedupe == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		notifier:     n,
		subscription: subscription,
		dedupe:       dedupe,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	if !eventType.IsValid() {
		c.logg.Info(logCtx, "skipping unknown event")
		return processResult{ack: true}
	}

	envelope, err := outbox.ParseEnvelope(msg.Data)
	if err != nil {
		// a malformed envelope will never decode; redelivery cannot help
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	eventID := envelope.ID()
	logCtx = c.logg.WithField(logCtx, "event_id", envelope.EventID)

	claim, err := c.dedupe.Claim(ctx, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if !claim.Fresh() {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	message, err := buildMessage(eventType, envelope.Data)
	if err != nil {
		// A payload that cannot be parsed will never parse; drop it.
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}

	logCtx = c.logg.WithField(logCtx, "user_id", message.UserID.String())
	rows, err := c.notifier.Notify(ctx, message)
	if err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		if err := claim.Release(ctx); err != nil {
			c.logg.Error(logCtx, "failed to release event claim", err)
		}
		return processResult{nack: true}
	}

	c.logg.Info(c.logg.WithField(logCtx, "rows", len(rows)), "user notified")
	return processResult{ack: true}
}

func buildMessage(eventType enums.OutboxEventType, data json.RawMessage) (Message, error) {
	switch eventType {
	case enums.EventOrderCreated:
		var p payloads.OrderCreatedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return Message{}, err
		}
		return Message{
			UserID: p.UserID,
			Type:   enums.NotificationTypeOrderUpdate,
			Title:  "Order placed",
			Body:   fmt.Sprintf("Your order %s for %s %s has been placed.", p.OrderNumber, p.Total.StringFixed(2), p.Currency),
			Link:   orderLink(p.OrderID),
		}, nil
	case enums.EventOrderStatusChanged:
		var p payloads.OrderStatusChangedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return Message{}, err
		}
		body := fmt.Sprintf("Your order %s is now %s.", p.OrderNumber, p.To)
		if p.To == enums.OrderStatusShipped && p.TrackingNumber != nil {
			body = fmt.Sprintf("Your order %s has shipped. Tracking number: %s.", p.OrderNumber, *p.TrackingNumber)
		}
		return Message{
			UserID: p.UserID,
			Type:   enums.NotificationTypeOrderUpdate,
			Title:  "Order updated",
			Body:   body,
			Link:   orderLink(p.OrderID),
		}, nil
	case enums.EventPaymentCompleted, enums.EventPaymentFailed, enums.EventPaymentRefunded:
		var p payloads.PaymentEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return Message{}, err
		}
		amount := p.Amount.StringFixed(2) + " " + p.Currency
		msg := Message{
			UserID: p.UserID,
			Type:   enums.NotificationTypePaymentUpdate,
			Link:   orderLink(p.OrderID),
		}
		switch eventType {
		case enums.EventPaymentCompleted:
			msg.Title = "Payment received"
			msg.Body = fmt.Sprintf("We received your payment of %s for order %s.", amount, p.OrderNumber)
		case enums.EventPaymentFailed:
			msg.Title = "Payment failed"
			msg.Body = fmt.Sprintf("Your payment for order %s could not be completed.", p.OrderNumber)
			if p.FailureReason != nil && *p.FailureReason != "" {
				msg.Body = fmt.Sprintf("Your payment for order %s could not be completed: %s", p.OrderNumber, *p.FailureReason)
			}
		default:
			msg.Title = "Refund issued"
			msg.Body = fmt.Sprintf("A refund of %s for order %s has been issued.", amount, p.OrderNumber)
		}
		return msg, nil
	default:
		return Message{}, fmt.Errorf("unsupported event %s", eventType)
	}
}

func orderLink(orderID uuid.UUID) *string {
	link := fmt.Sprintf("/orders/%s", orderID)
	return &link
}
