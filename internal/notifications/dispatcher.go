package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Message is a channel-agnostic notification for one user.
type Message struct {
	UserID uuid.UUID
	Type   enums.NotificationType
	Title  string
	Body   string
	Link   *string
}

// Sender delivers a stored notification over an external channel.
type Sender interface {
	Send(ctx context.Context, notification models.Notification) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, notification models.Notification) error

func (f SenderFunc) Send(ctx context.Context, notification models.Notification) error {
	return f(ctx, notification)
}

// ErrChannelNotConfigured is reported for channels without a delivery backend.
type ErrChannelNotConfigured struct {
	Channel enums.NotificationChannel
}

func (e ErrChannelNotConfigured) Error() string {
	return fmt.Sprintf("%s channel not configured", e.Channel)
}

// unconfiguredSender logs and reports every external channel as unavailable.
type unconfiguredSender struct {
	logg *logger.Logger
}

func (s unconfiguredSender) Send(ctx context.Context, n models.Notification) error {
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"notification_id": n.ID.String(),
			"user_id":         n.UserID.String(),
			"channel":         string(n.Channel),
		})
		s.logg.Warn(logCtx, "notification channel not configured")
	}
	return ErrChannelNotConfigured{Channel: n.Channel}
}

// Dispatcher fans a Message out to the channels the user opted into.
type Dispatcher struct {
	repo   Repository
	sender Sender
	logg   *logger.Logger
}

// NewDispatcher builds a dispatcher. A nil sender falls back to one that
// marks email and push rows failed.
func NewDispatcher(repo Repository, sender Sender, logg *logger.Logger) (*Dispatcher, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if sender == nil {
		sender = unconfiguredSender{logg: logg}
	}
	return &Dispatcher{repo: repo, sender: sender, logg: logg}, nil
}

// Notify stores one row per enabled channel and attempts delivery. Delivery
// failures are recorded on the row and are not returned; only storage errors are.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) ([]models.Notification, error) {
	if msg.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id missing")
	}
	prefs, err := d.repo.Preferences(ctx, msg.UserID)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	if !wantsType(prefs, msg.Type) {
		return nil, nil
	}

	var out []models.Notification
	for _, channel := range enabledChannels(prefs) {
		row := models.Notification{
			UserID:  msg.UserID,
			Type:    msg.Type,
			Channel: channel,
			Title:   msg.Title,
			Message: msg.Body,
			Link:    msg.Link,
			Status:  enums.NotificationStatusPending,
		}
		if err := d.repo.Create(ctx, &row); err != nil {
			return out, fmt.Errorf("create %s notification: %w", channel, err)
		}
		d.deliver(ctx, &row)
		out = append(out, row)
	}
	return out, nil
}

func (d *Dispatcher) deliver(ctx context.Context, row *models.Notification) {
	status := enums.NotificationStatusSent
	var reason *string
	if row.Channel != enums.NotificationChannelInApp {
		if err := d.sender.Send(ctx, *row); err != nil {
			status = enums.NotificationStatusFailed
			msg := err.Error()
			reason = &msg
		}
	}
	if err := d.repo.UpdateDelivery(ctx, row.ID, status, reason); err != nil {
		if d.logg != nil {
			d.logg.Error(ctx, "failed to record notification delivery", err)
		}
		return
	}
	row.Status = status
	row.FailureReason = reason
}

func wantsType(prefs models.NotificationPreference, kind enums.NotificationType) bool {
	switch kind {
	case enums.NotificationTypeOrderUpdate:
		return prefs.OrderUpdates
	case enums.NotificationTypePaymentUpdate:
		return prefs.PaymentUpdates
	case enums.NotificationTypePromotion:
		return prefs.Promotions
	default:
		return true
	}
}

func enabledChannels(prefs models.NotificationPreference) []enums.NotificationChannel {
	var channels []enums.NotificationChannel
	if prefs.InAppEnabled {
		channels = append(channels, enums.NotificationChannelInApp)
	}
	if prefs.EmailEnabled {
		channels = append(channels, enums.NotificationChannelEmail)
	}
	if prefs.PushEnabled {
		channels = append(channels, enums.NotificationChannelPush)
	}
	return channels
}
