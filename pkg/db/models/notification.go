package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Notification is one delivery of a message to a user on one channel.
type Notification struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID                 `gorm:"column:user_id;type:uuid;not null;index"`
	Type          enums.NotificationType    `gorm:"column:type;not null"`
	Channel       enums.NotificationChannel `gorm:"column:channel;not null;default:'in_app'"`
	Title         string                    `gorm:"column:title;not null"`
	Message       string                    `gorm:"column:message;not null"`
	Link          *string                   `gorm:"column:link"`
	Status        enums.NotificationStatus  `gorm:"column:status;not null;default:'pending'"`
	FailureReason *string                   `gorm:"column:failure_reason"`
	ReadAt        *time.Time                `gorm:"column:read_at"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	assignID(&n.ID)
	return nil
}

// NotificationPreference holds per-user opt-ins. A missing row means defaults.
type NotificationPreference struct {
	UserID         uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	OrderUpdates   bool      `gorm:"column:order_updates;not null"`
	PaymentUpdates bool      `gorm:"column:payment_updates;not null"`
	Promotions     bool      `gorm:"column:promotions;not null"`
	EmailEnabled   bool      `gorm:"column:email_enabled;not null"`
	PushEnabled    bool      `gorm:"column:push_enabled;not null"`
	InAppEnabled   bool      `gorm:"column:in_app_enabled;not null"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// DefaultNotificationPreference returns the opt-ins used before a user saves any.
func DefaultNotificationPreference(userID uuid.UUID) NotificationPreference {
	return NotificationPreference{
		UserID:         userID,
		OrderUpdates:   true,
		PaymentUpdates: true,
		EmailEnabled:   true,
		InAppEnabled:   true,
	}
}
