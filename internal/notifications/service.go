package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// ReadRetention is how long read notifications are kept.
const ReadRetention = 30 * 24 * time.Hour

// Service defines notification list/read and preference operations.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Preferences(ctx context.Context, userID uuid.UUID) (*PreferencesDTO, error)
	UpdatePreferences(ctx context.Context, userID uuid.UUID, input UpdatePreferencesInput) (*PreferencesDTO, error)
	CleanupRead(ctx context.Context, now time.Time) (int64, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// ListParams configures pagination for notifications.
type ListParams struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []NotificationDTO `json:"items"`
	Cursor string            `json:"cursor"`
}

// NotificationDTO is the in-app view of a notification row.
type NotificationDTO struct {
	ID        uuid.UUID  `json:"id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Link      *string    `json:"link,omitempty"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// PreferencesDTO mirrors the stored opt-ins.
type PreferencesDTO struct {
	OrderUpdates   bool `json:"order_updates"`
	PaymentUpdates bool `json:"payment_updates"`
	Promotions     bool `json:"promotions"`
	EmailEnabled   bool `json:"email_enabled"`
	PushEnabled    bool `json:"push_enabled"`
	InAppEnabled   bool `json:"in_app_enabled"`
}

// UpdatePreferencesInput patches preferences; nil fields keep their value.
type UpdatePreferencesInput struct {
	OrderUpdates   *bool `json:"order_updates"`
	PaymentUpdates *bool `json:"payment_updates"`
	Promotions     *bool `json:"promotions"`
	EmailEnabled   *bool `json:"email_enabled"`
	PushEnabled    *bool `json:"push_enabled"`
	InAppEnabled   *bool `json:"in_app_enabled"`
}

// NewService wires notifications dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "notifications repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Authentication required")
	}

	query := listNotificationsParams{
		UserID:     params.UserID,
		Limit:      params.Limit,
		UnreadOnly: params.UnreadOnly,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list notifications")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}

	items := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, NotificationDTO{
			ID:        row.ID,
			Type:      string(row.Type),
			Title:     row.Title,
			Message:   row.Message,
			Link:      row.Link,
			ReadAt:    row.ReadAt,
			CreatedAt: row.CreatedAt,
		})
	}
	return &ListResult{Items: items, Cursor: cursor}, nil
}

func (s *service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "Authentication required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, userID, notificationID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeUnauthorized, "Authentication required")
	}

	count, err := s.repo.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark notifications read")
	}
	return count, nil
}

func (s *service) Preferences(ctx context.Context, userID uuid.UUID) (*PreferencesDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Authentication required")
	}
	prefs, err := s.repo.Preferences(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load notification preferences")
	}
	return newPreferencesDTO(prefs), nil
}

func (s *service) UpdatePreferences(ctx context.Context, userID uuid.UUID, input UpdatePreferencesInput) (*PreferencesDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Authentication required")
	}
	prefs, err := s.repo.Preferences(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load notification preferences")
	}

	apply := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&prefs.OrderUpdates, input.OrderUpdates)
	apply(&prefs.PaymentUpdates, input.PaymentUpdates)
	apply(&prefs.Promotions, input.Promotions)
	apply(&prefs.EmailEnabled, input.EmailEnabled)
	apply(&prefs.PushEnabled, input.PushEnabled)
	apply(&prefs.InAppEnabled, input.InAppEnabled)
	prefs.UserID = userID

	if err := s.repo.SavePreferences(ctx, &prefs); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save notification preferences")
	}
	return newPreferencesDTO(prefs), nil
}

// CleanupRead deletes notifications read more than ReadRetention before now.
func (s *service) CleanupRead(ctx context.Context, now time.Time) (int64, error) {
	removed, err := s.repo.DeleteReadBefore(ctx, now.Add(-ReadRetention))
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete read notifications")
	}
	return removed, nil
}

func newPreferencesDTO(p models.NotificationPreference) *PreferencesDTO {
	return &PreferencesDTO{
		OrderUpdates:   p.OrderUpdates,
		PaymentUpdates: p.PaymentUpdates,
		Promotions:     p.Promotions,
		EmailEnabled:   p.EmailEnabled,
		PushEnabled:    p.PushEnabled,
		InAppEnabled:   p.InAppEnabled,
	}
}
