package notifications

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newTestService(t *testing.T) (Service, Repository, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc, err := NewService(repo)
	require.NoError(t, err)
	return svc, repo, conn
}

func seedNotification(t *testing.T, repo Repository, userID uuid.UUID, title string) models.Notification {
	t.Helper()
	row := models.Notification{
		UserID:  userID,
		Type:    enums.NotificationTypeOrderUpdate,
		Channel: enums.NotificationChannelInApp,
		Title:   title,
		Message: title,
		Status:  enums.NotificationStatusSent,
	}
	require.NoError(t, repo.Create(context.Background(), &row))
	return row
}

func TestService_ListPagesAndFiltersUnread(t *testing.T) {
	t.Parallel()
	svc, repo, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, conn)
	other := dbtest.SeedUser(t, conn)

	first := seedNotification(t, repo, user.ID, "one")
	seedNotification(t, repo, user.ID, "two")
	seedNotification(t, repo, user.ID, "three")
	seedNotification(t, repo, other.ID, "foreign")

	page, err := svc.List(ctx, ListParams{UserID: user.ID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.Cursor)

	rest, err := svc.List(ctx, ListParams{UserID: user.ID, Limit: 2, Cursor: page.Cursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	require.Empty(t, rest.Cursor)

	require.NoError(t, svc.MarkRead(ctx, user.ID, first.ID))
	unread, err := svc.List(ctx, ListParams{UserID: user.ID, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread.Items, 2)
	for _, item := range unread.Items {
		require.NotEqual(t, first.ID, item.ID)
	}

	_, err = svc.List(ctx, ListParams{UserID: user.ID, Cursor: "not-a-cursor"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestService_MarkReadScopedToOwner(t *testing.T) {
	t.Parallel()
	svc, repo, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, conn)
	other := dbtest.SeedUser(t, conn)
	row := seedNotification(t, repo, user.ID, "hello")

	err := svc.MarkRead(ctx, other.ID, row.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	require.NoError(t, svc.MarkRead(ctx, user.ID, row.ID))
	require.NoError(t, svc.MarkRead(ctx, user.ID, row.ID))

	err = svc.MarkRead(ctx, uuid.Nil, row.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestService_MarkAllRead(t *testing.T) {
	t.Parallel()
	svc, repo, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, conn)
	seedNotification(t, repo, user.ID, "a")
	seedNotification(t, repo, user.ID, "b")

	count, err := svc.MarkAllRead(ctx, user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	count, err = svc.MarkAllRead(ctx, user.ID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestService_PreferencesDefaultAndPatch(t *testing.T) {
	t.Parallel()
	svc, _, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, conn)

	prefs, err := svc.Preferences(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, prefs.OrderUpdates)
	require.True(t, prefs.InAppEnabled)
	require.False(t, prefs.PushEnabled)

	off, on := false, true
	updated, err := svc.UpdatePreferences(ctx, user.ID, UpdatePreferencesInput{EmailEnabled: &off, PushEnabled: &on})
	require.NoError(t, err)
	require.False(t, updated.EmailEnabled)
	require.True(t, updated.PushEnabled)
	require.True(t, updated.OrderUpdates)

	updated, err = svc.UpdatePreferences(ctx, user.ID, UpdatePreferencesInput{Promotions: &on})
	require.NoError(t, err)
	require.True(t, updated.Promotions)
	require.False(t, updated.EmailEnabled)

	reloaded, err := svc.Preferences(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, updated, reloaded)
}

func TestService_CleanupReadRemovesOnlyOldReadRows(t *testing.T) {
	t.Parallel()
	svc, repo, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, conn)
	now := time.Now().UTC()

	old := seedNotification(t, repo, user.ID, "old")
	recent := seedNotification(t, repo, user.ID, "recent")
	unread := seedNotification(t, repo, user.ID, "unread")
	require.NoError(t, conn.Model(&models.Notification{}).Where("id = ?", old.ID).Update("read_at", now.Add(-31*24*time.Hour)).Error)
	require.NoError(t, conn.Model(&models.Notification{}).Where("id = ?", recent.ID).Update("read_at", now.Add(-time.Hour)).Error)

	removed, err := svc.CleanupRead(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	var ids []uuid.UUID
	require.NoError(t, conn.Model(&models.Notification{}).Order("title").Pluck("id", &ids).Error)
	require.ElementsMatch(t, []uuid.UUID{recent.ID, unread.ID}, ids)
}

func TestDispatcher_RespectsPreferencesAndRecordsFailures(t *testing.T) {
	t.Parallel()
	_, repo, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, conn)

	dispatcher, err := NewDispatcher(repo, nil, testLogger())
	require.NoError(t, err)

	rows, err := dispatcher.Notify(ctx, Message{
		UserID: user.ID,
		Type:   enums.NotificationTypeOrderUpdate,
		Title:  "Order placed",
		Body:   "ok",
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byChannel := map[enums.NotificationChannel]models.Notification{}
	for _, row := range rows {
		byChannel[row.Channel] = row
	}
	require.Equal(t, enums.NotificationStatusSent, byChannel[enums.NotificationChannelInApp].Status)
	email := byChannel[enums.NotificationChannelEmail]
	require.Equal(t, enums.NotificationStatusFailed, email.Status)
	require.NotNil(t, email.FailureReason)
	require.Contains(t, *email.FailureReason, "not configured")

	var stored models.Notification
	require.NoError(t, conn.First(&stored, "id = ?", email.ID).Error)
	require.Equal(t, enums.NotificationStatusFailed, stored.Status)

	rows, err = dispatcher.Notify(ctx, Message{UserID: user.ID, Type: enums.NotificationTypePromotion, Title: "Sale"})
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestDispatcher_CustomSender(t *testing.T) {
	t.Parallel()
	_, repo, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, conn)

	var sent []enums.NotificationChannel
	sender := SenderFunc(func(_ context.Context, n models.Notification) error {
		sent = append(sent, n.Channel)
		if n.Channel == enums.NotificationChannelPush {
			return errors.New("device token expired")
		}
		return nil
	})
	dispatcher, err := NewDispatcher(repo, sender, testLogger())
	require.NoError(t, err)

	svc, err := NewService(repo)
	require.NoError(t, err)
	on := true
	_, err = svc.UpdatePreferences(ctx, user.ID, UpdatePreferencesInput{PushEnabled: &on})
	require.NoError(t, err)

	rows, err := dispatcher.Notify(ctx, Message{UserID: user.ID, Type: enums.NotificationTypePaymentUpdate, Title: "Paid"})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []enums.NotificationChannel{enums.NotificationChannelEmail, enums.NotificationChannelPush}, sent)
	require.Equal(t, enums.NotificationStatusSent, rows[1].Status)
	require.Equal(t, enums.NotificationStatusFailed, rows[2].Status)
}
