package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func ptr(s string) *string { return &s }

func TestInsertAndLookup(t *testing.T) {
	store := NewStore(dbtest.Open(t))
	ctx := context.Background()

	user := NewCustomer("ada@example.com", "hash", "  Ada ", "Lovelace", ptr("   "))
	require.NoError(t, store.Insert(ctx, user))
	require.NotEqual(t, uuid.Nil, user.ID)

	found, err := store.ByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.Equal(t, "Ada", found.FirstName)
	require.Nil(t, found.Phone)
	require.Equal(t, enums.UserRoleCustomer, found.Role)
	require.True(t, found.IsActive)

	_, err = store.ByID(ctx, uuid.New())
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRecordLoginAndApplyProfile(t *testing.T) {
	store := NewStore(dbtest.Open(t))
	ctx := context.Background()
	user := NewCustomer("grace@example.com", "hash", "Grace", "Hopper", ptr("555-0100"))
	require.NoError(t, store.Insert(ctx, user))

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordLogin(ctx, user.ID, at))

	updated, err := store.ApplyProfile(ctx, user.ID, ProfileUpdate{LastName: ptr(" Murray Hopper "), Phone: ptr("")})
	require.NoError(t, err)
	require.Equal(t, "Grace", updated.FirstName)
	require.Equal(t, "Murray Hopper", updated.LastName)
	require.Nil(t, updated.Phone)
	require.NotNil(t, updated.LastLoginAt)
	require.True(t, at.Equal(updated.LastLoginAt.UTC()))

	profile := ProfileOf(updated)
	require.Equal(t, "grace@example.com", profile.Email)

	_, err = store.ApplyProfile(ctx, uuid.New(), ProfileUpdate{FirstName: ptr("Nobody")})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
