package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	values map[string]any
	ttls   map[string]time.Duration
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]any{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) Get(context.Context, string) (string, error) { return "", nil }

func (m *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "sf:idempotency:" + scope + ":" + id
}

func TestNewGuardValidates(t *testing.T) {
	_, err := NewGuard(nil, "c", time.Hour)
	require.Error(t, err)
	_, err = NewGuard(newMemoryStore(), "", time.Hour)
	require.Error(t, err)
	_, err = NewGuard(newMemoryStore(), "c", 0)
	require.Error(t, err)
}

func TestClaimIsFreshOnlyOnce(t *testing.T) {
	store := newMemoryStore()
	guard, err := NewGuard(store, "user-notifications", 48*time.Hour)
	require.NoError(t, err)
	eventID := uuid.New()

	first, err := guard.Claim(context.Background(), eventID)
	require.NoError(t, err)
	require.True(t, first.Fresh())

	key := "sf:idempotency:evt:user-notifications:" + eventID.String()
	require.Contains(t, store.values, key)
	require.Equal(t, 48*time.Hour, store.ttls[key])

	second, err := guard.Claim(context.Background(), eventID)
	require.NoError(t, err)
	require.False(t, second.Fresh())

	// a stale claim must not drop the owner's key
	require.NoError(t, second.Release(context.Background()))
	require.Contains(t, store.values, key)
}

func TestReleaseAllowsRedelivery(t *testing.T) {
	guard, err := NewGuard(newMemoryStore(), "user-notifications", time.Hour)
	require.NoError(t, err)
	eventID := uuid.New()

	claim, err := guard.Claim(context.Background(), eventID)
	require.NoError(t, err)
	require.NoError(t, claim.Release(context.Background()))

	again, err := guard.Claim(context.Background(), eventID)
	require.NoError(t, err)
	require.True(t, again.Fresh())
}

func TestClaimRejectsNilIDAndSurfacesStoreErrors(t *testing.T) {
	store := newMemoryStore()
	guard, err := NewGuard(store, "c", time.Hour)
	require.NoError(t, err)

	_, err = guard.Claim(context.Background(), uuid.Nil)
	require.Error(t, err)

	store.err = errors.New("redis down")
	_, err = guard.Claim(context.Background(), uuid.New())
	require.ErrorIs(t, err, store.err)
}
