package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	failGet error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return "", m.failGet
	}
	val, ok := m.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return val, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryStore) AccessSessionKey(accessID string) string { return "sess:" + accessID }

func TestManagerLifecycle(t *testing.T) {
	store := newMemoryStore()
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, manager.Start(ctx, "access-123", userID))
	require.Equal(t, userID.String(), store.data["sess:access-123"])
	require.Equal(t, time.Hour, store.ttls["sess:access-123"])

	ok, err := manager.HasSession(ctx, "access-123", userID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = manager.HasSession(ctx, "access-123", uuid.New())
	require.NoError(t, err)
	require.False(t, ok, "a session only vouches for the user it was issued to")

	require.NoError(t, manager.Revoke(ctx, "access-123"))
	require.NoError(t, manager.Revoke(ctx, "access-123"))
	ok, err = manager.HasSession(ctx, "access-123", userID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestManagerRejectsBlankInput(t *testing.T) {
	manager, err := NewManager(newMemoryStore(), time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	require.ErrorIs(t, manager.Start(ctx, " ", uuid.New()), errNoAccessID)
	require.Error(t, manager.Start(ctx, "abc", uuid.Nil))
	_, err = manager.HasSession(ctx, "", uuid.New())
	require.ErrorIs(t, err, errNoAccessID)
	require.ErrorIs(t, manager.Revoke(ctx, ""), errNoAccessID)

	_, err = NewManager(nil, time.Hour)
	require.Error(t, err)
	_, err = NewManager(newMemoryStore(), 0)
	require.Error(t, err)
}

func TestManagerHasSessionPropagatesStoreErrors(t *testing.T) {
	store := newMemoryStore()
	store.failGet = errors.New("connection refused")
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	_, err = manager.HasSession(context.Background(), "abc", uuid.New())
	require.ErrorContains(t, err, "connection refused")
}
