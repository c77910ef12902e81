package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
)

type memoryStore struct {
	counters map[string]int64
	fail     bool
	ttls     map[string]time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{counters: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	if m.fail {
		return 0, errors.New("redis: connection refused")
	}
	m.counters[key]++
	m.ttls[key] = ttl
	return m.counters[key], nil
}

func (m *memoryStore) RaiseCounter(_ context.Context, key string, value int64, _ time.Duration) error {
	if m.fail {
		return errors.New("redis: connection refused")
	}
	if m.counters[key] < value {
		m.counters[key] = value
	}
	return nil
}

func (m *memoryStore) OrderSequenceKey(day string) string {
	return "sf:counter:orders:" + day
}

type fallbackCounter struct{ n int }

func (f *fallbackCounter) IncSequenceFallback() { f.n++ }

func TestNumberAllocatorUsesRedisCounter(t *testing.T) {
	store := newMemoryStore()
	alloc, err := NewNumberAllocator(AllocatorParams{
		Store: store,
		DB:    dbtest.Open(t),
		Now:   func() time.Time { return fixedNow },
	})
	require.NoError(t, err)

	first, err := alloc.Next(context.Background())
	require.NoError(t, err)
	second, err := alloc.Next(context.Background())
	require.NoError(t, err)

	require.Equal(t, "ORD2603150001", first)
	require.Equal(t, "ORD2603150002", second)
	require.Equal(t, 48*time.Hour, store.ttls["sf:counter:orders:260315"])
}

func TestNumberAllocatorFallsBackToDatabase(t *testing.T) {
	conn := dbtest.Open(t)
	store := newMemoryStore()
	store.fail = true
	counter := &fallbackCounter{}
	alloc, err := NewNumberAllocator(AllocatorParams{
		Store:   store,
		DB:      conn,
		Prefix:  "web",
		Now:     func() time.Time { return fixedNow },
		Metrics: counter,
	})
	require.NoError(t, err)

	first, err := alloc.Next(context.Background())
	require.NoError(t, err)
	second, err := alloc.Next(context.Background())
	require.NoError(t, err)

	require.Equal(t, "WEB2603150001", first)
	require.Equal(t, "WEB2603150002", second)
	require.Equal(t, 2, counter.n)
}

func TestNumberAllocatorNeverRepeatsAcrossRedisOutage(t *testing.T) {
	store := newMemoryStore()
	alloc, err := NewNumberAllocator(AllocatorParams{
		Store: store,
		DB:    dbtest.Open(t),
		Now:   func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	ctx := context.Background()

	issued := map[string]bool{}
	take := func() string {
		t.Helper()
		number, err := alloc.Next(ctx)
		require.NoError(t, err)
		require.False(t, issued[number], "%s issued twice", number)
		issued[number] = true
		return number
	}

	for i := 0; i < 5; i++ {
		take()
	}
	store.fail = true
	require.Equal(t, "ORD2603150006", take())
	require.Equal(t, "ORD2603150007", take())

	// Redis comes back still holding 5.
	store.fail = false
	require.Equal(t, "ORD2603150008", take())
	require.Equal(t, int64(8), store.counters["sf:counter:orders:260315"], "redis is moved past the fallback")
	require.Equal(t, "ORD2603150009", take())

	// Redis restarts empty.
	store.counters = map[string]int64{}
	require.Equal(t, "ORD2603150010", take())
	require.Equal(t, "ORD2603150011", take())
}

func TestNumberAllocatorResetsPerDay(t *testing.T) {
	now := fixedNow
	alloc, err := NewNumberAllocator(AllocatorParams{
		DB:  dbtest.Open(t),
		Now: func() time.Time { return now },
	})
	require.NoError(t, err)

	_, err = alloc.Next(context.Background())
	require.NoError(t, err)
	now = now.Add(24 * time.Hour)
	next, err := alloc.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ORD2603160001", next)
}

func TestNumberAllocatorUsesConfiguredLocation(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	alloc, err := NewNumberAllocator(AllocatorParams{
		DB:       dbtest.Open(t),
		Location: loc,
		Now:      func() time.Time { return time.Date(2026, 3, 15, 20, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	number, err := alloc.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ORD2603160001", number)
}

func TestNewNumberAllocatorRequiresDB(t *testing.T) {
	_, err := NewNumberAllocator(AllocatorParams{})
	require.Error(t, err)
}
