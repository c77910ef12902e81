// Package idempotency lets pub/sub consumers process each outbox event once.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Guard claims event ids for one consumer. Keys look like
// sf:idempotency:evt:<consumer>:<event_id>.
type Guard struct {
	store    redis.IdempotencyStore
	consumer string
	ttl      time.Duration
}

func NewGuard(store redis.IdempotencyStore, consumer string, ttl time.Duration) (*Guard, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case consumer == "":
		return nil, errors.New("consumer name is required")
	case ttl <= 0:
		return nil, errors.New("ttl must be positive")
	}
	return &Guard{store: store, consumer: consumer, ttl: ttl}, nil
}

// Claim is the outcome of a single Guard.Claim call.
type Claim struct {
	guard *Guard
	key   string
	fresh bool
}

// Fresh is false when another delivery already claimed the event.
func (c Claim) Fresh() bool { return c.fresh }

// Release gives the event back so a redelivery can handle it. Call it only
// when processing failed after a fresh claim.
func (c Claim) Release(ctx context.Context) error {
	if !c.fresh {
		return nil
	}
	return c.guard.store.Del(ctx, c.key)
}

func (g *Guard) Claim(ctx context.Context, eventID uuid.UUID) (Claim, error) {
	if eventID == uuid.Nil {
		return Claim{}, errors.New("event id is required")
	}
	key := g.store.IdempotencyKey("evt:"+g.consumer, eventID.String())
	fresh, err := g.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return Claim{}, err
	}
	return Claim{guard: g, key: key, fresh: fresh}, nil
}
