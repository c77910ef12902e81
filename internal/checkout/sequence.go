package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	dayLayout     = "060102"
	defaultPrefix = "ORD"
)

type sequenceStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RaiseCounter(ctx context.Context, key string, value int64, ttl time.Duration) error
	OrderSequenceKey(day string) string
}

type fallbackRecorder interface {
	IncSequenceFallback()
}

// NumberAllocator hands out order numbers of the form PREFIX+YYMMDD+NNNN
// from an atomic per-day counter. Redis is the primary counter; the
// order_sequences table takes over when Redis is unavailable. Every value
// Redis issues is recorded in the table, so the table always holds the
// highest number handed out for the day and neither source repeats the
// other.
type NumberAllocator struct {
	store   sequenceStore
	db      *gorm.DB
	prefix  string
	ttl     time.Duration
	loc     *time.Location
	now     func() time.Time
	logg    *logger.Logger
	metrics fallbackRecorder
}

// AllocatorParams configures a NumberAllocator. Store may be nil, in which
// case every number comes from the database.
type AllocatorParams struct {
	Store    sequenceStore
	DB       *gorm.DB
	Prefix   string
	TTL      time.Duration
	Location *time.Location
	Now      func() time.Time
	Logger   *logger.Logger
	Metrics  fallbackRecorder
}

func NewNumberAllocator(params AllocatorParams) (*NumberAllocator, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database required for order sequence fallback")
	}
	prefix := strings.ToUpper(strings.TrimSpace(params.Prefix))
	if prefix == "" {
		prefix = defaultPrefix
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &NumberAllocator{
		store:   params.Store,
		db:      params.DB,
		prefix:  prefix,
		ttl:     ttl,
		loc:     loc,
		now:     now,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

// Next returns the next order number for today.
func (a *NumberAllocator) Next(ctx context.Context) (string, error) {
	day := a.now().In(a.loc).Format(dayLayout)
	seq, err := a.next(ctx, day)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s%04d", a.prefix, day, seq), nil
}

func (a *NumberAllocator) next(ctx context.Context, day string) (int64, error) {
	if a.store == nil {
		return a.nextFromDB(ctx, day)
	}
	key := a.store.OrderSequenceKey(day)
	seq, err := a.store.IncrWithTTL(ctx, key, a.ttl)
	if err != nil {
		if a.logg != nil {
			a.logg.Warn(a.logg.WithField(ctx, "error", err.Error()), "order sequence redis unavailable, using database")
		}
		if a.metrics != nil {
			a.metrics.IncSequenceFallback()
		}
		return a.nextFromDB(ctx, day)
	}

	claimed, err := a.claim(ctx, day, seq)
	if err != nil {
		return 0, err
	}
	if claimed {
		return seq, nil
	}

	// Redis is behind the table: the fallback ran or the key was lost.
	seq, err = a.nextFromDB(ctx, day)
	if err != nil {
		return 0, err
	}
	if err := a.store.RaiseCounter(ctx, key, seq, a.ttl); err != nil && a.logg != nil {
		a.logg.Warn(a.logg.WithField(ctx, "error", err.Error()), "order sequence redis resync failed")
	}
	return seq, nil
}

// claim raises the day's high-water mark to seq. It reports false when the
// table already holds seq or more, meaning seq may have been issued.
func (a *NumberAllocator) claim(ctx context.Context, day string, seq int64) (bool, error) {
	res := a.db.WithContext(ctx).Exec(
		`INSERT INTO order_sequences (day, value) VALUES (?, ?)
		 ON CONFLICT (day) DO UPDATE SET value = excluded.value
		 WHERE order_sequences.value < excluded.value`, day, seq,
	)
	if res.Error != nil {
		return false, fmt.Errorf("record order sequence: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// nextFromDB upserts the per-day row and returns the incremented value in a
// single statement.
func (a *NumberAllocator) nextFromDB(ctx context.Context, day string) (int64, error) {
	var value int64
	err := a.db.WithContext(ctx).Raw(
		`INSERT INTO order_sequences (day, value) VALUES (?, 1)
		 ON CONFLICT (day) DO UPDATE SET value = order_sequences.value + 1
		 RETURNING value`, day,
	).Scan(&value).Error
	if err != nil {
		return 0, fmt.Errorf("allocate order sequence: %w", err)
	}
	return value, nil
}
