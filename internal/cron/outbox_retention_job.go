package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	defaultPublishedRetention  = 30 * 24 * time.Hour
	defaultDeadLetterRetention = 90 * 24 * time.Hour
)

type publishedPruner interface {
	DeletePublishedBefore(ctx context.Context, before time.Time) (int64, error)
}

type deadLetterPruner interface {
	DeleteFailedBefore(ctx context.Context, before time.Time) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	Events      publishedPruner
	DeadLetters deadLetterPruner

	// Retention applies to delivered rows, DeadLetterRetention to the DLQ.
	Retention           time.Duration
	DeadLetterRetention time.Duration
}

// NewOutboxRetentionJob prunes delivered outbox rows and stale dead letters.
// Undelivered rows are never touched.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Events == nil:
		return nil, errors.New("outbox repository required")
	case params.DeadLetters == nil:
		return nil, errors.New("dlq repository required")
	}
	job := &outboxRetentionJob{
		logg:       params.Logger,
		events:     params.Events,
		dlq:        params.DeadLetters,
		keep:       params.Retention,
		keepFailed: params.DeadLetterRetention,
		now:        time.Now,
	}
	if job.keep <= 0 {
		job.keep = defaultPublishedRetention
	}
	if job.keepFailed <= 0 {
		job.keepFailed = defaultDeadLetterRetention
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg       *logger.Logger
	events     publishedPruner
	dlq        deadLetterPruner
	keep       time.Duration
	keepFailed time.Duration
	now        func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run prunes both tables even when one of them fails.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	var errs error

	published, err := j.events.DeletePublishedBefore(ctx, now.Add(-j.keep))
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("prune published events: %w", err))
	}
	deadLetters, err := j.dlq.DeleteFailedBefore(ctx, now.Add(-j.keepFailed))
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("prune dead letters: %w", err))
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"published_deleted":    published,
		"dead_letters_deleted": deadLetters,
	}), "outbox retention complete")
	return errs
}
