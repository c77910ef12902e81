package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeRunner struct {
	err     error
	started chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context) error {
	close(f.started)
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func newTestService(t *testing.T, redisErr error, consumer *fakeRunner) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config:               &config.Config{},
		Logger:               logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:                   fakePinger{},
		Redis:                fakePinger{err: redisErr},
		PubSub:               fakePinger{},
		NotificationConsumer: consumer,
	})
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresConsumer(t *testing.T) {
	_, err := NewService(ServiceParams{
		Config: &config.Config{},
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:     fakePinger{},
		Redis:  fakePinger{},
		PubSub: fakePinger{},
	})
	require.Error(t, err)
}

func TestRunFailsWhenDependencyIsDown(t *testing.T) {
	consumer := &fakeRunner{started: make(chan struct{})}
	svc := newTestService(t, errors.New("connection refused"), consumer)

	err := svc.Run(context.Background())
	require.ErrorContains(t, err, "redis ping failed")

	select {
	case <-consumer.started:
		t.Fatal("consumer should not start when readiness fails")
	default:
	}
}

func TestRunReturnsConsumerError(t *testing.T) {
	boom := errors.New("subscription deleted")
	svc := newTestService(t, nil, &fakeRunner{err: boom, started: make(chan struct{})})

	require.ErrorIs(t, svc.Run(context.Background()), boom)
}

func TestRunStopsOnCancel(t *testing.T) {
	consumer := &fakeRunner{started: make(chan struct{})}
	svc := newTestService(t, nil, consumer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	<-consumer.started
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
