package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
	"github.com/angelmondragon/storefront-backend/pkg/pubsub"
)

const serviceName = "outbox-publisher"

func main() {
	listDLQ := flag.Bool("dlq", false, "print the most recent dead-lettered events and exit")
	redrive := flag.String("redrive", "", "move the dead-lettered event with this id back into the publish queue and exit")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: load config: %v\n", serviceName, err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName

	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "service_kind": serviceName})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	fatalIf(ctx, logg, "bootstrap database", err)
	defer dbClient.Close()
	dlq := outbox.NewDLQRepository(dbClient.DB())

	switch {
	case *listDLQ:
		fatalIf(ctx, logg, "list dead letters", printDeadLetters(ctx, dlq, os.Stdout))
		return
	case *redrive != "":
		eventID, err := uuid.Parse(*redrive)
		fatalIf(ctx, logg, "parse -redrive", err)
		fatalIf(ctx, logg, "redrive event", dlq.Redrive(ctx, eventID))
		logg.Info(logg.WithField(ctx, "event_id", eventID.String()), "event requeued for publishing")
		return
	}

	fatalIf(ctx, logg, "run dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	fatalIf(ctx, logg, "bootstrap pubsub", err)
	defer pubsubClient.Close()

	events, err := registry.NewEventRegistry(cfg.PubSub)
	fatalIf(ctx, logg, "build event registry", err)

	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      events,
		DLQRepository: dlq,
	})
	fatalIf(ctx, logg, "create outbox publisher", err)

	logg.Info(logg.WithField(ctx, "topics", events.Topics()), "starting outbox publisher")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fatalIf(ctx, logg, "outbox publisher stopped", err)
	}
	logg.Info(ctx, "outbox publisher shut down")
}

func printDeadLetters(ctx context.Context, dlq *outbox.DLQRepository, out io.Writer) error {
	rows, err := dlq.Recent(ctx, 0)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EVENT ID\tTYPE\tREASON\tATTEMPTS\tFAILED AT")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			row.EventID, row.EventType, row.ErrorReason, row.AttemptCount, row.FailedAt.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}

func fatalIf(ctx context.Context, logg *logger.Logger, step string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, step, err)
	os.Exit(1)
}
