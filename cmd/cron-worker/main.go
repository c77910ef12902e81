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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/cron"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	products "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const serviceName = "cron-worker"

type flags struct {
	once bool
	list bool
	job  string
}

func main() {
	var f flags
	flag.BoolVar(&f.once, "once", false, "run every job a single time and exit")
	flag.BoolVar(&f.list, "list", false, "print the registered jobs with their cadence and exit")
	flag.StringVar(&f.job, "job", "", "run only the named job once and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, f); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, f flags) error {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = serviceName

	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "serviceKind": cfg.Service.Kind})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer dbClient.Close()

	jobs, err := buildRegistry(cfg, logg, dbClient)
	if err != nil {
		return fmt.Errorf("build cron jobs: %w", err)
	}
	if f.list {
		return printSchedules(jobs, os.Stdout)
	}

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("run dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer redisClient.Close()

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(serviceName+":"+envOrLocal(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		return fmt.Errorf("create cron lock: %w", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Tick:     cfg.Cron.Tick,
	})
	if err != nil {
		return fmt.Errorf("create cron service: %w", err)
	}

	switch {
	case f.job != "":
		return service.RunJob(ctx, f.job)
	case f.once:
		return service.RunOnce(ctx)
	}

	logg.Info(ctx, "starting cron worker")
	err = service.Run(ctx)
	logg.Info(ctx, "cron worker shut down")
	return err
}

func envOrLocal(env string) string {
	if env == "" {
		return "local"
	}
	return env
}

func printSchedules(jobs *cron.Registry, out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tEVERY")
	for _, s := range jobs.Schedules() {
		every := "every tick"
		if s.Every > 0 {
			every = s.Every.String()
		}
		fmt.Fprintf(tw, "%s\t%s\n", s.Job.Name(), every)
	}
	return tw.Flush()
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	gormDB := dbClient.DB()

	catalog, err := products.NewValidator(products.NewRepository(gormDB))
	if err != nil {
		return nil, err
	}
	carts, err := cart.NewService(cart.NewRepository(gormDB), dbClient, catalog, cfg.Cart.DefaultCurrency)
	if err != nil {
		return nil, err
	}
	inbox, err := notifications.NewService(notifications.NewRepository(gormDB))
	if err != nil {
		return nil, err
	}

	cartJob, err := cron.NewCartCleanupJob(cron.CartCleanupJobParams{
		Logger:    logg,
		Carts:     carts,
		Retention: cfg.Cart.GuestRetention,
	})
	if err != nil {
		return nil, err
	}
	notificationJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:        logg,
		Notifications: inbox,
	})
	if err != nil {
		return nil, err
	}
	outboxJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:              logg,
		Events:              outbox.NewRepository(gormDB),
		DeadLetters:         outbox.NewDLQRepository(gormDB),
		Retention:           cfg.Outbox.PublishedRetention,
		DeadLetterRetention: cfg.Outbox.DeadLetterRetention,
	})
	if err != nil {
		return nil, err
	}

	jobs := cron.NewRegistry()
	jobs.Register(cartJob, cfg.Cron.CartCleanupEvery)
	jobs.Register(notificationJob, cfg.Cron.NotificationCleanupEvery)
	jobs.Register(outboxJob, cfg.Cron.OutboxRetentionEvery)
	return jobs, nil
}
