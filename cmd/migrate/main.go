package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

type options struct {
	dir     string
	name    string
	version string
}

type dbCommand func(ctx context.Context, runner *migrate.Runner, opts options, out io.Writer) error

var dbCommands = map[string]dbCommand{
	"up": func(ctx context.Context, r *migrate.Runner, _ options, _ io.Writer) error {
		return r.Up(ctx)
	},
	"down": func(ctx context.Context, r *migrate.Runner, _ options, _ io.Writer) error {
		return r.Down(ctx)
	},
	"status": printStatus,
	"version": func(ctx context.Context, r *migrate.Runner, _ options, out io.Writer) error {
		v, err := r.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, v)
		return nil
	},
	"to": func(ctx context.Context, r *migrate.Runner, opts options, _ io.Writer) error {
		if opts.version == "" {
			return fmt.Errorf("missing -version for -cmd=to")
		}
		return r.MigrateTo(ctx, opts.version)
	},
}

func main() {
	cmd := flag.String("cmd", "up", "up|down|status|version|to|create|validate")
	var opts options
	flag.StringVar(&opts.dir, "dir", "", "migrations directory; embedded set when empty, create writes to "+migrate.DefaultDir)
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target YYYYMMDDHHMMSS for -cmd=to")
	flag.Parse()

	_ = godotenv.Load()

	// create and validate only touch files
	switch *cmd {
	case "create":
		path, err := migrate.CreateSQLMigration(dirOrDefault(opts.dir), opts.name, time.Now())
		exitOn(err, "create migration")
		fmt.Println("created", path)
		return
	case "validate":
		exitOn(migrate.Validate(migrate.Source(opts.dir)), "validate migrations")
		fmt.Println("migrations valid")
		return
	}

	run, ok := dbCommands[*cmd]
	if !ok {
		exitOn(fmt.Errorf("unknown -cmd %q", *cmd), "parse flags")
	}

	cfg, err := config.Load()
	exitOn(err, "load config")
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	exitOn(err, "connect database")
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	exitOn(err, "unwrap sql.DB")

	runner, err := migrate.NewRunner(sqlDB, migrate.Source(opts.dir), logg)
	exitOn(err, "build migration runner")

	if err := run(ctx, runner, opts, os.Stdout); err != nil {
		logg.Error(ctx, "migration command failed", err)
		os.Exit(1)
	}
}

func printStatus(ctx context.Context, r *migrate.Runner, _ options, out io.Writer) error {
	statuses, err := r.Status(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, st := range statuses {
		applied := "-"
		if !st.AppliedAt.IsZero() {
			applied = st.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", st.Source.Version, st.State, applied, st.Source.Path)
	}
	return tw.Flush()
}

func dirOrDefault(dir string) string {
	if dir == "" {
		return migrate.DefaultDir
	}
	return dir
}

func exitOn(err error, step string) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "migrate: %s: %v\n", step, err)
	os.Exit(1)
}
