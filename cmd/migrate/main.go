package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"go.uber.org/zap"

	"cdm/internal/config"
	"cdm/internal/db"
	"cdm/internal/logger"
)

const usage = "usage: migrate up|down|reset|status"

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()
	log, err := logger.New(logger.Config{Environment: cfg.Environment, LogLevel: cfg.LogLevel, ServiceName: "cdm-migrate"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(context.Background(), cfg, log, os.Args[1]); err != nil {
		log.Fatal("migration failed", zap.String("command", os.Args[1]), zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, command string) error {
	gormDB, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	migrator, err := db.NewMigrator(gormDB, cfg.DBDriver, log)
	if err != nil {
		return err
	}

	switch command {
	case "up":
		return migrator.Up(ctx)
	case "down":
		return migrator.Down(ctx)
	case "reset":
		return migrator.Reset(ctx)
	case "status":
		statuses, err := migrator.Status(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tAPPLIED\tSOURCE")
		for _, s := range statuses {
			fmt.Fprintf(w, "%d\t%t\t%s\n", s.Version, s.Applied, s.Path)
		}
		return w.Flush()
	default:
		return fmt.Errorf("unknown command %q (%s)", command, usage)
	}
}
