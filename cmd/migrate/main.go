// Command migrate runs schema operations for the feed database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"feedpulse/internal/config"
	"feedpulse/internal/database"
	"feedpulse/internal/middleware"

	"gorm.io/gorm"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate <up|auto|status|down> [version]")
}

func run() error {
	timeout := flag.Duration("timeout", 5*time.Minute, "Abort if the operation takes longer than this")
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch strings.ToLower(strings.TrimSpace(flag.Arg(0))) {
	case "up":
		if err := database.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
		middleware.Logger.Info("sql migrations applied")
	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return fmt.Errorf("auto schema apply failed: %w", err)
		}
		middleware.Logger.Info("automigrations applied")
	case "status":
		return status(ctx, db, cfg)
	case "down":
		if flag.NArg() < 2 {
			return fmt.Errorf("usage: go run ./cmd/migrate down <version>")
		}
		version, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", flag.Arg(1), err)
		}
		if err := database.RollbackMigration(ctx, db, version); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		middleware.Logger.Info("rolled back migration", slog.Int("version", version))
	default:
		return usage()
	}

	return nil
}

func status(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	st, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return fmt.Errorf("schema status failed: %w", err)
	}
	middleware.Logger.Info("schema status",
		slog.String("mode", st.Mode),
		slog.String("env", st.Environment),
		slog.Bool("run_sql", st.WillRunSQL),
		slog.Bool("run_auto", st.WillRunAutoMigrate),
		slog.Int("applied", len(st.AppliedVersions)),
		slog.Int("pending", len(st.PendingMigrations)))
	for _, m := range st.PendingMigrations {
		middleware.Logger.Info("pending migration", slog.String("migration", m.String()))
	}
	for _, idx := range st.MissingIndexes {
		middleware.Logger.Warn("required index missing", slog.String("index", idx))
	}
	return nil
}
