// Command syncviews runs view synchronization once, or on an interval with
// -loop, outside the API process.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"feedpulse/internal/bootstrap"
	"feedpulse/internal/cache"
	"feedpulse/internal/config"
	"feedpulse/internal/jobs"
	"feedpulse/internal/middleware"
	"feedpulse/internal/repository"
)

func main() {
	loop := flag.Bool("loop", false, "Keep running ticks every VIEW_SYNC_INTERVAL until interrupted")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, rdb, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() {
		_ = rdb.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	job := jobs.NewViewSync(cache.NewRedisStore(rdb), repository.NewPostRepository(db), jobs.ViewSyncConfigFrom(cfg))
	if *loop {
		job.Run(ctx)
		return
	}

	report, err := job.Tick(ctx)
	if err != nil {
		middleware.Logger.Error("view sync failed", slog.String("error", err.Error()))
		return
	}
	middleware.Logger.Info("view sync finished",
		slog.String("tick_id", report.TickID),
		slog.Int("processed", report.Processed),
		slog.Int("flushed", report.Flushed),
		slog.Int64("views", report.Views),
		slog.Int("failures", report.Failures),
		slog.Duration("elapsed", report.Elapsed))
}
