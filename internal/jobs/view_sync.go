// Package jobs contains background work that runs alongside the API.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"feedpulse/internal/cache"
	"feedpulse/internal/config"
	"feedpulse/internal/middleware"
	"feedpulse/internal/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ErrTickInProgress is returned by Tick when another tick has not finished.
var ErrTickInProgress = errors.New("view sync tick already running")

// ViewBaselines persists folded view counts. repository.PostRepository satisfies it.
type ViewBaselines interface {
	IncrementViews(ctx context.Context, postID uint, n int64) error
}

// ViewSyncConfig sizes one tick: at most BatchSize*Rounds posts are popped,
// drained BatchSize at a time, with DBConcurrency baseline writes in flight.
// WriteTimeout bounds each baseline write.
type ViewSyncConfig struct {
	Interval      time.Duration
	BatchSize     int
	Rounds        int
	DBConcurrency int
	WriteTimeout  time.Duration
}

// ViewSyncConfigFrom reads the job settings out of the app config.
func ViewSyncConfigFrom(cfg *config.Config) ViewSyncConfig {
	return ViewSyncConfig{
		Interval:      cfg.ViewSyncInterval,
		BatchSize:     cfg.ViewSyncBatchSize,
		Rounds:        cfg.ViewSyncRounds,
		DBConcurrency: cfg.ViewSyncDBConcurrency,
	}
}

func (c ViewSyncConfig) withDefaults() ViewSyncConfig {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 25
	}
	if c.Rounds <= 0 {
		c.Rounds = 8
	}
	if c.DBConcurrency <= 0 {
		c.DBConcurrency = 8
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	return c
}

// Report summarizes one tick.
type Report struct {
	TickID    string
	Processed int
	Flushed   int
	Views     int64
	Failures  int
	Elapsed   time.Duration
}

// ViewSync folds approximate per-post viewer counts from the cache into the
// durable view baselines.
type ViewSync struct {
	store   cache.Store
	posts   ViewBaselines
	cfg     ViewSyncConfig
	running atomic.Bool
}

func NewViewSync(store cache.Store, posts ViewBaselines, cfg ViewSyncConfig) *ViewSync {
	return &ViewSync{store: store, posts: posts, cfg: cfg.withDefaults()}
}

// Running reports whether a tick is in progress.
func (j *ViewSync) Running() bool {
	return j.running.Load()
}

// Run ticks every configured interval until ctx is done, then waits for the
// tick in flight. A tick that comes due while the previous one is still
// running is skipped.
func (j *ViewSync) Run(ctx context.Context) {
	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	middleware.Logger.InfoContext(ctx, "view sync scheduled", slog.Duration("interval", j.cfg.Interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = j.Tick(ctx)
			}()
		}
	}
}

// Tick runs one sync pass. An empty pending set is a no-op. Per-post and
// per-chunk failures are counted in the report, not returned.
//
// Cancelling ctx stops draining: popped posts not yet drained go back to the
// pending set. A chunk that started draining, and every baseline write, runs
// on a context detached from ctx and bounded by WriteTimeout, since the
// cache no longer holds those counts.
func (j *ViewSync) Tick(ctx context.Context) (Report, error) {
	if !j.running.CompareAndSwap(false, true) {
		observability.ViewSyncTicks.WithLabelValues("skipped").Inc()
		middleware.Logger.WarnContext(ctx, "view sync tick skipped, previous tick still running")
		return Report{}, ErrTickInProgress
	}
	defer j.running.Store(false)

	report := Report{TickID: uuid.NewString()}
	ctx = middleware.WithTickID(ctx, report.TickID)
	span, ctx := observability.NewSpan(ctx, "ViewSync.Tick")
	defer span.End()

	start := time.Now()
	ids, err := j.store.PopPendingViews(ctx, j.cfg.BatchSize*j.cfg.Rounds)
	if err != nil {
		span.SetError(err)
		observability.ViewSyncFailures.WithLabelValues("pop").Inc()
		observability.ViewSyncTicks.WithLabelValues("failed").Inc()
		middleware.Logger.ErrorContext(ctx, "view sync could not pop pending posts", slog.String("error", err.Error()))
		return report, err
	}

	var (
		g        errgroup.Group
		sem      = semaphore.NewWeighted(int64(j.cfg.DBConcurrency))
		flushed  atomic.Int64
		views    atomic.Int64
		failures atomic.Int64
	)
	flushCtx := context.WithoutCancel(ctx)

	for round := 0; round < j.cfg.Rounds; round++ {
		lo := round * j.cfg.BatchSize
		if lo >= len(ids) {
			break
		}
		if ctx.Err() != nil {
			j.requeue(flushCtx, ids[lo:])
			break
		}
		chunk := ids[lo:min(lo+j.cfg.BatchSize, len(ids))]

		drainCtx, cancelDrain := context.WithTimeout(flushCtx, j.cfg.WriteTimeout)
		counts, err := j.store.DrainViewCounts(drainCtx, chunk)
		cancelDrain()
		if err != nil {
			var drainErr *cache.DrainError
			failed := chunk
			if errors.As(err, &drainErr) {
				failed = drainErr.Failed
			}
			failures.Add(int64(len(failed)))
			observability.ViewSyncFailures.WithLabelValues("drain").Add(float64(len(failed)))
			middleware.Logger.ErrorContext(ctx, "view sync could not drain posts",
				slog.Int("round", round),
				slog.Int("posts", len(chunk)),
				slog.Int("failed", len(failed)),
				slog.String("error", err.Error()),
			)
			j.requeue(flushCtx, failed)
		}
		report.Processed += len(counts)

		for _, id := range chunk {
			n := counts[id]
			if n <= 0 {
				continue
			}
			g.Go(func() error {
				// flushCtx is never cancelled, so Acquire only waits
				_ = sem.Acquire(flushCtx, 1)
				defer sem.Release(1)

				writeCtx, cancel := context.WithTimeout(flushCtx, j.cfg.WriteTimeout)
				defer cancel()
				if err := j.posts.IncrementViews(writeCtx, id, n); err != nil {
					failures.Add(1)
					observability.ViewSyncFailures.WithLabelValues("increment").Inc()
					middleware.Logger.ErrorContext(ctx, "view baseline increment failed",
						slog.Uint64("post_id", uint64(id)),
						slog.Int64("views", n),
						slog.String("error", err.Error()),
					)
					return nil
				}
				flushed.Add(1)
				views.Add(n)
				return nil
			})
		}
	}
	_ = g.Wait()

	report.Flushed = int(flushed.Load())
	report.Views = views.Load()
	report.Failures = int(failures.Load())
	report.Elapsed = time.Since(start)

	observability.ViewSyncTicks.WithLabelValues("completed").Inc()
	observability.ViewSyncFlushedViews.Add(float64(report.Views))
	observability.ViewSyncDuration.Observe(report.Elapsed.Seconds())
	span.AddAttributes(
		attribute.Int("posts.processed", report.Processed),
		attribute.Int("posts.flushed", report.Flushed),
		attribute.Int64("views.flushed", report.Views),
	)

	middleware.Logger.InfoContext(flushCtx, "view sync tick finished",
		slog.Int("processed", report.Processed),
		slog.Int("flushed", report.Flushed),
		slog.Int64("views", report.Views),
		slog.Int("failures", report.Failures),
		slog.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

// requeue puts popped posts back into the pending set. Their viewer sets are
// untouched, so a later tick folds them.
func (j *ViewSync) requeue(ctx context.Context, ids []uint) {
	if len(ids) == 0 {
		return
	}
	if err := j.store.RequeuePendingViews(ctx, ids); err != nil {
		observability.ViewSyncFailures.WithLabelValues("requeue").Inc()
		middleware.Logger.ErrorContext(ctx, "view sync could not requeue posts",
			slog.Int("posts", len(ids)),
			slog.String("error", err.Error()),
		)
	}
}
