package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feedpulse_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// RatingCacheLookups counts batch reader cache lookups by result (hit, miss, error).
	RatingCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedpulse_rating_cache_lookups_total",
		Help: "Rating cache lookups by result",
	}, []string{"result"})

	// RatingCacheRepopulations counts fire-and-forget cache refills by outcome.
	RatingCacheRepopulations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedpulse_rating_cache_repopulations_total",
		Help: "Rating cache repopulations by outcome",
	}, []string{"outcome"})

	// RatingTransitions counts applied rating transitions by from/to state.
	RatingTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedpulse_rating_transitions_total",
		Help: "Applied rating transitions",
	}, []string{"from", "to"})

	// RatingConflicts counts conditional rating writes that lost a race.
	RatingConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedpulse_rating_conflicts_total",
		Help: "Conditional rating writes that affected no rows",
	})

	// ViewSyncTicks counts sync ticks by outcome: completed, skipped or failed.
	ViewSyncTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedpulse_view_sync_ticks_total",
		Help: "View sync ticks by outcome",
	}, []string{"outcome"})

	// ViewSyncFlushedViews counts views folded into durable baselines.
	ViewSyncFlushedViews = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedpulse_view_sync_flushed_views_total",
		Help: "Approximate views folded into post baselines",
	})

	// ViewSyncFailures counts view sync failures by stage (pop, drain, increment, requeue).
	ViewSyncFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedpulse_view_sync_failures_total",
		Help: "View sync failures by stage",
	}, []string{"stage"})

	// ViewSyncDuration records tick wall time.
	ViewSyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feedpulse_view_sync_duration_seconds",
		Help:    "View sync tick duration in seconds",
		Buckets: prometheus.DefBuckets,
	})
)

// DatabaseMetrics records query latency for a repository.
type DatabaseMetrics struct{}

// NewDatabaseMetrics returns a new DatabaseMetrics instance.
func NewDatabaseMetrics() *DatabaseMetrics {
	return &DatabaseMetrics{}
}

// ObserveQuery records the latency of a database query.
func (*DatabaseMetrics) ObserveQuery(operation, table string, start time.Time) {
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func (m *DatabaseMetrics) TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		m.ObserveQuery(operation, table, start)
	}
}
