package service

import (
	"context"
	"log/slog"
	"time"

	"feedpulse/internal/cache"
	"feedpulse/internal/middleware"
	"feedpulse/internal/models"
	"feedpulse/internal/observability"
	"feedpulse/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// StatsReader assembles {likes, dislikes, views} for many posts with one
// cache round trip and at most one grouped durable query.
type StatsReader struct {
	store   cache.Store
	ratings repository.RatingRepository
	ttl     time.Duration
}

// NewStatsReader returns a reader that seeds missed rating hashes with ttl.
// A non-positive ttl falls back to cache.DefaultRatingTTL.
func NewStatsReader(store cache.Store, ratings repository.RatingRepository, ttl time.Duration) *StatsReader {
	if ttl <= 0 {
		ttl = cache.DefaultRatingTTL
	}
	return &StatsReader{store: store, ratings: ratings, ttl: ttl}
}

// Read returns stats for every post in posts. A non-zero viewerID is counted
// as a viewer of each post. Read never fails: cache trouble degrades views to
// the baseline and durable trouble degrades missed ratings to zero.
func (r *StatsReader) Read(ctx context.Context, posts []models.PostBaseline, viewerID uint) map[uint]models.PostStats {
	ids := make([]uint, 0, len(posts))
	baselines := make(map[uint]int64, len(posts))
	for _, p := range posts {
		if _, ok := baselines[p.PostID]; ok {
			continue
		}
		baselines[p.PostID] = p.Views
		ids = append(ids, p.PostID)
	}

	out := make(map[uint]models.PostStats, len(ids))
	if len(ids) == 0 {
		return out
	}

	span, ctx := observability.NewSpan(ctx, "StatsReader.Read")
	defer span.End()
	span.AddAttributes(attribute.Int("posts", len(ids)), attribute.Bool("viewer", viewerID != 0))

	// posts absent from probes were not read at all and fall back to the
	// baseline and the database
	probes, err := r.store.ProbePosts(ctx, ids, viewerID)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "rating cache probe failed, reading unread posts from the database",
			slog.Int("posts", len(ids)),
			slog.Int("unread", len(ids)-len(probes)),
			slog.String("error", err.Error()),
		)
	}

	var misses []uint
	var hits, unread int
	for _, id := range ids {
		probe, ok := probes[id]
		stats := models.PostStats{Views: baselines[id]}
		if ok {
			stats.Views += probe.Viewers
		} else {
			unread++
		}
		if ok && probe.Cached {
			stats.Likes = probe.Ratings.Likes
			stats.Dislikes = probe.Ratings.Dislikes
			hits++
		} else {
			misses = append(misses, id)
		}
		out[id] = stats
	}

	observability.RatingCacheLookups.WithLabelValues("hit").Add(float64(hits))
	observability.RatingCacheLookups.WithLabelValues("miss").Add(float64(len(misses) - unread))
	observability.RatingCacheLookups.WithLabelValues("error").Add(float64(unread))
	span.AddAttributes(attribute.Int("misses", len(misses)))

	resolved := r.readThrough().Resolve(ctx, misses)
	for id, counts := range resolved {
		stats := out[id]
		stats.Likes = counts.Likes
		stats.Dislikes = counts.Dislikes
		out[id] = stats
	}
	return out
}

func (r *StatsReader) readThrough() cache.ReadThrough[uint, cache.RatingCounts] {
	return cache.ReadThrough[uint, cache.RatingCounts]{
		Load: r.loadCounts,
		Refill: func(ctx context.Context, counts map[uint]cache.RatingCounts) error {
			return r.store.SeedRatings(ctx, counts, r.ttl)
		},
		OnRefill: func(err error) {
			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			observability.RatingCacheRepopulations.WithLabelValues(outcome).Inc()
		},
	}
}

// loadCounts folds grouped (post_id, type) rows into per-post counts.
func (r *StatsReader) loadCounts(ctx context.Context, ids []uint) (map[uint]cache.RatingCounts, error) {
	rows, err := r.ratings.CountByPosts(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uint]cache.RatingCounts, len(ids))
	for _, row := range rows {
		c := out[row.PostID]
		switch row.Type {
		case models.RatingLike:
			c.Likes += row.Count
		case models.RatingDislike:
			c.Dislikes += row.Count
		}
		out[row.PostID] = c
	}
	return out, nil
}
