package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"feedpulse/internal/cache"
	"feedpulse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsReader_EmptyInput(t *testing.T) {
	t.Parallel()

	store := noopStore()
	r := NewStatsReader(store, noopRatingRepo(), 0)

	got := r.Read(context.Background(), nil, 5)
	assert.Empty(t, got)
	assert.Empty(t, store.probeCalls)
}

func TestStatsReader_AllHitsSkipDatabase(t *testing.T) {
	t.Parallel()

	store := noopStore()
	store.probeFn = func(_ context.Context, _ []uint, _ uint) (map[uint]cache.PostProbe, error) {
		return map[uint]cache.PostProbe{
			1: {Cached: true, Ratings: cache.RatingCounts{Likes: 3, Dislikes: 1}, Viewers: 4},
			2: {Cached: true, Ratings: cache.RatingCounts{Dislikes: 2}},
		}, nil
	}
	ratings := noopRatingRepo()
	ratings.countByPostsFn = func(_ context.Context, _ []uint) ([]models.RatingCount, error) {
		t.Fatal("database consulted on an all-hit read")
		return nil, nil
	}

	r := NewStatsReader(store, ratings, 0)
	got := r.Read(context.Background(), []models.PostBaseline{{PostID: 1, Views: 10}, {PostID: 2, Views: 0}}, 0)

	assert.Equal(t, map[uint]models.PostStats{
		1: {Likes: 3, Dislikes: 1, Views: 14},
		2: {Dislikes: 2, Views: 0},
	}, got)
	assert.Equal(t, 0, store.seedCount())
}

func TestStatsReader_MissesLoadOnceAndRefill(t *testing.T) {
	t.Parallel()

	store := noopStore()
	store.probeFn = func(_ context.Context, _ []uint, _ uint) (map[uint]cache.PostProbe, error) {
		return map[uint]cache.PostProbe{
			1: {Cached: true, Ratings: cache.RatingCounts{Likes: 1}},
			2: {Viewers: 2},
			3: {},
		}, nil
	}
	var seededTTL time.Duration
	seeded := make(chan map[uint]cache.RatingCounts, 1)
	store.seedFn = func(_ context.Context, counts map[uint]cache.RatingCounts, ttl time.Duration) error {
		seededTTL = ttl
		seeded <- counts
		return nil
	}

	ratings := noopRatingRepo()
	var loads [][]uint
	ratings.countByPostsFn = func(_ context.Context, ids []uint) ([]models.RatingCount, error) {
		loads = append(loads, ids)
		return []models.RatingCount{
			{PostID: 2, Type: models.RatingLike, Count: 5},
			{PostID: 2, Type: models.RatingDislike, Count: 3},
		}, nil
	}

	r := NewStatsReader(store, ratings, 30*time.Second)
	got := r.Read(context.Background(), []models.PostBaseline{{PostID: 1}, {PostID: 2, Views: 7}, {PostID: 3}}, 0)

	assert.Equal(t, models.PostStats{Likes: 1}, got[1])
	assert.Equal(t, models.PostStats{Likes: 5, Dislikes: 3, Views: 9}, got[2])
	assert.Equal(t, models.PostStats{}, got[3])
	assert.Equal(t, [][]uint{{2, 3}}, loads)

	select {
	case counts := <-seeded:
		// posts without rating rows are seeded with zeros too
		assert.Equal(t, map[uint]cache.RatingCounts{2: {Likes: 5, Dislikes: 3}, 3: {}}, counts)
		assert.Equal(t, 30*time.Second, seededTTL)
	case <-time.After(time.Second):
		t.Fatal("missed posts were not refilled")
	}
}

func TestStatsReader_CacheFailureFallsBackToBaseline(t *testing.T) {
	t.Parallel()

	store := noopStore()
	store.probeFn = func(_ context.Context, _ []uint, _ uint) (map[uint]cache.PostProbe, error) {
		return nil, errors.New("connection reset")
	}
	store.seedFn = func(_ context.Context, _ map[uint]cache.RatingCounts, _ time.Duration) error {
		return errors.New("connection reset")
	}
	ratings := noopRatingRepo()
	ratings.countByPostsFn = func(_ context.Context, _ []uint) ([]models.RatingCount, error) {
		return []models.RatingCount{{PostID: 1, Type: models.RatingLike, Count: 2}}, nil
	}

	r := NewStatsReader(store, ratings, 0)
	got := r.Read(context.Background(), []models.PostBaseline{{PostID: 1, Views: 10}, {PostID: 2, Views: 3}}, 9)

	assert.Equal(t, models.PostStats{Likes: 2, Views: 10}, got[1])
	assert.Equal(t, models.PostStats{Views: 3}, got[2])
}

func TestStatsReader_PartialProbeKeepsReadPosts(t *testing.T) {
	t.Parallel()

	store := noopStore()
	store.probeFn = func(_ context.Context, _ []uint, _ uint) (map[uint]cache.PostProbe, error) {
		probes := map[uint]cache.PostProbe{
			1: {Ratings: cache.RatingCounts{Likes: 4}, Cached: true, Viewers: 2},
		}
		return probes, errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")
	}
	ratings := noopRatingRepo()
	var loaded []uint
	ratings.countByPostsFn = func(_ context.Context, ids []uint) ([]models.RatingCount, error) {
		loaded = ids
		return []models.RatingCount{{PostID: 2, Type: models.RatingDislike, Count: 1}}, nil
	}

	r := NewStatsReader(store, ratings, 0)
	got := r.Read(context.Background(), []models.PostBaseline{{PostID: 1, Views: 10}, {PostID: 2, Views: 3}}, 0)

	assert.Equal(t, models.PostStats{Likes: 4, Views: 12}, got[1])
	assert.Equal(t, models.PostStats{Dislikes: 1, Views: 3}, got[2])
	assert.Equal(t, []uint{2}, loaded)
}

func TestStatsReader_DatabaseFailureDegradesToZero(t *testing.T) {
	t.Parallel()

	store := noopStore()
	store.probeFn = func(_ context.Context, _ []uint, _ uint) (map[uint]cache.PostProbe, error) {
		return map[uint]cache.PostProbe{1: {Viewers: 1}}, nil
	}
	ratings := noopRatingRepo()
	ratings.countByPostsFn = func(_ context.Context, _ []uint) ([]models.RatingCount, error) {
		return nil, models.NewInternalError(errors.New("timeout"))
	}

	r := NewStatsReader(store, ratings, 0)
	got := r.Read(context.Background(), []models.PostBaseline{{PostID: 1, Views: 4}}, 0)

	assert.Equal(t, models.PostStats{Views: 5}, got[1])
	// nothing is written back when the load failed
	assert.Never(t, func() bool { return store.seedCount() > 0 }, 50*time.Millisecond, 10*time.Millisecond)
}

func TestStatsReader_DuplicatesCollapse(t *testing.T) {
	t.Parallel()

	store := noopStore()
	r := NewStatsReader(store, noopRatingRepo(), 0)

	got := r.Read(context.Background(), []models.PostBaseline{{PostID: 4, Views: 1}, {PostID: 4, Views: 1}, {PostID: 5}}, 0)
	assert.Len(t, got, 2)
	require.Len(t, store.probeCalls, 1)
	assert.Equal(t, []uint{4, 5}, store.probeCalls[0])
}
