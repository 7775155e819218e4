package seed

import (
	"context"
	"testing"

	"feedpulse/internal/cache"
	"feedpulse/internal/config"
	"feedpulse/internal/database"
	"feedpulse/internal/models"
	"feedpulse/internal/repository"
	"feedpulse/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newSeedDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(sqlite.Open(":memory:"), &config.Config{DBMaxOpenConns: 1, DBMaxIdleConns: 1})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestFactory_BuildPostWithinLimits(t *testing.T) {
	f := NewFactory(nil, 42, 7)
	author := &models.User{ID: 3}

	for i := 0; i < 20; i++ {
		post := f.BuildPost(author)
		assert.Equal(t, uint(3), post.AuthorID)
		assert.NotEmpty(t, post.Content)
		assert.LessOrEqual(t, len([]rune(post.Content)), maxSeedContentRunes)
		assert.False(t, post.CreatedAt.IsZero())
	}
}

func TestFactory_UniqueUsernames(t *testing.T) {
	f := NewFactory(nil, 42, 0)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		u := f.BuildUser()
		require.False(t, seen[u.Username], u.Username)
		seen[u.Username] = true
	}
}

func TestFactory_SampleIsDistinctAndBounded(t *testing.T) {
	f := NewFactory(nil, 7, 0)
	users := []models.User{{ID: 1}, {ID: 2}, {ID: 3}}

	picked := f.Sample(users, 5)
	require.Len(t, picked, 3)
	ids := map[uint]bool{}
	for _, u := range picked {
		ids[u.ID] = true
	}
	assert.Len(t, ids, 3)
	assert.Empty(t, f.Sample(users, 0))
}

func TestSeed_RatingsAndViewsMatchDurableRows(t *testing.T) {
	db := newSeedDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	posts := repository.NewPostRepository(db)
	ratings := repository.NewRatingRepository(db)
	store := cache.NewRedisStore(rdb)
	reader := service.NewStatsReader(store, ratings, cache.DefaultRatingTTL)
	rater := service.NewRatingService(posts, ratings, store, reader, nil, 0)

	ctx := context.Background()
	summary, err := Seed(ctx, db, rater, store, Options{
		NumUsers:       6,
		NumPosts:       4,
		RatersPerPost:  3,
		ViewersPerPost: 2,
		RandSeed:       99,
	})
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Users)
	assert.Equal(t, 4, summary.Posts)
	assert.Equal(t, 12, summary.Ratings)
	assert.Equal(t, 8, summary.Views)

	var ratingRows int64
	require.NoError(t, db.Model(&models.PostRating{}).Count(&ratingRows).Error)
	assert.Equal(t, int64(12), ratingRows)

	pending, err := rdb.SCard(ctx, cache.PendingViewsKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(4), pending)
}

func TestSeed_CleanRemovesPriorData(t *testing.T) {
	db := newSeedDB(t)
	ctx := context.Background()

	_, err := Seed(ctx, db, nil, nil, Options{NumUsers: 3, NumPosts: 5, RandSeed: 1})
	require.NoError(t, err)

	summary, err := Seed(ctx, db, nil, nil, Options{NumUsers: 2, NumPosts: 1, RandSeed: 2, ShouldClean: true})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Ratings)

	var users, postCount int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&models.Post{}).Count(&postCount).Error)
	assert.Equal(t, int64(2), users)
	assert.Equal(t, int64(1), postCount)
}

func TestSeed_NoUsersStopsEarly(t *testing.T) {
	db := newSeedDB(t)
	summary, err := Seed(context.Background(), db, nil, nil, Options{NumPosts: 5})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Posts)
}
