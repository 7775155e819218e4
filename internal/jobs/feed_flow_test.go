package jobs

import (
	"context"
	"testing"
	"time"

	"feedpulse/internal/cache"
	"feedpulse/internal/config"
	"feedpulse/internal/database"
	"feedpulse/internal/models"
	"feedpulse/internal/repository"
	"feedpulse/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

// Post P1 starts at 10 views with no ratings. U1 likes it, U2 views it, a
// sync tick folds the view into the baseline.
func TestFeedFlow_LikeViewSync(t *testing.T) {
	env := newSyncEnv(t)
	ctx := context.Background()

	db, err := database.Open(sqlite.Open(":memory:"), &config.Config{DBMaxOpenConns: 1, DBMaxIdleConns: 1})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store := cache.NewRedisStore(env.rdb)
	posts := repository.NewPostRepository(db)
	ratings := repository.NewRatingRepository(db)
	reader := service.NewStatsReader(store, ratings, cache.DefaultRatingTTL)
	ratingSvc := service.NewRatingService(posts, ratings, store, reader, nil, 0)
	feed := service.NewPostService(posts, store, reader, nil)

	author := &models.User{Username: "author"}
	require.NoError(t, repository.NewUserRepository(db).Create(ctx, author))
	p1 := &models.Post{AuthorID: author.ID, Content: "P1", ViewsBaseline: 10}
	require.NoError(t, posts.Create(ctx, p1))

	const u1, u2 = uint(101), uint(102)

	stats, err := ratingSvc.ApplyTransition(ctx, p1.ID, u1, models.RatingLike)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Likes)
	assert.Equal(t, int64(0), stats.Dislikes)

	current, err := ratings.Find(ctx, p1.ID, u1)
	require.NoError(t, err)
	assert.Equal(t, models.RatingLike, current)

	got, err := feed.GetPost(ctx, p1.ID, u2)
	require.NoError(t, err)
	assert.Equal(t, int64(11), got.Views)
	assert.Equal(t, int64(1), got.Likes)

	report, err := NewViewSync(store, posts, ViewSyncConfig{}).Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Views)

	stored, err := posts.GetByID(ctx, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(11), stored.ViewsBaseline)
	assert.False(t, env.mr.Exists(cache.ViewersKey(p1.ID)))

	// an anonymous read adds no viewers
	got, err = feed.GetPost(ctx, p1.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(11), got.Views)

	require.Eventually(t, func() bool {
		return env.mr.Exists(cache.RatingKey(p1.ID))
	}, time.Second, 5*time.Millisecond)
}
