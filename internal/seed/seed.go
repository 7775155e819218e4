package seed

import (
	"context"
	"fmt"
	"log/slog"

	"feedpulse/internal/cache"
	"feedpulse/internal/middleware"
	"feedpulse/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers       int
	NumPosts       int
	RatersPerPost  int
	ViewersPerPost int
	MaxDays        int
	RandSeed       int64
	ShouldClean    bool
}

// Rater applies a rating transition the same way the API does.
type Rater interface {
	ApplyTransition(ctx context.Context, postID, userID uint, target models.RatingType) (models.PostStats, error)
}

// ViewRecorder records a viewer against posts.
type ViewRecorder interface {
	ProbePosts(ctx context.Context, postIDs []uint, viewerID uint) (map[uint]cache.PostProbe, error)
}

// Summary counts what a Seed run created.
type Summary struct {
	Users   int
	Posts   int
	Ratings int
	Views   int
}

// Seed populates the database with demo users and posts, then rates and
// views the posts through rater and views so caches and counters agree
// with the durable rows. Either may be nil to skip that phase.
func Seed(ctx context.Context, db *gorm.DB, rater Rater, views ViewRecorder, opts Options) (*Summary, error) {
	logger := middleware.Logger
	logger.Info("starting database seeding",
		slog.Int("users", opts.NumUsers),
		slog.Int("posts", opts.NumPosts))

	if opts.ShouldClean {
		if err := clearData(ctx, db); err != nil {
			logger.Warn("could not clear existing data, continuing", slog.String("error", err.Error()))
		}
	}

	f := NewFactory(db, opts.RandSeed, opts.MaxDays)
	summary := &Summary{}

	users := make([]models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		user, err := f.CreateUser(ctx)
		if err != nil {
			return summary, fmt.Errorf("failed to create users: %w", err)
		}
		users = append(users, *user)
	}
	summary.Users = len(users)
	if len(users) == 0 {
		return summary, nil
	}

	posts := make([]*models.Post, 0, opts.NumPosts)
	for i := 0; i < opts.NumPosts; i++ {
		posts = append(posts, f.BuildPost(&users[f.Intn(len(users))]))
	}
	if err := f.CreatePostsBatch(ctx, posts); err != nil {
		return summary, fmt.Errorf("failed to create posts: %w", err)
	}
	summary.Posts = len(posts)

	for _, post := range posts {
		if rater != nil {
			for _, u := range f.Sample(users, opts.RatersPerPost) {
				if _, err := rater.ApplyTransition(ctx, post.ID, u.ID, f.RandomRating()); err != nil {
					return summary, fmt.Errorf("rate post %d: %w", post.ID, err)
				}
				summary.Ratings++
			}
		}
		if views != nil {
			for _, u := range f.Sample(users, opts.ViewersPerPost) {
				if _, err := views.ProbePosts(ctx, []uint{post.ID}, u.ID); err != nil {
					return summary, fmt.Errorf("view post %d: %w", post.ID, err)
				}
				summary.Views++
			}
		}
	}

	logger.Info("database seeding completed",
		slog.Int("users", summary.Users),
		slog.Int("posts", summary.Posts),
		slog.Int("ratings", summary.Ratings),
		slog.Int("views", summary.Views))
	return summary, nil
}

func clearData(ctx context.Context, db *gorm.DB) error {
	middleware.Logger.Info("clearing existing data")
	if db.Dialector.Name() == "postgres" {
		return db.WithContext(ctx).Exec(`TRUNCATE TABLE post_ratings, posts, users RESTART IDENTITY CASCADE;`).Error
	}

	tx := db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []interface{}{&models.PostRating{}, &models.Post{}, &models.User{}} {
		if err := tx.Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}
