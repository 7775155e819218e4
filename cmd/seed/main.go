// Command main runs the demo data seeder for Feedpulse.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"

	"feedpulse/internal/bootstrap"
	"feedpulse/internal/cache"
	"feedpulse/internal/config"
	"feedpulse/internal/middleware"
	"feedpulse/internal/notifications"
	"feedpulse/internal/repository"
	"feedpulse/internal/seed"
	"feedpulse/internal/service"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numPosts := flag.Int("posts", 200, "Number of posts to create")
	raters := flag.Int("raters", 10, "Users rating each post")
	viewers := flag.Int("viewers", 25, "Users viewing each post")
	randSeed := flag.Int64("seed", 0, "Deterministic random seed (0 = time based)")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	db, rdb, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{ApplySchema: true})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() { _ = rdb.Close() }()

	posts := repository.NewPostRepository(db)
	ratings := repository.NewRatingRepository(db)
	store := cache.NewRedisStore(rdb)
	reader := service.NewStatsReader(store, ratings, cfg.RatingCacheTTL())
	rater := service.NewRatingService(posts, ratings, store, reader,
		notifications.NewNotifier(rdb), cfg.RatingMaxRetries)

	summary, err := seed.Seed(ctx, db, rater, store, seed.Options{
		NumUsers:       *numUsers,
		NumPosts:       *numPosts,
		RatersPerPost:  *raters,
		ViewersPerPost: *viewers,
		RandSeed:       *randSeed,
		ShouldClean:    *shouldClean,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	middleware.Logger.Info("seed complete",
		slog.Int("users", summary.Users),
		slog.Int("posts", summary.Posts),
		slog.Int("ratings", summary.Ratings),
		slog.Int("views", summary.Views))
}
