// Package bootstrap connects the runtime dependencies shared by the server
// and the command-line tools.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"feedpulse/internal/cache"
	"feedpulse/internal/config"
	"feedpulse/internal/database"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrRedisUnavailable is returned when Redis could not be reached. Ratings and
// view counts are served from Redis, so none of the runtimes start without it.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Options control runtime initialization behavior.
type Options struct {
	ApplySchema bool
}

// InitRuntime connects to DB and Redis and optionally applies the schema
// according to DB_SCHEMA_MODE.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	if opts.ApplySchema {
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			closeDB(db)
			return nil, nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()
	if r == nil {
		closeDB(db)
		return nil, nil, ErrRedisUnavailable
	}

	return db, r, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
