package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"feedpulse/internal/config"
	"feedpulse/internal/middleware"
	"feedpulse/internal/models"

	"gorm.io/gorm"
)

const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// requiredIndex is an index whose absence silently breaks a write path.
type requiredIndex struct {
	model interface{}
	table string
	name  string
}

// The conditional rating insert resolves races through ON CONFLICT on
// (post_id, user_id); without the unique index duplicates are accepted.
var requiredIndexes = []requiredIndex{
	{model: &models.PostRating{}, table: "post_ratings", name: "idx_post_ratings_post_user"},
	{model: &models.User{}, table: "users", name: "idx_users_username"},
}

// SchemaStatus describes what ApplySchema would do and what is missing.
type SchemaStatus struct {
	Mode               string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	AppliedVersions    []int
	PendingMigrations  []Migration
	// MissingIndexes lists required indexes absent from existing tables.
	MissingIndexes []string
}

// schemaPlan is the schema work a mode and environment allow.
type schemaPlan struct {
	mode    string
	prod    bool
	runSQL  bool
	runAuto bool
}

func isProdLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

func planSchema(cfg *config.Config) (schemaPlan, error) {
	plan := schemaPlan{
		mode: strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode)),
		prod: isProdLikeEnv(cfg.Env),
	}
	if plan.mode == "" {
		plan.mode = SchemaModeHybrid
	}

	switch plan.mode {
	case SchemaModeSQL:
		plan.runSQL = true
	case SchemaModeHybrid:
		// AutoMigrate only fills gaps outside production
		plan.runSQL = true
		plan.runAuto = !plan.prod
	case SchemaModeAuto:
		if plan.prod && !cfg.DBAutoMigrateAllowDestructive {
			return plan, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.runAuto = true
	default:
		return plan, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", plan.mode)
	}
	return plan, nil
}

// ApplySchema runs the migrations and AutoMigrate the configured mode allows,
// then checks that the indexes the rating writes depend on exist.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := planSchema(cfg)
	if err != nil {
		return err
	}

	if plan.runSQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}

	if plan.runAuto {
		if plan.mode == SchemaModeAuto && plan.prod {
			middleware.Logger.Warn("AutoMigrate enabled in a production-like environment, review schema diffs first",
				slog.String("env", cfg.Env))
		}
		middleware.Logger.Info("running AutoMigrate", slog.String("mode", plan.mode), slog.String("env", cfg.Env))
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	return VerifySchema(ctx, db)
}

// VerifySchema fails when a table exists without one of its required indexes.
func VerifySchema(ctx context.Context, db *gorm.DB) error {
	missing := missingIndexes(ctx, db)
	if len(missing) > 0 {
		return fmt.Errorf("schema is missing required indexes: %s", strings.Join(missing, ", "))
	}
	return nil
}

// missingIndexes skips tables that do not exist yet; pending migrations
// report those.
func missingIndexes(ctx context.Context, db *gorm.DB) []string {
	migrator := db.WithContext(ctx).Migrator()
	var missing []string
	for _, idx := range requiredIndexes {
		if !migrator.HasTable(idx.model) {
			continue
		}
		if !migrator.HasIndex(idx.model, idx.name) {
			missing = append(missing, idx.table+"."+idx.name)
		}
	}
	return missing
}

// GetSchemaStatus reports the plan for cfg along with applied and pending
// migrations and any missing required index.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := planSchema(cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		Mode:               plan.mode,
		Environment:        cfg.Env,
		WillRunSQL:         plan.runSQL,
		WillRunAutoMigrate: plan.runAuto,
		MissingIndexes:     missingIndexes(ctx, db),
	}
	if !plan.runSQL {
		return status, nil
	}

	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	status.AppliedVersions = applied
	status.PendingMigrations = pendingMigrations(applied, GetMigrations())
	return status, nil
}
