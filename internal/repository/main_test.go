package repository

import (
	"context"
	"testing"

	"feedpulse/internal/config"
	"feedpulse/internal/database"
	"feedpulse/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newTestDB returns a migrated in-memory SQLite database. A single pooled
// connection keeps every statement on the same database.
func newTestDB(t *testing.T) *gorm.DB {
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

// setupMockDB returns gorm on the postgres dialect over sqlmock, for
// asserting the exact SQL a repository issues.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func seedUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username}
	require.NoError(t, NewUserRepository(db).Create(context.Background(), u))
	return u
}

func seedPost(t *testing.T, db *gorm.DB, authorID uint, views int64) *models.Post {
	t.Helper()
	p := &models.Post{AuthorID: authorID, Content: "hello", ViewsBaseline: views}
	require.NoError(t, NewPostRepository(db).Create(context.Background(), p))
	return p
}
