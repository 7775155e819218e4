// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"time"

	"feedpulse/internal/models"
	"feedpulse/internal/observability"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ListPostsQuery selects a newest-first page of posts. Cursor, when set, is
// the id of the last post already seen.
type ListPostsQuery struct {
	Limit    int
	Cursor   uint
	AuthorID uint
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	List(ctx context.Context, q ListPostsQuery) ([]*models.Post, error)
	// UpdateContent edits a post owned by authorID. Posts owned by anyone
	// else are reported as not found.
	UpdateContent(ctx context.Context, id, authorID uint, content string, editedAt time.Time) (*models.Post, error)
	// Delete removes a post owned by authorID together with its ratings.
	Delete(ctx context.Context, id, authorID uint) error
	// IncrementViews adds n to the post's durable view baseline.
	IncrementViews(ctx context.Context, id uint, n int64) error
}

// postRepository implements PostRepository
type postRepository struct {
	db      *gorm.DB
	metrics *observability.DatabaseMetrics
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, metrics: observability.NewDatabaseMetrics()}
}

// isForeignKeyViolation matches Postgres foreign_key_violation.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer r.metrics.TrackQuery("create", "posts")()
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		if isForeignKeyViolation(err) {
			return models.NewNotFoundError("User", post.AuthorID)
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	defer r.metrics.TrackQuery("get", "posts")()
	var post models.Post
	if err := r.db.WithContext(ctx).Preload("Author").First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, q ListPostsQuery) ([]*models.Post, error) {
	defer r.metrics.TrackQuery("list", "posts")()
	var posts []*models.Post
	tx := r.db.WithContext(ctx).Preload("Author")
	if q.Cursor != 0 {
		tx = tx.Where("posts.id < ?", q.Cursor)
	}
	if q.AuthorID != 0 {
		tx = tx.Where("posts.author_id = ?", q.AuthorID)
	}
	err := tx.Order("posts.id DESC").Limit(q.Limit).Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) UpdateContent(ctx context.Context, id, authorID uint, content string, editedAt time.Time) (*models.Post, error) {
	defer r.metrics.TrackQuery("update", "posts")()
	result := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ? AND author_id = ?", id, authorID).
		Updates(map[string]interface{}{"content": content, "edited_at": editedAt})
	if result.Error != nil {
		return nil, models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, models.NewNotFoundError("Post", id)
	}
	return r.GetByID(ctx, id)
}

func (r *postRepository) Delete(ctx context.Context, id, authorID uint) error {
	defer r.metrics.TrackQuery("delete", "posts")()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Select("id").Where("id = ? AND author_id = ?", id, authorID).First(&post).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.PostRating{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Post", id)
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) IncrementViews(ctx context.Context, id uint, n int64) error {
	defer r.metrics.TrackQuery("increment_views", "posts")()
	result := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + ?", n))
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}
