package repository

import (
	"context"
	"errors"

	"feedpulse/internal/models"
	"feedpulse/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RatingRepository holds the durable post_ratings rows. Every mutation is a
// single conditional statement keyed by (post_id, user_id); the boolean
// result reports whether this call's write took effect.
type RatingRepository interface {
	// Find returns the user's current rating of the post, RatingNone if absent.
	Find(ctx context.Context, postID, userID uint) (models.RatingType, error)
	// CreateIfAbsent inserts a rating unless one already exists.
	CreateIfAbsent(ctx context.Context, postID, userID uint, t models.RatingType) (bool, error)
	// SwitchType changes the rating from one type to another only if it is still from.
	SwitchType(ctx context.Context, postID, userID uint, from, to models.RatingType) (bool, error)
	// DeleteIfType removes the rating only if it is still t.
	DeleteIfType(ctx context.Context, postID, userID uint, t models.RatingType) (bool, error)
	// CountByPosts groups ratings of the given posts by (post_id, type).
	CountByPosts(ctx context.Context, postIDs []uint) ([]models.RatingCount, error)
}

type ratingRepository struct {
	db      *gorm.DB
	metrics *observability.DatabaseMetrics
}

// NewRatingRepository returns a gorm-backed RatingRepository.
func NewRatingRepository(db *gorm.DB) RatingRepository {
	return &ratingRepository{db: db, metrics: observability.NewDatabaseMetrics()}
}

func (r *ratingRepository) Find(ctx context.Context, postID, userID uint) (models.RatingType, error) {
	defer r.metrics.TrackQuery("find", "post_ratings")()
	var row models.PostRating
	err := r.db.WithContext(ctx).
		Select("type").
		Where("post_id = ? AND user_id = ?", postID, userID).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RatingNone, nil
		}
		return models.RatingNone, models.NewInternalError(err)
	}
	return row.Type, nil
}

func (r *ratingRepository) CreateIfAbsent(ctx context.Context, postID, userID uint, t models.RatingType) (bool, error) {
	defer r.metrics.TrackQuery("create_if_absent", "post_ratings")()
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "CreateRatingIfAbsent", "post_ratings")
	defer span.End()

	row := models.PostRating{PostID: postID, UserID: userID, Type: t}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if result.Error != nil {
		span.RecordError(result.Error)
		if isForeignKeyViolation(result.Error) {
			return false, models.NewNotFoundError("Post", postID)
		}
		return false, models.NewInternalError(result.Error)
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", result.RowsAffected))
	return result.RowsAffected == 1, nil
}

func (r *ratingRepository) SwitchType(ctx context.Context, postID, userID uint, from, to models.RatingType) (bool, error) {
	defer r.metrics.TrackQuery("switch_type", "post_ratings")()
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "SwitchRatingType", "post_ratings")
	defer span.End()

	result := r.db.WithContext(ctx).
		Model(&models.PostRating{}).
		Where("post_id = ? AND user_id = ? AND type = ?", postID, userID, from).
		Update("type", to)
	if result.Error != nil {
		span.RecordError(result.Error)
		return false, models.NewInternalError(result.Error)
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", result.RowsAffected))
	return result.RowsAffected == 1, nil
}

func (r *ratingRepository) DeleteIfType(ctx context.Context, postID, userID uint, t models.RatingType) (bool, error) {
	defer r.metrics.TrackQuery("delete_if_type", "post_ratings")()
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "DeleteRatingIfType", "post_ratings")
	defer span.End()

	result := r.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ? AND type = ?", postID, userID, t).
		Delete(&models.PostRating{})
	if result.Error != nil {
		span.RecordError(result.Error)
		return false, models.NewInternalError(result.Error)
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", result.RowsAffected))
	return result.RowsAffected == 1, nil
}

func (r *ratingRepository) CountByPosts(ctx context.Context, postIDs []uint) ([]models.RatingCount, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}
	defer r.metrics.TrackQuery("count_by_posts", "post_ratings")()

	var rows []models.RatingCount
	err := r.db.WithContext(ctx).
		Model(&models.PostRating{}).
		Select("post_id, type, COUNT(*) AS count").
		Where("post_id IN ?", postIDs).
		Group("post_id, type").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}
