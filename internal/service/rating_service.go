package service

import (
	"context"
	"fmt"
	"log/slog"

	"feedpulse/internal/cache"
	"feedpulse/internal/middleware"
	"feedpulse/internal/models"
	"feedpulse/internal/observability"
	"feedpulse/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// DefaultRatingMaxRetries bounds how often a lost conditional write is re-decided.
const DefaultRatingMaxRetries = 3

// RatingPublisher announces rating changes to interested clients.
type RatingPublisher interface {
	PublishRatingUpdate(ctx context.Context, postID uint, stats models.PostStats) error
}

// RatingService moves a user's rating of a post between none, Like and
// Dislike while keeping the cached counters in step with the durable rows.
type RatingService struct {
	posts      repository.PostRepository
	ratings    repository.RatingRepository
	store      cache.Store
	reader     *StatsReader
	publisher  RatingPublisher
	maxRetries int
}

func NewRatingService(
	posts repository.PostRepository,
	ratings repository.RatingRepository,
	store cache.Store,
	reader *StatsReader,
	publisher RatingPublisher,
	maxRetries int,
) *RatingService {
	if maxRetries <= 0 {
		maxRetries = DefaultRatingMaxRetries
	}
	return &RatingService{
		posts:      posts,
		ratings:    ratings,
		store:      store,
		reader:     reader,
		publisher:  publisher,
		maxRetries: maxRetries,
	}
}

// ApplyTransition sets userID's rating of postID to target and returns the
// post's fresh stats. Asking for the state the user is already in fails with
// ALREADY_SET; losing every retry to concurrent writers fails with CONFLICT.
func (s *RatingService) ApplyTransition(ctx context.Context, postID, userID uint, target models.RatingType) (models.PostStats, error) {
	if !target.Valid() {
		return models.PostStats{}, models.NewValidationError("state must be Like, Dislike or empty")
	}
	if userID == 0 {
		return models.PostStats{}, models.NewUnauthorizedError("rating requires a user")
	}

	observability.AddTraceAttributesToContext(ctx,
		attribute.Int64("post.id", int64(postID)),
		attribute.String("rating.target", stateLabel(target)),
	)

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return models.PostStats{}, err
	}

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		current, err := s.ratings.Find(ctx, postID, userID)
		if err != nil {
			return models.PostStats{}, err
		}
		if current == target {
			return models.PostStats{}, models.NewAlreadySetError(target)
		}

		applied, err := s.write(ctx, postID, userID, current, target)
		if err != nil {
			observability.RecordErrorInContext(ctx, err)
			return models.PostStats{}, err
		}
		if applied {
			observability.RatingTransitions.WithLabelValues(stateLabel(current), stateLabel(target)).Inc()
			s.adjustCounters(ctx, postID, current, target)
			return s.snapshot(ctx, post), nil
		}

		observability.RatingConflicts.Inc()
		middleware.Logger.DebugContext(ctx, "rating write lost a race, re-reading",
			slog.Uint64("post_id", uint64(postID)),
			slog.Uint64("user_id", uint64(userID)),
			slog.Int("attempt", attempt),
		)
	}

	return models.PostStats{}, models.NewConflictError(
		fmt.Sprintf("rating of post %d changed concurrently, try again", postID))
}

// write issues the single conditional statement for current -> target.
func (s *RatingService) write(ctx context.Context, postID, userID uint, current, target models.RatingType) (bool, error) {
	switch {
	case current == models.RatingNone:
		return s.ratings.CreateIfAbsent(ctx, postID, userID, target)
	case target == models.RatingNone:
		return s.ratings.DeleteIfType(ctx, postID, userID, current)
	default:
		return s.ratings.SwitchType(ctx, postID, userID, current, target)
	}
}

// adjustCounters mirrors an applied transition onto a cached hash if one
// exists. The two halves of a switch are independent and never rolled back.
func (s *RatingService) adjustCounters(ctx context.Context, postID uint, from, to models.RatingType) {
	if field := from.CounterField(); field != "" {
		s.adjust(ctx, postID, field, -1)
	}
	if field := to.CounterField(); field != "" {
		s.adjust(ctx, postID, field, 1)
	}
}

func (s *RatingService) adjust(ctx context.Context, postID uint, field string, delta int64) {
	if _, err := s.store.AdjustRating(ctx, postID, field, delta); err != nil {
		middleware.Logger.WarnContext(ctx, "rating cache adjust failed",
			slog.Uint64("post_id", uint64(postID)),
			slog.String("field", field),
			slog.Int64("delta", delta),
			slog.String("error", err.Error()),
		)
	}
}

func (s *RatingService) snapshot(ctx context.Context, post *models.Post) models.PostStats {
	stats := s.reader.Read(ctx, []models.PostBaseline{post.Baseline()}, 0)[post.ID]
	if s.publisher != nil {
		if err := s.publisher.PublishRatingUpdate(ctx, post.ID, stats); err != nil {
			middleware.Logger.WarnContext(ctx, "rating update broadcast failed",
				slog.Uint64("post_id", uint64(post.ID)),
				slog.String("error", err.Error()),
			)
		}
	}
	return stats
}

func stateLabel(t models.RatingType) string {
	if t == models.RatingNone {
		return "none"
	}
	return string(t)
}
