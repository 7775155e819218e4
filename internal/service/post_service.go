// Package service holds the business rules of the feed on top of the
// repositories and the rating cache.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"feedpulse/internal/cache"
	"feedpulse/internal/featureflags"
	"feedpulse/internal/middleware"
	"feedpulse/internal/models"
	"feedpulse/internal/repository"
	"feedpulse/internal/validation"
)

const (
	maxContentLen   = validation.MaxContentRunes
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type PostService struct {
	postRepo repository.PostRepository
	store    cache.Store
	reader   *StatsReader
	flags    *featureflags.Manager
	now      func() time.Time
}

type CreatePostInput struct {
	AuthorID uint
	Content  string
}

type ListPostsInput struct {
	Take     int
	Cursor   uint
	AuthorID uint
	ViewerID uint
}

type UpdatePostInput struct {
	AuthorID uint
	PostID   uint
	Content  string
}

type DeletePostInput struct {
	AuthorID uint
	PostID   uint
}

// PostPage is one page of the feed. NextCursor is nil on the last page.
type PostPage struct {
	Results    []models.PostWithStats `json:"results"`
	NextCursor *uint                  `json:"next_cursor"`
}

func NewPostService(
	postRepo repository.PostRepository,
	store cache.Store,
	reader *StatsReader,
	flags *featureflags.Manager,
) *PostService {
	return &PostService{
		postRepo: postRepo,
		store:    store,
		reader:   reader,
		flags:    flags,
		now:      time.Now,
	}
}

func normalizeContent(content string) (string, error) {
	content, err := validation.PostContent(content)
	switch {
	case errors.Is(err, validation.ErrContentRequired):
		return "", models.NewValidationError("Content is required")
	case errors.Is(err, validation.ErrContentTooLong):
		return "", models.NewValidationError("Content too long (max 5000 characters)")
	}
	return content, nil
}

// viewer returns the id to record as a viewer, or 0 when view tracking is
// switched off for this user.
func (s *PostService) viewer(userID uint) uint {
	if userID == 0 || !s.flags.EnabledOr(featureflags.ViewTracking, userID, true) {
		return 0
	}
	return userID
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.PostWithStats, error) {
	content, err := normalizeContent(in.Content)
	if err != nil {
		return nil, err
	}

	post := &models.Post{AuthorID: in.AuthorID, Content: content}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}

	created, err := s.postRepo.GetByID(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	return &models.PostWithStats{Post: *created}, nil
}

// GetPost returns one post with live stats, counting the caller as a viewer.
func (s *PostService) GetPost(ctx context.Context, postID, userID uint) (*models.PostWithStats, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	stats := s.reader.Read(ctx, []models.PostBaseline{post.Baseline()}, s.viewer(userID))
	return &models.PostWithStats{Post: *post, PostStats: stats[post.ID]}, nil
}

// ListPosts returns a newest-first page. Stats for the whole page come from
// a single batch read. A failing list query yields an empty page.
func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) (*PostPage, error) {
	take := in.Take
	if take <= 0 {
		take = DefaultPageSize
	}
	if take > MaxPageSize {
		take = MaxPageSize
	}

	posts, err := s.postRepo.List(ctx, repository.ListPostsQuery{
		Limit:    take + 1,
		Cursor:   in.Cursor,
		AuthorID: in.AuthorID,
	})
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "list posts failed, returning empty page",
			slog.String("error", err.Error()),
		)
		return &PostPage{Results: []models.PostWithStats{}}, nil
	}

	page := &PostPage{}
	if len(posts) > take {
		posts = posts[:take]
		last := posts[len(posts)-1].ID
		page.NextCursor = &last
	}

	baselines := make([]models.PostBaseline, len(posts))
	for i, p := range posts {
		baselines[i] = p.Baseline()
	}
	stats := s.reader.Read(ctx, baselines, s.viewer(in.ViewerID))

	page.Results = make([]models.PostWithStats, len(posts))
	for i, p := range posts {
		page.Results[i] = models.PostWithStats{Post: *p, PostStats: stats[p.ID]}
	}
	return page, nil
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	content, err := normalizeContent(in.Content)
	if err != nil {
		return nil, err
	}
	return s.postRepo.UpdateContent(ctx, in.PostID, in.AuthorID, content, s.now())
}

// DeletePost removes an author's post with its ratings and drops its cache keys.
func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	if err := s.postRepo.Delete(ctx, in.PostID, in.AuthorID); err != nil {
		return err
	}
	if err := s.store.ForgetPost(ctx, in.PostID); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to forget cached post",
			slog.Uint64("post_id", uint64(in.PostID)),
			slog.String("error", err.Error()),
		)
	}
	return nil
}
