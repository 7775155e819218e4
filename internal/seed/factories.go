// Package seed provides helpers to create demo data for the feed: users,
// posts, ratings and synthetic viewers. These helpers are intended for
// development and testing only.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"feedpulse/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

const maxSeedContentRunes = 2000

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by Seed and tests.
type Factory struct {
	db      *gorm.DB
	faker   *gofakeit.Faker
	rng     *rand.Rand
	maxDays int
	nextSeq int
}

// NewFactory creates a Factory bound to db. A zero seed picks a time-based one.
func NewFactory(db *gorm.DB, seed int64, maxDays int) *Factory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if maxDays <= 0 {
		maxDays = 90
	}
	return &Factory{
		db:    db,
		faker: gofakeit.New(seed),
		// #nosec G404: acceptable for seeding
		rng:     rand.New(rand.NewSource(seed)),
		maxDays: maxDays,
	}
}

// BuildUser constructs an unsaved user with a unique username.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	f.nextSeq++
	user := &models.User{
		Username: fmt.Sprintf("%s%d", strings.ToLower(f.faker.Username()), f.nextSeq),
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser constructs and persists a sample user.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)
	if err := f.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost constructs an unsaved post by author with a created_at spread
// over the last maxDays days.
func (f *Factory) BuildPost(author *models.User, overrides ...func(*models.Post)) *models.Post {
	content := strings.TrimSpace(f.faker.Paragraph(1, f.rng.Intn(4)+1, 12, " "))
	if runes := []rune(content); len(runes) > maxSeedContentRunes {
		content = string(runes[:maxSeedContentRunes])
	}

	back := time.Duration(f.rng.Intn(f.maxDays))*24*time.Hour +
		time.Duration(f.rng.Intn(24))*time.Hour +
		time.Duration(f.rng.Intn(60))*time.Minute

	post := &models.Post{
		AuthorID:  author.ID,
		Content:   content,
		CreatedAt: time.Now().Add(-back),
	}
	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePostsBatch persists posts in chunks of 100.
func (f *Factory) CreatePostsBatch(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	return f.db.WithContext(ctx).CreateInBatches(posts, 100).Error
}

// Sample returns up to n distinct users in random order.
func (f *Factory) Sample(users []models.User, n int) []models.User {
	if n > len(users) {
		n = len(users)
	}
	out := make([]models.User, 0, n)
	for _, i := range f.rng.Perm(len(users))[:n] {
		out = append(out, users[i])
	}
	return out
}

// RandomRating picks Like about three times as often as Dislike.
func (f *Factory) RandomRating() models.RatingType {
	if f.rng.Intn(4) == 0 {
		return models.RatingDislike
	}
	return models.RatingLike
}

// Intn exposes the factory's deterministic source.
func (f *Factory) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return f.rng.Intn(n)
}
