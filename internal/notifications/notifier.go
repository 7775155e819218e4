// Package notifications publishes feed events onto Redis pub/sub channels.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"feedpulse/internal/models"

	"github.com/redis/go-redis/v9"
)

// BroadcastChannel receives events every connected client may care about.
const BroadcastChannel = "notifications:broadcast"

// EventPostRatingUpdated is the type of the event published after a rating change.
const EventPostRatingUpdated = "post_rating_updated"

// RatingUpdate is the payload of a post_rating_updated event.
type RatingUpdate struct {
	Type     string `json:"type"`
	PostID   uint   `json:"post_id"`
	Likes    int64  `json:"likes"`
	Dislikes int64  `json:"dislikes"`
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishBroadcast sends a notification payload to all connected users.
func (n *Notifier) PublishBroadcast(ctx context.Context, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, BroadcastChannel, payload).Err()
}

// PublishRatingUpdate announces the post's new like/dislike totals.
func (n *Notifier) PublishRatingUpdate(ctx context.Context, postID uint, stats models.PostStats) error {
	payload, err := json.Marshal(RatingUpdate{
		Type:     EventPostRatingUpdated,
		PostID:   postID,
		Likes:    stats.Likes,
		Dislikes: stats.Dislikes,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return n.PublishBroadcast(ctx, string(payload))
}
