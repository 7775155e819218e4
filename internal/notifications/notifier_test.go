package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"feedpulse/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.NoError(t, n.PublishBroadcast(context.Background(), "test payload"))
	assert.NoError(t, n.PublishRatingUpdate(context.Background(), 1, models.PostStats{Likes: 1}))

	var nilNotifier *Notifier
	assert.NoError(t, nilNotifier.PublishBroadcast(context.Background(), "x"))
}

func TestNotifier_PublishRatingUpdate(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	ctx := context.Background()
	sub := rdb.Subscribe(ctx, BroadcastChannel)
	defer func() { _ = sub.Close() }()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	n := NewNotifier(rdb)
	require.NoError(t, n.PublishRatingUpdate(ctx, 7, models.PostStats{Likes: 3, Dislikes: 1, Views: 99}))

	select {
	case msg := <-sub.Channel():
		var got RatingUpdate
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, RatingUpdate{Type: EventPostRatingUpdated, PostID: 7, Likes: 3, Dislikes: 1}, got)
	case <-time.After(time.Second):
		t.Fatal("no rating update published")
	}
}
