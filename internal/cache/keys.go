package cache

import (
	"fmt"
	"strconv"
	"time"
)

const (
	RatingKeyPrefix  = "post:%d"
	ViewersKeyPrefix = "postpf:%d"
	// PendingViewsKey is the set of post ids with view activity since their last flush.
	PendingViewsKey = "postvs"
)

const (
	LikesField    = "likes"
	DislikesField = "dislikes"
)

// DefaultRatingTTL is how long a seeded {likes, dislikes} hash lives.
const DefaultRatingTTL = 60 * time.Second

// RatingKey is the hash holding the cached likes/dislikes of a post.
func RatingKey(postID uint) string {
	return fmt.Sprintf(RatingKeyPrefix, postID)
}

// ViewersKey is the HyperLogLog of viewers seen since the post's last flush.
func ViewersKey(postID uint) string {
	return fmt.Sprintf(ViewersKeyPrefix, postID)
}

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func parseID(s string) (uint, bool) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}
