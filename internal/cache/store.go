package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"feedpulse/internal/observability"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

// RatingCounts is the cached {likes, dislikes} pair of a post.
type RatingCounts struct {
	Likes    int64
	Dislikes int64
}

// PostProbe is what one pipelined read learned about a post.
type PostProbe struct {
	Ratings RatingCounts
	// Cached is false when the rating hash was absent or unreadable.
	Cached bool
	// Viewers is the HyperLogLog estimate of viewers since the last flush.
	Viewers int64
}

// Store is the cache-side capability set used by the rating protocol, the
// batch reader and the view sync job.
type Store interface {
	// ProbePosts reads rating hashes and viewer estimates for every id in one
	// round trip and marks each post as pending a view flush. A non-zero
	// viewerID is recorded first. When some commands fail the posts that were
	// read are still returned, alongside the error.
	ProbePosts(ctx context.Context, postIDs []uint, viewerID uint) (map[uint]PostProbe, error)
	// SeedRatings writes fresh rating hashes with ttl, atomically per batch.
	SeedRatings(ctx context.Context, counts map[uint]RatingCounts, ttl time.Duration) error
	// AdjustRating adds delta to field of the post's rating hash only if the
	// hash exists. It reports whether the hash was present.
	AdjustRating(ctx context.Context, postID uint, field string, delta int64) (bool, error)
	// PopPendingViews removes and returns up to n ids from the pending set.
	PopPendingViews(ctx context.Context, n int) ([]uint, error)
	// DrainViewCounts returns each post's viewer estimate and resets its set.
	// Posts that could not be drained are reported in a *DrainError and left
	// out of the counts.
	DrainViewCounts(ctx context.Context, postIDs []uint) (map[uint]int64, error)
	// RequeuePendingViews marks posts as pending a view flush again.
	RequeuePendingViews(ctx context.Context, postIDs []uint) error
	// ForgetPost drops every cache key belonging to a post.
	ForgetPost(ctx context.Context, postID uint) error
}

// DrainError lists the posts a drain could not fold. Their ids have left the
// pending set and must be requeued.
type DrainError struct {
	Failed []uint
	Err    error
}

func (e *DrainError) Error() string {
	return fmt.Sprintf("drain view counts: %d posts failed: %v", len(e.Failed), e.Err)
}

func (e *DrainError) Unwrap() error { return e.Err }

// adjustIfPresent guards HINCRBY so a missing hash is never created with a
// partial counter.
var adjustIfPresent = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	redis.call("HINCRBY", KEYS[1], ARGV[1], ARGV[2])
	return 1
end
return 0
`)

// RedisStore implements Store on go-redis.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore returns a Store backed by rdb.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *RedisStore) ProbePosts(ctx context.Context, postIDs []uint, viewerID uint) (map[uint]PostProbe, error) {
	ids := dedupe(postIDs)
	out := make(map[uint]PostProbe, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	ctx, span := observability.GetTraceLayer().TraceRedisOperation(ctx, "probe_posts")
	defer span.End()
	span.SetAttributes(attribute.Int("posts", len(ids)), attribute.Bool("viewer", viewerID != 0))

	type cmds struct {
		ratings *redis.SliceCmd
		viewers *redis.IntCmd
	}
	pending := make([]cmds, len(ids))

	pipe := s.rdb.Pipeline()
	for i, id := range ids {
		pending[i].ratings = pipe.HMGet(ctx, RatingKey(id), LikesField, DislikesField)
		if viewerID != 0 {
			pipe.PFAdd(ctx, ViewersKey(id), formatID(viewerID))
		}
		pipe.SAdd(ctx, PendingViewsKey, formatID(id))
		pending[i].viewers = pipe.PFCount(ctx, ViewersKey(id))
	}
	_, err := pipe.Exec(ctx)

	// a pipeline runs every command, so one bad key only costs its own post
	for i, id := range ids {
		ratingsErr, viewersErr := pending[i].ratings.Err(), pending[i].viewers.Err()
		if ratingsErr != nil && viewersErr != nil {
			continue
		}
		var probe PostProbe
		if ratingsErr == nil {
			probe.Ratings, probe.Cached = parseRatingHash(pending[i].ratings.Val())
		}
		if viewersErr == nil {
			probe.Viewers = pending[i].viewers.Val()
		}
		out[id] = probe
	}

	if err != nil {
		span.RecordError(err)
		if len(out) == 0 {
			return nil, fmt.Errorf("probe posts pipeline: %w", err)
		}
		return out, fmt.Errorf("probe posts pipeline, %d of %d posts unread: %w", len(ids)-len(out), len(ids), err)
	}
	return out, nil
}

// parseRatingHash treats a hash missing either field as a miss.
func parseRatingHash(vals []interface{}) (RatingCounts, bool) {
	if len(vals) != 2 {
		return RatingCounts{}, false
	}
	likes, ok := toInt64(vals[0])
	if !ok {
		return RatingCounts{}, false
	}
	dislikes, ok := toInt64(vals[1])
	if !ok {
		return RatingCounts{}, false
	}
	return RatingCounts{Likes: likes, Dislikes: dislikes}, true
}

func toInt64(v interface{}) (int64, bool) {
	str, ok := v.(string)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (s *RedisStore) SeedRatings(ctx context.Context, counts map[uint]RatingCounts, ttl time.Duration) error {
	if len(counts) == 0 {
		return nil
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for id, c := range counts {
			key := RatingKey(id)
			pipe.HSet(ctx, key, LikesField, c.Likes, DislikesField, c.Dislikes)
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("seed ratings: %w", err)
	}
	return nil
}

func (s *RedisStore) AdjustRating(ctx context.Context, postID uint, field string, delta int64) (bool, error) {
	applied, err := adjustIfPresent.Run(ctx, s.rdb, []string{RatingKey(postID)}, field, delta).Int()
	if err != nil {
		return false, fmt.Errorf("adjust %s for post %d: %w", field, postID, err)
	}
	return applied == 1, nil
}

func (s *RedisStore) PopPendingViews(ctx context.Context, n int) ([]uint, error) {
	if n <= 0 {
		return nil, nil
	}
	members, err := s.rdb.SPopN(ctx, PendingViewsKey, int64(n)).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("pop pending views: %w", err)
	}
	ids := make([]uint, 0, len(members))
	for _, m := range members {
		if id, ok := parseID(m); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *RedisStore) DrainViewCounts(ctx context.Context, postIDs []uint) (map[uint]int64, error) {
	ids := dedupe(postIDs)
	out := make(map[uint]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	ctx, span := observability.GetTraceLayer().TraceRedisOperation(ctx, "drain_view_counts")
	defer span.End()
	span.SetAttributes(attribute.Int("posts", len(ids)))

	counts := make([]*redis.IntCmd, len(ids))
	resets := make([]*redis.IntCmd, len(ids))
	pipe := s.rdb.Pipeline()
	for i, id := range ids {
		counts[i] = pipe.PFCount(ctx, ViewersKey(id))
		resets[i] = pipe.Del(ctx, ViewersKey(id))
	}
	_, err := pipe.Exec(ctx)

	// A post is drained only when both its count and its reset went through.
	// A count read without a reset would be folded twice.
	var failed []uint
	for i, id := range ids {
		if counts[i].Err() != nil || resets[i].Err() != nil {
			failed = append(failed, id)
			continue
		}
		out[id] = counts[i].Val()
	}

	if err != nil {
		span.RecordError(err)
	}
	if len(failed) > 0 {
		if err == nil {
			err = errors.New("pipeline command failed")
		}
		return out, &DrainError{Failed: failed, Err: err}
	}
	return out, nil
}

func (s *RedisStore) RequeuePendingViews(ctx context.Context, postIDs []uint) error {
	if len(postIDs) == 0 {
		return nil
	}
	members := make([]interface{}, 0, len(postIDs))
	for _, id := range postIDs {
		members = append(members, formatID(id))
	}
	if err := s.rdb.SAdd(ctx, PendingViewsKey, members...).Err(); err != nil {
		return fmt.Errorf("requeue %d pending posts: %w", len(postIDs), err)
	}
	return nil
}

func (s *RedisStore) ForgetPost(ctx context.Context, postID uint) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, RatingKey(postID), ViewersKey(postID))
	pipe.SRem(ctx, PendingViewsKey, formatID(postID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("forget post %d: %w", postID, err)
	}
	return nil
}
