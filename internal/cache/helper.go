package cache

import (
	"context"
	"log/slog"
	"time"

	"feedpulse/internal/middleware"
)

// ReadThrough resolves cache misses from a slower source and refills the
// cache without making the caller wait for it.
type ReadThrough[K comparable, V any] struct {
	// Load fetches values for missed keys. Keys absent from the result take V's zero value.
	Load func(ctx context.Context, keys []K) (map[K]V, error)
	// Refill writes loaded values back to the cache.
	Refill func(ctx context.Context, values map[K]V) error
	// RefillTimeout bounds the detached refill. Zero means 5s.
	RefillTimeout time.Duration
	// OnRefill, when set, observes the refill outcome. Used by metrics.
	OnRefill func(err error)
}

// Resolve returns a value for every key in misses. When Load fails every key
// gets the zero value and nothing is written back.
func (r ReadThrough[K, V]) Resolve(ctx context.Context, misses []K) map[K]V {
	out := make(map[K]V, len(misses))
	if len(misses) == 0 {
		return out
	}

	loaded, err := r.Load(ctx, misses)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "read-through load failed, serving zero values",
			slog.Int("keys", len(misses)),
			slog.String("error", err.Error()),
		)
		for _, k := range misses {
			var zero V
			out[k] = zero
		}
		return out
	}

	refill := make(map[K]V, len(misses))
	for _, k := range misses {
		v := loaded[k]
		out[k] = v
		refill[k] = v
	}

	if r.Refill != nil {
		r.refillDetached(ctx, refill)
	}
	return out
}

func (r ReadThrough[K, V]) refillDetached(ctx context.Context, values map[K]V) {
	timeout := r.RefillTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	bg := context.WithoutCancel(ctx)

	go func() {
		ctx, cancel := context.WithTimeout(bg, timeout)
		defer cancel()

		err := r.Refill(ctx, values)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "cache refill failed",
				slog.Int("keys", len(values)),
				slog.String("error", err.Error()),
			)
		}
		if r.OnRefill != nil {
			r.OnRefill(err)
		}
	}()
}
