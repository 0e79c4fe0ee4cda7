package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// GetOrSet returns the cached value for key, or runs factory, caches its
// result, and returns it. Cache backend failures degrade to a direct
// factory call: caching is an optimization, never a point of failure.
func GetOrSet[T any](ctx context.Context, c Cache, key string, ttl time.Duration, factory func(context.Context) (T, error)) (T, error) {
	var cached T
	err := c.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrMiss) {
		slog.Warn("cache read failed, falling through", "key", key, "error", err)
	}

	value, err := factory(ctx)
	if err != nil {
		return value, err
	}

	if err := c.Set(ctx, key, value, ttl); err != nil {
		slog.Warn("cache write failed", "key", key, "error", err)
	}
	return value, nil
}
