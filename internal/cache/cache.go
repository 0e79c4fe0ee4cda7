// Package cache provides the read-through cache used by the challenge
// service. Keys are namespaced strings; values are JSON-encoded.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent
var ErrMiss = errors.New("cache miss")

// Cache is the caching port consumed by the service layer
type Cache interface {
	// Get unmarshals the cached value into dest; ErrMiss when absent
	Get(ctx context.Context, key string, dest any) error

	// Set stores a JSON-encoded value with a TTL
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Delete removes a single key
	Delete(ctx context.Context, key string) error

	// DeleteByPrefix removes every key starting with prefix
	DeleteByPrefix(ctx context.Context, prefix string) error

	// Ping checks backend connectivity
	Ping(ctx context.Context) error

	Close() error
}
