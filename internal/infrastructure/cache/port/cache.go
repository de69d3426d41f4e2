package port

import (
	"context"
	"time"
)

// Cache is the key-value contract consumed by the application (presence
// flags, last-seen timestamps). Implementations must be concurrency-safe and
// context-aware.
type Cache interface {
	// Get fetches the value for key; a miss is reported as ErrMiss so
	// callers can distinguish it from transport errors.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key. Zero or negative TTL means no expiration.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Del removes keys and returns how many were removed.
	Del(ctx context.Context, keys ...string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// ErrMiss signals a cache miss in a typed way.
var ErrMiss = errMiss{}

type errMiss struct{}

func (errMiss) Error() string { return "cache: miss" }
