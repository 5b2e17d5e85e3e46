package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is not found
var ErrNotFound = errors.New("not found")

// ErrBackendUnavailable is returned when the backend storage is unavailable
var ErrBackendUnavailable = errors.New("backend unavailable")

// Store defines the counter operations shared by all backends
type Store interface {
	// Counter operations
	IncrBy(ctx context.Context, key string, n int64) (int64, error)
	Get(ctx context.Context, key string) (int64, error)

	// Key operations
	Del(ctx context.Context, keys ...string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Health check
	Ping(ctx context.Context) error

	// Cleanup
	Close() error
}
