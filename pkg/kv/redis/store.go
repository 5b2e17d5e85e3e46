package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/saifu-wallet/gateway/pkg/kv"
)

// Store is a Redis-backed implementation of the kv.Store interface
type Store struct {
	client *redis.Client
}

var connectionErrorMarkers = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"i/o timeout",
	"connection closed",
	"EOF",
}

// IsConnectionError checks if an error is a connection-related error that should trigger failover
func IsConnectionError(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return false
	}
	// Caller cancellation is not a backend fault.
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		switch sysErr {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ECONNABORTED, syscall.ETIMEDOUT:
			return true
		}
	}

	msg := err.Error()
	for _, marker := range connectionErrorMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func wrapConnectionError(err error) error {
	if IsConnectionError(err) {
		return fmt.Errorf("%w: %v", kv.ErrBackendUnavailable, err)
	}
	return err
}

// New creates a Redis-backed store. Both redis:// URLs and bare host:port
// addresses are accepted. The connection is not checked here; use Ping.
func New(redisURL string) (*Store, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		if strings.Contains(redisURL, "://") {
			return nil, fmt.Errorf("invalid redis URL: %w", err)
		}
		opt, err = redis.ParseURL("redis://" + redisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis address: %w", err)
		}
	}

	return &Store{client: redis.NewClient(opt)}, nil
}

func (s *Store) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	v, err := s.client.IncrBy(ctx, key, n).Result()
	return v, wrapConnectionError(err)
}

func (s *Store) Get(ctx context.Context, key string) (int64, error) {
	v, err := s.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, kv.ErrNotFound
		}
		return 0, wrapConnectionError(err)
	}
	return v, nil
}

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	v, err := s.client.Del(ctx, keys...).Result()
	return v, wrapConnectionError(err)
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	v, err := s.client.Expire(ctx, key, ttl).Result()
	return v, wrapConnectionError(err)
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, wrapConnectionError(err)
	}

	switch ttl {
	case -2 * time.Second, -2: // key does not exist
		return 0, kv.ErrNotFound
	case -1 * time.Second, -1: // no expiry
		return -1, nil
	}
	return ttl, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return wrapConnectionError(s.client.Ping(ctx).Err())
}

func (s *Store) Close() error {
	return s.client.Close()
}
