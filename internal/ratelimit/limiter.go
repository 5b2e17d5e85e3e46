// Package ratelimit implements a fixed-window request budget per client,
// counted in a kv.Store so that several gateway replicas can share it.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/saifu-wallet/gateway/pkg/kv"
)

const keyPrefix = "ratelimit:"

// Result describes the client's budget after counting a request.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAfter is the time left until the window ends.
	ResetAfter time.Duration
}

// FixedWindow allows Max requests per Window. A client's window opens with
// its first request and the counter restarts once the window expires.
type FixedWindow struct {
	store  kv.Store
	max    int
	window time.Duration
}

func NewFixedWindow(store kv.Store, max int, window time.Duration) *FixedWindow {
	return &FixedWindow{store: store, max: max, window: window}
}

// Allow counts one request for client. On store failure it returns an
// allowing Result together with the error so callers can fail open.
func (l *FixedWindow) Allow(ctx context.Context, client string) (Result, error) {
	key := keyPrefix + client
	open := Result{Allowed: true, Limit: l.max, Remaining: l.max, ResetAfter: l.window}

	n, err := l.store.IncrBy(ctx, key, 1)
	if err != nil {
		return open, fmt.Errorf("count request: %w", err)
	}

	resetAfter, err := l.windowTTL(ctx, key, n)
	if err != nil {
		return open, err
	}

	remaining := l.max - int(n)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:    n <= int64(l.max),
		Limit:      l.max,
		Remaining:  remaining,
		ResetAfter: resetAfter,
	}, nil
}

func (l *FixedWindow) windowTTL(ctx context.Context, key string, n int64) (time.Duration, error) {
	if n == 1 {
		if _, err := l.store.Expire(ctx, key, l.window); err != nil {
			return 0, fmt.Errorf("start window: %w", err)
		}
		return l.window, nil
	}

	ttl, err := l.store.TTL(ctx, key)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		return l.window, nil
	case err != nil:
		return 0, fmt.Errorf("read window: %w", err)
	case ttl < 0:
		// The counter lost its expiry, e.g. the process died between IncrBy
		// and Expire. Restart the window rather than block forever.
		if _, err := l.store.Expire(ctx, key, l.window); err != nil {
			return 0, fmt.Errorf("repair window: %w", err)
		}
		return l.window, nil
	default:
		return ttl, nil
	}
}
