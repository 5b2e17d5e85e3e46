package ratelimit

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/saifu-wallet/gateway/pkg/kv"
	"github.com/saifu-wallet/gateway/pkg/kv/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedWindow_ThousandthAllowedThousandFirstRejected(t *testing.T) {
	store := memory.New(0)
	defer store.Close()

	l := NewFixedWindow(store, 1000, 15*time.Minute)
	ctx := context.Background()

	for i := 1; i <= 1000; i++ {
		res, err := l.Allow(ctx, "203.0.113.7")
		require.NoError(t, err)
		require.True(t, res.Allowed, "request %d", i)
		require.Equal(t, 1000-i, res.Remaining)
	}

	res, err := l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 1000, res.Limit)

	other, err := l.Allow(ctx, "198.51.100.1")
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestFixedWindow_WindowStartsAtFirstRequest(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := memory.NewWithClock(0, func() time.Time { return now })
	defer store.Close()

	l := NewFixedWindow(store, 2, time.Minute)
	ctx := context.Background()

	res, _ := l.Allow(ctx, "c")
	assert.True(t, res.Allowed)
	assert.Equal(t, time.Minute, res.ResetAfter)

	now = now.Add(40 * time.Second)
	res, _ = l.Allow(ctx, "c")
	assert.True(t, res.Allowed)
	assert.Equal(t, 20*time.Second, res.ResetAfter)

	res, _ = l.Allow(ctx, "c")
	assert.False(t, res.Allowed)

	now = now.Add(20 * time.Second)
	res, _ = l.Allow(ctx, "c")
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)
	assert.Equal(t, time.Minute, res.ResetAfter)
}

func TestFixedWindow_RepairsMissingExpiry(t *testing.T) {
	store := memory.New(0)
	defer store.Close()
	ctx := context.Background()

	_, err := store.IncrBy(ctx, keyPrefix+"c", 1)
	require.NoError(t, err)

	l := NewFixedWindow(store, 10, time.Minute)
	res, err := l.Allow(ctx, "c")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	ttl, err := store.TTL(ctx, keyPrefix+"c")
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

type brokenStore struct {
	kv.Store
}

func (brokenStore) IncrBy(context.Context, string, int64) (int64, error) {
	return 0, kv.ErrBackendUnavailable
}

func TestFixedWindow_StoreFailureFailsOpen(t *testing.T) {
	l := NewFixedWindow(brokenStore{}, 1, time.Minute)

	res, err := l.Allow(context.Background(), "c")
	require.Error(t, err)
	assert.True(t, errors.Is(err, kv.ErrBackendUnavailable))
	assert.True(t, res.Allowed)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    []string
		remote string
		hops   int
		want   string
	}{
		{"no header", nil, "10.0.0.1:5555", 1, "10.0.0.1"},
		{"one hop uses rightmost", []string{"1.1.1.1, 2.2.2.2"}, "10.0.0.1:5555", 1, "2.2.2.2"},
		{"two hops", []string{"1.1.1.1, 2.2.2.2, 3.3.3.3"}, "10.0.0.1:5555", 2, "2.2.2.2"},
		{"more hops than entries", []string{"1.1.1.1"}, "10.0.0.1:5555", 3, "1.1.1.1"},
		{"header ignored with zero hops", []string{"1.1.1.1"}, "10.0.0.1:5555", 0, "10.0.0.1"},
		{"multiple header lines", []string{"1.1.1.1", "4.4.4.4"}, "10.0.0.1:5555", 1, "4.4.4.4"},
		{"remote without port", nil, "10.0.0.2", 1, "10.0.0.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for _, v := range tt.xff {
				r.Header.Add("X-Forwarded-For", v)
			}
			assert.Equal(t, tt.want, ClientIP(r, tt.hops))
		})
	}
}
