// Package kvtest provides conformance tests for kv.Store implementations
package kvtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/saifu-wallet/gateway/pkg/kv"
)

// StoreFactory creates a fresh Store instance for testing
type StoreFactory func(t *testing.T) kv.Store

// RunConformanceTests runs all conformance tests against a Store implementation
func RunConformanceTests(t *testing.T, factory StoreFactory) {
	tests := []struct {
		name string
		test func(t *testing.T, store kv.Store)
	}{
		{"IncrByCreatesKey", testIncrByCreatesKey},
		{"IncrByAccumulates", testIncrByAccumulates},
		{"GetNonExistent", testGetNonExistent},
		{"Del", testDel},
		{"ExpireMissingKey", testExpireMissingKey},
		{"TTLWithoutExpiry", testTTLWithoutExpiry},
		{"TTLAfterExpire", testTTLAfterExpire},
		{"ExpiredKeyRestartsCounter", testExpiredKeyRestartsCounter},
		{"Ping", testPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			tt.test(t, store)
		})
	}
}

func key(t *testing.T) string {
	return "kvtest:" + t.Name()
}

func cleanup(t *testing.T, store kv.Store, keys ...string) {
	t.Cleanup(func() {
		store.Del(context.Background(), keys...)
	})
}

func testIncrByCreatesKey(t *testing.T, store kv.Store) {
	ctx := context.Background()
	k := key(t)
	cleanup(t, store, k)

	n, err := store.IncrBy(ctx, k, 1)
	if err != nil {
		t.Fatalf("IncrBy failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("Expected 1, got %d", n)
	}
}

func testIncrByAccumulates(t *testing.T, store kv.Store) {
	ctx := context.Background()
	k := key(t)
	cleanup(t, store, k)

	for i := 0; i < 4; i++ {
		if _, err := store.IncrBy(ctx, k, 5); err != nil {
			t.Fatalf("IncrBy failed: %v", err)
		}
	}
	n, err := store.IncrBy(ctx, k, -3)
	if err != nil {
		t.Fatalf("IncrBy failed: %v", err)
	}
	if n != 17 {
		t.Fatalf("Expected 17, got %d", n)
	}

	got, err := store.Get(ctx, k)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != 17 {
		t.Fatalf("Expected Get to return 17, got %d", got)
	}
}

func testGetNonExistent(t *testing.T, store kv.Store) {
	_, err := store.Get(context.Background(), key(t))
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func testDel(t *testing.T, store kv.Store) {
	ctx := context.Background()
	k := key(t)

	store.IncrBy(ctx, k, 1)
	n, err := store.Del(ctx, k, k+":missing")
	if err != nil {
		t.Fatalf("Del failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("Expected 1 deleted key, got %d", n)
	}
	if _, err := store.Get(ctx, k); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected key to be gone, got %v", err)
	}
}

func testExpireMissingKey(t *testing.T, store kv.Store) {
	ok, err := store.Expire(context.Background(), key(t), time.Minute)
	if err != nil {
		t.Fatalf("Expire failed: %v", err)
	}
	if ok {
		t.Fatal("Expected Expire on a missing key to return false")
	}
}

func testTTLWithoutExpiry(t *testing.T, store kv.Store) {
	ctx := context.Background()
	k := key(t)
	cleanup(t, store, k)

	store.IncrBy(ctx, k, 1)
	ttl, err := store.TTL(ctx, k)
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl != -1 {
		t.Fatalf("Expected -1 for key without expiry, got %v", ttl)
	}

	if _, err := store.TTL(ctx, k+":missing"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for missing key, got %v", err)
	}
}

func testTTLAfterExpire(t *testing.T, store kv.Store) {
	ctx := context.Background()
	k := key(t)
	cleanup(t, store, k)

	store.IncrBy(ctx, k, 1)
	ok, err := store.Expire(ctx, k, time.Minute)
	if err != nil || !ok {
		t.Fatalf("Expire failed: ok=%v err=%v", ok, err)
	}

	ttl, err := store.TTL(ctx, k)
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("Expected TTL in (0, 1m], got %v", ttl)
	}
}

func testExpiredKeyRestartsCounter(t *testing.T, store kv.Store) {
	ctx := context.Background()
	k := key(t)
	cleanup(t, store, k)

	store.IncrBy(ctx, k, 3)
	store.Expire(ctx, k, 1100*time.Millisecond)
	time.Sleep(1500 * time.Millisecond)

	n, err := store.IncrBy(ctx, k, 1)
	if err != nil {
		t.Fatalf("IncrBy failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("Expected counter to restart at 1 after expiry, got %d", n)
	}
}

func testPing(t *testing.T, store kv.Store) {
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}
