package memory

import (
	"context"
	"testing"
	"time"

	"github.com/saifu-wallet/gateway/pkg/kv"
	"github.com/saifu-wallet/gateway/pkg/kv/kvtest"
)

func TestMemoryStore(t *testing.T) {
	factory := func(t *testing.T) kv.Store {
		return New(0) // Disable janitor for deterministic tests
	}

	kvtest.RunConformanceTests(t, factory)
}

func TestMemoryStoreWithJanitor(t *testing.T) {
	store := New(10 * time.Millisecond)
	defer store.Close()

	ctx := context.Background()
	key := "test:janitor"

	if _, err := store.IncrBy(ctx, key, 1); err != nil {
		t.Fatalf("IncrBy failed: %v", err)
	}
	if ok, err := store.Expire(ctx, key, 20*time.Millisecond); err != nil || !ok {
		t.Fatalf("Expire failed: ok=%v err=%v", ok, err)
	}

	time.Sleep(50 * time.Millisecond)

	store.mu.Lock()
	_, present := store.entries[key]
	store.mu.Unlock()
	if present {
		t.Fatal("Expected key to be evicted by janitor")
	}
}

func TestMemoryStoreWindowRollover(t *testing.T) {
	store := New(0)
	defer store.Close()

	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	key := "test:window"

	n, _ := store.IncrBy(ctx, key, 1)
	store.Expire(ctx, key, time.Minute)
	if n != 1 {
		t.Fatalf("expected first increment to return 1, got %d", n)
	}

	now = now.Add(59 * time.Second)
	if n, _ = store.IncrBy(ctx, key, 1); n != 2 {
		t.Fatalf("expected counter 2 inside window, got %d", n)
	}

	now = now.Add(time.Second)
	if n, _ = store.IncrBy(ctx, key, 1); n != 1 {
		t.Fatalf("expected counter to restart after expiry, got %d", n)
	}
}
