package kv

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// LogFunc is a function type for structured logging
type LogFunc func(msg string, fields ...any)

// FailoverStore prefers a primary store and switches to a fallback when the
// primary reports ErrBackendUnavailable. While the fallback is active the
// primary is pinged every probe interval and promoted back once healthy.
type FailoverStore struct {
	primary       Store
	fallback      Store
	active        atomic.Value // Store
	probeInterval time.Duration
	logger        LogFunc

	mu        sync.Mutex
	probing   bool
	probeStop chan struct{}
	probeDone chan struct{}
	closeOnce sync.Once
}

// NewFailoverStore creates a failover store that starts on the primary
func NewFailoverStore(primary, fallback Store, probeInterval time.Duration, logger LogFunc) *FailoverStore {
	if logger == nil {
		logger = func(string, ...any) {}
	}
	fs := &FailoverStore{
		primary:       primary,
		fallback:      fallback,
		probeInterval: probeInterval,
		logger:        logger,
	}
	fs.active.Store(primary)
	return fs
}

// NewFailoverStoreWithFallbackActive creates a failover store that starts on the
// fallback and probes the primary for recovery (primary failed at startup)
func NewFailoverStoreWithFallbackActive(primary, fallback Store, probeInterval time.Duration, logger LogFunc) *FailoverStore {
	fs := NewFailoverStore(primary, fallback, probeInterval, logger)
	fs.active.Store(fallback)

	fs.mu.Lock()
	fs.startProbingLocked()
	fs.mu.Unlock()
	return fs
}

func (fs *FailoverStore) activeStore() Store {
	return fs.active.Load().(Store)
}

// GetActiveBackend reports which store is serving requests ("primary" or "fallback")
func (fs *FailoverStore) GetActiveBackend() string {
	if fs.activeStore() == fs.primary {
		return "primary"
	}
	return "fallback"
}

func (fs *FailoverStore) demote() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.activeStore() == fs.fallback {
		return
	}
	fs.active.Store(fs.fallback)
	fs.logger("Failing over to in-memory store", "reason", "primary_unavailable")
	fs.startProbingLocked()
}

// must hold fs.mu
func (fs *FailoverStore) startProbingLocked() {
	if fs.probing {
		return
	}
	fs.probing = true
	fs.probeStop = make(chan struct{})
	fs.probeDone = make(chan struct{})
	go fs.probeLoop(fs.probeStop, fs.probeDone)
}

func (fs *FailoverStore) probeLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(fs.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), fs.probeInterval/2+time.Millisecond)
			err := fs.primary.Ping(ctx)
			cancel()
			if err != nil {
				continue
			}

			fs.mu.Lock()
			fs.active.Store(fs.primary)
			fs.probing = false
			fs.mu.Unlock()
			fs.logger("Recovered to primary store", "reason", "primary_healthy")
			return
		}
	}
}

func (fs *FailoverStore) execute(fn func(Store) error) error {
	store := fs.activeStore()
	err := fn(store)
	if err != nil && store == fs.primary && errors.Is(err, ErrBackendUnavailable) {
		fs.demote()
		return fn(fs.fallback)
	}
	return err
}

func (fs *FailoverStore) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	var out int64
	err := fs.execute(func(s Store) error {
		var err error
		out, err = s.IncrBy(ctx, key, n)
		return err
	})
	return out, err
}

func (fs *FailoverStore) Get(ctx context.Context, key string) (int64, error) {
	var out int64
	err := fs.execute(func(s Store) error {
		var err error
		out, err = s.Get(ctx, key)
		return err
	})
	return out, err
}

func (fs *FailoverStore) Del(ctx context.Context, keys ...string) (int64, error) {
	var out int64
	err := fs.execute(func(s Store) error {
		var err error
		out, err = s.Del(ctx, keys...)
		return err
	})
	return out, err
}

func (fs *FailoverStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	var out bool
	err := fs.execute(func(s Store) error {
		var err error
		out, err = s.Expire(ctx, key, ttl)
		return err
	})
	return out, err
}

func (fs *FailoverStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	var out time.Duration
	err := fs.execute(func(s Store) error {
		var err error
		out, err = s.TTL(ctx, key)
		return err
	})
	return out, err
}

// Ping reports the health of the active store
func (fs *FailoverStore) Ping(ctx context.Context) error {
	return fs.activeStore().Ping(ctx)
}

// Close stops probing and closes both stores
func (fs *FailoverStore) Close() error {
	var err error
	fs.closeOnce.Do(func() {
		fs.mu.Lock()
		if fs.probing {
			close(fs.probeStop)
			done := fs.probeDone
			fs.probing = false
			fs.mu.Unlock()
			<-done
		} else {
			fs.mu.Unlock()
		}

		err = errors.Join(fs.primary.Close(), fs.fallback.Close())
	})
	return err
}
