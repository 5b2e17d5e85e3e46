package memory

import (
	"context"
	"sync"
	"time"

	"github.com/saifu-wallet/gateway/pkg/kv"
)

type entry struct {
	value     int64
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Store is an in-memory implementation of the kv.Store interface
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time

	janitorInterval time.Duration
	janitorStop     chan struct{}
	janitorDone     chan struct{}
	closeOnce       sync.Once
}

// New creates a new in-memory store. A janitorInterval of zero disables
// background eviction; expired keys are still dropped lazily on access.
func New(janitorInterval time.Duration) *Store {
	return NewWithClock(janitorInterval, time.Now)
}

// NewWithClock is New with an injectable clock, used to step through
// expiry windows in tests.
func NewWithClock(janitorInterval time.Duration, now func() time.Time) *Store {
	s := &Store{
		entries:         make(map[string]entry),
		now:             now,
		janitorInterval: janitorInterval,
		janitorStop:     make(chan struct{}),
		janitorDone:     make(chan struct{}),
	}

	if janitorInterval > 0 {
		go s.janitor()
	} else {
		close(s.janitorDone)
	}

	return s
}

func (s *Store) janitor() {
	defer close(s.janitorDone)
	ticker := time.NewTicker(s.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.janitorStop:
			return
		}
	}
}

func (s *Store) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
		}
	}
}

// lookup returns a live entry, dropping it if expired (must hold lock)
func (s *Store) lookup(key string) (entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return entry{}, false
	}
	if e.expired(s.now()) {
		delete(s.entries, key)
		return entry{}, false
	}
	return e, true
}

func (s *Store) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, _ := s.lookup(key)
	e.value += n
	s.entries[key] = e
	return e.value, nil
}

func (s *Store) Get(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return 0, kv.ErrNotFound
	}
	return e.value, nil
}

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for _, key := range keys {
		if _, ok := s.lookup(key); ok {
			delete(s.entries, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return false, nil
	}
	if ttl <= 0 {
		delete(s.entries, key)
		return true, nil
	}
	e.expiresAt = s.now().Add(ttl)
	s.entries[key] = e
	return true, nil
}

// TTL returns the remaining lifetime of key, -1 when it has no expiry,
// and kv.ErrNotFound when it does not exist
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return 0, kv.ErrNotFound
	}
	if e.expiresAt.IsZero() {
		return -1, nil
	}
	return e.expiresAt.Sub(s.now()), nil
}

// Ping always returns nil for the in-memory store
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close stops the background janitor and drops all keys
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.janitorInterval > 0 {
			close(s.janitorStop)
			<-s.janitorDone
		}

		s.mu.Lock()
		s.entries = make(map[string]entry)
		s.mu.Unlock()
	})
	return nil
}
