// Package kv provides a small Redis-like counter store used for request
// accounting, with in-memory and Redis-backed implementations.
//
// The Store interface covers the operations a fixed-window limiter needs:
// atomic increments, key expiry and TTL inspection.
//
// Example usage:
//
//	store, err := NewStoreFromConfig(Config{Backend: BackendMemory})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	n, err := store.IncrBy(ctx, "ratelimit:203.0.113.7", 1)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if n == 1 {
//		store.Expire(ctx, "ratelimit:203.0.113.7", 15*time.Minute)
//	}
//
// The in-memory implementation expires keys lazily and through a background
// janitor. The Redis adapter wraps go-redis/v9 and can be combined with the
// in-memory store through FailoverStore so that a Redis outage degrades to
// per-instance counting instead of failing requests.
package kv
