package kv

import (
	"context"
	"fmt"
	"time"
)

// Backend represents the storage backend type
type Backend string

const (
	// BackendMemory keeps counters in process memory
	BackendMemory Backend = "memory"
	// BackendRedis keeps counters in Redis so that replicas share them
	BackendRedis Backend = "redis"
)

// Config holds configuration for creating a Store instance
type Config struct {
	Backend Backend

	// RedisURL is required for BackendRedis.
	// Format: redis://localhost:6379/0 or redis://:password@localhost:6379/1
	RedisURL string

	// JanitorInterval controls how often the in-memory store evicts expired keys.
	// Default: 30 seconds
	JanitorInterval time.Duration

	// ProbeInterval controls how often Redis is probed for recovery after a failover.
	// Default: 5 seconds
	ProbeInterval time.Duration

	// StartupProbeTimeout bounds the Redis health check at startup.
	// Default: 1 second
	StartupProbeTimeout time.Duration

	// Logger receives failover events. May be nil.
	Logger LogFunc
}

// StoreFactory builds a Store for a backend
type StoreFactory func(cfg Config) (Store, error)

var factories = make(map[Backend]StoreFactory)

// RegisterBackend registers a store factory for a given backend.
// Backends register themselves from init in their own packages.
func RegisterBackend(backend Backend, factory StoreFactory) {
	factories[backend] = factory
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	if c.JanitorInterval == 0 {
		c.JanitorInterval = 30 * time.Second
	}
	if c.ProbeInterval == 0 {
		c.ProbeInterval = 5 * time.Second
	}
	if c.StartupProbeTimeout == 0 {
		c.StartupProbeTimeout = time.Second
	}
}

// NewStoreFromConfig creates a Store for the configured backend.
// A Redis backend is always wrapped in a FailoverStore with an in-memory fallback.
func NewStoreFromConfig(cfg Config) (Store, error) {
	cfg.applyDefaults()

	memoryFactory, ok := factories[BackendMemory]
	if !ok {
		return nil, fmt.Errorf("memory backend not registered")
	}

	switch cfg.Backend {
	case BackendMemory:
		return memoryFactory(cfg)
	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("redis URL is required when backend is %q", BackendRedis)
		}
		redisFactory, ok := factories[BackendRedis]
		if !ok {
			return nil, fmt.Errorf("redis backend not registered")
		}

		fallback, err := memoryFactory(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create fallback store: %w", err)
		}

		primary, err := redisFactory(cfg)
		if err != nil {
			// Nothing to probe without a client; run on the fallback only.
			cfg.log("Redis unavailable at startup; using in-memory store", "error", err.Error())
			return fallback, nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.StartupProbeTimeout)
		defer cancel()
		if err := primary.Ping(ctx); err != nil {
			cfg.log("Redis unhealthy at startup; using in-memory store and probing", "error", err.Error())
			return NewFailoverStoreWithFallbackActive(primary, fallback, cfg.ProbeInterval, cfg.Logger), nil
		}

		cfg.log("Redis healthy at startup; using Redis with in-memory failover")
		return NewFailoverStore(primary, fallback, cfg.ProbeInterval, cfg.Logger), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s (supported: %s, %s)",
			cfg.Backend, BackendMemory, BackendRedis)
	}
}

func (c Config) log(msg string, fields ...any) {
	if c.Logger != nil {
		c.Logger(msg, fields...)
	}
}
