package cacheinfra

import (
	"context"
	"time"

	"github.com/viccon/sturdyc"
)

// Config holds the configuration for the sturdyc cache adapter.
// It encapsulates the core sturdyc options needed for cache initialization.
type Config struct {
	// Capacity defines the maximum number of entries that the cache can store.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of cache shards for concurrent access.
	// Higher values improve concurrency but increase memory overhead.
	// Must be greater than 0.
	NumShards int

	// TTL is the time-to-live for cached entries, measured from the write
	// that stored them. After this duration an entry is treated as absent.
	// Must be greater than 0.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the cache reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often the cache checks for expired entries.
	// Zero value uses the sturdyc default.
	EvictionInterval time.Duration

	// MissingRecordStorage enables remembering keys that returned no
	// results. The reporting caches keep this off: a not-found identity or
	// data source must be retried on the next access.
	MissingRecordStorage bool
}

// DefaultConfig returns a Config with the reporting defaults: five minute
// absolute TTL, no negative caching, no early refresh.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          64,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
	}
}

// Validate checks if the configuration values are valid.
// Returns an error if any configuration parameter is invalid.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}

	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}

	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}

	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}

	if c.EvictionInterval < 0 {
		return &ConfigError{Field: "EvictionInterval", Message: "must be non-negative"}
	}

	return nil
}

// toSturdycOptions maps the optional configuration parameters to sturdyc
// options. Capacity, NumShards, TTL, and EvictionPercentage are passed
// directly to sturdyc.New and are not included here.
//
// sturdyc's early-refresh options are deliberately never applied: refreshing
// an entry before expiry would turn the absolute TTL into a sliding one.
func (c Config) toSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.MissingRecordStorage {
		options = append(options, sturdyc.WithMissingRecordStorage())
	}

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// sturdycService wraps a sturdyc client providing caching behaviour.
type sturdycService struct {
	client *sturdyc.Client[any]
}

// NewSturdycService creates a new sturdyc cache service adapter.
// It validates the configuration and initializes a sturdyc client with the
// provided settings.
func NewSturdycService(cfg Config) (*sturdycService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[any](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.toSturdycOptions()...,
	)

	return &sturdycService{client: client}, nil
}

// GetOrFetch implements cache.CacheService.GetOrFetch. sturdyc guarantees a
// single in-flight fetch per key; concurrent callers for the same absent key
// wait for that one execution and share its result. A failed fetch stores
// nothing.
func (s *sturdycService) GetOrFetch(ctx context.Context, key string, fetch func(ctx context.Context) (any, error)) (any, error) {
	return s.client.GetOrFetch(ctx, key, fetch)
}

// Get implements cache.CacheService.Get.
func (s *sturdycService) Get(ctx context.Context, key string) (any, bool) {
	return s.client.Get(key)
}

// Set implements cache.CacheService.Set. The entry's TTL restarts from this
// write.
func (s *sturdycService) Set(ctx context.Context, key string, value any) error {
	s.client.Set(key, value)
	return nil
}

// Delete implements cache.CacheService.Delete.
// Removing an absent key is a no-op, so invalidation is idempotent.
func (s *sturdycService) Delete(ctx context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

// DeleteAll implements cache.CacheService.DeleteAll. sturdyc has no bulk
// clear, so the adapter scans and deletes key by key. Entries written while
// the scan runs may survive; callers wanting a hard reset should rebuild the
// service instead.
func (s *sturdycService) DeleteAll(ctx context.Context) error {
	for _, key := range s.client.ScanKeys() {
		s.client.Delete(key)
	}
	return nil
}
