package cache

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidResultType is returned when a cached value does not match the
// type the caller asked for. It indicates two callers sharing a key with
// different value types, which is always a programming error.
var ErrInvalidResultType = errors.New("cache: result type mismatch")

// KeySerializer builds a cache key from a namespace + arbitrary args.
// It is responsible for producing stable keys across calls.
type KeySerializer interface {
	SerializeKey(namespace string, args ...any) string
}

// FetchFn is the function signature CacheService expects when fetching from
// the source of truth. The fetch runs at most once per key among concurrent
// callers; every waiter receives the same value or the same error.
type FetchFn[T any] func(ctx context.Context) (T, error)

// CacheService exposes the read-through caching operations shared by the
// identity and report-visibility caches. Entries expire a fixed TTL after
// the write that stored them; expired entries are treated as absent.
type CacheService interface {
	// GetOrFetch returns the cached value for key, running fetch exactly
	// once among concurrent callers when the key is absent or expired.
	// Nothing is stored when fetch fails, so the next call retries.
	GetOrFetch(ctx context.Context, key string, fetch func(ctx context.Context) (any, error)) (any, error)
	// Get returns the unexpired value for key, if any.
	Get(ctx context.Context, key string) (any, bool)
	// Set stores value under key, restarting its TTL.
	Set(ctx context.Context, key string, value any) error
	// Delete removes key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error
	// DeleteAll removes every entry.
	DeleteAll(ctx context.Context) error
}

// GetOrFetch is a type-safe wrapper function that provides generic support
// for CacheService.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, fetch FetchFn[T]) (T, error) {
	var zero T

	result, err := service.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return zero, err
	}
	if result == nil {
		// Nil interface: the zero value is the correct answer for
		// pointer and interface types.
		return zero, nil
	}

	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("%w: have %T", ErrInvalidResultType, result)
	}
	return typed, nil
}
