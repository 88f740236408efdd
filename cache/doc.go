// Package cache provides the read-through caching surface shared by the
// identity and report-visibility caches.
//
// # Overview
//
// The package exports two interfaces and their default implementations:
//
//   - CacheService: read-through operations with TTL expiry and
//     single-flight loading
//   - KeySerializer: builds stable cache keys from a namespace and scalar
//     arguments
//
// Entries expire a fixed duration after the write that stored them. An
// expired entry is indistinguishable from an absent one: GetOrFetch runs
// the fetch function again and Get reports a miss. Expiry is absolute, not
// sliding; reads never extend an entry's lifetime.
//
// # Basic Usage
//
//	service, err := cache.NewCacheService(cache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//
//	keys := cache.NewDefaultKeySerializer()
//	key := keys.SerializeKey("session", token)
//
//	user, err := cache.GetOrFetch(ctx, service, key, func(ctx context.Context) (*store.User, error) {
//		return users.FindBySessionKey(ctx, token)
//	})
//
// When the key is absent, exactly one fetch runs regardless of how many
// goroutines ask for it concurrently; the rest wait for the same result. A
// failed fetch is handed to every waiter and nothing is cached, so the next
// call retries against the source of truth.
//
// # Negative results
//
// The reporting caches never store "not found": a loader that cannot find
// the backing row returns an error, the error reaches the caller, and the
// key stays absent. MissingRecordStorage exists on Config for callers that
// want the opposite trade-off, but every cache in this module leaves it off.
package cache
