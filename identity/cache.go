// Package identity resolves session tokens and API keys to users, caching
// the result for five minutes so request handling does not hit the backing
// store on every call.
package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-reporting-cache/cache"
	"github.com/goliatone/go-reporting-cache/store"
)

const (
	nsSession = "session"
	nsAPIKey  = "api_key"
)

// Cache holds the two independently keyed identity caches. A user cached
// under a session key reflects the row as of the last write to that user:
// mutation paths invalidate the key before the write is considered complete.
type Cache struct {
	sessions cache.CacheService
	apiKeys  cache.CacheService
	keys     cache.KeySerializer
	users    store.UserStore
	log      *zap.Logger
}

// New wires the identity caches. sessions and apiKeys must be distinct
// cache instances; a session token and an API key that happen to collide
// must never resolve to each other's user.
func New(sessions, apiKeys cache.CacheService, keys cache.KeySerializer, users store.UserStore, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{
		sessions: sessions,
		apiKeys:  apiKeys,
		keys:     keys,
		users:    users,
		log:      log,
	}
}

// ResolveBySession returns the user owning sessionKey, or nil when the key
// is empty or matches no user. Not-found is never cached: the next call
// queries the store again. Load failures also yield nil; they are logged
// here and nothing is cached, so the next access retries naturally.
func (c *Cache) ResolveBySession(ctx context.Context, sessionKey string) *store.User {
	if sessionKey == "" {
		return nil
	}

	key := c.keys.SerializeKey(nsSession, sessionKey)
	user, err := cache.GetOrFetch(ctx, c.sessions, key, func(ctx context.Context) (*store.User, error) {
		return c.load(ctx, func(ctx context.Context) (*store.User, error) {
			return c.users.FindUserBySessionKey(ctx, sessionKey)
		})
	})
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.log.Error("loading user by session key", zap.Error(err))
		}
		return nil
	}
	return user
}

// ResolveByAPIKey returns the user owning apiKey, with the same contract as
// ResolveBySession.
func (c *Cache) ResolveByAPIKey(ctx context.Context, apiKey string) *store.User {
	if apiKey == "" {
		return nil
	}

	key := c.keys.SerializeKey(nsAPIKey, apiKey)
	user, err := cache.GetOrFetch(ctx, c.apiKeys, key, func(ctx context.Context) (*store.User, error) {
		return c.load(ctx, func(ctx context.Context) (*store.User, error) {
			return c.users.FindUserByAPIKey(ctx, apiKey)
		})
	})
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.log.Error("loading user by API key", zap.Error(err))
		}
		return nil
	}
	return user
}

// load finds the user and hydrates its attribute list before the value is
// cached, so cached identities always carry their attributes.
func (c *Cache) load(ctx context.Context, find func(ctx context.Context) (*store.User, error)) (*store.User, error) {
	user, err := find(ctx)
	if err != nil {
		return nil, err
	}

	attrs, err := c.users.FindUserAttributes(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Attributes = attrs
	return user, nil
}

// InvalidateSession drops the entry for sessionKey. Mutation paths call
// this before or as part of issuing a replacement key, never after.
func (c *Cache) InvalidateSession(ctx context.Context, sessionKey string) {
	if sessionKey == "" {
		return
	}
	_ = c.sessions.Delete(ctx, c.keys.SerializeKey(nsSession, sessionKey))
}

// InvalidateAPIKey drops the entry for apiKey.
func (c *Cache) InvalidateAPIKey(ctx context.Context, apiKey string) {
	if apiKey == "" {
		return
	}
	_ = c.apiKeys.Delete(ctx, c.keys.SerializeKey(nsAPIKey, apiKey))
}

// PutSession stores user under sessionKey directly, so the very next
// request hits the cache instead of forcing a reload. Used on login.
func (c *Cache) PutSession(ctx context.Context, sessionKey string, user *store.User) {
	if sessionKey == "" || user == nil {
		return
	}
	_ = c.sessions.Set(ctx, c.keys.SerializeKey(nsSession, sessionKey), user)
}

// SeedSession rotates a session: the old key is invalidated first, then the
// user is stored under the new key. Never the other way around; invalidating
// after the put would open a stale-read window on the old key.
func (c *Cache) SeedSession(ctx context.Context, oldSessionKey, newSessionKey string, user *store.User) {
	c.InvalidateSession(ctx, oldSessionKey)
	c.PutSession(ctx, newSessionKey, user)
}

// NewSessionKey returns a fresh opaque session key for rotation.
func NewSessionKey() string {
	return uuid.NewString()
}
