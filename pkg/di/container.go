// Package di assembles the cache layer into explicitly constructed
// instances owned by one long-lived Container. Nothing in this module has
// static lifetime: the process constructs a Container at startup, hands it
// to the request and mutation handlers, and calls Shutdown at termination.
package di

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"

	"github.com/goliatone/go-reporting-cache/cache"
	"github.com/goliatone/go-reporting-cache/datasource"
	"github.com/goliatone/go-reporting-cache/identity"
	"github.com/goliatone/go-reporting-cache/internal/secrets"
	"github.com/goliatone/go-reporting-cache/invalidation"
	"github.com/goliatone/go-reporting-cache/report"
	"github.com/goliatone/go-reporting-cache/store"
)

// Config is the container configuration.
type Config struct {
	// Driver and DSN locate the application store holding users, groups,
	// reports, and data-source configuration.
	Driver string
	DSN    string

	// EncryptionSecret decrypts stored data-source passwords. Empty means
	// passwords are stored in the clear (tests, development).
	EncryptionSecret string

	// CacheTTL applies to the identity and report caches.
	CacheTTL  time.Duration
	Capacity  int
	NumShards int

	// Pool configures the data-source pool cache.
	Pool datasource.Config
}

// DefaultConfig returns the production defaults, minus store location.
func DefaultConfig() Config {
	return Config{
		Driver:    "sqlite3",
		CacheTTL:  5 * time.Minute,
		Capacity:  10000,
		NumShards: 64,
		Pool:      datasource.DefaultConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In("postgres", "sqlite3")),
		validation.Field(&c.DSN, validation.Required),
		validation.Field(&c.CacheTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.NumShards, validation.Required, validation.Min(1)),
	); err != nil {
		return err
	}
	return c.Pool.Validate()
}

// Container owns every cache instance plus the application store handle.
type Container struct {
	cfg Config
	log *zap.Logger

	db    *bun.DB
	store store.Store

	keys       cache.KeySerializer
	identities *identity.Cache
	visibility *report.Cache
	pools      *datasource.Cache
	fanout     *invalidation.Fanout
}

// New opens the application store and wires the caches.
func New(cfg Config, log *zap.Logger) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sqldb, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("di: opening application store: %w", err)
	}

	var db *bun.DB
	switch cfg.Driver {
	case "postgres":
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		db = bun.NewDB(sqldb, sqlitedialect.New())
	}

	c, err := newWithStore(cfg, store.NewBunStore(db), log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	c.db = db
	return c, nil
}

// NewWithStore wires the caches over an externally owned store. The caller
// keeps ownership of whatever backs st; Shutdown only touches the pools.
func NewWithStore(cfg Config, st store.Store, log *zap.Logger) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newWithStore(cfg, st, log)
}

func newWithStore(cfg Config, st store.Store, log *zap.Logger) (*Container, error) {
	if log == nil {
		log = zap.NewNop()
	}

	cacheCfg := cache.Config{
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		TTL:                cfg.CacheTTL,
		EvictionPercentage: 10,
	}

	// The session, API-key, and report caches are independent instances:
	// invalidating one namespace never disturbs the others.
	sessions, err := cache.NewCacheService(cacheCfg)
	if err != nil {
		return nil, err
	}
	apiKeys, err := cache.NewCacheService(cacheCfg)
	if err != nil {
		return nil, err
	}
	reports, err := cache.NewCacheService(cacheCfg)
	if err != nil {
		return nil, err
	}

	var codec *secrets.Codec
	if cfg.EncryptionSecret != "" {
		codec, err = secrets.NewCodec(cfg.EncryptionSecret)
		if err != nil {
			return nil, err
		}
	}

	pools, err := datasource.New(st, codec, cfg.Pool, log)
	if err != nil {
		return nil, err
	}

	keys := cache.NewDefaultKeySerializer()
	identities := identity.New(sessions, apiKeys, keys, st, log)
	visibility := report.New(reports, keys, st, log)
	fanout := invalidation.New(st, st, identities, visibility, pools, log)

	return &Container{
		cfg:        cfg,
		log:        log,
		store:      st,
		keys:       keys,
		identities: identities,
		visibility: visibility,
		pools:      pools,
		fanout:     fanout,
	}, nil
}

// Store returns the backing store boundary.
func (c *Container) Store() store.Store { return c.store }

// Identities returns the identity caches.
func (c *Container) Identities() *identity.Cache { return c.identities }

// Visibility returns the report-visibility cache.
func (c *Container) Visibility() *report.Cache { return c.visibility }

// Pools returns the data-source pool cache.
func (c *Container) Pools() *datasource.Cache { return c.pools }

// Fanout returns the invalidation coordinator mutation endpoints call.
func (c *Container) Fanout() *invalidation.Fanout { return c.fanout }

// Config returns a copy of the container configuration.
func (c *Container) Config() Config { return c.cfg }

// Shutdown closes every cached pool and the application store handle.
// It is called once at process termination and is idempotent.
func (c *Container) Shutdown(ctx context.Context) error {
	err := c.pools.Shutdown(ctx)

	if c.db != nil {
		if cerr := c.db.Close(); cerr != nil && err == nil {
			err = cerr
		}
		c.db = nil
	}
	return err
}
