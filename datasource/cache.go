package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-reporting-cache/internal/secrets"
	"github.com/goliatone/go-reporting-cache/store"
)

// ErrShutdown is returned by Get after Shutdown has run.
var ErrShutdown = errors.New("datasource: cache is shut down")

// Config holds pool-cache configuration.
type Config struct {
	// TTL is how long a constructed pool stays cached, measured from
	// construction. Usage does not extend it.
	TTL time.Duration

	// SweepInterval is how often the background sweep closes expired
	// pools. Expired entries hit by Get are also evicted lazily, so the
	// sweep only bounds how long an idle expired pool can hold
	// connections.
	SweepInterval time.Duration

	// MaxOpenConns bounds each constructed pool.
	MaxOpenConns int

	// LeakThreshold flags connections checked out longer than this as
	// probable leaks.
	LeakThreshold time.Duration
}

// DefaultConfig returns the production defaults: five minute residency,
// ten second leak threshold.
func DefaultConfig() Config {
	return Config{
		TTL:           5 * time.Minute,
		SweepInterval: 30 * time.Second,
		MaxOpenConns:  10,
		LeakThreshold: 10 * time.Second,
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	if c.TTL <= 0 {
		return errors.New("datasource: TTL must be greater than 0")
	}
	if c.SweepInterval <= 0 {
		return errors.New("datasource: SweepInterval must be greater than 0")
	}
	if c.MaxOpenConns <= 0 {
		return errors.New("datasource: MaxOpenConns must be greater than 0")
	}
	if c.LeakThreshold < 0 {
		return errors.New("datasource: LeakThreshold must be non-negative")
	}
	return nil
}

type entry struct {
	pool     *Pool
	storedAt time.Time
}

// Cache keeps at most one live pool per data-source id. Pools are
// constructed on first access from stored configuration, shared across all
// callers, and closed exactly once when evicted, whether by TTL, by explicit
// invalidation, or at shutdown.
//
// This cache does not sit on the sturdyc-backed CacheService like the
// identity and report caches: eviction here must run a resource-release
// hook, and the generic engine has no removal callback. The entry map keeps
// per-key operations independent; only the in-flight construction for a
// given id serializes callers.
type Cache struct {
	cfg     Config
	sources store.DataSourceStore
	codec   *secrets.Codec
	log     *zap.Logger

	entries *xsync.MapOf[int64, *entry]
	group   singleflight.Group
	now     func() time.Time

	mu   sync.Mutex // guards shut against racing constructions
	shut bool
	stop chan struct{}
	done chan struct{}
}

// New constructs the cache and starts its background sweep. codec may be
// nil when stored passwords are plaintext (tests, legacy rows).
func New(sources store.DataSourceStore, codec *secrets.Codec, cfg Config, log *zap.Logger) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	c := &Cache{
		cfg:     cfg,
		sources: sources,
		codec:   codec,
		log:     log,
		entries: xsync.NewMapOf[int64, *entry](),
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c, nil
}

// Get returns the shared pool for dataSourceID, constructing it on first
// access. It returns (nil, nil) for the zero sentinel id and for ids with
// no stored configuration; construction failures are returned as errors and
// nothing is cached, so the next call retries.
//
// Concurrent calls for the same uncached id share one construction attempt.
func (c *Cache) Get(ctx context.Context, dataSourceID int64) (*Pool, error) {
	if dataSourceID == 0 {
		return nil, nil
	}

	if e, ok := c.entries.Load(dataSourceID); ok {
		if !c.expired(e) {
			return e.pool, nil
		}
		c.evict(dataSourceID, e)
	}

	// The construction must not die with the first waiter: later arrivals
	// depend on it, so it runs detached from the caller's cancellation.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(strconv.FormatInt(dataSourceID, 10), func() (any, error) {
		if e, ok := c.entries.Load(dataSourceID); ok && !c.expired(e) {
			return e.pool, nil
		}
		return c.construct(loadCtx, dataSourceID)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return v.(*Pool), nil
}

// Invalidate removes and closes the pool for dataSourceID immediately.
// Invalidating an absent id is a no-op.
func (c *Cache) Invalidate(dataSourceID int64) {
	if e, ok := c.entries.LoadAndDelete(dataSourceID); ok {
		c.closePool(e.pool)
	}
}

// Shutdown stops the sweep and closes every cached pool. A pool whose
// construction races with Shutdown is closed by the constructing goroutine
// before it is ever published, so nothing leaks. Shutdown is idempotent.
func (c *Cache) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.shut {
		c.mu.Unlock()
		return nil
	}
	c.shut = true
	c.mu.Unlock()

	close(c.stop)
	select {
	case <-c.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.entries.Range(func(id int64, _ *entry) bool {
		if e, ok := c.entries.LoadAndDelete(id); ok {
			c.closePool(e.pool)
		}
		return true
	})
	return nil
}

// Size returns the number of cached pools, expired entries included until
// the next sweep.
func (c *Cache) Size() int {
	return c.entries.Size()
}

func (c *Cache) construct(ctx context.Context, id int64) (*Pool, error) {
	ds, err := c.sources.FindDataSourceByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ds.DriverName == "" {
		return nil, fmt.Errorf("datasource %d: no driver configured", id)
	}

	password := ds.Password
	if c.codec != nil {
		password, err = c.codec.Decrypt(ds.Password)
		if err != nil {
			return nil, fmt.Errorf("datasource %d: %w", id, err)
		}
	}

	db, err := sql.Open(ds.DriverName, buildDSN(ds, password))
	if err != nil {
		return nil, fmt.Errorf("datasource %d: %w", id, err)
	}
	db.SetMaxOpenConns(c.cfg.MaxOpenConns)

	if ds.Ping != "" {
		if _, err := db.ExecContext(ctx, ds.Ping); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("datasource %d: ping %q: %w", id, ds.Ping, err)
		}
	}

	pool := newPool(db, ds, c.cfg.LeakThreshold, c.log)

	c.mu.Lock()
	if c.shut {
		c.mu.Unlock()
		c.closePool(pool)
		return nil, ErrShutdown
	}
	c.entries.Store(id, &entry{pool: pool, storedAt: c.now()})
	c.mu.Unlock()

	c.log.Debug("constructed data source pool",
		zap.Int64("datasource_id", id),
		zap.String("datasource", ds.Name))
	return pool, nil
}

func (c *Cache) expired(e *entry) bool {
	return c.now().Sub(e.storedAt) > c.cfg.TTL
}

// evict removes stale from the map if it is still the current entry for id,
// and closes it. The conditional delete keeps a racing reconstruction safe:
// if a fresh pool has replaced stale, the fresh one stays.
func (c *Cache) evict(id int64, stale *entry) {
	var victim *Pool
	c.entries.Compute(id, func(cur *entry, loaded bool) (*entry, bool) {
		if loaded && cur == stale {
			victim = cur.pool
			return nil, true
		}
		return cur, !loaded
	})
	if victim != nil {
		c.closePool(victim)
	}
}

func (c *Cache) closePool(p *Pool) {
	if err := p.Close(); err != nil {
		// Release failure never blocks removal or reaches callers.
		c.log.Error("closing data source pool",
			zap.Int64("datasource_id", p.DataSourceID()),
			zap.Error(err))
	}
}

func (c *Cache) sweep() {
	defer close(c.done)

	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.entries.Range(func(id int64, e *entry) bool {
				if c.expired(e) {
					c.evict(id, e)
				}
				return true
			})
		}
	}
}

// buildDSN folds the stored credentials into the connection URL. URLs
// without a scheme (driver-specific DSN strings) pass through untouched and
// are expected to carry their own credentials.
func buildDSN(ds *store.DataSource, password string) string {
	if ds.Username == "" {
		return ds.ConnectionURL
	}
	u, err := url.Parse(ds.ConnectionURL)
	if err != nil || u.Scheme == "" {
		return ds.ConnectionURL
	}
	u.User = url.UserPassword(ds.Username, password)
	return u.String()
}
