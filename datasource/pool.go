package datasource

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-reporting-cache/store"
)

// Pool wraps the physical connection pool for one data source. The cache
// owns the pool's lifetime; callers borrow it for query execution and must
// never close it themselves.
type Pool struct {
	db            *sql.DB
	dataSourceID  int64
	name          string
	leakThreshold time.Duration
	log           *zap.Logger
	closed        atomic.Bool
}

func newPool(db *sql.DB, ds *store.DataSource, leakThreshold time.Duration, log *zap.Logger) *Pool {
	return &Pool{
		db:            db,
		dataSourceID:  ds.ID,
		name:          ds.Name,
		leakThreshold: leakThreshold,
		log:           log,
	}
}

// DB exposes the underlying handle for running report queries. The handle
// remains valid for in-flight operations even if the cache evicts the pool
// concurrently; new work fails once the pool is closed.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// DataSourceID returns the id of the data source this pool connects to.
func (p *Pool) DataSourceID() int64 {
	return p.dataSourceID
}

// Acquire checks a single connection out of the pool. A connection held
// longer than the leak threshold is logged as a probable leak; it is not
// forcibly closed.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, err
	}

	c := &Conn{conn: conn}
	if p.leakThreshold > 0 {
		threshold := p.leakThreshold
		c.leakTimer = time.AfterFunc(threshold, func() {
			p.log.Warn("connection checked out past leak threshold",
				zap.Int64("datasource_id", p.dataSourceID),
				zap.String("datasource", p.name),
				zap.Duration("threshold", threshold))
		})
	}
	return c, nil
}

// Close releases the pool's physical connections. It is safe to call more
// than once; only the first call reaches the underlying handle.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.db.Close()
}

// Closed reports whether the pool has been closed.
func (p *Pool) Closed() bool {
	return p.closed.Load()
}

// Conn is a single checked-out connection with leak accounting.
type Conn struct {
	conn      *sql.Conn
	leakTimer *time.Timer
	released  atomic.Bool
}

// Conn returns the underlying database connection.
func (c *Conn) Conn() *sql.Conn {
	return c.conn
}

// Release returns the connection to the pool and cancels leak accounting.
// Releasing twice is a no-op.
func (c *Conn) Release() error {
	if !c.released.CompareAndSwap(false, true) {
		return nil
	}
	if c.leakTimer != nil {
		c.leakTimer.Stop()
	}
	return c.conn.Close()
}
