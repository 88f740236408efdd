// Package report caches, per user id, the list of reports that user may
// see. The set is role-dependent: viewers get the reports reachable through
// their group memberships, every other role gets the full list.
package report

import (
	"context"

	"go.uber.org/zap"

	"github.com/goliatone/go-reporting-cache/cache"
	"github.com/goliatone/go-reporting-cache/store"
)

const nsReports = "reports"

// Cache is the report-visibility cache. Staleness is resolved by removal:
// any write that can change a user's visible set calls Invalidate for every
// affected user id (see the invalidation package), never by patching the
// cached list.
type Cache struct {
	entries cache.CacheService
	keys    cache.KeySerializer
	reports store.ReportStore
	log     *zap.Logger
}

// New wires the report-visibility cache.
func New(entries cache.CacheService, keys cache.KeySerializer, reports store.ReportStore, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{
		entries: entries,
		keys:    keys,
		reports: reports,
		log:     log,
	}
}

// ReportsFor returns the reports visible to user. A nil user is tolerated
// and yields an empty list, as does a load failure; failures are logged and
// not cached, so the next call queries the store again.
func (c *Cache) ReportsFor(ctx context.Context, user *store.User) []store.Report {
	if user == nil {
		c.log.Warn("report listing requested without a user")
		return []store.Report{}
	}

	key := c.keys.SerializeKey(nsReports, user.ID)
	reports, err := cache.GetOrFetch(ctx, c.entries, key, func(ctx context.Context) ([]store.Report, error) {
		if user.IsViewer() {
			return c.reports.FindReportsForViewer(ctx, user.ID)
		}
		return c.reports.FindAllReports(ctx)
	})
	if err != nil {
		c.log.Error("loading reports", zap.Int64("user_id", user.ID), zap.Error(err))
		return []store.Report{}
	}
	if reports == nil {
		return []store.Report{}
	}
	return reports
}

// Invalidate drops the cached list for userID. Invalidating an uncached
// user is a no-op.
func (c *Cache) Invalidate(ctx context.Context, userID int64) {
	_ = c.entries.Delete(ctx, c.keys.SerializeKey(nsReports, userID))
}
