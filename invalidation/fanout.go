// Package invalidation turns writes elsewhere in the system into the cache
// removals that keep the identity, report-visibility, and pool caches
// correct. Each mutation type has one entry point that computes the
// affected keys and invalidates them, so the fan-out is testable without
// the HTTP layer.
package invalidation

import (
	"context"

	"go.uber.org/zap"

	"github.com/goliatone/go-reporting-cache/datasource"
	"github.com/goliatone/go-reporting-cache/identity"
	"github.com/goliatone/go-reporting-cache/report"
	"github.com/goliatone/go-reporting-cache/store"
)

// Fanout coordinates cross-cache invalidation. It holds no state of its
// own; membership is queried at mutation time because the affected user set
// depends on the current rows.
type Fanout struct {
	users      store.UserStore
	groups     store.GroupStore
	identities *identity.Cache
	visibility *report.Cache
	pools      *datasource.Cache
	log        *zap.Logger
}

// New wires the fan-out against the caches it invalidates.
func New(users store.UserStore, groups store.GroupStore, identities *identity.Cache, visibility *report.Cache, pools *datasource.Cache, log *zap.Logger) *Fanout {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fanout{
		users:      users,
		groups:     groups,
		identities: identities,
		visibility: visibility,
		pools:      pools,
		log:        log,
	}
}

// UserChanged runs after a user row is mutated or deleted. The user's
// current session and API keys come from the stored row, so mutation
// endpoints must call this with the row read before the write when the
// write removes it.
func (f *Fanout) UserChanged(ctx context.Context, user *store.User) {
	if user == nil {
		return
	}
	f.identities.InvalidateSession(ctx, user.SessionKey)
	f.identities.InvalidateAPIKey(ctx, user.APIKey)
	f.visibility.Invalidate(ctx, user.ID)
}

// UserChangedByID resolves the stored row first, then invalidates. Used by
// endpoints that only carry the id.
func (f *Fanout) UserChangedByID(ctx context.Context, userID int64) {
	user, err := f.users.FindUserByID(ctx, userID)
	if err != nil {
		// The report entry is keyed by id and can still be dropped; the
		// session entry will age out on its own TTL.
		f.log.Warn("resolving user for invalidation", zap.Int64("user_id", userID), zap.Error(err))
		f.visibility.Invalidate(ctx, userID)
		return
	}
	f.UserChanged(ctx, user)
}

// GroupChanged runs after a group, its report list, or its membership is
// mutated. Every current member's visible set may have changed, so the
// report cache is invalidated for each of them, not just the actor.
func (f *Fanout) GroupChanged(ctx context.Context, groupID int64) error {
	members, err := f.groups.FindGroupMembers(ctx, groupID)
	if err != nil {
		return err
	}
	for _, userID := range members {
		f.visibility.Invalidate(ctx, userID)
	}
	return nil
}

// ReportChanged runs after a report is created, edited, or deleted. The
// acting user's cached list is stale, and so is the list of every user who
// reaches the report through a group.
func (f *Fanout) ReportChanged(ctx context.Context, reportID, actorUserID int64) error {
	f.visibility.Invalidate(ctx, actorUserID)

	members, err := f.groups.FindReportGroupMembers(ctx, reportID)
	if err != nil {
		return err
	}
	for _, userID := range members {
		if userID != actorUserID {
			f.visibility.Invalidate(ctx, userID)
		}
	}
	return nil
}

// DataSourceChanged runs after a data source is edited or deleted: the
// cached pool connects with stale configuration and is closed immediately.
func (f *Fanout) DataSourceChanged(ctx context.Context, dataSourceID int64) {
	f.pools.Invalidate(dataSourceID)
}
