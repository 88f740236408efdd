package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a backing row does not exist. Callers treat
// it as "absent", never as a failure, and the caches never store it.
var ErrNotFound = errors.New("store: not found")

// UserStore resolves users and their attributes.
type UserStore interface {
	FindUserBySessionKey(ctx context.Context, sessionKey string) (*User, error)
	FindUserByAPIKey(ctx context.Context, apiKey string) (*User, error)
	FindUserByID(ctx context.Context, id int64) (*User, error)
	FindUserAttributes(ctx context.Context, userID int64) ([]UserAttribute, error)
}

// ReportStore lists report summaries.
type ReportStore interface {
	FindAllReports(ctx context.Context) ([]Report, error)
	FindReportsForViewer(ctx context.Context, userID int64) ([]Report, error)
}

// DataSourceStore reads tenant database configuration.
type DataSourceStore interface {
	FindDataSourceByID(ctx context.Context, id int64) (*DataSource, error)
}

// GroupStore answers the membership questions invalidation fan-out needs.
type GroupStore interface {
	FindGroupMembers(ctx context.Context, groupID int64) ([]int64, error)
	FindReportGroupMembers(ctx context.Context, reportID int64) ([]int64, error)
}

// Store is the full backing-store boundary the cache layer consumes.
type Store interface {
	UserStore
	ReportStore
	DataSourceStore
	GroupStore
}
