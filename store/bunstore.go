package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
)

// BunStore implements Store on top of a bun database handle.
type BunStore struct {
	db *bun.DB
}

var _ Store = (*BunStore)(nil)

// NewBunStore wraps the application database handle. The handle stays owned
// by the caller; BunStore never closes it.
func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{db: db}
}

func (s *BunStore) FindUserBySessionKey(ctx context.Context, sessionKey string) (*User, error) {
	u := new(User)
	err := s.db.NewRaw(
		"SELECT id, username, name, sys_role, session_key, api_key FROM p_user WHERE session_key = ?",
		sessionKey,
	).Scan(ctx, u)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return u, nil
}

func (s *BunStore) FindUserByAPIKey(ctx context.Context, apiKey string) (*User, error) {
	u := new(User)
	err := s.db.NewRaw(
		"SELECT id, username, name, sys_role, session_key, api_key FROM p_user WHERE api_key = ?",
		apiKey,
	).Scan(ctx, u)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return u, nil
}

func (s *BunStore) FindUserByID(ctx context.Context, id int64) (*User, error) {
	u := new(User)
	err := s.db.NewRaw(
		"SELECT id, username, name, sys_role, session_key, api_key FROM p_user WHERE id = ?",
		id,
	).Scan(ctx, u)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return u, nil
}

func (s *BunStore) FindUserAttributes(ctx context.Context, userID int64) ([]UserAttribute, error) {
	var attrs []UserAttribute
	err := s.db.NewRaw(
		"SELECT user_id, attr_key, attr_value FROM p_user_attribute WHERE user_id = ?",
		userID,
	).Scan(ctx, &attrs)
	if err != nil {
		return nil, err
	}
	return attrs, nil
}

func (s *BunStore) FindAllReports(ctx context.Context) ([]Report, error) {
	var reports []Report
	err := s.db.NewRaw(
		"SELECT id, name, style, project FROM p_report",
	).Scan(ctx, &reports)
	if err != nil {
		return nil, err
	}
	return reports, nil
}

// FindReportsForViewer joins group membership against group reports: a
// viewer sees a report when at least one of their groups carries it.
func (s *BunStore) FindReportsForViewer(ctx context.Context, userID int64) ([]Report, error) {
	var reports []Report
	err := s.db.NewRaw(
		"SELECT DISTINCT r.id, r.name, r.style, r.project "+
			"FROM p_group_report gr, p_report r, p_group_user gu "+
			"WHERE gr.report_id = r.id AND gr.group_id = gu.group_id AND gu.user_id = ?",
		userID,
	).Scan(ctx, &reports)
	if err != nil {
		return nil, err
	}
	return reports, nil
}

func (s *BunStore) FindDataSourceByID(ctx context.Context, id int64) (*DataSource, error) {
	ds := new(DataSource)
	err := s.db.NewRaw(
		"SELECT id, name, connection_url, driver_name, username, password, ping FROM p_datasource WHERE id = ?",
		id,
	).Scan(ctx, ds)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return ds, nil
}

func (s *BunStore) FindGroupMembers(ctx context.Context, groupID int64) ([]int64, error) {
	var ids []int64
	err := s.db.NewRaw(
		"SELECT user_id FROM p_group_user WHERE group_id = ?",
		groupID,
	).Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *BunStore) FindReportGroupMembers(ctx context.Context, reportID int64) ([]int64, error) {
	var ids []int64
	err := s.db.NewRaw(
		"SELECT DISTINCT gu.user_id FROM p_group_user gu, p_group_report gr "+
			"WHERE gu.group_id = gr.group_id AND gr.report_id = ?",
		reportID,
	).Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
