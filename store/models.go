package store

import "github.com/uptrace/bun"

// System roles. Viewers only see reports reachable through their group
// memberships; every other role sees the full report list.
const (
	RoleAdmin     = "admin"
	RoleDeveloper = "developer"
	RoleViewer    = "viewer"
)

// User is a row of p_user plus its resolved attribute list.
type User struct {
	bun.BaseModel `bun:"table:p_user,alias:u"`

	ID         int64  `bun:"id,pk,autoincrement"`
	Username   string `bun:"username"`
	Name       string `bun:"name"`
	SysRole    string `bun:"sys_role"`
	SessionKey string `bun:"session_key"`
	APIKey     string `bun:"api_key"`

	Attributes []UserAttribute `bun:"-"`
}

// IsViewer reports whether the user is limited to group-reachable reports.
func (u *User) IsViewer() bool {
	return u != nil && u.SysRole == RoleViewer
}

// UserAttribute is a key/value pair attached to a user, used for row-level
// filtering when reports run.
type UserAttribute struct {
	bun.BaseModel `bun:"table:p_user_attribute,alias:ua"`

	UserID    int64  `bun:"user_id"`
	AttrKey   string `bun:"attr_key"`
	AttrValue string `bun:"attr_value"`
}

// Report is a report summary as shown in listings.
type Report struct {
	bun.BaseModel `bun:"table:p_report,alias:r"`

	ID      int64  `bun:"id,pk,autoincrement"`
	Name    string `bun:"name"`
	Style   string `bun:"style"`
	Project string `bun:"project"`
}

// DataSource is the stored configuration for a tenant database. Password is
// encrypted at rest; it is only decrypted at pool-construction time.
type DataSource struct {
	bun.BaseModel `bun:"table:p_datasource,alias:d"`

	ID            int64  `bun:"id,pk,autoincrement"`
	Name          string `bun:"name"`
	ConnectionURL string `bun:"connection_url"`
	DriverName    string `bun:"driver_name"`
	Username      string `bun:"username"`
	Password      string `bun:"password"`
	Ping          string `bun:"ping"`
}
