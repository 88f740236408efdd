package testsupport

import (
	"context"
	"sync"

	"github.com/goliatone/go-reporting-cache/store"
)

// FakeStore is an in-memory store.Store for cache tests. It counts calls
// per method so tests can assert how often a loader actually reached the
// backing store, and it can be forced to fail every lookup via FailWith.
type FakeStore struct {
	mu sync.Mutex

	UsersBySession     map[string]*store.User
	UsersByAPIKey      map[string]*store.User
	UsersByID          map[int64]*store.User
	Attributes         map[int64][]store.UserAttribute
	AllReports         []store.Report
	ViewerReports      map[int64][]store.Report
	DataSources        map[int64]*store.DataSource
	GroupMembers       map[int64][]int64
	ReportGroupMembers map[int64][]int64

	calls map[string]int
	err   error
}

var _ store.Store = (*FakeStore)(nil)

// NewFakeStore returns an empty store; seed the exported maps directly.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		UsersBySession:     map[string]*store.User{},
		UsersByAPIKey:      map[string]*store.User{},
		UsersByID:          map[int64]*store.User{},
		Attributes:         map[int64][]store.UserAttribute{},
		ViewerReports:      map[int64][]store.Report{},
		DataSources:        map[int64]*store.DataSource{},
		GroupMembers:       map[int64][]int64{},
		ReportGroupMembers: map[int64][]int64{},
		calls:              map[string]int{},
	}
}

// AddUser seeds a user under every lookup key it carries.
func (f *FakeStore) AddUser(u *store.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UsersByID[u.ID] = u
	if u.SessionKey != "" {
		f.UsersBySession[u.SessionKey] = u
	}
	if u.APIKey != "" {
		f.UsersByAPIKey[u.APIKey] = u
	}
}

// FailWith makes every subsequent lookup return err; pass nil to recover.
func (f *FakeStore) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// CallCount returns how many times the named store method ran.
func (f *FakeStore) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *FakeStore) enter(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	return f.err
}

func (f *FakeStore) FindUserBySessionKey(ctx context.Context, sessionKey string) (*store.User, error) {
	if err := f.enter("FindUserBySessionKey"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.UsersBySession[sessionKey]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneUser(u), nil
}

func (f *FakeStore) FindUserByAPIKey(ctx context.Context, apiKey string) (*store.User, error) {
	if err := f.enter("FindUserByAPIKey"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.UsersByAPIKey[apiKey]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneUser(u), nil
}

func (f *FakeStore) FindUserByID(ctx context.Context, id int64) (*store.User, error) {
	if err := f.enter("FindUserByID"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.UsersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneUser(u), nil
}

func (f *FakeStore) FindUserAttributes(ctx context.Context, userID int64) ([]store.UserAttribute, error) {
	if err := f.enter("FindUserAttributes"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.UserAttribute(nil), f.Attributes[userID]...), nil
}

func (f *FakeStore) FindAllReports(ctx context.Context) ([]store.Report, error) {
	if err := f.enter("FindAllReports"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.Report(nil), f.AllReports...), nil
}

func (f *FakeStore) FindReportsForViewer(ctx context.Context, userID int64) ([]store.Report, error) {
	if err := f.enter("FindReportsForViewer"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.Report(nil), f.ViewerReports[userID]...), nil
}

func (f *FakeStore) FindDataSourceByID(ctx context.Context, id int64) (*store.DataSource, error) {
	if err := f.enter("FindDataSourceByID"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ds, ok := f.DataSources[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *ds
	return &cp, nil
}

func (f *FakeStore) FindGroupMembers(ctx context.Context, groupID int64) ([]int64, error) {
	if err := f.enter("FindGroupMembers"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.GroupMembers[groupID]...), nil
}

func (f *FakeStore) FindReportGroupMembers(ctx context.Context, reportID int64) ([]int64, error) {
	if err := f.enter("FindReportGroupMembers"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.ReportGroupMembers[reportID]...), nil
}

// cloneUser copies the row the way a real store materializes a fresh value
// per query; cached values must never alias fake internals.
func cloneUser(u *store.User) *store.User {
	cp := *u
	cp.Attributes = append([]store.UserAttribute(nil), u.Attributes...)
	return &cp
}
