package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/paymentapi/internal/common"
	"github.com/dmitrijs2005/paymentapi/internal/dbx"
	"github.com/dmitrijs2005/paymentapi/internal/server/auth"
	"github.com/dmitrijs2005/paymentapi/internal/server/models"
	refreshtokensrepo "github.com/dmitrijs2005/paymentapi/internal/server/repositories/refreshtokens"
	usersrepo "github.com/dmitrijs2005/paymentapi/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newCodec(t *testing.T, clock *testClock, secret, alg string) *auth.Codec {
	t.Helper()
	c, err := auth.NewCodec([]byte(secret), alg, auth.WithClock(clock.Now))
	require.NoError(t, err)
	return c
}

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// --- fake users repository ---

type fakeUsersRepo struct {
	mu     sync.Mutex
	byID   map[string]*models.User
	nextID int

	createErr error
	getErr    error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: map[string]*models.User{}}
}

func (f *fakeUsersRepo) add(email string) *models.User {
	u, _ := f.Create(context.Background(), &models.User{UserName: email, Email: email})
	return u
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	f.nextID++
	cp := *u
	cp.ID = fmt.Sprintf("u-%d", f.nextID)
	cp.CreatedAt = time.Now()
	f.byID[cp.ID] = &cp
	return &cp, nil
}

func (f *fakeUsersRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

// --- fake refresh token repository ---

// fakeTokenRepo mirrors the store contract in memory: one record per user,
// versioned conditional MarkUsed, previous token kept on overwrite.
type fakeTokenRepo struct {
	mu     sync.Mutex
	byUser map[string]*models.RefreshToken
	nextID int

	markUsedErr error
	upsertErr   error
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{byUser: map[string]*models.RefreshToken{}}
}

func (f *fakeTokenRepo) get(userID string) *models.RefreshToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byUser[userID]
	if !ok {
		return nil
	}
	cp := *rec
	return &cp
}

func (f *fakeTokenRepo) update(userID string, fn func(*models.RefreshToken)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.byUser[userID])
}

func (f *fakeTokenRepo) FindByUser(ctx context.Context, userID string) (*models.RefreshToken, error) {
	if rec := f.get(userID); rec != nil {
		return rec, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeTokenRepo) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.byUser {
		if view, ok := rec.ViewFor(token); ok {
			cp := *view
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeTokenRepo) Upsert(ctx context.Context, rec *models.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	cp := *rec
	cp.IsUsed, cp.IsRevoked = false, false
	if existing, ok := f.byUser[rec.UserID]; ok {
		cp.ID = existing.ID
		cp.Version = existing.Version + 1
		cp.PreviousToken = existing.Token
	} else {
		f.nextID++
		cp.ID = fmt.Sprintf("r-%d", f.nextID)
		cp.Version = 1
		cp.PreviousToken = ""
	}
	f.byUser[rec.UserID] = &cp
	rec.ID, rec.Version, rec.PreviousToken = cp.ID, cp.Version, cp.PreviousToken
	rec.IsUsed, rec.IsRevoked = false, false
	return nil
}

func (f *fakeTokenRepo) MarkUsed(ctx context.Context, rec *models.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markUsedErr != nil {
		return f.markUsedErr
	}
	cur, ok := f.byUser[rec.UserID]
	if !ok || cur.ID != rec.ID || cur.Version != rec.Version || cur.IsUsed {
		return common.ErrVersionConflict
	}
	cur.IsUsed = true
	cur.Version++
	rec.IsUsed, rec.Version = true, cur.Version
	return nil
}

func (f *fakeTokenRepo) MarkRevoked(ctx context.Context, rec *models.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byUser[rec.UserID]
	if !ok || cur.ID != rec.ID {
		return common.ErrorNotFound
	}
	cur.IsRevoked = true
	cur.Version++
	rec.IsRevoked, rec.Version = true, cur.Version
	return nil
}

func (f *fakeTokenRepo) Delete(ctx context.Context, rec *models.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byUser[rec.UserID]
	if !ok || cur.ID != rec.ID {
		return common.ErrorNotFound
	}
	delete(f.byUser, rec.UserID)
	return nil
}

func (f *fakeTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for userID, rec := range f.byUser {
		if rec.Expired(now) {
			delete(f.byUser, userID)
			n++
		}
	}
	return n, nil
}

// --- fake repository manager ---

type fakeRepoManager struct {
	u usersrepo.Repository
	r refreshtokensrepo.Repository
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error           { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository                 { return m.u }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository { return m.r }
