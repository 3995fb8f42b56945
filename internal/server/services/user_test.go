package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/paymentapi/internal/common"
	"github.com/dmitrijs2005/paymentapi/internal/logging"
	"github.com/dmitrijs2005/paymentapi/internal/server/auth"
	"github.com/dmitrijs2005/paymentapi/internal/server/config"
	"github.com/dmitrijs2005/paymentapi/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type userFixture struct {
	clock  *testClock
	codec  *auth.Codec
	tokens *fakeTokenRepo
	users  *fakeUsersRepo
	mock   sqlmock.Sqlmock
	svc    *UserService
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()
	db, mock := newSQLMockDB(t)
	f := &userFixture{
		clock:  newTestClock(),
		tokens: newFakeTokenRepo(),
		users:  newFakeUsersRepo(),
		mock:   mock,
	}
	f.codec = newCodec(t, f.clock, testSecret, "HS256")
	cfg := &config.Config{
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 30 * 24 * time.Hour,
	}
	f.svc = NewUserService(db, &fakeRepoManager{u: f.users, r: f.tokens}, f.codec, cfg, logging.Nop())
	f.svc.hashCost = bcrypt.MinCost
	return f
}

func (f *userFixture) expectTx() {
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
}

func (f *userFixture) register(t *testing.T, email, password string) *models.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), "alice", email, password)
	require.NoError(t, err)
	return u
}

func TestRegister_Success(t *testing.T) {
	f := newUserFixture(t)

	u := f.register(t, "a@example.com", "Passw0rd!")
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "a@example.com", u.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword(u.PasswordHash, []byte("Passw0rd!")))
}

func TestRegister_Duplicate(t *testing.T) {
	f := newUserFixture(t)
	f.register(t, "a@example.com", "Passw0rd!")

	_, err := f.svc.Register(context.Background(), "bob", "a@example.com", "other")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestRegister_Validation(t *testing.T) {
	f := newUserFixture(t)

	tests := []struct {
		name                      string
		username, email, password string
	}{
		{"no username", "", "a@example.com", "p"},
		{"no password", "alice", "a@example.com", ""},
		{"bad email", "alice", "not-an-email", "p"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), tt.username, tt.email, tt.password)
			assert.ErrorIs(t, err, common.ErrorValidation)
		})
	}
}

func TestLogin_BindsAccessTokenToRecord(t *testing.T) {
	f := newUserFixture(t)
	u := f.register(t, "a@example.com", "Passw0rd!")
	f.expectTx()

	res, err := f.svc.Login(context.Background(), "a@example.com", "Passw0rd!")
	require.NoError(t, err)
	assert.False(t, res.ReLogin)

	v, err := f.codec.Verify(res.Pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, v.Claims.UserID)
	assert.Equal(t, "a@example.com", v.Claims.Email)
	assert.Equal(t, "a@example.com", v.Claims.Subject)

	rec := f.tokens.get(u.ID)
	require.NotNil(t, rec)
	assert.Equal(t, v.Claims.ID, rec.JwtID)
	assert.Equal(t, res.Pair.RefreshToken, rec.Token)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestLogin_ReLoginOverwritesRecord(t *testing.T) {
	f := newUserFixture(t)
	u := f.register(t, "a@example.com", "Passw0rd!")
	ctx := context.Background()

	f.expectTx()
	first, err := f.svc.Login(ctx, "a@example.com", "Passw0rd!")
	require.NoError(t, err)
	firstRec := f.tokens.get(u.ID)

	f.expectTx()
	second, err := f.svc.Login(ctx, "a@example.com", "Passw0rd!")
	require.NoError(t, err)
	assert.True(t, second.ReLogin)

	rec := f.tokens.get(u.ID)
	assert.Equal(t, firstRec.ID, rec.ID)
	assert.Equal(t, second.Pair.RefreshToken, rec.Token)
	assert.NotEqual(t, first.Pair.RefreshToken, rec.Token)
	assert.Len(t, f.tokens.byUser, 1)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := newUserFixture(t)
	f.register(t, "a@example.com", "Passw0rd!")

	_, err := f.svc.Login(context.Background(), "a@example.com", "wrong")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	_, err = f.svc.Login(context.Background(), "nobody@example.com", "Passw0rd!")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestLogin_DirectoryFailure(t *testing.T) {
	f := newUserFixture(t)
	f.users.getErr = errors.New("db down")

	_, err := f.svc.Login(context.Background(), "a@example.com", "x")
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestLogin_StoreFailureRollsBack(t *testing.T) {
	f := newUserFixture(t)
	f.register(t, "a@example.com", "Passw0rd!")
	f.tokens.upsertErr = errors.New("write failed")
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.Login(context.Background(), "a@example.com", "Passw0rd!")
	require.Error(t, err)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestLogout_Idempotence(t *testing.T) {
	f := newUserFixture(t)
	u := f.register(t, "a@example.com", "Passw0rd!")
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Logout(ctx, u.ID), common.ErrorNotFound)

	f.expectTx()
	_, err := f.svc.Login(ctx, "a@example.com", "Passw0rd!")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, u.ID))
	_, err = f.tokens.FindByUser(ctx, u.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	assert.ErrorIs(t, f.svc.Logout(ctx, u.ID), common.ErrorNotFound)
}

func TestRevoke_BlocksRotation(t *testing.T) {
	f := newUserFixture(t)
	u := f.register(t, "a@example.com", "Passw0rd!")
	ctx := context.Background()

	f.expectTx()
	res, err := f.svc.Login(ctx, "a@example.com", "Passw0rd!")
	require.NoError(t, err)

	require.NoError(t, f.svc.Revoke(ctx, u.ID))
	f.clock.Advance(2 * time.Hour)

	_, err = f.svc.RefreshToken(ctx, res.Pair.AccessToken, res.Pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrTokenRevoked)

	assert.ErrorIs(t, f.svc.Revoke(ctx, "ghost"), common.ErrorNotFound)
}

func TestEndToEnd_LoginRefreshReplay(t *testing.T) {
	f := newUserFixture(t)
	f.register(t, "a@example.com", "Passw0rd!")
	ctx := context.Background()

	f.expectTx()
	login, err := f.svc.Login(ctx, "a@example.com", "Passw0rd!")
	require.NoError(t, err)
	t1, r1 := login.Pair.AccessToken, login.Pair.RefreshToken
	require.NotEmpty(t, t1)
	require.NotEmpty(t, r1)

	_, err = f.svc.RefreshToken(ctx, t1, r1)
	require.ErrorIs(t, err, common.ErrTokenNotYetExpired)

	f.clock.Advance(time.Hour + time.Minute)

	next, err := f.svc.RefreshToken(ctx, t1, r1)
	require.NoError(t, err)
	assert.NotEmpty(t, next.AccessToken)
	assert.NotEqual(t, r1, next.RefreshToken)

	_, err = f.svc.RefreshToken(ctx, t1, r1)
	assert.ErrorIs(t, err, common.ErrTokenAlreadyUsed)
}

func TestSweepExpired(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	require.NoError(t, f.tokens.Upsert(ctx, &models.RefreshToken{UserID: "u-old", Token: "a", ExpiryDate: now.Add(-time.Hour)}))
	require.NoError(t, f.tokens.Upsert(ctx, &models.RefreshToken{UserID: "u-new", Token: "b", ExpiryDate: now.Add(time.Hour)}))

	n, err := f.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Nil(t, f.tokens.get("u-old"))
	assert.NotNil(t, f.tokens.get("u-new"))
}
