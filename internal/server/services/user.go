// Package services contains server-side business logic. This file implements
// UserService, which handles registration, login, logout and the
// refresh-token rotation flow.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dmitrijs2005/paymentapi/internal/common"
	"github.com/dmitrijs2005/paymentapi/internal/dbx"
	"github.com/dmitrijs2005/paymentapi/internal/logging"
	"github.com/dmitrijs2005/paymentapi/internal/server/auth"
	"github.com/dmitrijs2005/paymentapi/internal/server/config"
	"github.com/dmitrijs2005/paymentapi/internal/server/models"
	"github.com/dmitrijs2005/paymentapi/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

// LoginResult is a freshly issued pair. ReLogin is set when the user already
// held a refresh record that was overwritten.
type LoginResult struct {
	Pair    *auth.TokenPair
	ReLogin bool
}

// UserService provides authentication-related operations:
// - Register: create users
// - Login: verify credentials and mint tokens
// - RefreshToken: rotate refresh tokens and mint new access tokens
// - Logout / Revoke: drop or disable the caller's refresh record
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	issuer      *auth.Issuer
	validator   *RotationValidator
	now         func() time.Time
	hashCost    int
	log         logging.Logger

	// dummyHash is compared against when the email is unknown so both
	// branches of Login cost one bcrypt comparison.
	dummyHash []byte
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, codec *auth.Codec, cfg *config.Config, log logging.Logger) *UserService {
	issuer := auth.NewIssuer(codec, cfg.AccessTokenValidityDuration, cfg.RefreshTokenValidityDuration)
	log = log.With("module", "users")

	dummy, _ := bcrypt.GenerateFromPassword(common.GenerateRandByteArray(16), bcrypt.DefaultCost)

	return &UserService{
		db:          db,
		repomanager: m,
		issuer:      issuer,
		validator:   NewRotationValidator(codec, m.RefreshTokens(db), m.Users(db), issuer, log),
		now:         codec.Now,
		hashCost:    bcrypt.DefaultCost,
		log:         log,
		dummyHash:   dummy,
	}
}

// Register creates a new user. A duplicate email yields common.ErrorAlreadyExists.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", common.ErrorValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", common.ErrorValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{UserName: username, Email: email, PasswordHash: hash}
	u, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.log.Info(ctx, "user registered", "user_id", u.ID)
	return u, nil
}

// Login verifies credentials and issues a new pair. The user's refresh
// record is created on first login and overwritten in place afterwards.
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.repomanager.Users(s.db).GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, common.ErrInvalidCredentials
	}

	pair, err := s.issuer.IssueTokenPair(user)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	result := &LoginResult{Pair: pair}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.RefreshTokens(tx)

		_, err := repo.FindByUser(ctx, user.ID)
		switch {
		case err == nil:
			result.ReLogin = true
		case errors.Is(err, common.ErrorNotFound):
		default:
			return err
		}

		return repo.Upsert(ctx, pair.Record())
	})
	if err != nil {
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}

	s.log.Info(ctx, "user logged in", "user_id", user.ID, "relogin", result.ReLogin)
	return result, nil
}

// RefreshToken rotates the refresh token bound to an expired access token.
func (s *UserService) RefreshToken(ctx context.Context, accessToken, refreshToken string) (*auth.TokenPair, error) {
	return s.validator.Rotate(ctx, accessToken, refreshToken)
}

// Logout deletes the user's refresh record. Without one it returns
// common.ErrorNotFound.
func (s *UserService) Logout(ctx context.Context, userID string) error {
	repo := s.repomanager.RefreshTokens(s.db)

	rec, err := repo.FindByUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := repo.Delete(ctx, rec); err != nil {
		return err
	}

	s.log.Info(ctx, "user logged out", "user_id", userID)
	return nil
}

// Revoke flags the user's refresh record as revoked; later rotations of it fail
// with common.ErrTokenRevoked until the user logs in again.
func (s *UserService) Revoke(ctx context.Context, userID string) error {
	repo := s.repomanager.RefreshTokens(s.db)

	rec, err := repo.FindByUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := repo.MarkRevoked(ctx, rec); err != nil {
		return err
	}

	s.log.Info(ctx, "refresh token revoked", "user_id", userID)
	return nil
}

// SweepExpired removes refresh records past their expiry date.
func (s *UserService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.repomanager.RefreshTokens(s.db).DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("error sweeping refresh tokens: %w", err)
	}
	if n > 0 {
		s.log.Info(ctx, "expired refresh tokens removed", "count", n)
	}
	return n, nil
}
