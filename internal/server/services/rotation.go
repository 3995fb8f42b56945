package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/paymentapi/internal/common"
	"github.com/dmitrijs2005/paymentapi/internal/logging"
	"github.com/dmitrijs2005/paymentapi/internal/server/auth"
	"github.com/dmitrijs2005/paymentapi/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/paymentapi/internal/server/repositories/users"
)

// RotationValidator exchanges an expired access token plus its refresh token
// for a new pair. The checks run in a fixed order and the first failure wins:
//
//  1. signature
//  2. algorithm matches the configured one
//  3. the access token has actually expired
//  4. the refresh token exists
//  5. it has not been used
//  6. it has not been revoked
//  7. its jwt_id matches the access token's jti
//  8. the refresh record itself has not expired
//
// The record is then marked used with a version check, so at most one of
// several concurrent rotations of the same token gets through.
type RotationValidator struct {
	codec  *auth.Codec
	tokens refreshtokens.Repository
	users  users.Repository
	issuer *auth.Issuer
	log    logging.Logger
}

func NewRotationValidator(
	codec *auth.Codec,
	tokens refreshtokens.Repository,
	users users.Repository,
	issuer *auth.Issuer,
	log logging.Logger,
) *RotationValidator {
	return &RotationValidator{
		codec:  codec,
		tokens: tokens,
		users:  users,
		issuer: issuer,
		log:    log.With("module", "rotation"),
	}
}

// Rotate validates the pair and, on success, overwrites the user's refresh
// record with a newly issued one.
//
// The mark-used write is committed before the owner is loaded and the new
// pair is stored. If a later step fails the old refresh token stays used and
// the user has to log in again.
func (v *RotationValidator) Rotate(ctx context.Context, accessToken, refreshToken string) (*auth.TokenPair, error) {
	verified, err := v.codec.Verify(accessToken)
	if err != nil {
		return nil, err
	}

	if !strings.EqualFold(verified.Algorithm, v.codec.Algorithm()) {
		return nil, auth.ErrInvalidAlgorithm
	}

	claims := verified.Claims
	if claims.ExpiresAt == nil {
		return nil, auth.ErrInvalidClaims
	}
	if verified.Status == auth.StatusValid {
		return nil, common.ErrTokenNotYetExpired
	}

	rec, err := v.tokens.FindByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrTokenNotFound
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	if rec.IsUsed {
		v.log.Warn(ctx, "refresh token reuse", "user_id", rec.UserID)
		return nil, common.ErrTokenAlreadyUsed
	}
	if rec.IsRevoked {
		return nil, common.ErrTokenRevoked
	}
	if rec.JwtID != claims.ID {
		return nil, common.ErrTokenMismatch
	}
	if rec.Expired(v.codec.Now()) {
		return nil, common.ErrRefreshTokenExpired
	}

	if err := v.tokens.MarkUsed(ctx, rec); err != nil {
		if errors.Is(err, common.ErrVersionConflict) {
			v.log.Warn(ctx, "concurrent refresh lost", "user_id", rec.UserID)
			return nil, common.ErrTokenAlreadyUsed
		}
		return nil, fmt.Errorf("mark refresh token used: %w", err)
	}

	user, err := v.users.GetUserByID(ctx, rec.UserID)
	if err != nil {
		return nil, fmt.Errorf("load token owner: %w", err)
	}

	pair, err := v.issuer.IssueTokenPair(user)
	if err != nil {
		return nil, fmt.Errorf("issue token pair: %w", err)
	}

	if err := v.tokens.Upsert(ctx, pair.Record()); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	v.log.Info(ctx, "refresh token rotated", "user_id", user.ID)
	return pair, nil
}
