// Package refreshtokens declares the server-side contract for the refresh
// token store and its PostgreSQL and Redis implementations.
//
// The store keeps at most one record per user. Every write bumps the
// record's Version, and MarkUsed only succeeds against the version the
// caller read, so validate-then-mark-used is atomic per record.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/paymentapi/internal/server/models"
)

// Repository defines the refresh-token store operations.
type Repository interface {
	// FindByUser returns the user's record or common.ErrorNotFound.
	FindByUser(ctx context.Context, userID string) (*models.RefreshToken, error)

	// FindByToken returns the record holding the opaque token string or
	// common.ErrorNotFound.
	FindByToken(ctx context.Context, token string) (*models.RefreshToken, error)

	// Upsert creates the user's record or overwrites the existing one,
	// clearing the used/revoked flags. ID and Version are written back
	// into rec.
	Upsert(ctx context.Context, rec *models.RefreshToken) error

	// MarkUsed flags rec as used if it is still unused at rec.Version and
	// returns common.ErrVersionConflict otherwise.
	MarkUsed(ctx context.Context, rec *models.RefreshToken) error

	// MarkRevoked flags rec as revoked. A missing record yields
	// common.ErrorNotFound.
	MarkRevoked(ctx context.Context, rec *models.RefreshToken) error

	// Delete removes rec. A missing record yields common.ErrorNotFound.
	Delete(ctx context.Context, rec *models.RefreshToken) error

	// DeleteExpired removes records whose expiry date is not after now and
	// reports how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
