package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/paymentapi/internal/common"
	"github.com/dmitrijs2005/paymentapi/internal/dbx"
	"github.com/dmitrijs2005/paymentapi/internal/server/models"
)

const selectColumns = `id, user_id, token, COALESCE(previous_token, ''), jwt_id, is_used, is_revoked, added_date, expiry_date, version`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByUser(ctx context.Context, userID string) (*models.RefreshToken, error) {
	query := `SELECT ` + selectColumns + `
		FROM refresh_tokens
		WHERE user_id = $1
	`
	return r.findOne(ctx, query, userID)
}

func (r *PostgresRepository) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `SELECT ` + selectColumns + `
		FROM refresh_tokens
		WHERE token = $1 OR previous_token = $1
	`
	rec, err := r.findOne(ctx, query, token)
	if err != nil {
		return nil, err
	}
	view, ok := rec.ViewFor(token)
	if !ok {
		return nil, common.ErrorNotFound
	}
	return view, nil
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, arg string) (*models.RefreshToken, error) {
	rec := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&rec.ID, &rec.UserID, &rec.Token, &rec.PreviousToken, &rec.JwtID,
		&rec.IsUsed, &rec.IsRevoked, &rec.AddedDate, &rec.ExpiryDate, &rec.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, rec *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (user_id, token, jwt_id, is_used, is_revoked, added_date, expiry_date)
		VALUES ($1, $2, $3, FALSE, FALSE, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET previous_token = refresh_tokens.token,
			token = EXCLUDED.token,
			jwt_id = EXCLUDED.jwt_id,
			is_used = FALSE,
			is_revoked = FALSE,
			added_date = EXCLUDED.added_date,
			expiry_date = EXCLUDED.expiry_date,
			version = refresh_tokens.version + 1
		RETURNING id, version
	`
	err := r.db.QueryRowContext(ctx, query,
		rec.UserID, rec.Token, rec.JwtID, rec.AddedDate, rec.ExpiryDate,
	).Scan(&rec.ID, &rec.Version)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	rec.IsUsed = false
	rec.IsRevoked = false
	return nil
}

func (r *PostgresRepository) MarkUsed(ctx context.Context, rec *models.RefreshToken) error {
	query := `
		UPDATE refresh_tokens
		SET is_used = TRUE, version = version + 1
		WHERE id = $1 AND version = $2 AND is_used = FALSE
		RETURNING version
	`
	var version int64
	if err := r.db.QueryRowContext(ctx, query, rec.ID, rec.Version).Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrVersionConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	rec.IsUsed = true
	rec.Version = version
	return nil
}

func (r *PostgresRepository) MarkRevoked(ctx context.Context, rec *models.RefreshToken) error {
	query := `
		UPDATE refresh_tokens
		SET is_revoked = TRUE, version = version + 1
		WHERE id = $1
		RETURNING version
	`
	var version int64
	if err := r.db.QueryRowContext(ctx, query, rec.ID).Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	rec.IsRevoked = true
	rec.Version = version
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, rec *models.RefreshToken) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE id = $1
	`
	err := dbx.RequireAffected(r.db.ExecContext(ctx, query, rec.ID))
	if errors.Is(err, dbx.ErrNoRowsAffected) {
		return common.ErrorNotFound
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE expiry_date <= $1
	`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
