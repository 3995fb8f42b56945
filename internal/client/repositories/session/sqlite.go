package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/paymentapi/internal/client/models"
	"github.com/dmitrijs2005/paymentapi/internal/common"
	"github.com/dmitrijs2005/paymentapi/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Load(ctx context.Context) (*models.Session, error) {
	var (
		s         models.Session
		updatedAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, email, access_token, refresh_token, updated_at
		FROM session WHERE id = 1
	`).Scan(&s.UserID, &s.Email, &s.AccessToken, &s.RefreshToken, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	s.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &s, nil
}

// Save replaces the stored session. A zero UpdatedAt is set to now.
func (r *SQLiteRepository) Save(ctx context.Context, s *models.Session) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session (id, user_id, email, access_token, refresh_token, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			email = excluded.email,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			updated_at = excluded.updated_at
	`, s.UserID, s.Email, s.AccessToken, s.RefreshToken, s.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
