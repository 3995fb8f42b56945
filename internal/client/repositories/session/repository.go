package session

import (
	"context"

	"github.com/dmitrijs2005/paymentapi/internal/client/models"
)

// Repository stores the single local session.
// Load returns common.ErrorNotFound when nobody is logged in.
type Repository interface {
	Load(ctx context.Context) (*models.Session, error)
	Save(ctx context.Context, s *models.Session) error
	Clear(ctx context.Context) error
}
