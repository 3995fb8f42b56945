// Package users declares the identity-directory repository used by the
// authentication flows and its PostgreSQL implementation.
package users

import (
	"context"

	"github.com/dmitrijs2005/paymentapi/internal/server/models"
)

// Repository looks up and creates users. Lookups return common.ErrorNotFound
// when nothing matches; Create returns common.ErrorAlreadyExists on a
// duplicate email.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}
