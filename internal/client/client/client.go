package client

import (
	"context"

	"github.com/dmitrijs2005/paymentapi/internal/client/models"
)

// Client is the API surface the CLI talks to.
type Client interface {
	Close() error
	Register(ctx context.Context, username, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Refresh(ctx context.Context) (*AuthResult, error)
	Logout(ctx context.Context) error
	Revoke(ctx context.Context) error
	Ping(ctx context.Context) error
	Session() *models.Session
	SetSession(s *models.Session)
}

// AuthResult mirrors the JSON body returned by every auth endpoint.
type AuthResult struct {
	Token        string   `json:"token,omitempty"`
	RefreshToken string   `json:"refreshToken,omitempty"`
	Success      bool     `json:"success"`
	Errors       []string `json:"errors,omitempty"`
	Messages     string   `json:"messages,omitempty"`
	UserID       string   `json:"userId,omitempty"`
}
