// Package services contains application services for the payment API client.
// This file defines the authentication service that keeps the local session
// file in step with the server.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/paymentapi/internal/client/client"
	"github.com/dmitrijs2005/paymentapi/internal/client/models"
	"github.com/dmitrijs2005/paymentapi/internal/client/repositories/session"
	"github.com/dmitrijs2005/paymentapi/internal/common"
)

// AuthService defines authentication operations for the CLI.
//
// Every call that changes the token pair on the server also persists it
// locally, so a restarted CLI resumes the same session.
type AuthService interface {
	Restore(ctx context.Context) (*models.Session, error)
	Register(ctx context.Context, username, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (string, error)
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	Revoke(ctx context.Context) error
	Current() *models.Session
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type authService struct {
	client   client.Client
	sessions session.Repository
}

func NewAuthService(c client.Client, sessions session.Repository) AuthService {
	return &authService{client: c, sessions: sessions}
}

// Restore loads the saved session into the client. It returns nil, nil
// when nothing is saved.
func (a *authService) Restore(ctx context.Context) (*models.Session, error) {
	s, err := a.sessions.Load(ctx)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.client.SetSession(s)
	return s, nil
}

func (a *authService) Register(ctx context.Context, username, email, password string) (string, error) {
	return a.client.Register(ctx, username, email, password)
}

func (a *authService) Login(ctx context.Context, email, password string) (string, error) {
	res, err := a.client.Login(ctx, email, password)
	if err != nil {
		return "", fmt.Errorf("login error: %w", err)
	}
	if err := a.persist(ctx); err != nil {
		return "", err
	}
	return res.Messages, nil
}

func (a *authService) Refresh(ctx context.Context) error {
	if _, err := a.client.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh error: %w", err)
	}
	return a.persist(ctx)
}

// Logout ends the session on the server and forgets it locally. A session
// the server no longer knows is still cleared.
func (a *authService) Logout(ctx context.Context) error {
	err := a.client.Logout(ctx)
	var apiErr *client.APIError
	if err != nil && !(errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound) {
		// the client may have rotated the pair before failing
		_ = a.persist(ctx)
		return fmt.Errorf("logout error: %w", err)
	}
	a.client.SetSession(nil)
	return a.sessions.Clear(ctx)
}

func (a *authService) Revoke(ctx context.Context) error {
	err := a.client.Revoke(ctx)
	if perr := a.persist(ctx); perr != nil && err == nil {
		err = perr
	}
	if err != nil {
		return fmt.Errorf("revoke error: %w", err)
	}
	return nil
}

func (a *authService) Current() *models.Session {
	return a.client.Session()
}

func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}

func (a *authService) persist(ctx context.Context) error {
	s := a.client.Session()
	if !s.Valid() {
		return nil
	}
	if err := a.sessions.Save(ctx, s); err != nil {
		return fmt.Errorf("session saving error: %w", err)
	}
	return nil
}
