// Package common defines shared sentinel errors and small helpers used across
// the server and client layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")
	ErrVersionConflict = errors.New("version conflict")

	// Service-level errors (generic/internal flow control).
	ErrorInternal         = errors.New("internal error")
	ErrorUnauthorized     = errors.New("unauthorized")
	ErrorForbidden        = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrorValidation       = errors.New("validation error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrTokenNotYetExpired  = errors.New("token has not yet expired")
	ErrTokenNotFound       = errors.New("token does not exist")
	ErrTokenAlreadyUsed    = errors.New("token has been used")
	ErrTokenRevoked        = errors.New("token has been revoked")
	ErrTokenMismatch       = errors.New("token doesn't match")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)
