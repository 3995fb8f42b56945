// Package models holds the client-side data types persisted between runs.
package models

import "time"

// Session is the credential state kept after a successful login.
// Only one session is stored at a time.
type Session struct {
	UserID       string
	Email        string
	AccessToken  string
	RefreshToken string
	UpdatedAt    time.Time
}

// Valid reports whether the session carries both tokens and an owner.
func (s *Session) Valid() bool {
	return s != nil && s.UserID != "" && s.AccessToken != "" && s.RefreshToken != ""
}
