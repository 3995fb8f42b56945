// Package models defines server-side data models persisted in the database.
package models

import "time"

// RefreshToken is the single refresh-token record kept per user.
//
// The record is rewritten in place on every login and successful rotation;
// Version increases with each write and guards conditional updates.
// PreviousToken holds the value replaced by the last overwrite so that a
// replay of it can still be recognised.
type RefreshToken struct {
	ID            string
	UserID        string
	Token         string
	PreviousToken string
	JwtID         string
	IsUsed        bool
	IsRevoked     bool
	AddedDate     time.Time
	ExpiryDate    time.Time
	Version       int64
}

// Expired reports whether the record's own lifetime has run out at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !t.ExpiryDate.After(now)
}

// ViewFor returns the record as seen by a holder of token. The current token
// sees the record itself. The superseded token sees a copy flagged as used.
// Any other value sees nothing.
func (t *RefreshToken) ViewFor(token string) (*RefreshToken, bool) {
	switch {
	case token == "":
		return nil, false
	case t.Token == token:
		return t, true
	case t.PreviousToken == token:
		used := *t
		used.IsUsed = true
		return &used, true
	default:
		return nil, false
	}
}
