package auth

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/paymentapi/internal/common"
	"github.com/dmitrijs2005/paymentapi/internal/server/models"
	"github.com/google/uuid"
)

// refreshRandomLength is the random alphanumeric prefix of a refresh token;
// a UUID is appended to it.
const refreshRandomLength = 35

// TokenPair bundles a short-lived access token and a long-lived refresh token
// together with the metadata needed to persist the refresh record.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenID      string
	UserID       string
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// Record converts the pair into the refresh-token record that should be
// stored for its user.
func (p *TokenPair) Record() *models.RefreshToken {
	return &models.RefreshToken{
		UserID:     p.UserID,
		Token:      p.RefreshToken,
		JwtID:      p.TokenID,
		AddedDate:  p.IssuedAt,
		ExpiryDate: p.ExpiresAt,
	}
}

// Issuer mints token pairs. It never touches storage.
type Issuer struct {
	codec      *Codec
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewIssuer(codec *Codec, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{codec: codec, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// IssueTokenPair signs a new access token for user and generates a fresh
// opaque refresh token. Uniqueness of the refresh token is not checked
// against the store; random prefix plus UUID makes collisions negligible.
func (i *Issuer) IssueTokenPair(user *models.User) (*TokenPair, error) {
	access, err := i.codec.Issue(user.ID, user.Email, i.accessTTL)
	if err != nil {
		return nil, err
	}

	prefix, err := common.MakeRandAlphanumericString(refreshRandomLength)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access.Token,
		RefreshToken: prefix + uuid.NewString(),
		TokenID:      access.ID,
		UserID:       user.ID,
		IssuedAt:     access.IssuedAt,
		ExpiresAt:    access.IssuedAt.Add(i.refreshTTL),
	}, nil
}
