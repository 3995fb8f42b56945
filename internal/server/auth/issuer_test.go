package auth

import (
	"regexp"
	"testing"
	"time"

	"github.com/dmitrijs2005/paymentapi/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var refreshTokenPattern = regexp.MustCompile(`^[A-Z0-9]{35}[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func TestIssueTokenPair(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	codec := newTestCodec(t, "k", WithClock(fixedClock(now)))
	issuer := NewIssuer(codec, time.Hour, 4380*time.Hour)

	user := &models.User{ID: "u-1", Email: "a@example.com"}
	pair, err := issuer.IssueTokenPair(user)
	require.NoError(t, err)

	assert.Equal(t, "u-1", pair.UserID)
	assert.Equal(t, now, pair.IssuedAt)
	assert.Equal(t, now.Add(4380*time.Hour), pair.ExpiresAt)
	assert.Regexp(t, refreshTokenPattern, pair.RefreshToken)

	v, err := codec.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, pair.TokenID, v.Claims.ID)
	assert.Equal(t, "a@example.com", v.Claims.Subject)
	assert.Equal(t, now.Add(time.Hour).Unix(), v.Claims.ExpiresAt.Unix())

	rec := pair.Record()
	assert.Equal(t, &models.RefreshToken{
		UserID:     "u-1",
		Token:      pair.RefreshToken,
		JwtID:      pair.TokenID,
		AddedDate:  now,
		ExpiryDate: now.Add(4380 * time.Hour),
	}, rec)
}

func TestIssueTokenPair_FreshValuesEachTime(t *testing.T) {
	issuer := NewIssuer(newTestCodec(t, "k"), time.Hour, 2*time.Hour)
	user := &models.User{ID: "u", Email: "e"}

	a, err := issuer.IssueTokenPair(user)
	require.NoError(t, err)
	b, err := issuer.IssueTokenPair(user)
	require.NoError(t, err)

	assert.NotEqual(t, a.RefreshToken, b.RefreshToken)
	assert.NotEqual(t, a.TokenID, b.TokenID)
}
