package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRefreshToken_Expired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, (&RefreshToken{ExpiryDate: now.Add(time.Second)}).Expired(now))
	assert.True(t, (&RefreshToken{ExpiryDate: now}).Expired(now))
	assert.True(t, (&RefreshToken{ExpiryDate: now.Add(-time.Hour)}).Expired(now))
}

func TestRefreshToken_ViewFor(t *testing.T) {
	rec := &RefreshToken{ID: "r1", Token: "new", PreviousToken: "old", Version: 4}

	cur, ok := rec.ViewFor("new")
	assert.True(t, ok)
	assert.Same(t, rec, cur)
	assert.False(t, cur.IsUsed)

	prev, ok := rec.ViewFor("old")
	assert.True(t, ok)
	assert.True(t, prev.IsUsed)
	assert.Equal(t, rec.Version, prev.Version)
	assert.False(t, rec.IsUsed, "original must stay untouched")

	_, ok = rec.ViewFor("other")
	assert.False(t, ok)

	_, ok = (&RefreshToken{Token: "t"}).ViewFor("")
	assert.False(t, ok)
}
