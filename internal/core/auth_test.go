package core

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booktrack/pkg/models"
)

func TestTokenRoundTrip(t *testing.T) {
	v := NewTokenVerifier("secret", "booktrack", time.Hour)

	token, expiresAt, err := v.Issue("user-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	userID, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestTokenRejected(t *testing.T) {
	v := NewTokenVerifier("secret", "booktrack", time.Hour)

	other, _, err := NewTokenVerifier("other-secret", "booktrack", time.Hour).Issue("user-1")
	require.NoError(t, err)
	wrongIssuer, _, err := NewTokenVerifier("secret", "someone-else", time.Hour).Issue("user-1")
	require.NoError(t, err)

	expired := v.(*jwtVerifier)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, _, err := expired.Issue("user-1")
	require.NoError(t, err)
	expired.now = time.Now

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": "user-1", "iss": "booktrack"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":        "",
		"garbage":      "not.a.token",
		"wrong secret": other,
		"wrong issuer": wrongIssuer,
		"expired":      stale,
		"alg none":     unsigned,
	} {
		_, err := v.Verify(token)
		assert.ErrorIs(t, err, models.ErrInvalidToken, name)
		assert.ErrorIs(t, err, models.ErrUnauthorized, name)
	}
}
