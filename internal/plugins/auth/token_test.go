package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssueAndParse(t *testing.T) {
	issuer := NewTokenIssuer("test-secret-key-0123456789abcdef", time.Hour)
	session := &Session{
		ID:          "sess-1",
		UserID:      "user-1",
		Role:        RoleGestor,
		OTPVerified: true,
	}

	raw, err := issuer.Issue(session, time.Now().UTC())
	require.NoError(t, err)

	claims, err := issuer.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, RoleGestor, claims.Role)
	assert.True(t, claims.OTPVerified)
}

func TestTokenParseRejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer("test-secret-key-0123456789abcdef", time.Hour)
	session := &Session{ID: "sess-1", UserID: "user-1", Role: RoleViewer}

	raw, err := issuer.Issue(session, time.Now().Add(-2*time.Hour).UTC())
	require.NoError(t, err)

	_, err = issuer.Parse(raw)
	assert.Error(t, err)
}

func TestTokenParseRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer("test-secret-key-0123456789abcdef", time.Hour)
	other := NewTokenIssuer("a-completely-different-secret-key", time.Hour)
	session := &Session{ID: "sess-1", UserID: "user-1", Role: RoleViewer}

	raw, err := issuer.Issue(session, time.Now().UTC())
	require.NoError(t, err)

	_, err = other.Parse(raw)
	assert.Error(t, err)
}

func TestTokenParseRejectsGarbage(t *testing.T) {
	issuer := NewTokenIssuer("test-secret-key-0123456789abcdef", time.Hour)

	_, err := issuer.Parse("not.a.jwt")
	assert.Error(t, err)

	_, err = issuer.Parse("")
	assert.Error(t, err)
}

func TestRefreshTokenShapeAndUniqueness(t *testing.T) {
	a, err := newRefreshToken()
	require.NoError(t, err)
	b, err := newRefreshToken()
	require.NoError(t, err)

	assert.Len(t, a, refreshTokenBytes*2)
	assert.NotEqual(t, a, b)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)

	assert.True(t, VerifyPassword("s3cret!", hash))
	assert.False(t, VerifyPassword("wrong", hash))
	assert.False(t, VerifyPassword("s3cret!", "not-a-hash"))
}
