package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// refreshTokenBytes is the number of random bytes in a refresh token.
// 32 bytes = 256 bits of entropy, hex-encoded to 64 characters.
const refreshTokenBytes = 32

// Claims are the JWT claims carried by portal access tokens. The session
// ID binds the token to the server-side session record, which remains the
// authority on OTP state and activity. The otp claim is informational for
// the dashboard, never trusted for authorization.
type Claims struct {
	SessionID   string `json:"sid"`
	Role        Role   `json:"role"`
	OTPVerified bool   `json:"otp"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and parses HS256 access tokens.
type TokenIssuer struct {
	secret    []byte
	accessTTL time.Duration
}

// NewTokenIssuer creates an issuer with the given signing secret and
// access-token lifetime.
func NewTokenIssuer(secret string, accessTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), accessTTL: accessTTL}
}

// AccessTTL returns the configured access-token lifetime.
func (t *TokenIssuer) AccessTTL() time.Duration {
	return t.accessTTL
}

// Issue signs a new access token for the session.
func (t *TokenIssuer) Issue(session *Session, now time.Time) (string, error) {
	claims := Claims{
		SessionID:   session.ID,
		Role:        session.Role,
		OTPVerified: session.OTPVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.accessTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// Parse validates a signed access token and returns its claims. Expired or
// tampered tokens fail here before any session lookup happens.
func (t *TokenIssuer) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(token *jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, fmt.Errorf("parsing access token: %w", err)
	}
	return claims, nil
}

// newRefreshToken creates a cryptographically random hex-encoded token.
func newRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
