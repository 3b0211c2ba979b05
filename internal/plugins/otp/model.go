// Package otp manages the one-time passcodes that gate portal logins.
// Codes are generated server-side after a successful password check,
// delivered out-of-band over WhatsApp, and consumed exactly once. The
// single-use and expiry invariants are enforced in SQL, never trusted
// to the client.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// TTL is how long a code stays valid after generation.
const TTL = 300 * time.Second

// codeMin/codeMax bound the uniform random draw for the 6-digit code.
const (
	codeMin = 100000
	codeMax = 999999
)

// Code is a short-lived verification code tied to one login attempt.
type Code struct {
	ID            string
	Email         string
	Code          string
	WhatsappPhone string
	UserID        string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	ConsumedAt    *time.Time
}

// NewCode generates a fresh code for the given login attempt. The code is
// a uniform random draw over [100000, 999999] from crypto/rand, so it is
// always exactly 6 ASCII digits.
func NewCode(email, whatsappPhone, userID string) (*Code, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return nil, fmt.Errorf("drawing otp code: %w", err)
	}

	now := time.Now().UTC()
	return &Code{
		ID:            uuid.NewString(),
		Email:         email,
		Code:          fmt.Sprintf("%06d", n.Int64()+codeMin),
		WhatsappPhone: whatsappPhone,
		UserID:        userID,
		CreatedAt:     now,
		ExpiresAt:     now.Add(TTL),
	}, nil
}
