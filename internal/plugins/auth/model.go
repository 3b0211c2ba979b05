// Package auth implements the portal's two-factor login flow and session
// lifecycle: password check, one-time code over WhatsApp, session promotion
// on verification, proactive token refresh, and forced expiry after six
// hours without activity.
//
// A session that has not completed OTP verification never grants access to
// protected resources, no matter how fresh its tokens are.
package auth

import (
	"time"
)

// Role is the newsroom role attached to a user account.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleRedator Role = "redator"
	RoleGestor  Role = "gestor"
	RoleViewer  Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleRedator, RoleGestor, RoleViewer:
		return true
	}
	return false
}

// User represents a portal account. This is the domain model used
// throughout the application; database scanning uses it directly.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	FullName      string     `json:"full_name"`
	PasswordHash  string     `json:"-"` // Never expose in JSON responses.
	Role          Role       `json:"role"`
	WhatsappPhone *string    `json:"whatsapp_phone,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
}

// Session is the server-side session record stored in Redis, keyed
// "session:<id>". OTPVerified starts false after the password check and
// flips exactly once, on successful code verification.
type Session struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Email           string    `json:"email"`
	Role            Role      `json:"role"`
	OTPVerified     bool      `json:"otp_verified"`
	RefreshToken    string    `json:"refresh_token"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// --- Request DTOs (bound from HTTP requests) ---

// LoginRequest holds the credentials submitted to POST /login.
type LoginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

// VerifyRequest holds the code submitted to POST /otp/verify.
type VerifyRequest struct {
	Code string `json:"code" form:"code" validate:"required,len=6"`
}

// RefreshRequest holds the refresh token submitted to POST /token/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LoginResult is returned by a successful password check. RequiresOTP is
// always true — the access token is not usable on protected routes until
// the code is verified.
type LoginResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	RequiresOTP  bool   `json:"requires_otp"`
}

// RefreshResult is returned by a successful token refresh.
type RefreshResult struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}
