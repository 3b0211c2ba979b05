// Package audit provides the security audit log for the portal. Every
// security-relevant event (failed logins, OTP issuance and verification,
// forced session expiry) and every content mutation is captured as an Entry
// and persisted to the audit_log table for later anomaly detection.
//
// Audit writes are observations about other plugins' actions — they never
// block the primary operation.
package audit

import "time"

// --- Action Constants ---
// Each action string follows the pattern "resource.verb" for consistent
// filtering and display grouping.

const (
	// ActionLoginFailed is logged on a wrong-password attempt, with the
	// attempted email and the raw auth error for anomaly detection.
	ActionLoginFailed = "auth.login_failed"

	// ActionOTPRequested is logged when a one-time code is generated and
	// dispatched. The code value itself is never logged.
	ActionOTPRequested = "auth.otp_requested"

	// ActionOTPVerified is logged when a session completes second-factor
	// verification.
	ActionOTPVerified = "auth.otp_verified"

	// ActionSessionExpired is logged when a session is forcibly destroyed,
	// with the reason (inactivity_timeout, refresh_failed).
	ActionSessionExpired = "auth.session_expired"

	// ActionLogout is logged on explicit sign-out.
	ActionLogout = "auth.logout"

	// ActionArticleCreated is logged when a new article is saved.
	ActionArticleCreated = "article.created"

	// ActionArticleUpdated is logged when an article's content changes.
	ActionArticleUpdated = "article.updated"

	// ActionArticleDeleted is logged when an article is removed.
	ActionArticleDeleted = "article.deleted"
)

// --- Expiry Reasons ---

const (
	// ReasonInactivityTimeout marks sessions killed by the 6-hour
	// inactivity watchdog.
	ReasonInactivityTimeout = "inactivity_timeout"

	// ReasonRefreshFailed marks sessions killed because their access token
	// could not be refreshed.
	ReasonRefreshFailed = "refresh_failed"
)

// Entry represents a single recorded event in the audit log. UserID may be
// empty for pre-authentication events (failed logins); Email carries the
// attempted identity in that case. Details holds action-specific metadata.
type Entry struct {
	ID        int64          `json:"id"`
	UserID    string         `json:"userId,omitempty"`
	Email     string         `json:"email,omitempty"`
	Action    string         `json:"action"`
	Reason    string         `json:"reason,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}
