package audit

import (
	"context"
)

// SecurityLog adapts the audit service to the event-shaped interface the
// auth manager consumes. All writes are fire-and-forget: the service
// already logs failures, and a broken audit trail must never abort a login
// or an expiry.
type SecurityLog struct {
	svc Service
}

// NewSecurityLog creates the adapter.
func NewSecurityLog(svc Service) *SecurityLog {
	return &SecurityLog{svc: svc}
}

// LoginFailed records a wrong-credential attempt with the raw cause for
// anomaly detection.
func (l *SecurityLog) LoginFailed(ctx context.Context, email string, cause error) {
	details := map[string]any{}
	if cause != nil {
		details["cause"] = cause.Error()
	}
	_ = l.svc.Log(ctx, &Entry{
		Email:   email,
		Action:  ActionLoginFailed,
		Details: details,
	})
}

// OTPRequested records a code dispatch. The code value is never included.
func (l *SecurityLog) OTPRequested(ctx context.Context, userID, email string) {
	_ = l.svc.Log(ctx, &Entry{
		UserID: userID,
		Email:  email,
		Action: ActionOTPRequested,
	})
}

// OTPVerified records a completed second factor.
func (l *SecurityLog) OTPVerified(ctx context.Context, userID, email string) {
	_ = l.svc.Log(ctx, &Entry{
		UserID: userID,
		Email:  email,
		Action: ActionOTPVerified,
	})
}

// SessionExpired records a forced session destruction and why.
func (l *SecurityLog) SessionExpired(ctx context.Context, userID, email, reason string) {
	_ = l.svc.Log(ctx, &Entry{
		UserID: userID,
		Email:  email,
		Action: ActionSessionExpired,
		Reason: reason,
	})
}

// Logout records an explicit sign-out.
func (l *SecurityLog) Logout(ctx context.Context, userID, email string) {
	_ = l.svc.Log(ctx, &Entry{
		UserID: userID,
		Email:  email,
		Action: ActionLogout,
	})
}
