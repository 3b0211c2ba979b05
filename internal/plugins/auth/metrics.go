package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session-expiry reasons, recorded on the audit trail and as metric labels.
const (
	reasonInactivityTimeout = "inactivity_timeout"
	reasonRefreshFailed     = "refresh_failed"
)

var (
	loginFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portal_auth_login_failures_total",
		Help: "Failed password login attempts",
	})

	otpIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portal_auth_otp_issued_total",
		Help: "One-time codes generated and dispatched",
	})

	otpVerified = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portal_auth_otp_verified_total",
		Help: "Successful one-time code verifications",
	})

	otpVerifyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portal_auth_otp_verify_failures_total",
		Help: "Rejected one-time code verifications (wrong, expired, or reused)",
	})

	sessionsExpired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_auth_sessions_expired_total",
		Help: "Sessions forcibly destroyed, by reason",
	}, []string{"reason"})
)
