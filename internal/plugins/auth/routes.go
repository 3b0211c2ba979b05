package auth

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tribuna-digital/portal/internal/middleware"
)

// RegisterRoutes sets up the login-flow routes on the given Echo instance.
//
// Login and the OTP endpoints are rate-limited against brute force; the OTP
// limits also keep a stuck client from racing duplicate code generations.
func RegisterRoutes(e *echo.Echo, h *Handler, manager *Manager) {
	e.POST("/login", h.Login, middleware.RateLimit(10, time.Minute))

	// First-factor-only sessions may reach these.
	e.POST("/otp/verify", h.VerifyOTP, RequirePreAuth(manager), middleware.RateLimit(10, time.Minute))
	e.POST("/otp/resend", h.ResendOTP, RequirePreAuth(manager), middleware.RateLimit(3, time.Minute))
	e.POST("/logout", h.Logout, RequirePreAuth(manager))

	// Refresh authenticates by refresh token, not by access token.
	e.POST("/token/refresh", h.Refresh, middleware.RateLimit(30, time.Minute))

	// Fully verified sessions only.
	e.GET("/api/me", h.Me, RequireAuth(manager))
}
