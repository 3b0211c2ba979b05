package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tribuna-digital/portal/internal/apperror"
)

// Context keys for storing session data in Echo context. Other plugins
// access the authenticated identity via the exported getters below.
const (
	contextKeySession = "auth_session"
	contextKeyUserID  = "auth_user_id"
)

// RequireAuth returns middleware that validates the bearer token, enforces
// the second factor, and injects the session into the request context.
// A session that has not completed OTP verification is rejected here even
// though its token is otherwise valid — the second factor is not optional.
//
// Each accepted request also stamps the session's activity clock (debounced
// in the store).
func RequireAuth(manager *Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c)
			if token == "" {
				return apperror.NewUnauthorized("authentication required")
			}

			session, err := manager.Validate(c.Request().Context(), token)
			if err != nil {
				return err
			}

			if !session.OTPVerified {
				return apperror.NewForbidden("verification code required")
			}

			manager.RecordActivity(c.Request().Context(), session)

			c.Set(contextKeySession, session)
			c.Set(contextKeyUserID, session.UserID)

			return next(c)
		}
	}
}

// RequirePreAuth is RequireAuth minus the OTP check, for the handful of
// routes a first-factor-only session must reach: code verification, code
// resend, and logout.
func RequirePreAuth(manager *Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c)
			if token == "" {
				return apperror.NewUnauthorized("authentication required")
			}

			session, err := manager.Validate(c.Request().Context(), token)
			if err != nil {
				return err
			}

			c.Set(contextKeySession, session)
			c.Set(contextKeyUserID, session.UserID)

			return next(c)
		}
	}
}

// RequireRole returns middleware allowing only the listed roles. Must be
// stacked after RequireAuth.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	allowed := make(map[Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session := GetSession(c)
			if session == nil {
				return apperror.NewUnauthorized("authentication required")
			}
			if !allowed[session.Role] {
				return apperror.NewForbidden("insufficient permissions")
			}
			return next(c)
		}
	}
}

// --- Exported getters for other plugins ---

// GetSession retrieves the authenticated session from the Echo context.
// Returns nil if the request is not authenticated (middleware not applied).
func GetSession(c echo.Context) *Session {
	session, ok := c.Get(contextKeySession).(*Session)
	if !ok {
		return nil
	}
	return session
}

// GetUserID retrieves the authenticated user's ID from the Echo context.
// Returns empty string if the request is not authenticated.
func GetUserID(c echo.Context) string {
	id, ok := c.Get(contextKeyUserID).(string)
	if !ok {
		return ""
	}
	return id
}

// bearerToken extracts the access token from the Authorization header.
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
