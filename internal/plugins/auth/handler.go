package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tribuna-digital/portal/internal/apperror"
)

// Handler handles HTTP requests for the login flow. Handlers are thin: they
// bind the request, call the manager, and render the response. No business
// logic lives here.
type Handler struct {
	manager *Manager
}

// NewHandler creates a new auth handler with the given manager.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// Login processes credentials (POST /login). On success the client holds a
// pre-verification token pair and must submit the WhatsApp code next.
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	result, err := h.manager.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// VerifyOTP checks the submitted code and promotes the session
// (POST /otp/verify). Returns a fresh access token on success.
func (h *Handler) VerifyOTP(c echo.Context) error {
	var req VerifyRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	session := GetSession(c)
	if session == nil {
		return apperror.NewUnauthorized("authentication required")
	}

	accessToken, err := h.manager.VerifyOTP(c.Request().Context(), session.ID, req.Code)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{"access_token": accessToken})
}

// ResendOTP issues a fresh code for the current session (POST /otp/resend).
// The previous code stops working immediately.
func (h *Handler) ResendOTP(c echo.Context) error {
	session := GetSession(c)
	if session == nil {
		return apperror.NewUnauthorized("authentication required")
	}

	if err := h.manager.ResendOTP(c.Request().Context(), session.ID); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]bool{"sent": true})
}

// Refresh rotates the token pair (POST /token/refresh).
func (h *Handler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	if req.RefreshToken == "" {
		return apperror.NewBadRequest("refresh_token is required")
	}

	result, err := h.manager.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Logout destroys the current session (POST /logout). Safe to call twice.
func (h *Handler) Logout(c echo.Context) error {
	session := GetSession(c)
	if session == nil {
		return apperror.NewUnauthorized("authentication required")
	}

	if err := h.manager.SignOut(c.Request().Context(), session.ID); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated identity (GET /api/me). The dashboard uses
// it to restore state after a reload.
func (h *Handler) Me(c echo.Context) error {
	session := GetSession(c)
	if session == nil {
		return apperror.NewUnauthorized("authentication required")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"user_id":      session.UserID,
		"email":        session.Email,
		"role":         session.Role,
		"otp_verified": session.OTPVerified,
	})
}
