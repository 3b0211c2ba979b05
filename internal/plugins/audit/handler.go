package audit

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tribuna-digital/portal/internal/apperror"
)

// Handler handles HTTP requests for the audit feed. Handlers are thin:
// bind request, call service, render response. No business logic lives here.
type Handler struct {
	service Service
}

// NewHandler creates a new audit handler.
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Activity returns one page of the audit feed (GET /api/audit).
func (h *Handler) Activity(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}

	entries, total, err := h.service.GetActivity(c.Request().Context(), page)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"entries": entries,
		"total":   total,
		"page":    page,
		"perPage": perPage,
	})
}

// EmailHistory returns the recent audit trail for one email
// (GET /api/audit/email/:email). Used when investigating an account.
func (h *Handler) EmailHistory(c echo.Context) error {
	email := c.Param("email")
	if email == "" {
		return apperror.NewBadRequest("email is required")
	}

	entries, err := h.service.GetEmailHistory(c.Request().Context(), email)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"entries": entries})
}
