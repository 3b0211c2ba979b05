package audit

import (
	"github.com/labstack/echo/v4"

	"github.com/tribuna-digital/portal/internal/plugins/auth"
)

// RegisterRoutes sets up the audit feed routes. The feed exposes login
// attempts and session events, so it is admin-only.
func RegisterRoutes(e *echo.Echo, h *Handler, manager *auth.Manager) {
	g := e.Group("/api/audit",
		auth.RequireAuth(manager),
		auth.RequireRole(auth.RoleAdmin),
	)

	g.GET("", h.Activity)
	g.GET("/email/:email", h.EmailHistory)
}
