package articles

import (
	"github.com/labstack/echo/v4"

	"github.com/tribuna-digital/portal/internal/plugins/auth"
)

// RegisterRoutes sets up article routes on the given Echo instance.
// Reading published articles is public; everything else requires a fully
// verified session. Redators write, gestors and admins also publish and
// delete.
func RegisterRoutes(e *echo.Echo, h *Handler, manager *auth.Manager) {
	// Public reader endpoint.
	e.GET("/articles/:slug", h.Render)

	g := e.Group("/api/articles", auth.RequireAuth(manager))

	// Any staff role can browse the backlog.
	g.GET("", h.Index)
	g.GET("/:id", h.Show)

	// Writing requires redator or above.
	writer := []auth.Role{auth.RoleAdmin, auth.RoleGestor, auth.RoleRedator}
	g.POST("", h.Create, auth.RequireRole(writer...))
	g.PUT("/:id", h.Update, auth.RequireRole(writer...))
	g.POST("/:id/embed", h.AttachEmbed, auth.RequireRole(writer...))
	g.POST("/embed/preview", h.PreviewEmbed, auth.RequireRole(writer...))

	// Publication and deletion are editorial decisions.
	editor := []auth.Role{auth.RoleAdmin, auth.RoleGestor}
	g.POST("/:id/publish", h.Publish, auth.RequireRole(editor...))
	g.POST("/:id/unpublish", h.Unpublish, auth.RequireRole(editor...))
	g.DELETE("/:id", h.Delete, auth.RequireRole(editor...))
}
