package articles

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tribuna-digital/portal/internal/apperror"
	"github.com/tribuna-digital/portal/internal/plugins/auth"
)

// Handler handles HTTP requests for articles. Handlers are thin: bind,
// call the service, render JSON.
type Handler struct {
	svc Service
}

// NewHandler creates a new article handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Index lists articles (GET /api/articles). Staff see all statuses via the
// status query parameter; the default is everything.
func (h *Handler) Index(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))

	articles, total, err := h.svc.List(c.Request().Context(), ListOptions{
		Status: c.QueryParam("status"),
		Page:   page,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"articles": articles,
		"total":    total,
	})
}

// Show returns one article by ID (GET /api/articles/:id).
func (h *Handler) Show(c echo.Context) error {
	article, err := h.svc.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, article)
}

// Create drafts a new article (POST /api/articles).
func (h *Handler) Create(c echo.Context) error {
	var input CreateArticleInput
	if err := c.Bind(&input); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	article, err := h.svc.Create(c.Request().Context(), auth.GetUserID(c), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, article)
}

// Update edits an article (PUT /api/articles/:id).
func (h *Handler) Update(c echo.Context) error {
	var input UpdateArticleInput
	if err := c.Bind(&input); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	article, err := h.svc.Update(c.Request().Context(), c.Param("id"), auth.GetUserID(c), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, article)
}

// Publish makes an article live (POST /api/articles/:id/publish).
func (h *Handler) Publish(c echo.Context) error {
	article, err := h.svc.Publish(c.Request().Context(), c.Param("id"), auth.GetUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, article)
}

// Unpublish returns an article to draft (POST /api/articles/:id/unpublish).
func (h *Handler) Unpublish(c echo.Context) error {
	article, err := h.svc.Unpublish(c.Request().Context(), c.Param("id"), auth.GetUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, article)
}

// Delete removes an article (DELETE /api/articles/:id).
func (h *Handler) Delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id"), auth.GetUserID(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// AttachEmbed appends an embed marker extracted from a media URL
// (POST /api/articles/:id/embed).
func (h *Handler) AttachEmbed(c echo.Context) error {
	var input AttachEmbedInput
	if err := c.Bind(&input); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	article, err := h.svc.AttachEmbed(c.Request().Context(), c.Param("id"), auth.GetUserID(c), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, article)
}

// PreviewEmbed sanitizes raw provider embed HTML for the editor
// (POST /api/articles/embed/preview). Untrusted markup comes back empty,
// which the editor shows as "embed not allowed".
func (h *Handler) PreviewEmbed(c echo.Context) error {
	var input PreviewEmbedInput
	if err := c.Bind(&input); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"html": h.svc.PreviewEmbed(input.HTML),
	})
}

// Render returns a published article split into renderable segments
// (GET /articles/:slug). This is the public reader endpoint.
func (h *Handler) Render(c echo.Context) error {
	rendered, err := h.svc.Render(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rendered)
}
