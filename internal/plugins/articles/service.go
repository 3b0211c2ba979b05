package articles

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tribuna-digital/portal/internal/apperror"
	"github.com/tribuna-digital/portal/internal/plugins/audit"
	"github.com/tribuna-digital/portal/internal/sanitize"
)

// listPerPage is the number of articles per listing page.
const listPerPage = 20

// Service handles business logic for articles. It owns slug generation,
// body sanitization, publication state, and embed attachment.
type Service interface {
	Create(ctx context.Context, authorID string, input CreateArticleInput) (*Article, error)
	GetByID(ctx context.Context, id string) (*Article, error)
	GetBySlug(ctx context.Context, slug string) (*Article, error)
	List(ctx context.Context, opts ListOptions) ([]Article, int, error)
	Update(ctx context.Context, id, editorID string, input UpdateArticleInput) (*Article, error)
	Publish(ctx context.Context, id, editorID string) (*Article, error)
	Unpublish(ctx context.Context, id, editorID string) (*Article, error)
	Delete(ctx context.Context, id, editorID string) error

	// Render returns a published article with its body split into HTML and
	// embed segments in document order.
	Render(ctx context.Context, slug string) (*RenderedArticle, error)

	// AttachEmbed extracts an embed descriptor from a media URL and appends
	// its marker to the article body.
	AttachEmbed(ctx context.Context, id, editorID string, input AttachEmbedInput) (*Article, error)

	// PreviewEmbed sanitizes raw provider embed HTML for the editor's
	// preview pane. Untrusted markup comes back empty.
	PreviewEmbed(raw string) string
}

// service implements Service.
type service struct {
	repo  Repository
	audit audit.Service
}

// NewService creates a new article service.
func NewService(repo Repository, auditSvc audit.Service) Service {
	return &service{repo: repo, audit: auditSvc}
}

// Create drafts a new article. The body passes through the sanitization
// pipeline; embed markers already present in it survive.
func (s *service) Create(ctx context.Context, authorID string, input CreateArticleInput) (*Article, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperror.NewBadRequest("article title is required")
	}
	if len(title) > maxTitleLength {
		return nil, apperror.NewBadRequest(fmt.Sprintf("article title must be at most %d characters", maxTitleLength))
	}

	slug, err := s.generateSlug(ctx, title)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("generating slug: %w", err))
	}

	now := time.Now().UTC()
	article := &Article{
		ID:        uuid.NewString(),
		Title:     title,
		Slug:      slug,
		Summary:   strings.TrimSpace(input.Summary),
		Body:      sanitize.Document(input.Body),
		Status:    StatusDraft,
		AuthorID:  authorID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, article); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("creating article: %w", err))
	}

	s.logAction(ctx, audit.ActionArticleCreated, authorID, article)

	slog.Info("article created",
		slog.String("article_id", article.ID),
		slog.String("slug", article.Slug),
		slog.String("author_id", authorID),
	)

	return article, nil
}

// GetByID retrieves an article by ID.
func (s *service) GetByID(ctx context.Context, id string) (*Article, error) {
	return s.repo.FindByID(ctx, id)
}

// GetBySlug retrieves an article by slug.
func (s *service) GetBySlug(ctx context.Context, slug string) (*Article, error) {
	return s.repo.FindBySlug(ctx, slug)
}

// List returns one page of articles, optionally filtered by status.
func (s *service) List(ctx context.Context, opts ListOptions) ([]Article, int, error) {
	if opts.Status != "" && opts.Status != StatusDraft && opts.Status != StatusPublished {
		return nil, 0, apperror.NewBadRequest("invalid status filter")
	}
	page := opts.Page
	if page < 1 {
		page = 1
	}

	articles, total, err := s.repo.List(ctx, opts.Status, listPerPage, (page-1)*listPerPage)
	if err != nil {
		return nil, 0, apperror.NewInternal(fmt.Errorf("listing articles: %w", err))
	}
	return articles, total, nil
}

// Update edits an article's title, summary, and body. The body is
// re-sanitized on every save; sanitization is idempotent so repeated saves
// of unchanged content produce identical stored HTML.
func (s *service) Update(ctx context.Context, id, editorID string, input UpdateArticleInput) (*Article, error) {
	article, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperror.NewBadRequest("article title is required")
	}
	if len(title) > maxTitleLength {
		return nil, apperror.NewBadRequest(fmt.Sprintf("article title must be at most %d characters", maxTitleLength))
	}

	// Regenerate the slug only if the title changed; published URLs stay
	// stable across body edits.
	if title != article.Title {
		slug, err := s.generateSlug(ctx, title)
		if err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("generating slug: %w", err))
		}
		article.Slug = slug
	}

	article.Title = title
	article.Summary = strings.TrimSpace(input.Summary)
	article.Body = sanitize.Document(input.Body)
	article.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, article); err != nil {
		return nil, err
	}

	s.logAction(ctx, audit.ActionArticleUpdated, editorID, article)
	return article, nil
}

// Publish makes an article visible to readers. Publishing an already
// published article refreshes nothing and is not an error.
func (s *service) Publish(ctx context.Context, id, editorID string) (*Article, error) {
	article, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if article.Status == StatusPublished {
		return article, nil
	}

	now := time.Now().UTC()
	article.Status = StatusPublished
	article.PublishedAt = &now
	article.UpdatedAt = now

	if err := s.repo.Update(ctx, article); err != nil {
		return nil, err
	}

	s.logAction(ctx, audit.ActionArticleUpdated, editorID, article)

	slog.Info("article published",
		slog.String("article_id", article.ID),
		slog.String("slug", article.Slug),
	)
	return article, nil
}

// Unpublish returns an article to draft.
func (s *service) Unpublish(ctx context.Context, id, editorID string) (*Article, error) {
	article, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if article.Status == StatusDraft {
		return article, nil
	}

	article.Status = StatusDraft
	article.PublishedAt = nil
	article.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, article); err != nil {
		return nil, err
	}

	s.logAction(ctx, audit.ActionArticleUpdated, editorID, article)
	return article, nil
}

// Delete removes an article permanently.
func (s *service) Delete(ctx context.Context, id, editorID string) error {
	article, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logAction(ctx, audit.ActionArticleDeleted, editorID, article)

	slog.Info("article deleted",
		slog.String("article_id", id),
		slog.String("slug", article.Slug),
	)
	return nil
}

// Render loads a published article and splits its body into segments.
// Draft articles render only for staff through GetBySlug; the public
// rendering path refuses them.
func (s *service) Render(ctx context.Context, slug string) (*RenderedArticle, error) {
	article, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if article.Status != StatusPublished {
		return nil, apperror.NewNotFound("article not found")
	}

	return &RenderedArticle{
		Article:  article,
		Segments: sanitize.Split(article.Body),
	}, nil
}

// AttachEmbed extracts a descriptor from the URL and appends its marker to
// the article body. Unrecognized URLs are rejected rather than stored.
func (s *service) AttachEmbed(ctx context.Context, id, editorID string, input AttachEmbedInput) (*Article, error) {
	rawURL := strings.TrimSpace(input.URL)
	if rawURL == "" {
		return nil, apperror.NewBadRequest("embed url is required")
	}

	descriptor := sanitize.FromURL(rawURL)
	if descriptor == nil {
		return nil, apperror.NewBadRequest("url is not a recognized embeddable media link")
	}

	article, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	marker := sanitize.MarkerHTML(*descriptor)
	if article.Body == "" {
		article.Body = marker
	} else {
		article.Body = article.Body + "\n" + marker
	}
	article.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, article); err != nil {
		return nil, err
	}

	s.logAction(ctx, audit.ActionArticleUpdated, editorID, article)

	slog.Info("embed attached",
		slog.String("article_id", article.ID),
		slog.String("provider", string(descriptor.Provider)),
	)
	return article, nil
}

// PreviewEmbed runs raw provider embed HTML through the embed sanitizer.
func (s *service) PreviewEmbed(raw string) string {
	return sanitize.EmbedCode(raw)
}

// logAction records an article audit entry. Audit failures never block the
// operation that triggered them.
func (s *service) logAction(ctx context.Context, action, userID string, article *Article) {
	_ = s.audit.Log(ctx, &audit.Entry{
		UserID: userID,
		Action: action,
		Details: map[string]any{
			"article_id": article.ID,
			"slug":       article.Slug,
			"status":     article.Status,
		},
	})
}

// maxSlugAttempts caps slug deduplication iterations.
const maxSlugAttempts = 100

// generateSlug creates a unique slug from the title. Collisions get -2,
// -3 suffixes; after maxSlugAttempts a random suffix guarantees uniqueness.
func (s *service) generateSlug(ctx context.Context, title string) (string, error) {
	base := slugify(title)
	slug := base

	for i := 2; i < maxSlugAttempts+2; i++ {
		exists, err := s.repo.SlugExists(ctx, slug)
		if err != nil {
			return "", fmt.Errorf("checking slug: %w", err)
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}

	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating random slug suffix: %w", err)
	}
	return fmt.Sprintf("%s-%s", base, hex.EncodeToString(b)), nil
}
