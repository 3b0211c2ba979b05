// Package articles manages the portal's news articles: drafting, editing,
// publication, and rendering. Article bodies pass through the content
// sanitization pipeline on every write, and rich-media embeds are stored
// as inline markers that rendering expands back into descriptors.
package articles

import (
	"regexp"
	"strings"
	"time"

	"github.com/tribuna-digital/portal/internal/sanitize"
)

// Article statuses. Draft articles are only visible to staff; published
// articles are served to readers.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// maxTitleLength bounds article titles.
const maxTitleLength = 200

// Article is a single news article. Body holds sanitized HTML with embed
// markers serialized in place; it is never served raw to readers — Render
// splits it into segments first.
type Article struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Summary     string     `json:"summary"`
	Body        string     `json:"body"`
	Status      string     `json:"status"`
	AuthorID    string     `json:"author_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// CreateArticleInput is the payload for creating an article.
type CreateArticleInput struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Body    string `json:"body"`
}

// UpdateArticleInput is the payload for editing an article.
type UpdateArticleInput struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Body    string `json:"body"`
}

// AttachEmbedInput carries a media URL to append to an article as an
// embed marker.
type AttachEmbedInput struct {
	URL string `json:"url"`
}

// PreviewEmbedInput carries raw provider embed HTML for sanitization.
type PreviewEmbedInput struct {
	HTML string `json:"html"`
}

// RenderedArticle is the read-side shape: article metadata plus the body
// split into alternating HTML and embed segments, in document order.
type RenderedArticle struct {
	Article  *Article           `json:"article"`
	Segments []sanitize.Segment `json:"segments"`
}

// ListOptions controls article listing.
type ListOptions struct {
	Status string // empty means all statuses
	Page   int
}

// slugPattern matches runs of characters that are not lowercase
// alphanumerics, for slug generation.
var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// slugify converts a title into a URL-safe slug.
func slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = slugPattern.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "article"
	}
	return slug
}
