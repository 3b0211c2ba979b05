// Package sanitize implements the rich-text content pipeline for the portal.
// Uses bluemonday to strip dangerous HTML (script tags, event handlers,
// javascript: URLs) from editor output while preserving the formatting the
// newsroom editor produces, and handles the embed-marker comments that stand
// in for third-party provider widgets inside stored article bodies.
package sanitize

import (
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// contentPolicy is the allow-list policy applied to article body HTML.
// Initialized once via sync.Once for thread-safe lazy initialization.
var (
	contentPolicy     *bluemonday.Policy
	contentPolicyOnce sync.Once
)

// getContentPolicy returns the shared article-content policy, initializing
// it on first call. The allow-lists here are a versioned constant: stored
// content was sanitized with them, so loosening is safe but tightening
// breaks previously saved articles.
func getContentPolicy() *bluemonday.Policy {
	contentPolicyOnce.Do(func() {
		p := bluemonday.NewPolicy()

		// Structural and text-level elements produced by the editor.
		p.AllowElements(
			"p", "br", "hr",
			"h1", "h2", "h3", "h4", "h5", "h6",
			"strong", "b", "em", "i", "u", "s", "strike", "sub", "sup",
			"blockquote", "pre", "code",
			"ul", "ol", "li",
			"div", "span", "section", "article", "figure", "figcaption",
		)

		// Tables for data-heavy pieces (election results, finance columns).
		p.AllowElements("table", "thead", "tbody", "tfoot", "tr", "td", "th", "colgroup", "col", "caption")
		p.AllowAttrs("colspan", "rowspan").OnElements("td", "th")

		// Links restricted to a scheme allow-list plus relative paths.
		p.AllowElements("a")
		p.AllowAttrs("href", "target", "rel", "title").OnElements("a")
		p.AllowURLSchemes("http", "https", "mailto", "tel", "callto", "cid", "xmpp")
		p.AllowRelativeURLs(true)
		p.RequireParseableURLs(true)

		// Media with dimension attributes.
		p.AllowElements("img", "video", "audio", "source")
		p.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
		p.AllowAttrs("src", "controls", "poster", "width", "height", "preload").OnElements("video", "audio")
		p.AllowAttrs("src", "type").OnElements("source")

		// The editor expresses alignment and inline color via style/class.
		p.AllowAttrs("style").OnElements("span", "p", "div", "td", "th", "figure", "img")
		p.AllowAttrs("class").Globally()

		// Accessibility attributes plus the data-* attributes embed
		// providers leave on their markup.
		p.AllowAttrs("aria-label", "aria-hidden", "role").Globally()
		p.AllowDataAttributes()

		contentPolicy = p
	})
	return contentPolicy
}

// HTML sanitizes article body HTML for storage and rendering. It first
// normalizes manually typed bullet glyphs out of list items, then strips
// everything outside the allow-list. Pure function: same input, same output,
// and idempotent on its own output.
//
// This MUST be called on all author-provided HTML before storing it. The
// output is safe to render via innerHTML on the public site.
func HTML(input string) string {
	if input == "" {
		return ""
	}
	return getContentPolicy().Sanitize(stripBulletGlyphs(input))
}

// bulletGlyphs matches the glyphs authors type by hand at the start of list
// items, which double up visually with the semantic list marker. Covers the
// literal characters and their HTML-entity spellings.
const bulletGlyphs = `(?:[\x{2022}\x{25E6}\x{25AA}\x{00B7}\x{00B0}\x{00BA}\x{00AA}]|&bull;|&middot;|&deg;|&ordm;|&ordf;|&#8226;|&#9702;|&#9642;|&#183;|&#176;|&#186;|&#170;)`

// The four nesting shapes observed in pasted content: glyph directly after
// <li>, glyph inside an inline wrapper, glyph inside a leading paragraph,
// and glyph after a line break.
var (
	bulletDirectRe    = regexp.MustCompile(`(<li[^>]*>[\s\x{00A0}]*)(?:` + bulletGlyphs + `[\s\x{00A0}]*|&nbsp;)+`)
	bulletInlineRe    = regexp.MustCompile(`(<li[^>]*>[\s\x{00A0}]*<(?:span|strong|em|b|i|u)[^>]*>[\s\x{00A0}]*)(?:` + bulletGlyphs + `[\s\x{00A0}]*|&nbsp;)+`)
	bulletParagraphRe = regexp.MustCompile(`(<li[^>]*>[\s\x{00A0}]*<p[^>]*>[\s\x{00A0}]*)(?:` + bulletGlyphs + `[\s\x{00A0}]*|&nbsp;)+`)
	bulletBreakRe     = regexp.MustCompile(`(<br[^>]*>[\s\x{00A0}]*)(?:` + bulletGlyphs + `[\s\x{00A0}]*)+`)
)

// stripBulletGlyphs removes hand-typed bullet characters from the start of
// list-item content so they don't render twice. Only list-item and
// post-break positions are touched; a bullet glyph mid-sentence survives.
func stripBulletGlyphs(html string) string {
	if !strings.Contains(html, "<li") && !strings.Contains(html, "<br") {
		return html
	}
	out := bulletDirectRe.ReplaceAllString(html, "$1")
	out = bulletInlineRe.ReplaceAllString(out, "$1")
	out = bulletParagraphRe.ReplaceAllString(out, "$1")
	out = bulletBreakRe.ReplaceAllString(out, "$1")
	return out
}
