package sanitize

import (
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// trustedEmbedDomains is the fixed set of providers whose embed markup is
// allowed to reach the DOM at all. A snippet mentioning none of these
// sanitizes to the empty string, no matter how harmless it looks.
var trustedEmbedDomains = []string{
	"youtube.com",
	"youtu.be",
	"vimeo.com",
	"instagram.com",
	"twitter.com",
	"x.com",
	"facebook.com",
	"tiktok.com",
	"soundcloud.com",
	"open.spotify.com",
}

// scriptTagRe matches provider bootstrap <script> tags (Twitter's
// widgets.js, Instagram's embed.js). Those loaders are included once
// globally by the site shell, so per-embed copies are stripped.
var scriptTagRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>|<script[^>]*/\s*>`)

// Per-provider embed policies. Embeds are the one place third-party markup
// must reach the DOM, so each provider gets the narrowest policy that keeps
// its widget functional instead of one broad allow-list for everything.
var (
	embedPolicyOnce sync.Once
	twitterPolicy   *bluemonday.Policy
	instagramPolicy *bluemonday.Policy
	genericPolicy   *bluemonday.Policy
)

func initEmbedPolicies() {
	embedPolicyOnce.Do(func() {
		// Twitter/X: a <blockquote class="twitter-tweet"> with data-*
		// attributes the widget loader reads. No iframes.
		tw := bluemonday.NewPolicy()
		tw.AllowElements("blockquote", "p", "a", "br")
		tw.AllowAttrs("class", "lang", "dir").OnElements("blockquote", "p")
		tw.AllowAttrs(
			"data-tweet-id", "data-theme", "data-lang", "data-dnt",
			"data-conversation", "data-cards", "data-width", "data-align",
		).OnElements("blockquote")
		tw.AllowAttrs("href").OnElements("a")
		tw.AllowURLSchemes("http", "https")
		tw.RequireParseableURLs(true)
		twitterPolicy = tw

		// Instagram: <blockquote class="instagram-media"> with
		// data-instgrm-* attributes, plus the inline SVG icon shell the
		// embed snippet ships.
		ig := bluemonday.NewPolicy()
		ig.AllowElements("blockquote", "div", "p", "a", "br", "svg", "path", "g")
		ig.AllowAttrs("class", "style").OnElements("blockquote", "div", "p", "a")
		ig.AllowAttrs(
			"data-instgrm-permalink", "data-instgrm-version", "data-instgrm-captioned",
		).OnElements("blockquote")
		ig.AllowAttrs("href", "target", "rel").OnElements("a")
		ig.AllowAttrs("width", "height", "viewBox", "xmlns", "version").OnElements("svg")
		ig.AllowAttrs("d", "fill", "transform").OnElements("path", "g")
		ig.AllowURLSchemes("http", "https")
		ig.RequireParseableURLs(true)
		instagramPolicy = ig

		// Everything else on the trusted list: responsive iframe or
		// blockquote embeds. Inline event handlers are unrepresentable
		// here — the attribute allow-list simply doesn't contain them.
		gen := bluemonday.NewPolicy()
		gen.AllowElements("iframe", "blockquote", "div", "p", "a", "br")
		gen.AllowAttrs(
			"src", "width", "height", "frameborder", "allow",
			"allowfullscreen", "title", "sandbox", "referrerpolicy",
			"loading", "scrolling", "style",
		).OnElements("iframe")
		gen.AllowAttrs("class", "style").OnElements("blockquote", "div", "p")
		gen.AllowAttrs("href", "target", "rel").OnElements("a")
		gen.AllowURLSchemes("http", "https")
		gen.RequireParseableURLs(true)
		genericPolicy = gen
	})
}

// EmbedCode sanitizes a raw embed snippet pasted into the editor. Returns
// the empty string for snippets that reference no trusted provider domain;
// callers must treat "insert nothing" as a valid outcome.
func EmbedCode(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	lower := strings.ToLower(raw)
	trusted := false
	for _, domain := range trustedEmbedDomains {
		if strings.Contains(lower, domain) {
			trusted = true
			break
		}
	}
	if !trusted {
		return ""
	}

	initEmbedPolicies()

	// Bootstrap scripts never survive, regardless of provider.
	stripped := scriptTagRe.ReplaceAllString(raw, "")

	switch {
	case strings.Contains(lower, "twitter.com") || strings.Contains(lower, "x.com"):
		return strings.TrimSpace(twitterPolicy.Sanitize(stripped))
	case strings.Contains(lower, "instagram.com"):
		return strings.TrimSpace(instagramPolicy.Sanitize(stripped))
	default:
		return strings.TrimSpace(genericPolicy.Sanitize(stripped))
	}
}
