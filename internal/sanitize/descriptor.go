package sanitize

import "regexp"

// Provider identifies a supported third-party embed provider.
type Provider string

const (
	ProviderYouTube   Provider = "youtube"
	ProviderTwitter   Provider = "twitter"
	ProviderInstagram Provider = "instagram"
)

// Valid reports whether p is one of the supported providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderYouTube, ProviderTwitter, ProviderInstagram:
		return true
	}
	return false
}

// Descriptor is a resolved reference to third-party embedded content. It is
// what an embed marker carries and what the render path hands to the
// provider-specific embed component. ID is never empty on a valid descriptor.
type Descriptor struct {
	Provider Provider `json:"provider"`
	ID       string   `json:"id"`

	// Type is an optional sub-kind, currently only used for Instagram
	// (post, reel, tv).
	Type string `json:"type,omitempty"`
}

// URL shapes for pasted provider links. YouTube video IDs are exactly 11
// characters; Instagram shortcodes are alphanumeric with hyphens/underscores.
var (
	youtubeWatchRe  = regexp.MustCompile(`youtube\.com/watch\?(?:[^#\s]*&)?v=([A-Za-z0-9_-]{11})`)
	youtubeShortRe  = regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{11})`)
	youtubeShortsRe = regexp.MustCompile(`youtube\.com/shorts/([A-Za-z0-9_-]{11})`)
	twitterStatusRe = regexp.MustCompile(`(?:twitter\.com|x\.com)/[^/\s]+/status(?:es)?/(\d+)`)
	instagramPathRe = regexp.MustCompile(`instagram\.com/(p|reel|tv)/([A-Za-z0-9_-]+)`)
)

// instagramTypes maps the Instagram URL path segment to the descriptor
// sub-kind persisted in markers.
var instagramTypes = map[string]string{
	"p":    "post",
	"reel": "reel",
	"tv":   "tv",
}

// FromURL extracts an embed descriptor from a pasted provider URL. A URL
// matching none of the known shapes yields nil: the caller treats that as
// "unsupported" and inserts nothing, it is not an error.
func FromURL(rawURL string) *Descriptor {
	if rawURL == "" {
		return nil
	}

	for _, re := range []*regexp.Regexp{youtubeWatchRe, youtubeShortRe, youtubeShortsRe} {
		if m := re.FindStringSubmatch(rawURL); m != nil {
			return &Descriptor{Provider: ProviderYouTube, ID: m[1]}
		}
	}

	if m := twitterStatusRe.FindStringSubmatch(rawURL); m != nil {
		return &Descriptor{Provider: ProviderTwitter, ID: m[1]}
	}

	if m := instagramPathRe.FindStringSubmatch(rawURL); m != nil {
		return &Descriptor{Provider: ProviderInstagram, ID: m[2], Type: instagramTypes[m[1]]}
	}

	return nil
}
