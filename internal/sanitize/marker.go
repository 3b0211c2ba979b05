package sanitize

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
)

// Embed markers are the persisted stand-in for provider widgets inside
// stored article HTML: an HTML comment carrying a small JSON payload.
// The wire format is fixed — previously stored articles depend on it:
//
//	<!--EMBED:{"provider":"youtube","id":"dQw4w9WgXcQ"}-->
//
// The editor inserts a marker at the cursor position; at render time it is
// swapped for the actual embed component while the surrounding prose is
// sanitized as plain HTML.
var markerRe = regexp.MustCompile(`<!--EMBED:(\{.*?\})-->`)

// Marker is one embed marker found in a document, with its position in the
// original string.
type Marker struct {
	Descriptor Descriptor
	Offset     int
	Length     int
}

// Segment is one piece of a rendered document: either a sanitized HTML
// chunk or an unresolved embed descriptor, never both.
type Segment struct {
	HTML  string
	Embed *Descriptor
}

// MarkerHTML serializes a descriptor back to the exact wire format. A
// descriptor parsed from a marker round-trips unchanged through
// MarkerHTML(ParseMarkers(...)).
func MarkerHTML(d Descriptor) string {
	payload, _ := json.Marshal(d)
	return fmt.Sprintf("<!--EMBED:%s-->", payload)
}

// ParseMarkers returns every embed marker in html in document order.
// Markers with malformed JSON, an unknown provider, or an empty id are
// skipped with a warning — a broken marker must never take down the page.
func ParseMarkers(html string) []Marker {
	matches := markerRe.FindAllStringSubmatchIndex(html, -1)
	if matches == nil {
		return nil
	}

	markers := make([]Marker, 0, len(matches))
	for _, m := range matches {
		raw := html[m[2]:m[3]]

		var d Descriptor
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			slog.Warn("skipping malformed embed marker",
				slog.String("payload", raw),
				slog.Any("error", err),
			)
			continue
		}
		if !d.Provider.Valid() || d.ID == "" {
			slog.Warn("skipping embed marker with invalid descriptor",
				slog.String("payload", raw),
			)
			continue
		}

		markers = append(markers, Marker{
			Descriptor: d,
			Offset:     m[0],
			Length:     m[1] - m[0],
		})
	}
	return markers
}

// Split cuts html at embed-marker boundaries and returns the ordered
// sequence of sanitized HTML chunks interleaved with embed descriptors.
// Concatenating the segments in order (markers re-serialized via
// MarkerHTML) reproduces the original reading order exactly. When the
// document contains no markers the whole input is sanitized as one chunk.
func Split(html string) []Segment {
	markers := ParseMarkers(html)
	if len(markers) == 0 {
		// Fast path: no markers, sanitize everything at once.
		if html == "" {
			return nil
		}
		return []Segment{{HTML: HTML(html)}}
	}

	segments := make([]Segment, 0, 2*len(markers)+1)
	pos := 0
	for i := range markers {
		m := &markers[i]
		if chunk := html[pos:m.Offset]; chunk != "" {
			segments = append(segments, Segment{HTML: HTML(chunk)})
		}
		d := m.Descriptor
		segments = append(segments, Segment{Embed: &d})
		pos = m.Offset + m.Length
	}
	if rest := html[pos:]; rest != "" {
		segments = append(segments, Segment{HTML: HTML(rest)})
	}
	return segments
}

// Document sanitizes a full article body while preserving its embed
// markers. Each prose chunk goes through HTML individually and each marker
// is re-serialized in place, so the save path never destroys a marker (the
// sanitizer would otherwise strip the comment).
func Document(html string) string {
	markers := ParseMarkers(html)
	if len(markers) == 0 {
		return HTML(html)
	}

	var out []byte
	pos := 0
	for i := range markers {
		m := &markers[i]
		out = append(out, HTML(html[pos:m.Offset])...)
		out = append(out, MarkerHTML(m.Descriptor)...)
		pos = m.Offset + m.Length
	}
	out = append(out, HTML(html[pos:])...)
	return string(out)
}
