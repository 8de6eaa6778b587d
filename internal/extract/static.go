package extract

import (
	"context"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"streamcast/internal/httputil"
	"streamcast/internal/media"
)

const staticFetchTimeout = 30 * time.Second

// iframePatterns are substrings that mark an iframe src as a likely embedded
// video player.
var iframePatterns = []string{"player", "embed", "video", "stream"}

var (
	// m3u8Pattern matches the first absolute HLS manifest URL in script text.
	m3u8Pattern = regexp.MustCompile(`https?://[^\s"']+\.m3u8[^\s"']*`)

	// assignPattern matches player-config assignments such as
	// file: "https://cdn/x.mp4" or src = 'movie.webm'.
	assignPattern = regexp.MustCompile(`(?i)(?:file|src|source|url)[\s:=]+["']([^"']+\.(?:mp4|webm|m3u8))["']`)
)

// Static is the no-script extractor: it fetches the raw page over HTTP and
// searches the parsed document and inline script text for known media
// reference patterns. JavaScript is never executed.
type Static struct {
	target media.StreamTarget
	client *http.Client
}

// NewStatic creates a static page extractor for the given target.
func NewStatic(target media.StreamTarget) *Static {
	return &Static{
		target: target,
		client: httputil.NewClient(staticFetchTimeout),
	}
}

// Resolve fetches and scans the target page. Ordered, first match wins:
// <video src>, <video><source src>, player-like <iframe src>, script m3u8
// URL, script assignment pattern. Relative matches are resolved against the
// page URL. Network and parse faults are logged and reported as failure.
func (s *Static) Resolve(ctx context.Context) (string, bool) {
	resp, err := httputil.Get(ctx, s.client, s.target.URL, s.target.URL)
	if err != nil {
		log.Printf("static: fetching %s: %v", s.target.URL, err)
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("static: unexpected status %d for %s", resp.StatusCode, s.target.URL)
		return "", false
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		log.Printf("static: parsing %s: %v", s.target.URL, err)
		return "", false
	}

	found := findMediaReference(doc)
	if found == "" {
		log.Printf("static: no media reference found on %s", s.target.URL)
		return "", false
	}

	return httputil.ResolveURL(s.target.URL, found), true
}

// Close releases the extractor's HTTP connections.
func (s *Static) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// findMediaReference walks the parsed document for the first recognizable
// media reference. The returned URL may be relative.
func findMediaReference(doc *goquery.Document) string {
	// Video element, preferring its own src over a nested <source>.
	video := doc.Find("video").First()
	if video.Length() > 0 {
		if src, ok := video.Attr("src"); ok && src != "" {
			return src
		}
		if src, ok := video.Find("source").First().Attr("src"); ok && src != "" {
			return src
		}
	}

	// First iframe whose src looks like an embedded player.
	var iframeSrc string
	doc.Find("iframe").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, ok := s.Attr("src")
		if !ok || src == "" {
			return true
		}
		lower := strings.ToLower(src)
		for _, pattern := range iframePatterns {
			if strings.Contains(lower, pattern) {
				iframeSrc = src
				return false
			}
		}
		return true
	})
	if iframeSrc != "" {
		return iframeSrc
	}

	// Inline script bodies: HLS manifest URLs, then player-config assignments.
	var scriptMatch string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if text == "" {
			return true
		}
		if m := m3u8Pattern.FindString(text); m != "" {
			scriptMatch = m
			return false
		}
		if m := assignPattern.FindStringSubmatch(text); m != nil {
			scriptMatch = m[1]
			return false
		}
		return true
	})

	return scriptMatch
}
