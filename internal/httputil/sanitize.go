package httputil

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// ValidateURL checks that a URL is well-formed and uses http or https.
// Stream pages are user-supplied and frequently plain http, so unlike an API
// endpoint we cannot require TLS here.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host")
	}
	return nil
}

// ResolveURL resolves a possibly relative reference against a base page URL.
// Returns the reference unchanged when either side fails to parse.
func ResolveURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// SanitizeFilename removes path traversal and dangerous characters from a
// filename. Returns just the base name, stripped of directory components.
// Used for screenshot paths supplied through the command dispatcher.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)

	replacer := strings.NewReplacer(
		"..", "_",
		"/", "_",
		"\\", "_",
		"\x00", "",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	name = replacer.Replace(name)

	if name == "" || name == "." || name == ".." {
		return "untitled"
	}

	return name
}
