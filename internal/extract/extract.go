// Package extract resolves stream-page URLs into directly playable media
// URLs. Three strategies of increasing cost are available: a static HTML
// scan, a headless-browser pass, and delegation to yt-dlp. Exactly one
// strategy runs per attempt; retry-by-switching-strategy is the caller's
// decision.
package extract

import (
	"context"
	"fmt"

	"streamcast/internal/media"
)

// Extraction method identifiers.
const (
	MethodYtdlp   = "ytdlp"
	MethodBrowser = "browser"
	MethodStatic  = "static"
)

// Methods lists the recognized extraction methods.
var Methods = []string{MethodYtdlp, MethodBrowser, MethodStatic}

// Extractor resolves a stream target into a playable media URL.
//
// Resolve is total from the caller's perspective: internal faults are logged
// and reported as (_, false), never as a panic. Close releases any session
// the extractor holds and is safe to call after a failed Resolve.
type Extractor interface {
	Resolve(ctx context.Context) (string, bool)
	Close() error
}

// New returns the extractor for the configured method. The yt-dlp pool is
// only consulted for MethodYtdlp and may be nil otherwise.
func New(method string, target media.StreamTarget, pool *Pool) (Extractor, error) {
	switch method {
	case MethodStatic:
		return NewStatic(target), nil
	case MethodBrowser:
		return NewAutomated(target), nil
	case MethodYtdlp:
		return NewYtdlp(target, pool), nil
	default:
		return nil, fmt.Errorf("unknown extraction method %q (valid: ytdlp, browser, static)", method)
	}
}
