package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/exec"
	"strings"

	ytdlp "github.com/lrstanley/go-ytdlp"

	"streamcast/internal/httputil"
	"streamcast/internal/media"
)

// Pool bounds concurrent yt-dlp invocations; extraction shells out to a
// slow external process, so unbounded parallelism is never wanted. Construct
// one pool at process start and inject it into every metadata extractor.
type Pool struct {
	sem chan struct{}
}

// DefaultPoolSize is the worker count used when no pool is injected.
const DefaultPoolSize = 2

// NewPool creates a pool admitting at most workers concurrent extractions.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{sem: make(chan struct{}, workers)}
}

// do runs fn once a worker slot is free, or fails when ctx expires first.
func (p *Pool) do(ctx context.Context, fn func()) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.sem }()
	fn()
	return nil
}

// ytdlpFormat is one entry of the format list in yt-dlp's JSON dump,
// ordered lowest to highest priority in the source data.
type ytdlpFormat struct {
	URL      string `json:"url"`
	FormatID string `json:"format_id"`
	Ext      string `json:"ext"`
}

// ytdlpInfo is the slice of yt-dlp's JSON dump this extractor consumes. A
// playlist result carries Entries; a single item carries URL/Formats.
type ytdlpInfo struct {
	Title       string        `json:"title"`
	Duration    float64       `json:"duration"`
	Thumbnail   string        `json:"thumbnail"`
	Description string        `json:"description"`
	Uploader    string        `json:"uploader"`
	IsLive      bool          `json:"is_live"`
	URL         string        `json:"url"`
	WebpageURL  string        `json:"webpage_url"`
	ManifestURL string        `json:"manifest_url"`
	Formats     []ytdlpFormat `json:"formats"`
	Entries     []ytdlpInfo   `json:"entries"`
}

// Ytdlp delegates extraction to yt-dlp, which understands the structure of
// many known video hosting sites. Invocations run through the injected
// bounded pool.
type Ytdlp struct {
	target    media.StreamTarget
	pool      *Pool
	available bool
}

// NewYtdlp creates a metadata-library extractor. The yt-dlp capability is
// probed once here; when absent every call short-circuits with a logged
// unavailable status.
func NewYtdlp(target media.StreamTarget, pool *Pool) *Ytdlp {
	if pool == nil {
		pool = NewPool(DefaultPoolSize)
	}
	_, err := exec.LookPath("yt-dlp")
	if err != nil {
		log.Printf("ytdlp: yt-dlp binary not found; extraction disabled")
	}
	return &Ytdlp{
		target:    target,
		pool:      pool,
		available: err == nil,
	}
}

// Resolve extracts the playable URL for the target, preferring an mp4
// container. Playlist results yield the first entry; single items fall back
// through the reverse-ordered format list and finally the manifest URL.
func (y *Ytdlp) Resolve(ctx context.Context) (string, bool) {
	info, ok := y.dump(ctx, true)
	if !ok {
		return "", false
	}

	url := pickStreamURL(info)
	if url == "" {
		log.Printf("ytdlp: no playable URL in extracted info for %s", y.target.URL)
		return "", false
	}
	return url, true
}

// VideoInfo returns descriptive metadata for the target. Independent of
// Resolve; either may be called without the other.
func (y *Ytdlp) VideoInfo(ctx context.Context) (media.VideoInfo, bool) {
	info, ok := y.dump(ctx, false)
	if !ok {
		return media.VideoInfo{}, false
	}
	if len(info.Entries) > 0 {
		info = &info.Entries[0]
	}
	return media.VideoInfo{
		Title:       info.Title,
		Duration:    info.Duration,
		Thumbnail:   info.Thumbnail,
		Description: info.Description,
		Uploader:    info.Uploader,
		IsLive:      info.IsLive,
		FormatCount: len(info.Formats),
	}, true
}

// Close implements Extractor; the metadata extractor holds no session.
func (y *Ytdlp) Close() error { return nil }

// dump runs yt-dlp in no-download mode and parses its JSON output. The call
// blocks for the duration of the external process, bounded by the pool.
func (y *Ytdlp) dump(ctx context.Context, withFormat bool) (*ytdlpInfo, bool) {
	if !y.available {
		log.Printf("ytdlp: extraction requested but yt-dlp is unavailable")
		return nil, false
	}

	var info *ytdlpInfo
	var runErr error
	err := y.pool.do(ctx, func() {
		info, runErr = y.run(ctx, withFormat)
	})
	if err != nil {
		log.Printf("ytdlp: waiting for worker: %v", err)
		return nil, false
	}
	if runErr != nil {
		if strings.Contains(runErr.Error(), "Unsupported URL") {
			log.Printf("ytdlp: unsupported URL %s (listing page rather than a video page?)", y.target.URL)
		} else {
			log.Printf("ytdlp: extracting %s: %v", y.target.URL, runErr)
		}
		return nil, false
	}
	return info, true
}

func (y *Ytdlp) run(ctx context.Context, withFormat bool) (*ytdlpInfo, error) {
	cmd := ytdlp.New().
		Quiet().
		NoWarnings().
		SkipDownload().
		GeoBypass().
		UserAgent(httputil.BrowserUserAgent).
		DumpSingleJSON()
	if withFormat {
		// Prefer MP4 for cast-device compatibility.
		cmd = cmd.Format("best[ext=mp4]/best")
	}

	res, err := cmd.Run(ctx, y.target.URL)
	if err != nil {
		return nil, fmt.Errorf("running yt-dlp: %w", err)
	}

	var info ytdlpInfo
	if err := json.Unmarshal([]byte(res.Stdout), &info); err != nil {
		return nil, fmt.Errorf("parsing yt-dlp output: %w", err)
	}
	return &info, nil
}

// pickStreamURL applies the url selection policy to an extracted info dump.
func pickStreamURL(info *ytdlpInfo) string {
	// Playlist: take the first entry's direct URL, else its page URL.
	if len(info.Entries) > 0 {
		first := info.Entries[0]
		if first.URL != "" {
			return first.URL
		}
		return first.WebpageURL
	}

	if info.URL != "" {
		return info.URL
	}

	// Formats are ordered lowest to highest priority; scan in reverse for
	// the first one exposing a direct URL.
	for i := len(info.Formats) - 1; i >= 0; i-- {
		if info.Formats[i].URL != "" {
			log.Printf("ytdlp: using format %s (%s)", info.Formats[i].FormatID, info.Formats[i].Ext)
			return info.Formats[i].URL
		}
	}

	// Adaptive streaming manifest as the last fallback.
	return info.ManifestURL
}
