// Package browser provides an async-safe facade over a headless Chrome
// session. Every primitive is executed on the driver's single worker
// goroutine, so the calling goroutine is never blocked by the underlying
// synchronous automation calls and operations on one session are strictly
// serialized. Callers must still issue operations sequentially; the driver
// performs no queuing beyond the worker hand-off.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"streamcast/internal/httputil"
	"streamcast/internal/media"
)

// Settle intervals inserted after interactions so asynchronous page behavior
// can complete before inspection.
const (
	navigateSettle = 2 * time.Second
	clickSettle    = 1 * time.Second
)

// ErrUnavailable is returned by every operation when no Chrome or Chromium
// binary could be found at construction time.
var ErrUnavailable = errors.New("browser automation unavailable: no chrome binary found")

// ErrNoSession is returned by operations that require a live session when
// none has been created yet.
var ErrNoSession = errors.New("browser session not initialized")

// chromeCandidates are binary names probed in PATH, in order.
var chromeCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
	"headless-shell",
}

// findChrome locates a Chrome binary, honoring CHROME_PATH first.
func findChrome() string {
	if p := os.Getenv("CHROME_PATH"); p != "" {
		return p
	}
	for _, name := range chromeCandidates {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}

type job struct {
	fn   func()
	done chan struct{}
}

// Driver owns at most one live headless browser session. The session is
// created lazily on first Navigate and destroyed explicitly by Close; it is
// exclusively owned by the extractor that created the driver and must not be
// shared across concurrent extraction attempts.
type Driver struct {
	execPath string

	mu      sync.Mutex // guards worker lifecycle only, not operations
	jobs    chan job
	running bool

	// Worker-owned state; touched only from the worker goroutine.
	allocCancel context.CancelFunc
	sessCancel  context.CancelFunc
	sessCtx     context.Context
	currentURL  string
}

// NewDriver probes for the automation capability once and returns a driver.
// A missing Chrome binary does not fail construction; every subsequent
// operation short-circuits with ErrUnavailable instead.
func NewDriver() *Driver {
	d := &Driver{execPath: findChrome()}
	if d.execPath == "" {
		log.Printf("browser: no chrome binary found; automation disabled")
	}
	return d
}

// Available reports whether the automation capability was found.
func (d *Driver) Available() bool {
	return d.execPath != ""
}

// do runs fn on the worker goroutine and waits for completion or caller
// cancellation. On cancellation the job still runs to completion on the
// worker; only the wait is abandoned.
func (d *Driver) do(ctx context.Context, fn func()) error {
	if d.execPath == "" {
		return ErrUnavailable
	}

	d.mu.Lock()
	if !d.running {
		d.jobs = make(chan job)
		d.running = true
		go d.work(d.jobs)
	}
	jobs := d.jobs
	d.mu.Unlock()

	j := job{fn: fn, done: make(chan struct{})}
	select {
	case jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Driver) work(jobs <-chan job) {
	for j := range jobs {
		j.fn()
		close(j.done)
	}
}

// ensureSession creates the browser process if absent. Worker goroutine only.
func (d *Driver) ensureSession() error {
	if d.sessCtx != nil {
		return nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(d.execPath),
		chromedp.Flag("headless", true),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(httputil.BrowserUserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	sessCtx, sessCancel := chromedp.NewContext(allocCtx)

	// Run with no actions starts the browser process eagerly so that
	// process-creation failures surface here rather than mid-operation.
	if err := chromedp.Run(sessCtx); err != nil {
		sessCancel()
		allocCancel()
		return fmt.Errorf("starting browser: %w", err)
	}

	d.allocCancel = allocCancel
	d.sessCancel = sessCancel
	d.sessCtx = sessCtx
	log.Printf("browser: session initialized (%s)", d.execPath)
	return nil
}

// Initialize eagerly creates the browser session. Navigate does this
// implicitly; Initialize exists for callers that want the capability check
// up front.
func (d *Driver) Initialize(ctx context.Context) error {
	var opErr error
	if err := d.do(ctx, func() { opErr = d.ensureSession() }); err != nil {
		return err
	}
	return opErr
}

// Navigate loads url in the session, auto-initializing if absent, then waits
// a fixed settle interval for the page to come to rest.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	var opErr error
	err := d.do(ctx, func() {
		if opErr = d.ensureSession(); opErr != nil {
			return
		}
		if opErr = chromedp.Run(d.sessCtx, chromedp.Navigate(url)); opErr != nil {
			opErr = fmt.Errorf("navigating to %s: %w", url, opErr)
			return
		}
		d.currentURL = url
		time.Sleep(navigateSettle)
	})
	if err != nil {
		return err
	}
	return opErr
}

// ClickElement waits up to timeout for the element matching selector to be
// clickable, clicks it, and waits a short settle interval.
func (d *Driver) ClickElement(ctx context.Context, selector string, timeout time.Duration) error {
	var opErr error
	err := d.do(ctx, func() {
		if d.sessCtx == nil {
			opErr = ErrNoSession
			return
		}
		tctx, cancel := context.WithTimeout(d.sessCtx, timeout)
		defer cancel()
		if opErr = chromedp.Run(tctx, chromedp.Click(selector, chromedp.ByQuery)); opErr != nil {
			opErr = fmt.Errorf("clicking %q: %w", selector, opErr)
			return
		}
		time.Sleep(clickSettle)
	})
	if err != nil {
		return err
	}
	return opErr
}

// WaitForElement waits up to timeout for an element matching selector to be
// present in the DOM.
func (d *Driver) WaitForElement(ctx context.Context, selector string, timeout time.Duration) error {
	var opErr error
	err := d.do(ctx, func() {
		if d.sessCtx == nil {
			opErr = ErrNoSession
			return
		}
		tctx, cancel := context.WithTimeout(d.sessCtx, timeout)
		defer cancel()
		if opErr = chromedp.Run(tctx, chromedp.WaitReady(selector, chromedp.ByQuery)); opErr != nil {
			opErr = fmt.Errorf("waiting for %q: %w", selector, opErr)
		}
	})
	if err != nil {
		return err
	}
	return opErr
}

// ScrollPage scrolls in the given direction (down, up, top, bottom) by
// amount pixels where applicable. Unrecognized directions execute no script
// and report success; this permissive no-op is intentional and relied upon
// by the command dispatcher.
func (d *Driver) ScrollPage(ctx context.Context, direction string, amount int) error {
	var script string
	switch strings.ToLower(direction) {
	case "down":
		script = fmt.Sprintf("window.scrollBy(0, %d)", amount)
	case "up":
		script = fmt.Sprintf("window.scrollBy(0, -%d)", amount)
	case "top":
		script = "window.scrollTo(0, 0)"
	case "bottom":
		script = "window.scrollTo(0, document.body.scrollHeight)"
	default:
		return nil
	}
	// scrollBy returns undefined; evaluate to a boolean so the result decodes.
	_, err := d.ExecuteScript(ctx, script+"; true")
	return err
}

// ExecuteScript runs script in page context and returns its JSON-encoded
// result value.
func (d *Driver) ExecuteScript(ctx context.Context, script string) (json.RawMessage, error) {
	var result json.RawMessage
	var opErr error
	err := d.do(ctx, func() {
		if d.sessCtx == nil {
			opErr = ErrNoSession
			return
		}
		if opErr = chromedp.Run(d.sessCtx, chromedp.Evaluate(script, &result)); opErr != nil {
			opErr = fmt.Errorf("executing script: %w", opErr)
		}
	})
	if err != nil {
		return nil, err
	}
	if opErr != nil {
		return nil, opErr
	}
	return result, nil
}

// PageSource returns the full rendered page source.
func (d *Driver) PageSource(ctx context.Context) (string, error) {
	var src string
	var opErr error
	err := d.do(ctx, func() {
		if d.sessCtx == nil {
			opErr = ErrNoSession
			return
		}
		if opErr = chromedp.Run(d.sessCtx, chromedp.OuterHTML("html", &src, chromedp.ByQuery)); opErr != nil {
			opErr = fmt.Errorf("reading page source: %w", opErr)
		}
	})
	if err != nil {
		return "", err
	}
	return src, opErr
}

// CurrentURL returns the session's current location. With no live session it
// falls back to the last URL passed to Navigate.
func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	var u string
	var opErr error
	err := d.do(ctx, func() {
		if d.sessCtx == nil {
			u = d.currentURL
			return
		}
		if opErr = chromedp.Run(d.sessCtx, chromedp.Location(&u)); opErr != nil {
			u = d.currentURL
			opErr = nil
		}
		d.currentURL = u
	})
	if err != nil {
		return "", err
	}
	return u, opErr
}

// elementsScript maps every element matching a selector to the record shape
// exposed by GetElements.
const elementsScript = `Array.from(document.querySelectorAll(%q)).map(el => ({
	text: el.textContent.trim(),
	tag: el.tagName.toLowerCase(),
	href: el.getAttribute('href') || '',
	src: el.getAttribute('src') || '',
	class: el.getAttribute('class') || '',
	id: el.getAttribute('id') || ''
}))`

// GetElements returns descriptive records for all elements matching selector.
func (d *Driver) GetElements(ctx context.Context, selector string) ([]media.ElementInfo, error) {
	raw, err := d.ExecuteScript(ctx, fmt.Sprintf(elementsScript, selector))
	if err != nil {
		return nil, err
	}

	var out []struct {
		Text  string `json:"text"`
		Tag   string `json:"tag"`
		Href  string `json:"href"`
		Src   string `json:"src"`
		Class string `json:"class"`
		ID    string `json:"id"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding elements for %q: %w", selector, err)
	}

	elements := make([]media.ElementInfo, len(out))
	for i, e := range out {
		elements[i] = media.ElementInfo{
			Text:  e.Text,
			Tag:   e.Tag,
			Href:  e.Href,
			Src:   e.Src,
			Class: e.Class,
			ID:    e.ID,
		}
	}
	return elements, nil
}

// TakeScreenshot captures the viewport to path. The file's base name is
// sanitized; the directory part is the caller's responsibility.
func (d *Driver) TakeScreenshot(ctx context.Context, path string) error {
	path = filepath.Join(filepath.Dir(path), httputil.SanitizeFilename(filepath.Base(path)))

	var buf []byte
	var opErr error
	err := d.do(ctx, func() {
		if d.sessCtx == nil {
			opErr = ErrNoSession
			return
		}
		if opErr = chromedp.Run(d.sessCtx, chromedp.CaptureScreenshot(&buf)); opErr != nil {
			opErr = fmt.Errorf("capturing screenshot: %w", opErr)
		}
	})
	if err != nil {
		return err
	}
	if opErr != nil {
		return opErr
	}
	return os.WriteFile(path, buf, 0o600)
}

// Close terminates the session and stops the worker. It is idempotent and
// always clears the internal handle, even when teardown itself errors; a
// later Navigate starts a fresh session.
func (d *Driver) Close() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	jobs := d.jobs
	d.running = false
	d.jobs = nil
	d.mu.Unlock()

	j := job{fn: func() {
		if d.sessCancel != nil {
			d.sessCancel()
		}
		if d.allocCancel != nil {
			d.allocCancel()
		}
		d.sessCtx = nil
		d.sessCancel = nil
		d.allocCancel = nil
		log.Printf("browser: session closed")
	}, done: make(chan struct{})}
	jobs <- j
	<-j.done
	close(jobs)
	return nil
}
