package extract

import (
	"context"
	"log"
	"time"

	"streamcast/internal/browser"
	"streamcast/internal/httputil"
	"streamcast/internal/media"
)

// Automated extractor timings.
const (
	bodyWaitTimeout  = 10 * time.Second
	popupClickWait   = 2 * time.Second
	playerSettleWait = 3 * time.Second
)

// automationDriver is the slice of the browser driver the automated
// extractor needs. Narrowed to an interface so extraction logic is testable
// without a Chrome process.
type automationDriver interface {
	Navigate(ctx context.Context, url string) error
	WaitForElement(ctx context.Context, selector string, timeout time.Duration) error
	ClickElement(ctx context.Context, selector string, timeout time.Duration) error
	GetElements(ctx context.Context, selector string) ([]media.ElementInfo, error)
	PageSource(ctx context.Context) (string, error)
	Close() error
}

// Automated resolves media URLs on pages that require script execution by
// driving a headless browser session. Each instance owns at most one session
// and must not be shared across concurrent extraction attempts.
type Automated struct {
	target media.StreamTarget
	driver automationDriver
	settle time.Duration
}

// NewAutomated creates an automated page extractor with its own browser
// session, created lazily on first navigation.
func NewAutomated(target media.StreamTarget) *Automated {
	return &Automated{
		target: target,
		driver: browser.NewDriver(),
		settle: playerSettleWait,
	}
}

// newAutomatedWithDriver exists for tests.
func newAutomatedWithDriver(target media.StreamTarget, drv automationDriver) *Automated {
	return &Automated{target: target, driver: drv}
}

// Resolve loads the page, dismisses configured popups, waits for dynamic
// players to settle, then probes the configured video selectors in order;
// the first selector yielding an element with a non-empty src wins. Failing
// that, the rendered page source is scanned for an HLS manifest URL. The
// browser session is terminated on every exit path.
func (a *Automated) Resolve(ctx context.Context) (string, bool) {
	defer func() {
		if err := a.driver.Close(); err != nil {
			log.Printf("automated: closing session: %v", err)
		}
	}()

	if err := a.driver.Navigate(ctx, a.target.URL); err != nil {
		log.Printf("automated: navigating to %s: %v", a.target.URL, err)
		return "", false
	}

	if err := a.driver.WaitForElement(ctx, "body", bodyWaitTimeout); err != nil {
		log.Printf("automated: page body never appeared on %s: %v", a.target.URL, err)
		return "", false
	}

	// Popup selectors are advisory dismiss attempts; absence is expected.
	for _, selector := range a.target.PopupSelectors {
		if err := a.driver.ClickElement(ctx, selector, popupClickWait); err != nil {
			continue
		}
		log.Printf("automated: dismissed popup %q", selector)
	}

	// Give dynamic players time to finish loading before inspection.
	select {
	case <-time.After(a.settle):
	case <-ctx.Done():
		return "", false
	}

	for _, selector := range a.target.VideoSelectors {
		elements, err := a.driver.GetElements(ctx, selector)
		if err != nil || len(elements) == 0 {
			continue
		}
		if src := elements[0].Src; src != "" {
			return httputil.ResolveURL(a.target.URL, src), true
		}
	}

	// Last resort: scan the rendered source for an HLS manifest URL.
	source, err := a.driver.PageSource(ctx)
	if err != nil {
		log.Printf("automated: reading page source: %v", err)
		return "", false
	}
	if m := m3u8Pattern.FindString(source); m != "" {
		return m, true
	}

	log.Printf("automated: no media reference found on %s", a.target.URL)
	return "", false
}

// Close terminates the browser session if Resolve has not already done so.
func (a *Automated) Close() error {
	return a.driver.Close()
}
