// Package cast delivers resolved stream URLs to a playback device on the
// local network.
package cast

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vishen/go-chromecast/application"
	castdns "github.com/vishen/go-chromecast/dns"
)

const defaultPort = 8009

// Sink is a playback target for resolved stream URLs. The player depends on
// this interface so tests can substitute a fake device.
type Sink interface {
	Connect() error
	Play(ctx context.Context, streamURL, contentType string) error
	Stop() error
	Close() error
}

// Chromecast casts to a Google Cast device over the local network.
type Chromecast struct {
	addr string
	port int
	app  *application.Application
}

var _ Sink = (*Chromecast)(nil)

// NewChromecast creates a sink for the device at addr. The connection is
// established by Connect, not here.
func NewChromecast(addr string) *Chromecast {
	return &Chromecast{addr: addr, port: defaultPort}
}

// Connect establishes the cast session. Calling Connect on an already
// connected sink replaces the session.
func (c *Chromecast) Connect() error {
	if c.app != nil {
		c.app.Close(false)
		c.app = nil
	}

	app := application.NewApplication(
		application.WithDebug(false),
		application.WithCacheDisabled(true),
	)
	if err := app.Start(c.addr, c.port); err != nil {
		return fmt.Errorf("connecting to cast device %s: %w", c.addr, err)
	}
	c.app = app
	return nil
}

// Play loads the given URL on the device. The device fetches the stream
// itself, so the URL must be reachable from the device's network.
func (c *Chromecast) Play(ctx context.Context, streamURL, contentType string) error {
	if c.app == nil {
		if err := c.Connect(); err != nil {
			return err
		}
	}
	if err := c.app.Load(streamURL, 0, contentType, false, true, true); err != nil {
		return fmt.Errorf("loading media on cast device: %w", err)
	}
	return nil
}

// Stop halts playback but keeps the session.
func (c *Chromecast) Stop() error {
	if c.app == nil {
		return nil
	}
	if err := c.app.Stop(); err != nil {
		return fmt.Errorf("stopping cast playback: %w", err)
	}
	return nil
}

// Close tears down the cast session. Safe to call repeatedly.
func (c *Chromecast) Close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close(false)
	c.app = nil
	if err != nil {
		return fmt.Errorf("closing cast session: %w", err)
	}
	return nil
}

// Discover finds the address of a cast device by its friendly name via mDNS.
// An empty name matches the first device found.
func Discover(ctx context.Context, name string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries, err := castdns.DiscoverCastDNSEntries(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("starting cast discovery: %w", err)
	}

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return "", fmt.Errorf("no cast device named %q found", name)
			}
			if name == "" || strings.EqualFold(entry.DeviceName, name) {
				return entry.AddrV4.String(), nil
			}
		case <-ctx.Done():
			return "", fmt.Errorf("no cast device named %q found before timeout", name)
		}
	}
}
