// Package config handles TOML-based configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"streamcast/internal/extract"
)

// SubsonicConfig holds the music server connection settings.
type SubsonicConfig struct {
	URL      string `toml:"url"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// CastConfig holds the playback device settings. DeviceAddr addresses the
// device directly; DeviceName selects it by mDNS friendly name instead.
type CastConfig struct {
	DeviceAddr string `toml:"device_addr"`
	DeviceName string `toml:"device_name"`
}

// Config holds all application configuration.
type Config struct {
	StreamURL        string         `toml:"stream_url"`
	ExtractionMethod string         `toml:"extraction_method"`
	PopupSelectors   []string       `toml:"popup_selectors"`
	VideoSelectors   []string       `toml:"video_selectors"`
	Subsonic         SubsonicConfig `toml:"subsonic"`
	Cast             CastConfig     `toml:"cast"`
	Debug            bool           `toml:"debug"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		ExtractionMethod: extract.MethodYtdlp,
		Debug:            false,
	}
}

// configDir returns the XDG-compliant config directory.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "streamcast"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "streamcast"), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file and merges with defaults.
// If the config file doesn't exist, defaults are returned.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks config values are within acceptable bounds. Presence of a
// stream URL or music server is checked by the commands that need them, not
// here, so a partial config stays loadable.
func (c *Config) Validate() error {
	validMethods := map[string]bool{}
	for _, m := range extract.Methods {
		validMethods[m] = true
	}
	if !validMethods[c.ExtractionMethod] {
		return fmt.Errorf("unsupported extraction method %q (valid: ytdlp, browser, static)", c.ExtractionMethod)
	}

	if c.StreamURL != "" {
		if err := checkHTTPURL(c.StreamURL); err != nil {
			return fmt.Errorf("stream_url: %w", err)
		}
	}
	if c.Subsonic.URL != "" {
		if err := checkHTTPURL(c.Subsonic.URL); err != nil {
			return fmt.Errorf("subsonic url: %w", err)
		}
	}

	return nil
}

// HasMusicServer reports whether a complete Subsonic configuration is present.
func (c *Config) HasMusicServer() bool {
	return c.Subsonic.URL != "" && c.Subsonic.Username != "" && c.Subsonic.Password != ""
}

func checkHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", raw)
	}
	return nil
}
