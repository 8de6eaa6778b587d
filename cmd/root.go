// Package cmd implements the CLI commands using Cobra.
package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"streamcast/internal/cast"
	"streamcast/internal/config"
	"streamcast/internal/player"
	"streamcast/internal/subsonic"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Global flags
var (
	flagMethod     string
	flagDevice     string
	flagDeviceName string
	flagJSON       bool
	flagDebug      bool
)

// cfg holds the loaded configuration (merged: defaults < config file < flags).
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "streamcast",
	Short: "Resolve stream pages and cast them to a playback device",
	Long: `Streamcast resolves streaming web pages into direct media URLs using
yt-dlp, a headless browser, or a static HTML scan, and casts the result to a
Google Cast device. It can also play music from a Subsonic-compatible server.`,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagMethod, "method", "m", "", "Extraction method: ytdlp | browser | static")
	rootCmd.PersistentFlags().StringVar(&flagDevice, "device", "", "Cast device IP address")
	rootCmd.PersistentFlags().StringVar(&flagDeviceName, "device-name", "", "Cast device friendly name (mDNS discovery)")
	rootCmd.PersistentFlags().BoolVarP(&flagJSON, "json", "j", false, "Output results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "x", false, "Debug logging to stderr")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(musicCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and merges configuration: defaults < config file < CLI flags.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// CLI flags override config file values
	if flagMethod != "" {
		cfg.ExtractionMethod = flagMethod
	}
	if flagDevice != "" {
		cfg.Cast.DeviceAddr = flagDevice
	}
	if flagDeviceName != "" {
		cfg.Cast.DeviceName = flagDeviceName
	}
	if flagDebug {
		cfg.Debug = true
	}

	// Re-validate after flag overrides
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.SetOutput(os.Stderr)
	if cfg.Debug {
		log.SetPrefix("[streamcast] ")
	} else {
		log.SetFlags(0)
	}

	return nil
}

// debugf logs a message if debug mode is enabled.
func debugf(format string, args ...interface{}) {
	if cfg != nil && cfg.Debug {
		log.Printf(format, args...)
	}
}

// buildSink resolves the configured cast device into a connected sink.
func buildSink(ctx context.Context) (cast.Sink, error) {
	addr := cfg.Cast.DeviceAddr
	if addr == "" {
		if cfg.Cast.DeviceName == "" {
			return nil, fmt.Errorf("no cast device configured (set cast.device_addr or use --device / --device-name)")
		}
		debugf("discovering cast device %q", cfg.Cast.DeviceName)
		var err error
		addr, err = cast.Discover(ctx, cfg.Cast.DeviceName, 10*time.Second)
		if err != nil {
			return nil, err
		}
		debugf("found device at %s", addr)
	}

	sink := cast.NewChromecast(addr)
	if err := sink.Connect(); err != nil {
		return nil, err
	}
	return sink, nil
}

// musicClient builds the Subsonic client, or nil when not configured.
func musicClient() player.MusicLibrary {
	if !cfg.HasMusicServer() {
		return nil
	}
	return subsonic.NewClient(cfg.Subsonic.URL, cfg.Subsonic.Username, cfg.Subsonic.Password)
}
