package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"streamcast/internal/browser"
	"streamcast/internal/cast"
	"streamcast/internal/player"
	"streamcast/internal/service"
)

var commandCmd = &cobra.Command{
	Use:   "cmd <name> [json-args]",
	Short: "Dispatch a named service command",
	Long: `Cmd runs one command from the service dispatch table with JSON
arguments, e.g.:

  streamcast cmd play_stream '{"url": "https://example.com/watch/123"}'
  streamcast cmd click_element '{"selector": ".play-button", "timeout": 5}'
  streamcast cmd play_genre '{"genre": "Jazz", "shuffle": true}'

Run "streamcast cmd list" to see all command names.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: commandRun,
}

func init() {
	rootCmd.AddCommand(commandCmd)
}

// playbackCommands are the commands that load media on the cast device and
// therefore need a connected sink.
var playbackCommands = map[string]bool{
	"play_stream":    true,
	"stop_stream":    true,
	"play_song":      true,
	"play_genre":     true,
	"play_random":    true,
	"play_playlist":  true,
	"queue_next":     true,
	"queue_previous": true,
}

// errSink stands in for the cast sink on commands that never play anything.
type errSink struct{}

func (errSink) Connect() error { return fmt.Errorf("no cast device configured") }

func (errSink) Play(context.Context, string, string) error {
	return fmt.Errorf("no cast device configured")
}

func (errSink) Stop() error  { return fmt.Errorf("no cast device configured") }
func (errSink) Close() error { return nil }

func commandRun(cmd *cobra.Command, args []string) error {
	name := args[0]

	var sink cast.Sink = errSink{}
	if playbackCommands[name] {
		var err error
		sink, err = buildSink(cmd.Context())
		if err != nil {
			return err
		}
	}
	defer sink.Close()

	driver := browser.NewDriver()
	defer driver.Close()

	p := player.New(cfg.ExtractionMethod, sink, musicClient())
	svc := service.New(p, driver)

	if name == "list" {
		return printJSON(svc.Commands())
	}

	var cmdArgs service.Args
	if len(args) > 1 {
		if err := json.Unmarshal([]byte(args[1]), &cmdArgs); err != nil {
			return fmt.Errorf("parsing command arguments: %w", err)
		}
	}

	debugf("dispatching %s: %v", name, cmdArgs)
	result, err := svc.Dispatch(cmd.Context(), name, cmdArgs)
	if err != nil {
		return err
	}
	if result == nil {
		fmt.Fprintln(os.Stderr, "ok")
		return nil
	}
	return printJSON(result)
}
