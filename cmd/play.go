package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"streamcast/internal/media"
	"streamcast/internal/player"
)

var playCmd = &cobra.Command{
	Use:   "play [url]",
	Short: "Resolve a stream page and cast it to the configured device",
	Long: `Play resolves the given stream page (or the configured stream_url when
no argument is given) and loads the result on the cast device.`,
	Args: cobra.MaximumNArgs(1),
	RunE: playRun,
}

func playRun(cmd *cobra.Command, args []string) error {
	pageURL := cfg.StreamURL
	if len(args) > 0 {
		pageURL = args[0]
	}
	if pageURL == "" {
		return fmt.Errorf("no stream URL given (pass one or set stream_url in the config)")
	}

	sink, err := buildSink(cmd.Context())
	if err != nil {
		return err
	}
	defer sink.Close()

	p := player.New(cfg.ExtractionMethod, sink, musicClient())
	target := media.NewStreamTarget(pageURL, cfg.PopupSelectors, cfg.VideoSelectors)

	if err := p.PlayStream(cmd.Context(), target); err != nil {
		return err
	}
	if streamURL, ok := p.StreamURL(); ok {
		debugf("casting %s", streamURL)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Playback started")
	return nil
}
