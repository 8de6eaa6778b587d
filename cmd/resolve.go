package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"streamcast/internal/extract"
	"streamcast/internal/media"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <url>",
	Short: "Resolve a stream page into a direct media URL",
	Args:  cobra.ExactArgs(1),
	RunE:  resolveRun,
}

func resolveRun(cmd *cobra.Command, args []string) error {
	target := media.NewStreamTarget(args[0], cfg.PopupSelectors, cfg.VideoSelectors)
	debugf("resolving %s with method %s", target.URL, cfg.ExtractionMethod)

	pool := extract.NewPool(extract.DefaultPoolSize)
	ex, err := extract.New(cfg.ExtractionMethod, target, pool)
	if err != nil {
		return err
	}
	defer ex.Close()

	streamURL, ok := ex.Resolve(cmd.Context())
	if !ok {
		return fmt.Errorf("no stream URL found at %s with method %s", target.URL, cfg.ExtractionMethod)
	}

	if flagJSON {
		out := map[string]interface{}{
			"page_url":     target.URL,
			"stream_url":   streamURL,
			"content_type": media.DetectMIME(streamURL),
			"method":       cfg.ExtractionMethod,
		}
		if yt, ok := ex.(*extract.Ytdlp); ok {
			if info, infoOK := yt.VideoInfo(cmd.Context()); infoOK {
				out["title"] = info.Title
				out["duration"] = info.Duration
				out["live"] = info.IsLive
			}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Println(streamURL)
	return nil
}
