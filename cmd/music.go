package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"streamcast/internal/player"
	"streamcast/internal/queue"
	"streamcast/internal/subsonic"
)

var (
	flagShuffle string
	flagRepeat  string
	flagCount   int
)

var musicCmd = &cobra.Command{
	Use:   "music",
	Short: "Browse and play music from the configured Subsonic server",
}

var musicGenresCmd = &cobra.Command{
	Use:   "genres",
	Short: "List genres on the music server",
	Args:  cobra.NoArgs,
	RunE:  musicGenresRun,
}

var musicArtistsCmd = &cobra.Command{
	Use:   "artists",
	Short: "List artists on the music server",
	Args:  cobra.NoArgs,
	RunE:  musicArtistsRun,
}

var musicAlbumsCmd = &cobra.Command{
	Use:   "albums [artist-id]",
	Short: "List albums, optionally for one artist",
	Args:  cobra.MaximumNArgs(1),
	RunE:  musicAlbumsRun,
}

var musicPlaylistsCmd = &cobra.Command{
	Use:   "playlists",
	Short: "List playlists on the music server",
	Args:  cobra.NoArgs,
	RunE:  musicPlaylistsRun,
}

var musicSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search artists, albums and songs",
	Args:  cobra.ExactArgs(1),
	RunE:  musicSearchRun,
}

var musicPlayCmd = &cobra.Command{
	Use:   "play (genre <name> | random | playlist <id> | album <id> | song <id>)",
	Short: "Queue songs and cast them to the configured device",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  musicPlayRun,
}

func init() {
	musicPlayCmd.Flags().StringVar(&flagShuffle, "shuffle", "", "Shuffle the queue: on | off")
	musicPlayCmd.Flags().StringVar(&flagRepeat, "repeat", "", "Repeat mode: off | all | one")
	musicPlayCmd.Flags().IntVar(&flagCount, "count", 50, "Number of songs to queue")

	musicCmd.AddCommand(musicGenresCmd)
	musicCmd.AddCommand(musicArtistsCmd)
	musicCmd.AddCommand(musicAlbumsCmd)
	musicCmd.AddCommand(musicPlaylistsCmd)
	musicCmd.AddCommand(musicSearchCmd)
	musicCmd.AddCommand(musicPlayCmd)
}

// subsonicClient returns the configured client or an error suitable for
// music commands.
func subsonicClient() (*subsonic.Client, error) {
	if !cfg.HasMusicServer() {
		return nil, fmt.Errorf("no music server configured (set the [subsonic] section in the config)")
	}
	return subsonic.NewClient(cfg.Subsonic.URL, cfg.Subsonic.Username, cfg.Subsonic.Password), nil
}

func musicGenresRun(cmd *cobra.Command, args []string) error {
	client, err := subsonicClient()
	if err != nil {
		return err
	}
	defer client.Close()

	genres, err := client.Genres(cmd.Context())
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(genres)
	}
	for _, g := range genres {
		fmt.Printf("%s (%d songs, %d albums)\n", g.Name, g.SongCount, g.AlbumCount)
	}
	return nil
}

func musicArtistsRun(cmd *cobra.Command, args []string) error {
	client, err := subsonicClient()
	if err != nil {
		return err
	}
	defer client.Close()

	artists, err := client.Artists(cmd.Context())
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(artists)
	}
	for _, a := range artists {
		fmt.Printf("%s\t%s (%d albums)\n", a.ID, a.Name, a.AlbumCount)
	}
	return nil
}

func musicAlbumsRun(cmd *cobra.Command, args []string) error {
	client, err := subsonicClient()
	if err != nil {
		return err
	}
	defer client.Close()

	artistID := ""
	if len(args) > 0 {
		artistID = args[0]
	}
	albums, err := client.Albums(cmd.Context(), artistID)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(albums)
	}
	for _, al := range albums {
		fmt.Printf("%s\t%s - %s (%d songs)\n", al.ID, al.Name, al.Artist, al.SongCount)
	}
	return nil
}

func musicPlaylistsRun(cmd *cobra.Command, args []string) error {
	client, err := subsonicClient()
	if err != nil {
		return err
	}
	defer client.Close()

	playlists, err := client.Playlists(cmd.Context())
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(playlists)
	}
	for _, pl := range playlists {
		fmt.Printf("%s\t%s (%d songs)\n", pl.ID, pl.Name, pl.SongCount)
	}
	return nil
}

func musicSearchRun(cmd *cobra.Command, args []string) error {
	client, err := subsonicClient()
	if err != nil {
		return err
	}
	defer client.Close()

	results, err := client.Search(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(results)
	}
	for _, a := range results.Artists {
		fmt.Printf("artist\t%s\t%s\n", a.ID, a.Name)
	}
	for _, al := range results.Albums {
		fmt.Printf("album\t%s\t%s - %s\n", al.ID, al.Name, al.Artist)
	}
	for _, s := range results.Songs {
		fmt.Printf("song\t%s\t%s - %s\n", s.ID, s.Title, s.Artist)
	}
	return nil
}

func musicPlayRun(cmd *cobra.Command, args []string) error {
	library := musicClient()
	if library == nil {
		return fmt.Errorf("no music server configured (set the [subsonic] section in the config)")
	}

	sink, err := buildSink(cmd.Context())
	if err != nil {
		return err
	}
	defer sink.Close()

	p := player.New(cfg.ExtractionMethod, sink, library)
	if flagRepeat != "" {
		p.SetRepeat(queue.RepeatMode(flagRepeat))
	}
	shuffle := flagShuffle == "on"

	if err := startMusic(cmd.Context(), p, args, shuffle); err != nil {
		return err
	}

	if song, ok := p.NowPlaying(); ok {
		fmt.Printf("Playing: %s - %s\n", song.Title, song.Artist)
	}
	return nil
}

func startMusic(ctx context.Context, p *player.Player, args []string, shuffle bool) error {
	switch args[0] {
	case "genre":
		if len(args) < 2 {
			return fmt.Errorf("genre name required")
		}
		return p.PlayGenre(ctx, args[1], flagCount, shuffle)
	case "random":
		genre := ""
		if len(args) > 1 {
			genre = args[1]
		}
		return p.PlayRandom(ctx, flagCount, genre)
	case "playlist":
		if len(args) < 2 {
			return fmt.Errorf("playlist id required")
		}
		return p.PlayPlaylist(ctx, args[1], shuffle)
	case "album":
		if len(args) < 2 {
			return fmt.Errorf("album id required")
		}
		return p.PlayAlbum(ctx, args[1], shuffle)
	case "song":
		if len(args) < 2 {
			return fmt.Errorf("song id required")
		}
		return p.PlaySong(ctx, args[1])
	default:
		return fmt.Errorf("unknown source %q (valid: genre, random, playlist, album, song)", args[0])
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
