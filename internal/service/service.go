// Package service exposes the player and browser operations as named
// commands with validated arguments. Dispatch goes through an explicit
// table; there is no reflection and no string-to-method mapping.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"streamcast/internal/media"
	"streamcast/internal/player"
	"streamcast/internal/queue"
)

// Args carries a command's decoded arguments, typically from JSON.
type Args map[string]any

// String returns a required string argument.
func (a Args) String(key string) (string, error) {
	v, ok := a[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("argument %q must be a non-empty string", key)
	}
	return s, nil
}

// OptString returns an optional string argument, or def when absent.
func (a Args) OptString(key, def string) string {
	if s, ok := a[key].(string); ok && s != "" {
		return s
	}
	return def
}

// OptInt returns an optional integer argument, or def when absent. JSON
// decoding yields float64 for numbers, so both forms are accepted.
func (a Args) OptInt(key string, def int) int {
	switch v := a[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

// OptBool returns an optional boolean argument, or def when absent.
func (a Args) OptBool(key string, def bool) bool {
	if b, ok := a[key].(bool); ok {
		return b
	}
	return def
}

// OptStrings returns an optional list-of-strings argument; JSON arrays
// decode as []any, so both forms are accepted. Absent or malformed lists
// yield nil.
func (a Args) OptStrings(key string) []string {
	switch v := a[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// OptSeconds returns an optional duration argument given in seconds.
func (a Args) OptSeconds(key string, def time.Duration) time.Duration {
	if n := a.OptInt(key, -1); n >= 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

// Handler executes one command. The returned value is serialized for the
// caller; nil means the command has no payload beyond success.
type Handler func(ctx context.Context, args Args) (any, error)

// browserDriver is the slice of the automation driver the service commands
// need. *browser.Driver satisfies it.
type browserDriver interface {
	Navigate(ctx context.Context, url string) error
	ClickElement(ctx context.Context, selector string, timeout time.Duration) error
	WaitForElement(ctx context.Context, selector string, timeout time.Duration) error
	ScrollPage(ctx context.Context, direction string, amount int) error
	ExecuteScript(ctx context.Context, script string) (json.RawMessage, error)
	PageSource(ctx context.Context) (string, error)
	GetElements(ctx context.Context, selector string) ([]media.ElementInfo, error)
	TakeScreenshot(ctx context.Context, path string) error
}

// Service routes named commands to the player and the shared browser session.
type Service struct {
	player   *player.Player
	driver   browserDriver
	commands map[string]Handler
}

// New builds the service and registers the command table.
func New(p *player.Player, driver browserDriver) *Service {
	s := &Service{player: p, driver: driver}
	s.commands = map[string]Handler{
		"play_stream":      s.playStream,
		"stop_stream":      s.stopStream,
		"navigate_url":     s.navigateURL,
		"click_element":    s.clickElement,
		"scroll_page":      s.scrollPage,
		"execute_script":   s.executeScript,
		"wait_for_element": s.waitForElement,
		"get_page_source":  s.pageSource,
		"get_elements":     s.getElements,
		"take_screenshot":  s.takeScreenshot,
		"play_song":        s.playSong,
		"play_genre":       s.playGenre,
		"play_random":      s.playRandom,
		"play_playlist":    s.playPlaylist,
		"get_genres":       s.getGenres,
		"get_playlists":    s.getPlaylists,
		"search_music":     s.searchMusic,
		"queue_next":       s.queueNext,
		"queue_previous":   s.queuePrevious,
	}
	return s
}

// Commands lists the registered command names, sorted.
func (s *Service) Commands() []string {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs a named command. Unknown names are an error, not a panic.
func (s *Service) Dispatch(ctx context.Context, name string, args Args) (any, error) {
	handler, ok := s.commands[name]
	if !ok {
		return nil, fmt.Errorf("unknown command %q", name)
	}
	if args == nil {
		args = Args{}
	}
	return handler(ctx, args)
}

func (s *Service) playStream(ctx context.Context, args Args) (any, error) {
	rawURL, err := args.String("url")
	if err != nil {
		return nil, err
	}
	target := media.NewStreamTarget(rawURL, args.OptStrings("popup_selectors"), args.OptStrings("video_selectors"))
	if err := s.player.PlayStream(ctx, target); err != nil {
		return nil, err
	}
	return map[string]any{"state": string(s.player.State())}, nil
}

func (s *Service) stopStream(ctx context.Context, args Args) (any, error) {
	if err := s.player.Stop(); err != nil {
		return nil, err
	}
	return map[string]any{"state": string(s.player.State())}, nil
}

func (s *Service) navigateURL(ctx context.Context, args Args) (any, error) {
	rawURL, err := args.String("url")
	if err != nil {
		return nil, err
	}
	return nil, s.driver.Navigate(ctx, rawURL)
}

func (s *Service) clickElement(ctx context.Context, args Args) (any, error) {
	selector, err := args.String("selector")
	if err != nil {
		return nil, err
	}
	timeout := args.OptSeconds("timeout", 10*time.Second)
	return nil, s.driver.ClickElement(ctx, selector, timeout)
}

func (s *Service) scrollPage(ctx context.Context, args Args) (any, error) {
	direction := args.OptString("direction", "down")
	amount := args.OptInt("amount", 500)
	return nil, s.driver.ScrollPage(ctx, direction, amount)
}

func (s *Service) executeScript(ctx context.Context, args Args) (any, error) {
	script, err := args.String("script")
	if err != nil {
		return nil, err
	}
	result, err := s.driver.ExecuteScript(ctx, script)
	if err != nil {
		return nil, err
	}
	return map[string]any{"result": result}, nil
}

func (s *Service) waitForElement(ctx context.Context, args Args) (any, error) {
	selector, err := args.String("selector")
	if err != nil {
		return nil, err
	}
	timeout := args.OptSeconds("timeout", 10*time.Second)
	return nil, s.driver.WaitForElement(ctx, selector, timeout)
}

func (s *Service) pageSource(ctx context.Context, args Args) (any, error) {
	source, err := s.driver.PageSource(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"source": source}, nil
}

func (s *Service) getElements(ctx context.Context, args Args) (any, error) {
	selector, err := args.String("selector")
	if err != nil {
		return nil, err
	}
	elements, err := s.driver.GetElements(ctx, selector)
	if err != nil {
		return nil, err
	}
	return map[string]any{"elements": elements, "count": len(elements)}, nil
}

func (s *Service) takeScreenshot(ctx context.Context, args Args) (any, error) {
	path, err := args.String("path")
	if err != nil {
		return nil, err
	}
	if err := s.driver.TakeScreenshot(ctx, path); err != nil {
		return nil, err
	}
	return map[string]any{"path": path}, nil
}

func (s *Service) playGenre(ctx context.Context, args Args) (any, error) {
	genre, err := args.String("genre")
	if err != nil {
		return nil, err
	}
	count := args.OptInt("count", 50)
	shuffle := args.OptBool("shuffle", false)
	if mode := args.OptString("repeat", ""); mode != "" {
		s.player.SetRepeat(queue.RepeatMode(mode))
	}
	if err := s.player.PlayGenre(ctx, genre, count, shuffle); err != nil {
		return nil, err
	}
	return s.nowPlayingResult(), nil
}

func (s *Service) playRandom(ctx context.Context, args Args) (any, error) {
	size := args.OptInt("size", 20)
	genre := args.OptString("genre", "")
	if err := s.player.PlayRandom(ctx, size, genre); err != nil {
		return nil, err
	}
	return s.nowPlayingResult(), nil
}

func (s *Service) playPlaylist(ctx context.Context, args Args) (any, error) {
	playlistID, err := args.String("playlist_id")
	if err != nil {
		return nil, err
	}
	shuffle := args.OptBool("shuffle", false)
	if err := s.player.PlayPlaylist(ctx, playlistID, shuffle); err != nil {
		return nil, err
	}
	return s.nowPlayingResult(), nil
}

func (s *Service) playSong(ctx context.Context, args Args) (any, error) {
	songID, err := args.String("song_id")
	if err != nil {
		return nil, err
	}
	if err := s.player.PlaySong(ctx, songID); err != nil {
		return nil, err
	}
	return s.nowPlayingResult(), nil
}

func (s *Service) getGenres(ctx context.Context, args Args) (any, error) {
	genres, err := s.player.ListGenres(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"genres": genres}, nil
}

func (s *Service) getPlaylists(ctx context.Context, args Args) (any, error) {
	playlists, err := s.player.ListPlaylists(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"playlists": playlists}, nil
}

func (s *Service) searchMusic(ctx context.Context, args Args) (any, error) {
	query, err := args.String("query")
	if err != nil {
		return nil, err
	}
	results, err := s.player.SearchMusic(ctx, query)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) queueNext(ctx context.Context, args Args) (any, error) {
	if err := s.player.Next(ctx); err != nil {
		return nil, err
	}
	return s.nowPlayingResult(), nil
}

func (s *Service) queuePrevious(ctx context.Context, args Args) (any, error) {
	if err := s.player.Previous(ctx); err != nil {
		return nil, err
	}
	return s.nowPlayingResult(), nil
}

func (s *Service) nowPlayingResult() map[string]any {
	result := map[string]any{"state": string(s.player.State())}
	if song, ok := s.player.NowPlaying(); ok {
		result["song"] = song
	}
	return result
}
