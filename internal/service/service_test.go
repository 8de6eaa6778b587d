package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"streamcast/internal/extract"
	"streamcast/internal/media"
	"streamcast/internal/player"
	"streamcast/internal/subsonic"
)

type fakeSink struct {
	played []string
	types  []string
	stops  int
}

func (s *fakeSink) Connect() error { return nil }
func (s *fakeSink) Play(ctx context.Context, streamURL, contentType string) error {
	s.played = append(s.played, streamURL)
	s.types = append(s.types, contentType)
	return nil
}
func (s *fakeSink) Stop() error  { s.stops++; return nil }
func (s *fakeSink) Close() error { return nil }

type fakeLibrary struct {
	songs []media.Song
}

func (l *fakeLibrary) Genres(ctx context.Context) ([]media.Genre, error) {
	return []media.Genre{{Name: "Rock", SongCount: 12}}, nil
}
func (l *fakeLibrary) Playlists(ctx context.Context) ([]media.Playlist, error) {
	return []media.Playlist{{ID: "pl1", Name: "Morning"}}, nil
}
func (l *fakeLibrary) Song(ctx context.Context, songID string) (media.Song, error) {
	for _, s := range l.songs {
		if s.ID == songID {
			return s, nil
		}
	}
	return media.Song{}, errors.New("song not found")
}

func (l *fakeLibrary) SongsByGenre(ctx context.Context, genre string, count, offset int) ([]media.Song, error) {
	return l.songs, nil
}
func (l *fakeLibrary) RandomSongs(ctx context.Context, size int, genre string) ([]media.Song, error) {
	return l.songs, nil
}
func (l *fakeLibrary) PlaylistSongs(ctx context.Context, playlistID string) ([]media.Song, error) {
	return l.songs, nil
}
func (l *fakeLibrary) AlbumSongs(ctx context.Context, albumID string) ([]media.Song, error) {
	return l.songs, nil
}
func (l *fakeLibrary) Search(ctx context.Context, query string) (*subsonic.SearchResults, error) {
	return &subsonic.SearchResults{Songs: l.songs}, nil
}
func (l *fakeLibrary) StreamURL(songID, format string) string {
	return "https://music.example.com/rest/stream?id=" + songID
}

type fakeBrowser struct {
	calls []string
	err   error
}

func (b *fakeBrowser) record(call string) error {
	b.calls = append(b.calls, call)
	return b.err
}

func (b *fakeBrowser) Navigate(ctx context.Context, url string) error {
	return b.record("navigate " + url)
}
func (b *fakeBrowser) ClickElement(ctx context.Context, selector string, timeout time.Duration) error {
	return b.record(fmt.Sprintf("click %s %s", selector, timeout))
}
func (b *fakeBrowser) WaitForElement(ctx context.Context, selector string, timeout time.Duration) error {
	return b.record(fmt.Sprintf("wait %s %s", selector, timeout))
}
func (b *fakeBrowser) ScrollPage(ctx context.Context, direction string, amount int) error {
	return b.record(fmt.Sprintf("scroll %s %d", direction, amount))
}
func (b *fakeBrowser) ExecuteScript(ctx context.Context, script string) (json.RawMessage, error) {
	return json.RawMessage(`42`), b.record("script")
}
func (b *fakeBrowser) PageSource(ctx context.Context) (string, error) {
	return "<html></html>", b.record("source")
}
func (b *fakeBrowser) GetElements(ctx context.Context, selector string) ([]media.ElementInfo, error) {
	return []media.ElementInfo{{Tag: "video", Src: "/ep1.mp4"}}, b.record("elements " + selector)
}
func (b *fakeBrowser) TakeScreenshot(ctx context.Context, path string) error {
	return b.record("screenshot " + path)
}

func newTestService(sink *fakeSink, lib player.MusicLibrary, browser browserDriver) *Service {
	return New(player.New(extract.MethodStatic, sink, lib), browser)
}

func TestDispatchUnknownCommand(t *testing.T) {
	s := newTestService(&fakeSink{}, nil, &fakeBrowser{})
	if _, err := s.Dispatch(context.Background(), "self_destruct", nil); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestCommandsListsAllRegistered(t *testing.T) {
	s := newTestService(&fakeSink{}, nil, &fakeBrowser{})
	names := s.Commands()
	want := []string{
		"click_element", "execute_script", "get_elements", "get_genres",
		"get_page_source", "get_playlists", "navigate_url", "play_genre",
		"play_playlist", "play_random", "play_song", "play_stream",
		"queue_next", "queue_previous", "scroll_page", "search_music",
		"stop_stream", "take_screenshot", "wait_for_element",
	}
	if len(names) != len(want) {
		t.Fatalf("got %d commands, want %d: %v", len(names), len(want), names)
	}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("commands[%d] = %q, want %q", i, names[i], name)
		}
	}
}

func TestPlayStreamCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><video src="https://cdn.example.com/ep1.mp4"></video></body></html>`)
	}))
	defer srv.Close()

	sink := &fakeSink{}
	s := newTestService(sink, nil, &fakeBrowser{})

	result, err := s.Dispatch(context.Background(), "play_stream", Args{"url": srv.URL})
	if err != nil {
		t.Fatalf("play_stream: %v", err)
	}
	if len(sink.played) != 1 || sink.played[0] != "https://cdn.example.com/ep1.mp4" {
		t.Fatalf("sink played %v", sink.played)
	}
	m, ok := result.(map[string]any)
	if !ok || m["state"] != "playing" {
		t.Errorf("result = %v, want state playing", result)
	}
}

func TestPlayStreamRequiresURL(t *testing.T) {
	s := newTestService(&fakeSink{}, nil, &fakeBrowser{})
	if _, err := s.Dispatch(context.Background(), "play_stream", Args{}); err == nil {
		t.Fatal("expected error for missing url argument")
	}
}

func TestStopStreamCommand(t *testing.T) {
	sink := &fakeSink{}
	s := newTestService(sink, nil, &fakeBrowser{})
	if _, err := s.Dispatch(context.Background(), "stop_stream", nil); err != nil {
		t.Fatalf("stop_stream: %v", err)
	}
	if sink.stops != 1 {
		t.Errorf("stops = %d, want 1", sink.stops)
	}
}

func TestBrowserCommands(t *testing.T) {
	tests := []struct {
		command  string
		args     Args
		wantCall string
	}{
		{"navigate_url", Args{"url": "https://example.com"}, "navigate https://example.com"},
		{"click_element", Args{"selector": ".play", "timeout": 5}, "click .play 5s"},
		{"click_element", Args{"selector": ".play"}, "click .play 10s"},
		{"wait_for_element", Args{"selector": "video"}, "wait video 10s"},
		{"scroll_page", Args{"direction": "up", "amount": 200}, "scroll up 200"},
		{"scroll_page", Args{}, "scroll down 500"},
		{"get_page_source", nil, "source"},
		{"take_screenshot", Args{"path": "/tmp/page.png"}, "screenshot /tmp/page.png"},
	}
	for _, tt := range tests {
		t.Run(tt.wantCall, func(t *testing.T) {
			browser := &fakeBrowser{}
			s := newTestService(&fakeSink{}, nil, browser)
			if _, err := s.Dispatch(context.Background(), tt.command, tt.args); err != nil {
				t.Fatalf("%s: %v", tt.command, err)
			}
			if len(browser.calls) != 1 || browser.calls[0] != tt.wantCall {
				t.Errorf("calls = %v, want [%q]", browser.calls, tt.wantCall)
			}
		})
	}
}

func TestGetElementsReturnsInfo(t *testing.T) {
	s := newTestService(&fakeSink{}, nil, &fakeBrowser{})
	result, err := s.Dispatch(context.Background(), "get_elements", Args{"selector": "video"})
	if err != nil {
		t.Fatalf("get_elements: %v", err)
	}
	m := result.(map[string]any)
	if m["count"] != 1 {
		t.Errorf("count = %v, want 1", m["count"])
	}
	elements := m["elements"].([]media.ElementInfo)
	if elements[0].Tag != "video" {
		t.Errorf("elements = %v", elements)
	}
}

func TestExecuteScriptReturnsResult(t *testing.T) {
	s := newTestService(&fakeSink{}, nil, &fakeBrowser{})
	result, err := s.Dispatch(context.Background(), "execute_script", Args{"script": "1+41"})
	if err != nil {
		t.Fatalf("execute_script: %v", err)
	}
	m := result.(map[string]any)
	if string(m["result"].(json.RawMessage)) != "42" {
		t.Errorf("result = %s, want 42", m["result"])
	}
}

func TestBrowserCommandPropagatesError(t *testing.T) {
	browser := &fakeBrowser{err: errors.New("session gone")}
	s := newTestService(&fakeSink{}, nil, browser)
	if _, err := s.Dispatch(context.Background(), "navigate_url", Args{"url": "https://example.com"}); err == nil {
		t.Fatal("expected driver error to propagate")
	}
}

func TestMusicCommands(t *testing.T) {
	lib := &fakeLibrary{songs: []media.Song{
		{ID: "s1", Title: "One"},
		{ID: "s2", Title: "Two"},
	}}
	sink := &fakeSink{}
	s := newTestService(sink, lib, &fakeBrowser{})

	result, err := s.Dispatch(context.Background(), "play_genre", Args{"genre": "Rock", "count": 10})
	if err != nil {
		t.Fatalf("play_genre: %v", err)
	}
	m := result.(map[string]any)
	if m["state"] != "playing" {
		t.Errorf("state = %v, want playing", m["state"])
	}
	song, ok := m["song"].(media.Song)
	if !ok || song.ID != "s1" {
		t.Errorf("song = %v, want s1", m["song"])
	}

	if _, err := s.Dispatch(context.Background(), "queue_next", nil); err != nil {
		t.Fatalf("queue_next: %v", err)
	}
	if got := sink.played[len(sink.played)-1]; got != "https://music.example.com/rest/stream?id=s2" {
		t.Errorf("queue_next played %q", got)
	}

	if _, err := s.Dispatch(context.Background(), "queue_previous", nil); err != nil {
		t.Fatalf("queue_previous: %v", err)
	}
	if got := sink.played[len(sink.played)-1]; got != "https://music.example.com/rest/stream?id=s1" {
		t.Errorf("queue_previous played %q", got)
	}
}

func TestPlaySongCommand(t *testing.T) {
	lib := &fakeLibrary{songs: []media.Song{{ID: "s7", Title: "So What"}}}
	sink := &fakeSink{}
	s := newTestService(sink, lib, &fakeBrowser{})

	result, err := s.Dispatch(context.Background(), "play_song", Args{"song_id": "s7"})
	if err != nil {
		t.Fatalf("play_song: %v", err)
	}
	if len(sink.played) != 1 || sink.played[0] != "https://music.example.com/rest/stream?id=s7" {
		t.Fatalf("sink played %v", sink.played)
	}
	m := result.(map[string]any)
	song, ok := m["song"].(media.Song)
	if !ok || song.Title != "So What" {
		t.Errorf("song = %v, want So What", m["song"])
	}
}

func TestPlaySongRequiresID(t *testing.T) {
	s := newTestService(&fakeSink{}, &fakeLibrary{}, &fakeBrowser{})
	if _, err := s.Dispatch(context.Background(), "play_song", Args{}); err == nil {
		t.Fatal("expected error for missing song_id argument")
	}
}

func TestMusicListingCommands(t *testing.T) {
	s := newTestService(&fakeSink{}, &fakeLibrary{}, &fakeBrowser{})

	result, err := s.Dispatch(context.Background(), "get_genres", nil)
	if err != nil {
		t.Fatalf("get_genres: %v", err)
	}
	genres := result.(map[string]any)["genres"].([]media.Genre)
	if len(genres) != 1 || genres[0].Name != "Rock" {
		t.Errorf("genres = %v", genres)
	}

	result, err = s.Dispatch(context.Background(), "get_playlists", nil)
	if err != nil {
		t.Fatalf("get_playlists: %v", err)
	}
	playlists := result.(map[string]any)["playlists"].([]media.Playlist)
	if len(playlists) != 1 || playlists[0].Name != "Morning" {
		t.Errorf("playlists = %v", playlists)
	}
}

func TestSearchMusicCommand(t *testing.T) {
	lib := &fakeLibrary{songs: []media.Song{{ID: "s1", Title: "So What"}}}
	s := newTestService(&fakeSink{}, lib, &fakeBrowser{})

	result, err := s.Dispatch(context.Background(), "search_music", Args{"query": "miles"})
	if err != nil {
		t.Fatalf("search_music: %v", err)
	}
	res, ok := result.(*subsonic.SearchResults)
	if !ok || len(res.Songs) != 1 {
		t.Fatalf("unexpected result %v", result)
	}
}

func TestArgsOptStrings(t *testing.T) {
	args := Args{
		"json_list":  []any{"a", "b", 3, ""},
		"typed_list": []string{"x"},
		"scalar":     "not a list",
	}
	if got := args.OptStrings("json_list"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("json_list = %v", got)
	}
	if got := args.OptStrings("typed_list"); len(got) != 1 || got[0] != "x" {
		t.Errorf("typed_list = %v", got)
	}
	if got := args.OptStrings("scalar"); got != nil {
		t.Errorf("scalar = %v, want nil", got)
	}
	if got := args.OptStrings("absent"); got != nil {
		t.Errorf("absent = %v, want nil", got)
	}
}

func TestPlayGenreRequiresGenre(t *testing.T) {
	s := newTestService(&fakeSink{}, &fakeLibrary{}, &fakeBrowser{})
	if _, err := s.Dispatch(context.Background(), "play_genre", Args{}); err == nil {
		t.Fatal("expected error for missing genre argument")
	}
}
