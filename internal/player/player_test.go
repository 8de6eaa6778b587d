package player

import (
	"context"
	"errors"
	"testing"

	"streamcast/internal/extract"
	"streamcast/internal/media"
	"streamcast/internal/queue"
	"streamcast/internal/subsonic"
)

type fakeSink struct {
	played    []string
	types     []string
	playErr   error
	stopCount int
	closed    bool
}

func (s *fakeSink) Connect() error { return nil }

func (s *fakeSink) Play(ctx context.Context, streamURL, contentType string) error {
	if s.playErr != nil {
		return s.playErr
	}
	s.played = append(s.played, streamURL)
	s.types = append(s.types, contentType)
	return nil
}

func (s *fakeSink) Stop() error {
	s.stopCount++
	return nil
}

func (s *fakeSink) Close() error {
	s.closed = true
	return nil
}

type fakeLibrary struct {
	songs []media.Song
	err   error
}

func (l *fakeLibrary) Genres(ctx context.Context) ([]media.Genre, error) {
	return []media.Genre{{Name: "Rock"}}, l.err
}

func (l *fakeLibrary) Playlists(ctx context.Context) ([]media.Playlist, error) {
	return []media.Playlist{{ID: "pl1", Name: "Morning"}}, l.err
}

func (l *fakeLibrary) Song(ctx context.Context, songID string) (media.Song, error) {
	if l.err != nil {
		return media.Song{}, l.err
	}
	for _, s := range l.songs {
		if s.ID == songID {
			return s, nil
		}
	}
	return media.Song{}, errors.New("song not found")
}

func (l *fakeLibrary) SongsByGenre(ctx context.Context, genre string, count, offset int) ([]media.Song, error) {
	return l.songs, l.err
}

func (l *fakeLibrary) RandomSongs(ctx context.Context, size int, genre string) ([]media.Song, error) {
	return l.songs, l.err
}

func (l *fakeLibrary) PlaylistSongs(ctx context.Context, playlistID string) ([]media.Song, error) {
	return l.songs, l.err
}

func (l *fakeLibrary) AlbumSongs(ctx context.Context, albumID string) ([]media.Song, error) {
	return l.songs, l.err
}

func (l *fakeLibrary) Search(ctx context.Context, query string) (*subsonic.SearchResults, error) {
	return &subsonic.SearchResults{Songs: l.songs}, l.err
}

func (l *fakeLibrary) StreamURL(songID, format string) string {
	return "https://music.example.com/rest/stream?id=" + songID
}

type fakeExtractor struct {
	url    string
	ok     bool
	closed bool
}

func (e *fakeExtractor) Resolve(ctx context.Context) (string, bool) { return e.url, e.ok }
func (e *fakeExtractor) Close() error                               { e.closed = true; return nil }

func newTestPlayer(sink *fakeSink, lib MusicLibrary, ex *fakeExtractor) *Player {
	p := New(extract.MethodStatic, sink, lib)
	if ex != nil {
		p.newExtractor = func(method string, target media.StreamTarget, pool *extract.Pool) (extract.Extractor, error) {
			return ex, nil
		}
	}
	return p
}

func TestPlayStreamCastsResolvedURL(t *testing.T) {
	sink := &fakeSink{}
	ex := &fakeExtractor{url: "https://cdn.example.com/live/ch.m3u8", ok: true}
	p := newTestPlayer(sink, nil, ex)

	target := media.NewStreamTarget("https://watch.example.com/ep1", nil, nil)
	if err := p.PlayStream(context.Background(), target); err != nil {
		t.Fatalf("PlayStream: %v", err)
	}

	if len(sink.played) != 1 || sink.played[0] != ex.url {
		t.Fatalf("sink played %v, want %q", sink.played, ex.url)
	}
	if sink.types[0] != media.MIMEHLS {
		t.Errorf("content type = %q, want %q", sink.types[0], media.MIMEHLS)
	}
	if p.State() != StatePlaying {
		t.Errorf("state = %q, want playing", p.State())
	}
	if !ex.closed {
		t.Error("extractor not closed after resolve")
	}
}

func TestPlayStreamFailureStaysIdle(t *testing.T) {
	sink := &fakeSink{}
	ex := &fakeExtractor{ok: false}
	p := newTestPlayer(sink, nil, ex)

	target := media.NewStreamTarget("https://watch.example.com/ep1", nil, nil)
	if err := p.PlayStream(context.Background(), target); err == nil {
		t.Fatal("expected error when extraction finds nothing")
	}
	if p.State() != StateIdle {
		t.Errorf("state = %q, want idle", p.State())
	}
	if len(sink.played) != 0 {
		t.Errorf("sink played %v, want nothing", sink.played)
	}
	if !ex.closed {
		t.Error("extractor not closed after failed resolve")
	}
}

func TestPlayStreamSinkFailureRevertsToIdle(t *testing.T) {
	sink := &fakeSink{playErr: errors.New("device unreachable")}
	ex := &fakeExtractor{url: "https://cdn.example.com/v.mp4", ok: true}
	p := newTestPlayer(sink, nil, ex)

	target := media.NewStreamTarget("https://watch.example.com/ep1", nil, nil)
	if err := p.PlayStream(context.Background(), target); err == nil {
		t.Fatal("expected error when sink rejects the load")
	}
	if p.State() != StateIdle {
		t.Errorf("state = %q, want idle", p.State())
	}
}

func TestPlayGenreStartsQueue(t *testing.T) {
	sink := &fakeSink{}
	lib := &fakeLibrary{songs: []media.Song{
		{ID: "s1", Title: "One"},
		{ID: "s2", Title: "Two"},
	}}
	p := newTestPlayer(sink, lib, nil)

	if err := p.PlayGenre(context.Background(), "Rock", 50, false); err != nil {
		t.Fatalf("PlayGenre: %v", err)
	}
	if len(sink.played) != 1 {
		t.Fatalf("sink played %d URLs, want 1", len(sink.played))
	}
	if sink.types[0] != media.MIMEMP3 {
		t.Errorf("content type = %q, want %q", sink.types[0], media.MIMEMP3)
	}
	if now, ok := p.NowPlaying(); !ok || now.ID != "s1" {
		t.Errorf("NowPlaying = %v, %v; want s1", now.ID, ok)
	}
}

func TestPlaySongByID(t *testing.T) {
	sink := &fakeSink{}
	lib := &fakeLibrary{songs: []media.Song{
		{ID: "s1", Title: "One"},
		{ID: "s2", Title: "Two"},
	}}
	p := newTestPlayer(sink, lib, nil)

	if err := p.PlaySong(context.Background(), "s2"); err != nil {
		t.Fatalf("PlaySong: %v", err)
	}
	if len(sink.played) != 1 || sink.played[0] != "https://music.example.com/rest/stream?id=s2" {
		t.Fatalf("sink played %v", sink.played)
	}
	if sink.types[0] != media.MIMEMP3 {
		t.Errorf("content type = %q, want %q", sink.types[0], media.MIMEMP3)
	}
	if now, ok := p.NowPlaying(); !ok || now.Title != "Two" {
		t.Errorf("NowPlaying = %v, %v; want Two", now.Title, ok)
	}
	if len(p.Queue()) != 1 {
		t.Errorf("queue length = %d, want 1", len(p.Queue()))
	}
}

func TestPlaySongUnknownID(t *testing.T) {
	lib := &fakeLibrary{songs: []media.Song{{ID: "s1"}}}
	p := newTestPlayer(&fakeSink{}, lib, nil)

	if err := p.PlaySong(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown song id")
	}
	if p.State() != StateIdle {
		t.Errorf("state = %q, want idle", p.State())
	}
}

func TestPlayAlbumStartsQueue(t *testing.T) {
	sink := &fakeSink{}
	lib := &fakeLibrary{songs: []media.Song{{ID: "s1", Title: "One"}}}
	p := newTestPlayer(sink, lib, nil)

	if err := p.PlayAlbum(context.Background(), "al1", false); err != nil {
		t.Fatalf("PlayAlbum: %v", err)
	}
	if p.State() != StatePlaying {
		t.Errorf("state = %q, want playing", p.State())
	}
}

func TestPlayGenreEmptyResult(t *testing.T) {
	p := newTestPlayer(&fakeSink{}, &fakeLibrary{}, nil)
	if err := p.PlayGenre(context.Background(), "Polka", 50, false); err == nil {
		t.Fatal("expected error for empty genre")
	}
}

func TestMusicWithoutLibrary(t *testing.T) {
	p := newTestPlayer(&fakeSink{}, nil, nil)
	if err := p.PlayRandom(context.Background(), 10, ""); err == nil {
		t.Fatal("expected error without a configured music server")
	}
}

func TestNextAdvancesAndStopsAtEnd(t *testing.T) {
	sink := &fakeSink{}
	lib := &fakeLibrary{songs: []media.Song{
		{ID: "s1", Title: "One"},
		{ID: "s2", Title: "Two"},
	}}
	p := newTestPlayer(sink, lib, nil)

	if err := p.PlayPlaylist(context.Background(), "pl1", false); err != nil {
		t.Fatalf("PlayPlaylist: %v", err)
	}
	if err := p.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if now, _ := p.NowPlaying(); now.ID != "s2" {
		t.Errorf("NowPlaying after Next = %q, want s2", now.ID)
	}

	// Past the end with repeat off the player goes idle.
	if err := p.Next(context.Background()); err != nil {
		t.Fatalf("Next past end: %v", err)
	}
	if p.State() != StateIdle {
		t.Errorf("state = %q, want idle", p.State())
	}
	if sink.stopCount != 1 {
		t.Errorf("stopCount = %d, want 1", sink.stopCount)
	}
}

func TestNextRepeatAllLoops(t *testing.T) {
	sink := &fakeSink{}
	lib := &fakeLibrary{songs: []media.Song{
		{ID: "s1"}, {ID: "s2"},
	}}
	p := newTestPlayer(sink, lib, nil)
	p.SetRepeat(queue.RepeatAll)

	if err := p.PlayPlaylist(context.Background(), "pl1", false); err != nil {
		t.Fatalf("PlayPlaylist: %v", err)
	}
	p.Next(context.Background())
	if err := p.Next(context.Background()); err != nil {
		t.Fatalf("wrapping Next: %v", err)
	}
	if now, _ := p.NowPlaying(); now.ID != "s1" {
		t.Errorf("NowPlaying after wrap = %q, want s1", now.ID)
	}
}

func TestStopKeepsQueue(t *testing.T) {
	sink := &fakeSink{}
	lib := &fakeLibrary{songs: []media.Song{{ID: "s1"}, {ID: "s2"}}}
	p := newTestPlayer(sink, lib, nil)

	if err := p.PlayPlaylist(context.Background(), "pl1", false); err != nil {
		t.Fatalf("PlayPlaylist: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if p.State() != StateIdle {
		t.Errorf("state = %q, want idle", p.State())
	}
	if len(p.Queue()) != 2 {
		t.Errorf("queue length after Stop = %d, want 2", len(p.Queue()))
	}
	// Next resumes from the kept queue.
	if err := p.Next(context.Background()); err != nil {
		t.Fatalf("Next after Stop: %v", err)
	}
	if p.State() != StatePlaying {
		t.Errorf("state after resume = %q, want playing", p.State())
	}
}
