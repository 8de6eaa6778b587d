// Package player orchestrates playback: it resolves stream pages through the
// configured extraction method, sequences the music queue, and drives the
// cast sink.
package player

import (
	"context"
	"fmt"
	"log"

	"streamcast/internal/cast"
	"streamcast/internal/extract"
	"streamcast/internal/media"
	"streamcast/internal/queue"
	"streamcast/internal/subsonic"
)

// State is the player's coarse playback state.
type State string

const (
	StateIdle    State = "idle"
	StatePlaying State = "playing"
)

// MusicLibrary is the slice of the Subsonic client the player needs.
// *subsonic.Client satisfies it.
type MusicLibrary interface {
	Genres(ctx context.Context) ([]media.Genre, error)
	Playlists(ctx context.Context) ([]media.Playlist, error)
	Song(ctx context.Context, songID string) (media.Song, error)
	SongsByGenre(ctx context.Context, genre string, count, offset int) ([]media.Song, error)
	RandomSongs(ctx context.Context, size int, genre string) ([]media.Song, error)
	PlaylistSongs(ctx context.Context, playlistID string) ([]media.Song, error)
	AlbumSongs(ctx context.Context, albumID string) ([]media.Song, error)
	Search(ctx context.Context, query string) (*subsonic.SearchResults, error)
	StreamURL(songID, format string) string
}

// extractorFactory builds the extractor for one attempt. Swapped out in tests.
type extractorFactory func(method string, target media.StreamTarget, pool *extract.Pool) (extract.Extractor, error)

// Player ties the extraction pipeline, the music library and the cast sink
// together. Not safe for concurrent use; the command layer serializes calls.
type Player struct {
	method  string
	sink    cast.Sink
	library MusicLibrary
	pool    *extract.Pool
	queue   *queue.Queue

	state      State
	nowPlaying media.Song
	streamURL  string

	newExtractor extractorFactory
}

// New creates a player. library may be nil when no music server is
// configured; music operations then fail with a clear error.
func New(method string, sink cast.Sink, library MusicLibrary) *Player {
	return &Player{
		method:       method,
		sink:         sink,
		library:      library,
		pool:         extract.NewPool(extract.DefaultPoolSize),
		queue:        queue.New(),
		state:        StateIdle,
		newExtractor: extract.New,
	}
}

// State reports the current playback state.
func (p *Player) State() State {
	return p.state
}

// StreamURL reports the resolved URL of an active video stream.
func (p *Player) StreamURL() (string, bool) {
	if p.state != StatePlaying || p.streamURL == "" {
		return "", false
	}
	return p.streamURL, true
}

// NowPlaying returns the song under playback, if the player is in music mode.
func (p *Player) NowPlaying() (media.Song, bool) {
	if p.state != StatePlaying || p.nowPlaying.ID == "" {
		return media.Song{}, false
	}
	return p.nowPlaying, true
}

// Resolve runs one extraction attempt for the target without casting. The
// player's state is untouched.
func (p *Player) Resolve(ctx context.Context, target media.StreamTarget) (string, bool) {
	ex, err := p.newExtractor(p.method, target, p.pool)
	if err != nil {
		log.Printf("player: %v", err)
		return "", false
	}
	defer ex.Close()
	return ex.Resolve(ctx)
}

// PlayStream resolves the target and casts the result. On any failure the
// player stays (or reverts to) idle.
func (p *Player) PlayStream(ctx context.Context, target media.StreamTarget) error {
	streamURL, ok := p.Resolve(ctx, target)
	if !ok {
		p.state = StateIdle
		return fmt.Errorf("no stream URL found at %s with method %s", target.URL, p.method)
	}

	contentType := media.DetectMIME(streamURL)
	if err := p.sink.Play(ctx, streamURL, contentType); err != nil {
		p.state = StateIdle
		return fmt.Errorf("casting stream: %w", err)
	}

	p.state = StatePlaying
	p.nowPlaying = media.Song{}
	p.streamURL = streamURL
	return nil
}

// Stop halts playback and returns the player to idle. The queue is kept so
// playback can resume with Next.
func (p *Player) Stop() error {
	p.state = StateIdle
	p.nowPlaying = media.Song{}
	p.streamURL = ""
	if err := p.sink.Stop(); err != nil {
		return fmt.Errorf("stopping playback: %w", err)
	}
	return nil
}

// Close releases the sink session.
func (p *Player) Close() error {
	p.state = StateIdle
	return p.sink.Close()
}

// PlayGenre loads songs of a genre into the queue and starts playback.
func (p *Player) PlayGenre(ctx context.Context, genre string, count int, shuffle bool) error {
	if p.library == nil {
		return fmt.Errorf("no music server configured")
	}
	songs, err := p.library.SongsByGenre(ctx, genre, count, 0)
	if err != nil {
		return err
	}
	if len(songs) == 0 {
		return fmt.Errorf("no songs found for genre %q", genre)
	}
	return p.playQueue(ctx, songs, shuffle)
}

// PlayRandom loads random songs into the queue and starts playback.
func (p *Player) PlayRandom(ctx context.Context, size int, genre string) error {
	if p.library == nil {
		return fmt.Errorf("no music server configured")
	}
	songs, err := p.library.RandomSongs(ctx, size, genre)
	if err != nil {
		return err
	}
	if len(songs) == 0 {
		return fmt.Errorf("no songs returned by server")
	}
	// The server already randomized the order.
	return p.playQueue(ctx, songs, false)
}

// PlayPlaylist loads a playlist into the queue and starts playback.
func (p *Player) PlayPlaylist(ctx context.Context, playlistID string, shuffle bool) error {
	if p.library == nil {
		return fmt.Errorf("no music server configured")
	}
	songs, err := p.library.PlaylistSongs(ctx, playlistID)
	if err != nil {
		return err
	}
	if len(songs) == 0 {
		return fmt.Errorf("playlist %q is empty", playlistID)
	}
	return p.playQueue(ctx, songs, shuffle)
}

// PlaySong plays a single song by its identifier. The song is loaded as a
// one-entry queue so repeat modes apply to it like any other playback.
func (p *Player) PlaySong(ctx context.Context, songID string) error {
	if p.library == nil {
		return fmt.Errorf("no music server configured")
	}
	song, err := p.library.Song(ctx, songID)
	if err != nil {
		return err
	}
	return p.playQueue(ctx, []media.Song{song}, false)
}

// ListGenres returns the library's genres without touching playback.
func (p *Player) ListGenres(ctx context.Context) ([]media.Genre, error) {
	if p.library == nil {
		return nil, fmt.Errorf("no music server configured")
	}
	return p.library.Genres(ctx)
}

// ListPlaylists returns the library's playlists without touching playback.
func (p *Player) ListPlaylists(ctx context.Context) ([]media.Playlist, error) {
	if p.library == nil {
		return nil, fmt.Errorf("no music server configured")
	}
	return p.library.Playlists(ctx)
}

// PlayAlbum loads an album into the queue and starts playback.
func (p *Player) PlayAlbum(ctx context.Context, albumID string, shuffle bool) error {
	if p.library == nil {
		return fmt.Errorf("no music server configured")
	}
	songs, err := p.library.AlbumSongs(ctx, albumID)
	if err != nil {
		return err
	}
	if len(songs) == 0 {
		return fmt.Errorf("album %q has no songs", albumID)
	}
	return p.playQueue(ctx, songs, shuffle)
}

// SearchMusic runs a library search without touching playback.
func (p *Player) SearchMusic(ctx context.Context, query string) (*subsonic.SearchResults, error) {
	if p.library == nil {
		return nil, fmt.Errorf("no music server configured")
	}
	return p.library.Search(ctx, query)
}

// SetRepeat changes the queue's repeat mode.
func (p *Player) SetRepeat(mode queue.RepeatMode) {
	p.queue.SetRepeat(mode)
}

// Next advances the queue and plays the next song. Running past the end with
// repeat off stops playback.
func (p *Player) Next(ctx context.Context) error {
	song, ok := p.queue.Next()
	if !ok {
		return p.Stop()
	}
	return p.playSong(ctx, song)
}

// Previous steps the queue back and plays that song.
func (p *Player) Previous(ctx context.Context) error {
	song, ok := p.queue.Previous()
	if !ok {
		return p.Stop()
	}
	return p.playSong(ctx, song)
}

// Queue exposes the queue contents for listing commands.
func (p *Player) Queue() []media.Song {
	return p.queue.Songs()
}

func (p *Player) playQueue(ctx context.Context, songs []media.Song, shuffle bool) error {
	p.queue.Load(songs, shuffle)
	song, ok := p.queue.Current()
	if !ok {
		return fmt.Errorf("queue is empty")
	}
	return p.playSong(ctx, song)
}

func (p *Player) playSong(ctx context.Context, song media.Song) error {
	streamURL := p.library.StreamURL(song.ID, "mp3")
	if err := p.sink.Play(ctx, streamURL, media.MIMEMP3); err != nil {
		p.state = StateIdle
		return fmt.Errorf("casting %q: %w", song.Title, err)
	}
	p.state = StatePlaying
	p.nowPlaying = song
	p.streamURL = ""
	return nil
}
