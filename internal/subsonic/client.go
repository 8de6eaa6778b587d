// Package subsonic implements the subset of the Subsonic REST API used for
// music browsing and playback against a Navidrome (or any Subsonic
// compatible) server. Every request carries a freshly salted token; the
// password itself is never sent.
package subsonic

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"streamcast/internal/httputil"
	"streamcast/internal/media"
)

const (
	apiVersion = "1.16.1"
	clientName = "streamcast"
	saltLength = 12
)

const saltAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Client talks to one Subsonic server. It is safe for sequential reuse; the
// underlying HTTP session is not meant for concurrent callers.
type Client struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

// NewClient creates a Subsonic client for the given server.
func NewClient(serverURL, username, password string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(serverURL, "/"),
		username: username,
		password: password,
		client:   httputil.NewClient(30 * time.Second),
	}
}

// authParams generates the per-request authentication parameters: a random
// salt and the md5(password + salt) token the protocol requires.
func (c *Client) authParams() url.Values {
	salt := randomSalt()
	token := fmt.Sprintf("%x", md5.Sum([]byte(c.password+salt)))

	v := url.Values{}
	v.Set("u", c.username)
	v.Set("t", token)
	v.Set("s", salt)
	v.Set("v", apiVersion)
	v.Set("c", clientName)
	v.Set("f", "json")
	return v
}

func randomSalt() string {
	buf := make([]byte, saltLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is effectively unrecoverable; fall back to a
		// fixed salt rather than aborting a music request.
		return "streamcast00"
	}
	for i, b := range buf {
		buf[i] = saltAlphabet[int(b)%len(saltAlphabet)]
	}
	return string(buf)
}

// envelope is the outer JSON wrapper of every Subsonic response.
type envelope struct {
	Response response `json:"subsonic-response"`
}

type response struct {
	Status string    `json:"status"`
	Error  *apiError `json:"error"`

	Genres        *genreList    `json:"genres"`
	SongsByGenre  *songList     `json:"songsByGenre"`
	RandomSongs   *songList     `json:"randomSongs"`
	Artists       *artistIndex  `json:"artists"`
	Artist        *artistDetail `json:"artist"`
	AlbumList2    *albumList    `json:"albumList2"`
	Album         *albumDetail  `json:"album"`
	Playlists     *playlistList `json:"playlists"`
	Playlist      *playlistBody `json:"playlist"`
	Song          *media.Song   `json:"song"`
	SearchResult3 *searchResult `json:"searchResult3"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type genreList struct {
	Genre []media.Genre `json:"genre"`
}

type songList struct {
	Song []media.Song `json:"song"`
}

type artistIndex struct {
	Index []struct {
		Name   string         `json:"name"`
		Artist []media.Artist `json:"artist"`
	} `json:"index"`
}

type artistDetail struct {
	media.Artist
	Album []media.Album `json:"album"`
}

type albumList struct {
	Album []media.Album `json:"album"`
}

type albumDetail struct {
	media.Album
	Song []media.Song `json:"song"`
}

type playlistList struct {
	Playlist []media.Playlist `json:"playlist"`
}

type playlistBody struct {
	media.Playlist
	Entry []media.Song `json:"entry"`
}

// SearchResults groups the three result kinds of a search3 call.
type SearchResults struct {
	Artists []media.Artist
	Albums  []media.Album
	Songs   []media.Song
}

type searchResult struct {
	Artist []media.Artist `json:"artist"`
	Album  []media.Album  `json:"album"`
	Song   []media.Song   `json:"song"`
}

// request performs one authenticated API call and unwraps the envelope.
func (c *Client) request(ctx context.Context, endpoint string, params url.Values) (*response, error) {
	q := c.authParams()
	for k, vs := range params {
		for _, v := range vs {
			q.Set(k, v)
		}
	}

	reqURL := fmt.Sprintf("%s/rest/%s?%s", c.baseURL, endpoint, q.Encode())
	body, err := httputil.GetJSON(ctx, c.client, reqURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%s: parsing response: %w", endpoint, err)
	}

	resp := env.Response
	if resp.Status != "ok" {
		if resp.Error != nil {
			return nil, fmt.Errorf("%s: server error %d: %s", endpoint, resp.Error.Code, resp.Error.Message)
		}
		return nil, fmt.Errorf("%s: server status %q", endpoint, resp.Status)
	}

	return &resp, nil
}

// Ping tests connectivity and credentials.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.request(ctx, "ping", nil)
	return err
}

// Genres returns all genres known to the server.
func (c *Client) Genres(ctx context.Context) ([]media.Genre, error) {
	resp, err := c.request(ctx, "getGenres", nil)
	if err != nil {
		return nil, err
	}
	if resp.Genres == nil {
		return nil, nil
	}
	return resp.Genres.Genre, nil
}

// SongsByGenre returns up to count songs of a genre, starting at offset.
func (c *Client) SongsByGenre(ctx context.Context, genre string, count, offset int) ([]media.Song, error) {
	params := url.Values{}
	params.Set("genre", genre)
	params.Set("count", strconv.Itoa(count))
	params.Set("offset", strconv.Itoa(offset))

	resp, err := c.request(ctx, "getSongsByGenre", params)
	if err != nil {
		return nil, err
	}
	if resp.SongsByGenre == nil {
		return nil, nil
	}
	return resp.SongsByGenre.Song, nil
}

// RandomSongs returns size random songs, optionally filtered by genre.
func (c *Client) RandomSongs(ctx context.Context, size int, genre string) ([]media.Song, error) {
	params := url.Values{}
	params.Set("size", strconv.Itoa(size))
	if genre != "" {
		params.Set("genre", genre)
	}

	resp, err := c.request(ctx, "getRandomSongs", params)
	if err != nil {
		return nil, err
	}
	if resp.RandomSongs == nil {
		return nil, nil
	}
	return resp.RandomSongs.Song, nil
}

// Song returns one song by its identifier.
func (c *Client) Song(ctx context.Context, songID string) (media.Song, error) {
	params := url.Values{}
	params.Set("id", songID)

	resp, err := c.request(ctx, "getSong", params)
	if err != nil {
		return media.Song{}, err
	}
	if resp.Song == nil {
		return media.Song{}, fmt.Errorf("getSong: no song in response for id %q", songID)
	}
	return *resp.Song, nil
}

// Artists returns all artists, flattened across the server's index groups.
func (c *Client) Artists(ctx context.Context) ([]media.Artist, error) {
	resp, err := c.request(ctx, "getArtists", nil)
	if err != nil {
		return nil, err
	}
	if resp.Artists == nil {
		return nil, nil
	}

	var artists []media.Artist
	for _, idx := range resp.Artists.Index {
		artists = append(artists, idx.Artist...)
	}
	return artists, nil
}

// Albums returns an artist's albums when artistID is set, else the
// alphabetical album list.
func (c *Client) Albums(ctx context.Context, artistID string) ([]media.Album, error) {
	if artistID != "" {
		params := url.Values{}
		params.Set("id", artistID)
		resp, err := c.request(ctx, "getArtist", params)
		if err != nil {
			return nil, err
		}
		if resp.Artist == nil {
			return nil, nil
		}
		return resp.Artist.Album, nil
	}

	params := url.Values{}
	params.Set("type", "alphabeticalByName")
	params.Set("size", "500")
	resp, err := c.request(ctx, "getAlbumList2", params)
	if err != nil {
		return nil, err
	}
	if resp.AlbumList2 == nil {
		return nil, nil
	}
	return resp.AlbumList2.Album, nil
}

// AlbumSongs returns the songs of one album.
func (c *Client) AlbumSongs(ctx context.Context, albumID string) ([]media.Song, error) {
	params := url.Values{}
	params.Set("id", albumID)

	resp, err := c.request(ctx, "getAlbum", params)
	if err != nil {
		return nil, err
	}
	if resp.Album == nil {
		return nil, nil
	}
	return resp.Album.Song, nil
}

// Playlists returns all playlists visible to the user.
func (c *Client) Playlists(ctx context.Context) ([]media.Playlist, error) {
	resp, err := c.request(ctx, "getPlaylists", nil)
	if err != nil {
		return nil, err
	}
	if resp.Playlists == nil {
		return nil, nil
	}
	return resp.Playlists.Playlist, nil
}

// PlaylistSongs returns the entries of one playlist.
func (c *Client) PlaylistSongs(ctx context.Context, playlistID string) ([]media.Song, error) {
	params := url.Values{}
	params.Set("id", playlistID)

	resp, err := c.request(ctx, "getPlaylist", params)
	if err != nil {
		return nil, err
	}
	if resp.Playlist == nil {
		return nil, nil
	}
	return resp.Playlist.Entry, nil
}

// Search runs a search3 query across artists, albums and songs.
func (c *Client) Search(ctx context.Context, query string) (*SearchResults, error) {
	params := url.Values{}
	params.Set("query", query)

	resp, err := c.request(ctx, "search3", params)
	if err != nil {
		return nil, err
	}

	results := &SearchResults{}
	if resp.SearchResult3 != nil {
		results.Artists = resp.SearchResult3.Artist
		results.Albums = resp.SearchResult3.Album
		results.Songs = resp.SearchResult3.Song
	}
	return results, nil
}

// StreamURL builds the authenticated streaming URL for a song. The URL
// embeds a fresh token and is handed as-is to the cast sink.
func (c *Client) StreamURL(songID, format string) string {
	q := c.authParams()
	q.Set("id", songID)
	if format != "" {
		q.Set("format", format)
	}
	return fmt.Sprintf("%s/rest/stream?%s", c.baseURL, q.Encode())
}

// CoverArtURL builds the authenticated cover art URL for a song or album.
func (c *Client) CoverArtURL(coverID string, size int) string {
	q := c.authParams()
	q.Set("id", coverID)
	q.Set("size", strconv.Itoa(size))
	return fmt.Sprintf("%s/rest/getCoverArt?%s", c.baseURL, q.Encode())
}

// Close releases the client's idle connections.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
