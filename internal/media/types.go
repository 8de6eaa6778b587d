// Package media defines shared types for the streamcast application.
package media

// DefaultPopupSelectors are the built-in popup/overlay dismiss attempts,
// tried in order by the automated extractor.
var DefaultPopupSelectors = []string{
	"button[class*='close']",
	"div[class*='popup'] button",
	"a[class*='close']",
	"[id*='close']",
	".modal-close",
	".popup-close",
	"[aria-label*='close' i]",
}

// DefaultVideoSelectors are the built-in video locator selectors,
// tried in order by the automated extractor.
var DefaultVideoSelectors = []string{
	"video",
	"iframe[src*='player']",
	"iframe[src*='embed']",
	"[class*='player']",
	"[id*='player']",
}

// StreamTarget describes one extraction attempt: the page to resolve and the
// selector lists the automated extractor may use on it. Consumed, never
// mutated, by all extractors.
type StreamTarget struct {
	URL            string
	PopupSelectors []string
	VideoSelectors []string
}

// NewStreamTarget builds a target, filling in the default selector lists
// where none were configured.
func NewStreamTarget(url string, popupSelectors, videoSelectors []string) StreamTarget {
	if len(popupSelectors) == 0 {
		popupSelectors = DefaultPopupSelectors
	}
	if len(videoSelectors) == 0 {
		videoSelectors = DefaultVideoSelectors
	}
	return StreamTarget{
		URL:            url,
		PopupSelectors: popupSelectors,
		VideoSelectors: videoSelectors,
	}
}

// VideoInfo is descriptive metadata about a stream page. It is display-only
// and never used for playback resolution.
type VideoInfo struct {
	Title       string
	Duration    float64 // seconds, 0 when unknown
	Thumbnail   string
	Description string
	Uploader    string
	IsLive      bool
	FormatCount int
}

// ElementInfo describes a single DOM element located by the automation driver.
type ElementInfo struct {
	Text  string
	Tag   string
	Href  string
	Src   string
	Class string
	ID    string
}

// Genre is a music genre reported by the Subsonic server.
type Genre struct {
	Name       string `json:"value"`
	SongCount  int    `json:"songCount"`
	AlbumCount int    `json:"albumCount"`
}

// Artist is a music artist.
type Artist struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	AlbumCount int    `json:"albumCount"`
}

// Album is a music album.
type Album struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Artist    string `json:"artist"`
	SongCount int    `json:"songCount"`
	CoverArt  string `json:"coverArt"`
	Year      int    `json:"year"`
}

// Song is a single playable track.
type Song struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	Genre    string `json:"genre"`
	Duration int    `json:"duration"` // seconds
	CoverArt string `json:"coverArt"`
}

// Playlist is a server-side playlist.
type Playlist struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SongCount int    `json:"songCount"`
	Owner     string `json:"owner"`
}
