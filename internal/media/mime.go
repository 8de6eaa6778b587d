package media

import (
	"net/url"
	"path"
	"strings"
)

// Well-known stream content types.
const (
	MIMEHLS  = "application/vnd.apple.mpegurl"
	MIMEMP4  = "video/mp4"
	MIMEWebM = "video/webm"
	MIMEMKV  = "video/x-matroska"
	MIMEMP3  = "audio/mpeg"
)

// mimeByExt maps resolved-URL extensions to cast content types.
var mimeByExt = map[string]string{
	".m3u8": MIMEHLS,
	".mp4":  MIMEMP4,
	".webm": MIMEWebM,
	".mkv":  MIMEMKV,
	".mp3":  MIMEMP3,
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".ts":   "video/mp2t",
}

// DetectMIME infers a content type for a resolved stream URL from its path
// extension. It is a heuristic for the cast handoff only; the actual content
// of the URL is never probed. Unknown extensions default to video/mp4.
func DetectMIME(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return MIMEMP4
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if mime, ok := mimeByExt[ext]; ok {
		return mime
	}
	return MIMEMP4
}
