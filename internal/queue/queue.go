// Package queue implements the in-memory playback queue for music mode.
package queue

import (
	"math/rand"

	"streamcast/internal/media"
)

// RepeatMode controls what happens when the queue runs past its ends.
type RepeatMode string

const (
	RepeatOff RepeatMode = "off"
	RepeatAll RepeatMode = "all"
	RepeatOne RepeatMode = "one"
)

// Queue holds an ordered list of songs and a cursor. It is not safe for
// concurrent use; the player serializes access to it.
type Queue struct {
	songs  []media.Song
	pos    int
	repeat RepeatMode
}

// New returns an empty queue with repeat off.
func New() *Queue {
	return &Queue{repeat: RepeatOff}
}

// Load replaces the queue contents and resets the cursor to the first song.
// With shuffle set, the songs are loaded in random order.
func (q *Queue) Load(songs []media.Song, shuffle bool) {
	q.songs = make([]media.Song, len(songs))
	copy(q.songs, songs)
	if shuffle {
		rand.Shuffle(len(q.songs), func(i, j int) {
			q.songs[i], q.songs[j] = q.songs[j], q.songs[i]
		})
	}
	q.pos = 0
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.songs = nil
	q.pos = 0
}

// SetRepeat changes the repeat mode. Unknown values fall back to off.
func (q *Queue) SetRepeat(mode RepeatMode) {
	switch mode {
	case RepeatOff, RepeatAll, RepeatOne:
		q.repeat = mode
	default:
		q.repeat = RepeatOff
	}
}

// Repeat reports the current repeat mode.
func (q *Queue) Repeat() RepeatMode {
	return q.repeat
}

// Len reports the number of songs in the queue.
func (q *Queue) Len() int {
	return len(q.songs)
}

// Position reports the zero-based cursor position.
func (q *Queue) Position() int {
	return q.pos
}

// Current returns the song under the cursor.
func (q *Queue) Current() (media.Song, bool) {
	if q.pos < 0 || q.pos >= len(q.songs) {
		return media.Song{}, false
	}
	return q.songs[q.pos], true
}

// Next advances the cursor and returns the song to play. Repeat-one replays
// the current song without moving; repeat-all wraps past the end; repeat-off
// stops at the end.
func (q *Queue) Next() (media.Song, bool) {
	if len(q.songs) == 0 {
		return media.Song{}, false
	}
	if q.repeat == RepeatOne {
		return q.songs[q.pos], true
	}

	next := q.pos + 1
	if next >= len(q.songs) {
		if q.repeat != RepeatAll {
			return media.Song{}, false
		}
		next = 0
	}
	q.pos = next
	return q.songs[q.pos], true
}

// Previous moves the cursor back and returns the song to play. Repeat-one
// replays the current song; repeat-all wraps before the start; repeat-off
// stays on the first song.
func (q *Queue) Previous() (media.Song, bool) {
	if len(q.songs) == 0 {
		return media.Song{}, false
	}
	if q.repeat == RepeatOne {
		return q.songs[q.pos], true
	}

	prev := q.pos - 1
	if prev < 0 {
		if q.repeat != RepeatAll {
			prev = 0
		} else {
			prev = len(q.songs) - 1
		}
	}
	q.pos = prev
	return q.songs[q.pos], true
}

// Songs returns a copy of the queue contents in play order.
func (q *Queue) Songs() []media.Song {
	out := make([]media.Song, len(q.songs))
	copy(out, q.songs)
	return out
}
