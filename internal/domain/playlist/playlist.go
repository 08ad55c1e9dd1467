// Package playlist provides the Playlist domain entity.
package playlist

import "github.com/osa030/playdeck/internal/domain/track"

// Playlist is an ordered sequence of tracks.
// Insertion order is the playback order for sequential modes.
// A Playlist is not safe for concurrent use; its owner serializes access.
type Playlist struct {
	tracks []track.Track
}

// New creates a playlist holding the given tracks.
func New(tracks ...track.Track) *Playlist {
	p := &Playlist{tracks: make([]track.Track, 0, len(tracks))}
	p.tracks = append(p.tracks, tracks...)
	return p
}

// Len returns the number of tracks.
func (p *Playlist) Len() int {
	return len(p.tracks)
}

// Tracks returns a copy of the tracks in playback order.
func (p *Playlist) Tracks() []track.Track {
	result := make([]track.Track, len(p.tracks))
	copy(result, p.tracks)
	return result
}

// IndexOf returns the index of the track with the given ID, or -1.
func (p *Playlist) IndexOf(id track.ID) int {
	for i, t := range p.tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Find returns the track with the given ID.
func (p *Playlist) Find(id track.ID) (track.Track, bool) {
	idx := p.IndexOf(id)
	if idx < 0 {
		return track.Track{}, false
	}
	return p.tracks[idx], true
}

// At returns the track at index i.
func (p *Playlist) At(i int) (track.Track, bool) {
	if i < 0 || i >= len(p.tracks) {
		return track.Track{}, false
	}
	return p.tracks[i], true
}

// HasTitle reports whether a track with the given title exists.
func (p *Playlist) HasTitle(title string) bool {
	for _, t := range p.tracks {
		if t.Title == title {
			return true
		}
	}
	return false
}

// Append adds a track to the end of the playlist.
func (p *Playlist) Append(t track.Track) {
	p.tracks = append(p.tracks, t)
}

// Replace overwrites the track that has the same ID.
// Returns false if no such track exists.
func (p *Playlist) Replace(t track.Track) bool {
	idx := p.IndexOf(t.ID)
	if idx < 0 {
		return false
	}
	p.tracks[idx] = t
	return true
}

// SetCurrentTime updates the playback position of a track.
func (p *Playlist) SetCurrentTime(id track.ID, seconds float64) bool {
	idx := p.IndexOf(id)
	if idx < 0 {
		return false
	}
	p.tracks[idx].CurrentTime = seconds
	return true
}

// Remove deletes the track with the given ID and returns it with its former index.
func (p *Playlist) Remove(id track.ID) (track.Track, int, bool) {
	idx := p.IndexOf(id)
	if idx < 0 {
		return track.Track{}, -1, false
	}
	removed := p.tracks[idx]
	p.tracks = append(p.tracks[:idx], p.tracks[idx+1:]...)
	return removed, idx, true
}

// TotalDuration returns the sum of all track durations in seconds.
func (p *Playlist) TotalDuration() float64 {
	var total float64
	for _, t := range p.tracks {
		total += t.Duration
	}
	return total
}
