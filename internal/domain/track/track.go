// Package track provides the Track domain entity.
package track

import (
	"encoding/json"
	"sync"

	"github.com/cockroachdb/errors"
)

// ID identifies a track within the running process.
type ID int64

// NoneID means no track is selected.
const NoneID ID = -1

// KeyPrefix prefixes every persisted track key.
const KeyPrefix = "song_"

// DefaultDuration is the duration of a track whose length is not known yet.
const DefaultDuration = 1.0

// Track represents a playlist entry.
// The JSON form is the value stored under StorageKey(Title).
type Track struct {
	ID          ID      `json:"id"`          // Process-assigned identifier
	Source      string  `json:"src"`         // Opaque locator (URL, file path)
	Title       string  `json:"title"`       // Unique within a playlist
	CurrentTime float64 `json:"currentTime"` // Playback position in seconds
	Duration    float64 `json:"duration"`    // Length in seconds (1 when unknown)
	ImageURL    string  `json:"imageSrc,omitempty"`
	Liked       bool    `json:"like"`
}

// StorageKey returns the persistence key for a track title.
func StorageKey(title string) string {
	return KeyPrefix + title
}

// Key returns the persistence key of the track.
func (t *Track) Key() string {
	return StorageKey(t.Title)
}

// Marshal serializes the track for persistence.
func (t *Track) Marshal() (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal track")
	}
	return string(data), nil
}

// Unmarshal parses a persisted track value.
func Unmarshal(value string) (Track, error) {
	var t Track
	if err := json.Unmarshal([]byte(value), &t); err != nil {
		return Track{}, errors.Wrap(err, "failed to unmarshal track")
	}
	if t.Title == "" {
		return Track{}, errors.New("track title is required")
	}
	if t.Duration <= 0 {
		t.Duration = DefaultDuration
	}
	if t.CurrentTime < 0 {
		t.CurrentTime = 0
	}
	return t, nil
}

// IDGenerator hands out monotonic track IDs starting at 0.
type IDGenerator struct {
	mu   sync.Mutex
	next ID
}

// Next returns a fresh ID.
func (g *IDGenerator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.next
	g.next++
	return id
}

// Observe moves the counter past an ID that was assigned elsewhere
// (e.g. restored from persistence).
func (g *IDGenerator) Observe(id ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id >= g.next {
		g.next = id + 1
	}
}

// Progress is the playback position reported by the audio engine.
type Progress struct {
	CurrentTime float64 // Seconds from the start of the track
	Duration    float64 // Track length in seconds (DefaultDuration when unknown)
}
