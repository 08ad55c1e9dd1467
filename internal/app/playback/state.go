// Package playback provides the playlist controller: the single owner of the
// playlist, the active-track pointer and the player status.
package playback

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Mode controls how Forward picks the next track.
type Mode int

const (
	ModeSequential Mode = iota // Next track, wrapping to the first
	ModeRepeat                 // Same track from the start
	ModeShuffle                // Uniformly random track
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeSequential:
		return "sequential"
	case ModeRepeat:
		return "repeat"
	case ModeShuffle:
		return "shuffle"
	default:
		return "unknown"
	}
}

// IsValid reports whether m is one of the defined modes.
func (m Mode) IsValid() bool {
	return m >= ModeSequential && m <= ModeShuffle
}

// ParseMode parses a mode name as produced by String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sequential", "standard":
		return ModeSequential, nil
	case "repeat":
		return ModeRepeat, nil
	case "shuffle", "random":
		return ModeShuffle, nil
	default:
		return 0, errors.Newf("unknown playback mode: %q", s)
	}
}

// Status is the player status singleton.
type Status struct {
	Volume    float64 // In [0,1]
	IsPlaying bool
	Mode      Mode
}

// ValidVolume reports whether v is an acceptable volume.
func ValidVolume(v float64) bool {
	return v >= 0 && v <= 1
}
