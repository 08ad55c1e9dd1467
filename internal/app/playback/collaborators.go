package playback

import (
	"context"

	"github.com/osa030/playdeck/internal/app/catalog"
	"github.com/osa030/playdeck/internal/domain/track"
)

// Audio is the audio rendering engine.
type Audio interface {
	// Play starts playback of source at startTime and returns once the engine
	// has acknowledged it.
	Play(ctx context.Context, source string, startTime float64) (track.Progress, error)
	Pause(ctx context.Context, source string) error
	SetVolume(volume float64)
	// Ticks reports the playback position of the current source.
	Ticks() <-chan float64
	// Ended fires when the current source has played to its end.
	Ended() <-chan struct{}
}

// Store is the string-keyed persistence collaborator.
type Store interface {
	Keys(ctx context.Context) ([]string, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Catalog is the remote catalog lookup service.
// A nil response with a nil error means the catalog had nothing to offer.
type Catalog interface {
	GetTopByCountry(ctx context.Context, countryCode string) (*catalog.Response, error)
}

// Source is a user-provided audio source, such as a local file.
type Source struct {
	Locator string // Path or URL handed to the audio engine
	Label   string // Human-readable name, used as the track title
}
