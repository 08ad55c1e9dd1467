package playback

import "github.com/osa030/playdeck/internal/domain/track"

// EventType represents a controller event type.
type EventType int

const (
	EventListChanged   EventType = iota // Playlist contents or order changed
	EventActiveChanged                  // Active track changed or was updated
	EventStatusChanged                  // Player status changed
	EventError                          // A collaborator failed
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventListChanged:
		return "list_changed"
	case EventActiveChanged:
		return "active_changed"
	case EventStatusChanged:
		return "status_changed"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a snapshot broadcast by the controller.
// Only the fields relevant to Type are set.
type Event struct {
	Type   EventType
	Tracks []track.Track // EventListChanged
	Track  *track.Track  // EventActiveChanged (nil means nothing selected)
	Status Status        // EventStatusChanged
	Err    error         // EventError
}
