package connect

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/playdeck/internal/app/playback"
	"github.com/osa030/playdeck/internal/domain/track"
)

// Tracks travel as structs carrying the same JSON fields as their persisted form.

func trackValue(t track.Track) (map[string]any, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal track")
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "failed to convert track")
	}
	return m, nil
}

func trackToStruct(t track.Track) (*structpb.Struct, error) {
	m, err := trackValue(t)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// TrackFromStruct decodes a track sent over the wire.
func TrackFromStruct(s *structpb.Struct) (track.Track, error) {
	data, err := protojson.Marshal(s)
	if err != nil {
		return track.Track{}, errors.Wrap(err, "failed to marshal struct")
	}
	var t track.Track
	if err := json.Unmarshal(data, &t); err != nil {
		return track.Track{}, errors.Wrap(err, "failed to decode track")
	}
	return t, nil
}

// TracksFromStruct decodes the "tracks" list of a ListTracks response or list event.
func TracksFromStruct(s *structpb.Struct) ([]track.Track, error) {
	list := s.GetFields()["tracks"].GetListValue()
	tracks := make([]track.Track, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		t, err := TrackFromStruct(v.GetStructValue())
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

func tracksValue(tracks []track.Track) ([]any, error) {
	values := make([]any, 0, len(tracks))
	for _, t := range tracks {
		m, err := trackValue(t)
		if err != nil {
			return nil, err
		}
		values = append(values, m)
	}
	return values, nil
}

func statusValue(s playback.Status) map[string]any {
	return map[string]any{
		"volume":    s.Volume,
		"isPlaying": s.IsPlaying,
		"mode":      s.Mode.String(),
	}
}

// stateToStruct builds the GetState response and the first message of a subscription.
func stateToStruct(status playback.Status, activeID track.ID, active *track.Track, totalDuration float64) (*structpb.Struct, error) {
	m := map[string]any{
		"type":          "state",
		"status":        statusValue(status),
		"activeId":      int64(activeID),
		"track":         nil,
		"totalDuration": totalDuration,
	}
	if active != nil {
		v, err := trackValue(*active)
		if err != nil {
			return nil, err
		}
		m["track"] = v
	}
	return structpb.NewStruct(m)
}

func eventToStruct(e playback.Event) (*structpb.Struct, error) {
	m := map[string]any{"type": e.Type.String()}

	switch e.Type {
	case playback.EventListChanged:
		values, err := tracksValue(e.Tracks)
		if err != nil {
			return nil, err
		}
		m["tracks"] = values
	case playback.EventActiveChanged:
		m["track"] = nil
		if e.Track != nil {
			v, err := trackValue(*e.Track)
			if err != nil {
				return nil, err
			}
			m["track"] = v
		}
	case playback.EventStatusChanged:
		m["status"] = statusValue(e.Status)
	case playback.EventError:
		if e.Err != nil {
			m["error"] = e.Err.Error()
		}
	}

	return structpb.NewStruct(m)
}
