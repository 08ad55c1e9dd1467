package audio

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/faiface/beep/mp3"
	"github.com/go-audio/wav"
)

// ErrUnknownDuration is returned for sources whose length cannot be read,
// such as network streams.
var ErrUnknownDuration = errors.New("unknown duration")

// Probe returns the duration in seconds of a local audio file.
// WAV and MP3 files are supported. Remote sources report ErrUnknownDuration.
func Probe(source string) (float64, error) {
	if strings.Contains(source, "://") && !strings.HasPrefix(source, "file://") {
		return 0, ErrUnknownDuration
	}
	path := strings.TrimPrefix(source, "file://")

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return probeWAV(path)
	case ".mp3":
		return probeMP3(path)
	default:
		return 0, errors.Wrapf(ErrUnknownDuration, "unsupported format: %s", path)
	}
}

func probeWAV(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "failed to open wav file")
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, errors.Newf("invalid wav file: %s", path)
	}
	d, err := dec.Duration()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read wav duration")
	}
	return d.Seconds(), nil
}

func probeMP3(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "failed to open mp3 file")
	}

	// The streamer owns f from here on.
	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return 0, errors.Wrap(err, "failed to decode mp3 file")
	}
	defer streamer.Close()

	return format.SampleRate.D(streamer.Len()).Seconds(), nil
}
