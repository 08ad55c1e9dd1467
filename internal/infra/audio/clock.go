// Package audio provides the audio engine used by the player.
package audio

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/playdeck/internal/domain/track"
)

// DefaultTickInterval is how often the playback position is reported.
const DefaultTickInterval = 250 * time.Millisecond

// Config represents Clock configuration.
type Config struct {
	TickInterval time.Duration
}

// Clock is an audio engine that advances the playback position on the wall
// clock. It tracks one source at a time. Sources with a known duration end on
// their own; sources without one play until paused or replaced.
type Clock struct {
	mu           sync.Mutex
	tickInterval time.Duration
	probe        func(source string) (float64, error)
	volume       float64

	source string
	cancel context.CancelFunc
	wg     sync.WaitGroup

	ticks  chan float64
	ended  chan struct{}
	closed bool
}

// NewClock creates a Clock that reads durations with Probe.
func NewClock(cfg Config) *Clock {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	return &Clock{
		tickInterval: cfg.TickInterval,
		probe:        Probe,
		volume:       1,
		ticks:        make(chan float64, 1),
		ended:        make(chan struct{}, 1),
	}
}

// Play starts source at startTime, replacing whatever was playing.
// A start position at or past the end restarts the source.
func (c *Clock) Play(ctx context.Context, source string, startTime float64) (track.Progress, error) {
	if err := ctx.Err(); err != nil {
		return track.Progress{}, err
	}

	duration, err := c.probe(source)
	endless := false
	switch {
	case errors.Is(err, ErrUnknownDuration):
		duration = track.DefaultDuration
		endless = true
	case err != nil:
		return track.Progress{}, errors.Wrapf(err, "failed to probe source: %s", source)
	}
	if startTime < 0 || (!endless && startTime >= duration) {
		startTime = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return track.Progress{}, errors.New("audio engine closed")
	}
	c.stopLocked()

	runCtx, cancel := context.WithCancel(context.Background())
	c.source = source
	c.cancel = cancel
	c.wg.Add(1)
	go c.run(runCtx, startTime, duration, endless)

	zlog.Debug().Msgf("audio: play: source=%s start=%.2f duration=%.2f endless=%t", source, startTime, duration, endless)
	return track.Progress{CurrentTime: startTime, Duration: duration}, nil
}

// Pause stops source if it is the one playing.
func (c *Clock) Pause(ctx context.Context, source string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.source != source {
		return nil
	}
	c.stopLocked()
	zlog.Debug().Msgf("audio: pause: source=%s", source)
	return nil
}

// SetVolume records the output volume.
func (c *Clock) SetVolume(volume float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volume = volume
	zlog.Debug().Msgf("audio: volume=%.2f", volume)
}

// Volume returns the output volume.
func (c *Clock) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// Ticks reports the playback position in seconds. Stale positions are dropped
// when the receiver falls behind.
func (c *Clock) Ticks() <-chan float64 {
	return c.ticks
}

// Ended fires when a source with a known duration reaches its end.
func (c *Clock) Ended() <-chan struct{} {
	return c.ended
}

// Close stops playback and closes the Ticks and Ended channels.
func (c *Clock) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.stopLocked()
	c.mu.Unlock()

	c.wg.Wait()
	close(c.ticks)
	close(c.ended)
	return nil
}

// stopLocked cancels the running source.
// Must be called with lock held.
func (c *Clock) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.source = ""
}

func (c *Clock) run(ctx context.Context, startTime, duration float64, endless bool) {
	defer c.wg.Done()

	startWall := toWallTime(time.Now())
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			position := startTime + toWallTime(time.Now()).Sub(startWall).Seconds()
			if !endless && position >= duration {
				c.emitTick(ctx, duration)
				c.emitEnded(ctx)
				return
			}
			c.emitTick(ctx, position)
		}
	}
}

func (c *Clock) emitTick(ctx context.Context, position float64) {
	if ctx.Err() != nil {
		return
	}
	select {
	case c.ticks <- position:
	default:
		// Replace the unread position with the newer one.
		select {
		case <-c.ticks:
		default:
		}
		select {
		case c.ticks <- position:
		default:
		}
	}
}

func (c *Clock) emitEnded(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	select {
	case c.ended <- struct{}{}:
	default:
	}
}

// toWallTime returns the time with monotonic clock stripped.
func toWallTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), int64(t.Nanosecond()))
}
