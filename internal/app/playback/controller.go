package playback

import (
	"context"
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/playdeck/internal/app/notification"
	"github.com/osa030/playdeck/internal/domain/playlist"
	"github.com/osa030/playdeck/internal/domain/track"
)

// Errors
var (
	ErrPlaylistEmpty      = errors.New("playlist is empty")
	ErrNoActiveTrack      = errors.New("no active track")
	ErrTrackNotFound      = errors.New("track not found")
	ErrAlreadyInitialized = errors.New("controller already initialized")
	ErrTitleChanged       = errors.New("track title cannot be changed")
)

// DefaultVolume is the volume used when the configured one is out of range.
const DefaultVolume = 0.5

// Config holds controller configuration.
type Config struct {
	Volume       float64       // Initial volume in [0,1]
	Mode         Mode          // Initial playback mode
	StoreTimeout time.Duration // Upper bound for a single persistence call
}

// Controller owns the playlist, the active pointer and the player status.
//
// Every command runs under one mutex, so commands are applied one at a time in
// the order they are issued. The controller only waits on collaborators
// outside of that mutex: while the audio engine acknowledges a play request
// and while the catalog answers an import. Code resuming after such a wait
// looks the active track up again by ID and never trusts a value captured
// before it.
type Controller struct {
	mu sync.Mutex

	// Playlist state
	tracks   *playlist.Playlist
	activeID track.ID
	status   Status
	ids      track.IDGenerator

	// Collaborators
	audio   Audio
	store   Store
	catalog Catalog

	// Events
	events *notification.Manager[Event]

	// Random index source for shuffle mode, called with mu held
	intn func(n int) int

	config      Config
	initialized bool

	// Context
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController creates a new playlist controller.
// Call Initialize before issuing commands.
func NewController(config Config, audio Audio, store Store, catalog Catalog) *Controller {
	if !ValidVolume(config.Volume) {
		config.Volume = DefaultVolume
	}
	if !config.Mode.IsValid() {
		config.Mode = ModeSequential
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = 5 * time.Second
	}

	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.BigEndian, &seed)
	rng := rand.New(rand.NewSource(seed))

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		tracks:   playlist.New(),
		activeID: track.NoneID,
		status: Status{
			Volume: config.Volume,
			Mode:   config.Mode,
		},
		audio:   audio,
		store:   store,
		catalog: catalog,
		events:  notification.NewManager[Event](),
		intn:    rng.Intn,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Initialize subscribes to the audio engine, restores persisted tracks and
// selects the first one without starting playback. It may be called once.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return ErrAlreadyInitialized
	}
	c.initialized = true
	volume := c.status.Volume
	c.mu.Unlock()

	// Audio notifications are relayed once the restored playlist is in place.
	c.wg.Add(1)
	defer func() { go c.listen() }()

	c.audio.SetVolume(volume)

	restored, err := c.loadPersisted(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, t := range restored {
		if c.addLocked(t) {
			added++
		}
	}
	zlog.Info().Msgf("playback: restored tracks: entries=%d added=%d", len(restored), added)

	if first, ok := c.tracks.At(0); ok {
		c.publishListLocked()
		// isPlaying is still false, so selection never starts playback here
		c.selectLocked(first.ID)
	}

	return nil
}

// loadPersisted reads every persisted track in store enumeration order.
func (c *Controller) loadPersisted(ctx context.Context) ([]track.Track, error) {
	keys, err := c.store.Keys(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to enumerate persisted tracks")
	}

	restored := make([]track.Track, 0, len(keys))
	for _, key := range keys {
		if !strings.HasPrefix(key, track.KeyPrefix) {
			continue
		}

		value, ok, err := c.store.Get(ctx, key)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read persisted track: key=%s", key)
		}
		if !ok {
			continue
		}

		t, err := track.Unmarshal(value)
		if err != nil {
			zlog.Warn().Msgf("playback: skipping unreadable persisted track: key=%s error=%v", key, err)
			continue
		}
		restored = append(restored, t)
	}

	// Reserve every restored ID before any fresh one is generated
	for _, t := range restored {
		c.ids.Observe(t.ID)
	}

	return restored, nil
}

// Events

// Subscribe registers a stream for all controller events.
func (c *Controller) Subscribe(stream notification.Stream[Event]) string {
	return c.events.Subscribe(stream)
}

// SubscribeFunc registers a callback for all controller events.
func (c *Controller) SubscribeFunc(fn func(Event)) string {
	return c.events.Subscribe(notification.HandlerFunc[Event](fn))
}

// Unsubscribe removes a subscription.
func (c *Controller) Unsubscribe(subscriptionID string) {
	c.events.Unsubscribe(subscriptionID)
}

// Queries

// ActiveID returns the active track ID, or track.NoneID.
func (c *Controller) ActiveID() track.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeID
}

// Status returns a snapshot of the player status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Tracks returns a copy of the playlist in playback order.
func (c *Controller) Tracks() []track.Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracks.Tracks()
}

// TotalDuration returns the summed duration of every track in seconds.
func (c *Controller) TotalDuration() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracks.TotalDuration()
}

// FindByID returns the track with the given ID.
func (c *Controller) FindByID(id track.ID) (track.Track, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracks.Find(id)
}

// Commands

// LoadTopPlaylistByCountry imports the catalog's top entries for a country.
// A nil catalog response leaves the state untouched. Otherwise the list is
// broadcast once after the batch, even when every entry was a duplicate.
func (c *Controller) LoadTopPlaylistByCountry(ctx context.Context, countryCode string) error {
	resp, err := c.catalog.GetTopByCountry(ctx, countryCode)
	if err != nil {
		err = errors.Wrapf(err, "failed to load top playlist: country=%s", countryCode)
		c.fail(err)
		return err
	}
	if resp == nil {
		zlog.Debug().Msgf("playback: catalog returned nothing: country=%s", countryCode)
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, item := range resp.Radios {
		if item.Name == "" || item.URI == "" {
			continue
		}
		if c.addLocked(track.Track{
			ID:       c.ids.Next(),
			Source:   item.URI,
			Title:    item.Name,
			Duration: track.DefaultDuration,
			ImageURL: item.ImageURL,
		}) {
			added++
		}
	}
	c.publishListLocked()

	zlog.Info().Msgf("playback: imported top playlist: country=%s received=%d added=%d",
		countryCode, len(resp.Radios), added)
	return nil
}

// SelectSong makes the track with the given ID active. An unknown ID clears
// the selection. When the player is playing, playback resumes at the
// selected track's stored position.
func (c *Controller) SelectSong(ctx context.Context, id track.ID) error {
	c.mu.Lock()
	resume, at := c.selectLocked(id)
	c.mu.Unlock()

	if !resume {
		return nil
	}
	return c.Play(ctx, at)
}

// AddFromSource wraps a user-provided source into a new track and adds it.
// A nil or empty source is ignored.
func (c *Controller) AddFromSource(src *Source) bool {
	if src == nil || src.Locator == "" {
		return false
	}

	title := src.Label
	if title == "" {
		title = filepath.Base(src.Locator)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	added := c.addLocked(track.Track{
		ID:       c.ids.Next(),
		Source:   src.Locator,
		Title:    title,
		Duration: track.DefaultDuration,
	})
	c.publishListLocked()
	return added
}

// AddSong persists and appends a track unless one with the same title exists.
// It does not broadcast, so callers can batch insertions.
func (c *Controller) AddSong(t track.Track) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addLocked(t)
}

// RemoveSong removes a track and its persisted copy. Removing the active track
// first advances according to the current mode.
func (c *Controller) RemoveSong(ctx context.Context, id track.ID) error {
	c.mu.Lock()

	var resume bool
	var at float64
	var stop bool
	var stopSource string
	if c.activeID == id && c.tracks.Len() > 0 {
		resume, at, _ = c.forwardLocked()
	}

	if removed, idx, ok := c.tracks.Remove(id); ok {
		c.deleteLocked(removed.Key())

		// The advance can land on the removed track itself (a single track,
		// repeat mode, or a shuffle pick). Fall back to the track that took
		// its place so the pointer never dangles.
		if c.activeID == id {
			next := track.NoneID
			if n := c.tracks.Len(); n > 0 {
				t, _ := c.tracks.At(idx % n)
				next = t.ID
			}
			resume, at = c.selectLocked(next)

			if next == track.NoneID && c.status.IsPlaying {
				c.status.IsPlaying = false
				c.publishStatusLocked()
				stop, stopSource = true, removed.Source
			}
		}
	}
	c.publishListLocked()
	c.mu.Unlock()

	if stop {
		if err := c.audio.Pause(ctx, stopSource); err != nil {
			err = errors.Wrapf(err, "failed to stop removed track: id=%d", id)
			c.fail(err)
			return err
		}
		return nil
	}
	if !resume {
		return nil
	}
	return c.Play(ctx, at)
}

// UpdateSong replaces the stored track with the same ID and broadcasts the
// status and the track. The title keys the persisted entry and cannot change.
func (c *Controller) UpdateSong(t track.Track) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updateLocked(t)
}

// Play asks the audio engine to play the active track from startTime.
//
// The engine is called without holding the controller lock. Once it answers,
// the active track is looked up again: if the selection was cleared in the
// meantime the result is discarded, otherwise the reported position and
// duration are recorded on whatever track is active now.
func (c *Controller) Play(ctx context.Context, startTime float64) error {
	c.mu.Lock()
	t, ok := c.tracks.Find(c.activeID)
	c.mu.Unlock()
	if !ok {
		return ErrNoActiveTrack
	}
	if startTime < 0 {
		startTime = 0
	}

	progress, err := c.audio.Play(ctx, t.Source, startTime)
	if err != nil {
		err = errors.Wrapf(err, "failed to play track: id=%d title=%s", t.ID, t.Title)
		c.fail(err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.tracks.Find(c.activeID)
	if !ok {
		zlog.Debug().Msgf("playback: discarding stale play result: id=%d", t.ID)
		return nil
	}

	c.status.IsPlaying = true
	current.CurrentTime = progress.CurrentTime
	current.Duration = progress.Duration
	return c.updateLocked(current)
}

// Pause marks the player as paused, broadcasts the status and then pauses the
// audio engine.
func (c *Controller) Pause(ctx context.Context) error {
	c.mu.Lock()
	c.status.IsPlaying = false
	c.publishStatusLocked()
	t, ok := c.tracks.Find(c.activeID)
	c.mu.Unlock()

	if !ok {
		return nil
	}
	if err := c.audio.Pause(ctx, t.Source); err != nil {
		err = errors.Wrapf(err, "failed to pause track: id=%d", t.ID)
		c.fail(err)
		return err
	}
	return nil
}

// Forward advances according to the playback mode.
func (c *Controller) Forward(ctx context.Context) error {
	c.mu.Lock()
	resume, at, err := c.forwardLocked()
	c.mu.Unlock()

	if err != nil || !resume {
		return err
	}
	return c.Play(ctx, at)
}

// Backward moves to the previous track, wrapping to the last one.
// The playback mode is ignored.
func (c *Controller) Backward(ctx context.Context) error {
	c.mu.Lock()
	n := c.tracks.Len()
	if n == 0 {
		c.mu.Unlock()
		return ErrPlaylistEmpty
	}
	idx := c.tracks.IndexOf(c.activeID) - 1
	if idx < 0 {
		idx = n - 1
	}
	prev, _ := c.tracks.At(idx)
	c.activeID = prev.ID
	resume, at := c.selectLocked(c.activeID)
	c.mu.Unlock()

	if !resume {
		return nil
	}
	return c.Play(ctx, at)
}

// SetMode changes the playback mode. Current playback is unaffected.
func (c *Controller) SetMode(mode Mode) {
	if !mode.IsValid() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Mode = mode
	c.publishStatusLocked()
}

// SetVolume changes the volume. Values outside [0,1] are ignored.
func (c *Controller) SetVolume(volume float64) bool {
	if !ValidVolume(volume) {
		return false
	}

	c.mu.Lock()
	c.status.Volume = volume
	c.publishStatusLocked()
	c.mu.Unlock()

	c.audio.SetVolume(volume)
	return true
}

// Close stops listening to the audio engine and closes the event stream.
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
	c.events.Close()
}

// listen relays the audio engine's streams until the controller is closed.
func (c *Controller) listen() {
	defer c.wg.Done()

	ticks := c.audio.Ticks()
	ended := c.audio.Ended()
	for {
		select {
		case <-c.ctx.Done():
			return
		case seconds, ok := <-ticks:
			if !ok {
				ticks = nil
				continue
			}
			c.onTick(seconds)
		case _, ok := <-ended:
			if !ok {
				ended = nil
				continue
			}
			// The final position is sent just before the end signal and
			// belongs to the track that ended.
			select {
			case seconds, ok := <-ticks:
				if ok {
					c.onTick(seconds)
				}
			default:
			}
			c.onEnded()
		}
	}
}

// onTick records the position of the active track.
func (c *Controller) onTick(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.tracks.SetCurrentTime(c.activeID, seconds) {
		return
	}
	t, _ := c.tracks.Find(c.activeID)
	_ = c.updateLocked(t)
}

// onEnded advances once the active track has played to its end.
func (c *Controller) onEnded() {
	if err := c.Forward(c.ctx); err != nil && !errors.Is(err, ErrPlaylistEmpty) {
		zlog.Warn().Msgf("playback: failed to advance after track end: %v", err)
	}
}

// selectLocked points at id (or clears the pointer when id is unknown) and
// broadcasts the result. It reports whether playback should resume and where.
// Must be called with lock held.
func (c *Controller) selectLocked(id track.ID) (bool, float64) {
	t, ok := c.tracks.Find(id)
	if !ok {
		c.activeID = track.NoneID
		c.publishActiveLocked(nil)
		return false, 0
	}

	c.activeID = id
	c.publishActiveLocked(&t)
	return c.status.IsPlaying, t.CurrentTime
}

// forwardLocked moves the pointer according to the playback mode and selects
// the resulting track.
// Must be called with lock held.
func (c *Controller) forwardLocked() (bool, float64, error) {
	n := c.tracks.Len()
	if n == 0 {
		return false, 0, ErrPlaylistEmpty
	}

	idx := c.tracks.IndexOf(c.activeID)
	switch c.status.Mode {
	case ModeRepeat:
		if idx < 0 {
			idx = 0
		} else {
			c.tracks.SetCurrentTime(c.activeID, 0)
		}
	case ModeShuffle:
		idx = c.intn(n)
	default:
		idx = (idx + 1) % n
	}

	next, _ := c.tracks.At(idx)
	c.activeID = next.ID
	resume, at := c.selectLocked(c.activeID)
	return resume, at, nil
}

// addLocked persists and appends a track unless its title is taken.
// Must be called with lock held.
func (c *Controller) addLocked(t track.Track) bool {
	if c.tracks.HasTitle(t.Title) {
		zlog.Debug().Msgf("playback: skipping duplicate title: title=%s", t.Title)
		return false
	}
	if c.tracks.IndexOf(t.ID) >= 0 || t.ID < 0 {
		t.ID = c.ids.Next()
	}
	c.ids.Observe(t.ID)
	if t.Duration <= 0 {
		t.Duration = track.DefaultDuration
	}

	c.persistLocked(t)
	c.tracks.Append(t)
	return true
}

// updateLocked replaces a track and broadcasts the status and the track.
// Must be called with lock held.
func (c *Controller) updateLocked(t track.Track) error {
	current, ok := c.tracks.Find(t.ID)
	if !ok {
		return errors.Wrapf(ErrTrackNotFound, "id=%d", t.ID)
	}
	if current.Title != t.Title {
		return errors.Wrapf(ErrTitleChanged, "id=%d title=%s", t.ID, current.Title)
	}
	c.tracks.Replace(t)
	c.publishStatusLocked()
	c.publishActiveLocked(&t)
	return nil
}

// persistLocked writes a track to the store. Failures are reported on the
// event stream and do not abort the command.
func (c *Controller) persistLocked(t track.Track) {
	value, err := t.Marshal()
	if err != nil {
		c.fail(err)
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.config.StoreTimeout)
	defer cancel()
	if err := c.store.Set(ctx, t.Key(), value); err != nil {
		c.fail(errors.Wrapf(err, "failed to persist track: key=%s", t.Key()))
	}
}

// deleteLocked removes a persisted track.
func (c *Controller) deleteLocked(key string) {
	ctx, cancel := context.WithTimeout(c.ctx, c.config.StoreTimeout)
	defer cancel()
	if err := c.store.Delete(ctx, key); err != nil {
		c.fail(errors.Wrapf(err, "failed to delete persisted track: key=%s", key))
	}
}

func (c *Controller) publishListLocked() {
	c.events.Publish(Event{
		Type:   EventListChanged,
		Tracks: c.tracks.Tracks(),
	})
}

func (c *Controller) publishActiveLocked(t *track.Track) {
	var snapshot *track.Track
	if t != nil {
		copied := *t
		snapshot = &copied
	}
	c.events.Publish(Event{
		Type:  EventActiveChanged,
		Track: snapshot,
	})
}

func (c *Controller) publishStatusLocked() {
	c.events.Publish(Event{
		Type:   EventStatusChanged,
		Status: c.status,
	})
}

// fail logs a collaborator failure and publishes it on the event stream.
func (c *Controller) fail(err error) {
	zlog.Error().Msgf("playback: %v", err)
	c.events.Publish(Event{
		Type: EventError,
		Err:  err,
	})
}
