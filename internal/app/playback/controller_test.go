package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/playdeck/internal/app/catalog"
	"github.com/osa030/playdeck/internal/domain/track"
)

// fakeAudio records calls and lets tests drive the tick and end streams.
type fakeAudio struct {
	mu      sync.Mutex
	plays   []playCall
	pauses  []string
	volume  float64
	playErr error
	onPlay  func()

	ticks chan float64
	ended chan struct{}
}

type playCall struct {
	source string
	start  float64
}

func newFakeAudio() *fakeAudio {
	return &fakeAudio{
		volume: -1,
		ticks:  make(chan float64),
		ended:  make(chan struct{}),
	}
}

func (a *fakeAudio) Play(ctx context.Context, source string, startTime float64) (track.Progress, error) {
	a.mu.Lock()
	a.plays = append(a.plays, playCall{source: source, start: startTime})
	hook, err := a.onPlay, a.playErr
	a.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return track.Progress{}, err
	}
	return track.Progress{CurrentTime: startTime, Duration: 100}, nil
}

func (a *fakeAudio) Pause(ctx context.Context, source string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pauses = append(a.pauses, source)
	return nil
}

func (a *fakeAudio) SetVolume(volume float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.volume = volume
}

func (a *fakeAudio) Ticks() <-chan float64  { return a.ticks }
func (a *fakeAudio) Ended() <-chan struct{} { return a.ended }

func (a *fakeAudio) playCalls() []playCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]playCall(nil), a.plays...)
}

func (a *fakeAudio) pausedSources() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.pauses...)
}

func (a *fakeAudio) currentVolume() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.volume
}

// fakeStore is an ordered map that counts writes.
type fakeStore struct {
	mu      sync.Mutex
	keys    []string
	values  map[string]string
	writes  int
	failSet bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: make(map[string]string)}
}

func (s *fakeStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keys...), nil
}

func (s *fakeStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *fakeStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSet {
		return errors.New("disk full")
	}
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
	s.writes++
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
	return nil
}

func (s *fakeStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.values[key]
	return ok
}

func (s *fakeStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *fakeStore) seed(t *testing.T, tracks ...track.Track) {
	t.Helper()
	for _, tr := range tracks {
		v, err := tr.Marshal()
		require.NoError(t, err)
		require.NoError(t, s.Set(context.Background(), tr.Key(), v))
	}
	s.writes = 0
}

type fakeCatalog struct {
	resp *catalog.Response
	err  error
}

func (f *fakeCatalog) GetTopByCountry(ctx context.Context, countryCode string) (*catalog.Response, error) {
	return f.resp, f.err
}

// eventRecorder collects controller events.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *eventRecorder) ofType(typ EventType) []Event {
	var out []Event
	for _, e := range r.all() {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func (r *eventRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type harness struct {
	c       *Controller
	audio   *fakeAudio
	store   *fakeStore
	catalog *fakeCatalog
	events  *eventRecorder
}

func song(id track.ID, title string) track.Track {
	return track.Track{ID: id, Source: "/music/" + title + ".mp3", Title: title, Duration: 180}
}

// newHarness creates an initialized controller whose store holds tracks.
func newHarness(t *testing.T, tracks ...track.Track) *harness {
	t.Helper()

	h := &harness{
		audio:   newFakeAudio(),
		store:   newFakeStore(),
		catalog: &fakeCatalog{},
		events:  &eventRecorder{},
	}
	h.store.seed(t, tracks...)
	h.c = NewController(Config{Volume: 0.8, Mode: ModeSequential}, h.audio, h.store, h.catalog)
	t.Cleanup(h.c.Close)

	h.c.SubscribeFunc(h.events.record)
	require.NoError(t, h.c.Initialize(context.Background()))
	h.flush()
	return h
}

func (h *harness) flush() {
	h.c.events.Flush()
}

// reset drains pending events and forgets everything recorded so far.
func (h *harness) reset() {
	h.flush()
	h.events.reset()
}

func (h *harness) ids() []track.ID {
	var ids []track.ID
	for _, t := range h.c.Tracks() {
		ids = append(ids, t.ID)
	}
	return ids
}

func abc() []track.Track {
	return []track.Track{song(1, "A"), song(2, "B"), song(3, "C")}
}

func TestController_InitializeRestoresPersistedTracks(t *testing.T) {
	h := &harness{audio: newFakeAudio(), store: newFakeStore(), catalog: &fakeCatalog{}, events: &eventRecorder{}}
	h.store.seed(t, song(1, "A"), song(2, "B"))
	require.NoError(t, h.store.Set(context.Background(), "settings", `{"theme":"dark"}`))
	require.NoError(t, h.store.Set(context.Background(), "song_broken", `{not json`))

	h.c = NewController(Config{Volume: 0.3}, h.audio, h.store, h.catalog)
	t.Cleanup(h.c.Close)
	h.c.SubscribeFunc(h.events.record)

	require.NoError(t, h.c.Initialize(context.Background()))
	h.flush()

	assert.Equal(t, []track.ID{1, 2}, h.ids())
	assert.Equal(t, track.ID(1), h.c.ActiveID())
	assert.Equal(t, 0.3, h.audio.currentVolume())
	assert.False(t, h.c.Status().IsPlaying)
	assert.Empty(t, h.audio.playCalls(), "initialization never starts playback")

	events := h.events.all()
	require.Len(t, events, 2)
	assert.Equal(t, EventListChanged, events[0].Type)
	assert.Len(t, events[0].Tracks, 2)
	assert.Equal(t, EventActiveChanged, events[1].Type)
	require.NotNil(t, events[1].Track)
	assert.Equal(t, "A", events[1].Track.Title)

	assert.ErrorIs(t, h.c.Initialize(context.Background()), ErrAlreadyInitialized)
}

func TestController_InitializeWithEmptyStore(t *testing.T) {
	h := newHarness(t)

	assert.Empty(t, h.c.Tracks())
	assert.Equal(t, track.NoneID, h.c.ActiveID())
	assert.Empty(t, h.events.all(), "no selection is attempted")
	assert.Empty(t, h.audio.playCalls())
}

func TestController_RestoredIDsNeverCollide(t *testing.T) {
	h := newHarness(t, song(5, "E"), song(2, "B"))

	require.True(t, h.c.AddFromSource(&Source{Locator: "/music/new.mp3"}))

	ids := h.ids()
	assert.Equal(t, []track.ID{5, 2, 6}, ids)
}

func TestController_AddSongSkipsDuplicateTitle(t *testing.T) {
	h := newHarness(t, abc()...)
	before := h.store.writeCount()

	added := h.c.AddSong(track.Track{ID: 10, Source: "/elsewhere/B.mp3", Title: "B"})

	assert.False(t, added)
	assert.Len(t, h.c.Tracks(), 3)
	assert.Equal(t, before, h.store.writeCount())
}

func TestController_AddSongPersists(t *testing.T) {
	h := newHarness(t, abc()...)
	h.reset()

	require.True(t, h.c.AddSong(track.Track{ID: 2, Source: "/music/D.mp3", Title: "D"}))
	h.flush()

	tracks := h.c.Tracks()
	require.Len(t, tracks, 4)
	assert.Equal(t, "D", tracks[3].Title)
	assert.NotContains(t, []track.ID{1, 2, 3}, tracks[3].ID, "colliding id is reassigned")
	assert.Equal(t, track.DefaultDuration, tracks[3].Duration)
	assert.True(t, h.store.has("song_D"))
	assert.Empty(t, h.events.all(), "AddSong does not broadcast")
}

func TestController_AddFromSource(t *testing.T) {
	h := newHarness(t)

	assert.False(t, h.c.AddFromSource(nil))
	assert.False(t, h.c.AddFromSource(&Source{}))

	require.True(t, h.c.AddFromSource(&Source{Locator: "/home/me/Music/track01.wav"}))
	require.True(t, h.c.AddFromSource(&Source{Locator: "/tmp/x.mp3", Label: "Live Set"}))
	assert.False(t, h.c.AddFromSource(&Source{Locator: "/other/track01.wav"}))
	h.flush()

	tracks := h.c.Tracks()
	require.Len(t, tracks, 2)
	assert.Equal(t, "track01.wav", tracks[0].Title)
	assert.Equal(t, "Live Set", tracks[1].Title)
	assert.Len(t, h.events.ofType(EventListChanged), 3, "every attempt broadcasts the list")
}

func TestController_ForwardSequential(t *testing.T) {
	tests := []struct {
		name     string
		start    track.ID
		expected []track.ID
	}{
		{name: "from middle wraps after last", start: 2, expected: []track.ID{3, 1}},
		{name: "from first", start: 1, expected: []track.ID{2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, abc()...)
			require.NoError(t, h.c.SelectSong(context.Background(), tt.start))

			for _, want := range tt.expected {
				require.NoError(t, h.c.Forward(context.Background()))
				assert.Equal(t, want, h.c.ActiveID())
			}
		})
	}
}

func TestController_Backward(t *testing.T) {
	h := newHarness(t, abc()...)
	ctx := context.Background()
	require.Equal(t, track.ID(1), h.c.ActiveID())

	require.NoError(t, h.c.Backward(ctx))
	assert.Equal(t, track.ID(3), h.c.ActiveID())

	require.NoError(t, h.c.Backward(ctx))
	assert.Equal(t, track.ID(2), h.c.ActiveID())

	h.c.SetMode(ModeShuffle)
	h.c.intn = func(int) int { panic("backward ignores the mode") }
	require.NoError(t, h.c.Backward(ctx))
	assert.Equal(t, track.ID(1), h.c.ActiveID())
}

func TestController_ForwardRepeatRestartsCurrentTrack(t *testing.T) {
	h := newHarness(t, abc()...)
	ctx := context.Background()
	require.NoError(t, h.c.SelectSong(ctx, 2))

	b, _ := h.c.FindByID(2)
	b.CurrentTime = 42
	require.NoError(t, h.c.UpdateSong(b))

	h.c.SetMode(ModeRepeat)
	require.NoError(t, h.c.Forward(ctx))

	assert.Equal(t, track.ID(2), h.c.ActiveID())
	b, _ = h.c.FindByID(2)
	assert.Equal(t, 0.0, b.CurrentTime)
}

func TestController_ForwardShuffle(t *testing.T) {
	h := newHarness(t, abc()...)
	h.c.SetMode(ModeShuffle)

	var gotN int
	h.c.intn = func(n int) int {
		gotN = n
		return 2
	}
	require.NoError(t, h.c.Forward(context.Background()))

	assert.Equal(t, 3, gotN)
	assert.Equal(t, track.ID(3), h.c.ActiveID())
}

func TestController_NavigationOnEmptyPlaylist(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	assert.ErrorIs(t, h.c.Forward(ctx), ErrPlaylistEmpty)
	assert.ErrorIs(t, h.c.Backward(ctx), ErrPlaylistEmpty)
	assert.ErrorIs(t, h.c.Play(ctx, 0), ErrNoActiveTrack)
	assert.Equal(t, track.NoneID, h.c.ActiveID())
}

func TestController_SetVolume(t *testing.T) {
	tests := []struct {
		name     string
		volume   float64
		accepted bool
	}{
		{name: "below range", volume: -0.1, accepted: false},
		{name: "above range", volume: 1.1, accepted: false},
		{name: "in range", volume: 0.5, accepted: true},
		{name: "upper bound", volume: 1, accepted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			assert.Equal(t, tt.accepted, h.c.SetVolume(tt.volume))
			h.flush()

			status := h.events.ofType(EventStatusChanged)
			if tt.accepted {
				assert.Equal(t, tt.volume, h.c.Status().Volume)
				assert.Equal(t, tt.volume, h.audio.currentVolume())
				require.Len(t, status, 1)
				assert.Equal(t, tt.volume, status[0].Status.Volume)
			} else {
				assert.Equal(t, 0.8, h.c.Status().Volume)
				assert.Empty(t, status)
			}
		})
	}
}

func TestController_SetMode(t *testing.T) {
	h := newHarness(t)

	h.c.SetMode(Mode(42))
	h.flush()
	assert.Equal(t, ModeSequential, h.c.Status().Mode)
	assert.Empty(t, h.events.all())

	h.c.SetMode(ModeRepeat)
	h.flush()
	assert.Equal(t, ModeRepeat, h.c.Status().Mode)
	require.Len(t, h.events.ofType(EventStatusChanged), 1)
}

func TestController_RemoveSong(t *testing.T) {
	tests := []struct {
		name       string
		mode       Mode
		tracks     []track.Track
		active     track.ID
		remove     track.ID
		wantActive track.ID
		wantIDs    []track.ID
	}{
		{
			name:       "active advances sequentially",
			mode:       ModeSequential,
			tracks:     abc(),
			active:     2,
			remove:     2,
			wantActive: 3,
			wantIDs:    []track.ID{1, 3},
		},
		{
			name:       "active last wraps to first",
			mode:       ModeSequential,
			tracks:     abc(),
			active:     3,
			remove:     3,
			wantActive: 1,
			wantIDs:    []track.ID{1, 2},
		},
		{
			name:       "repeat falls back to the track taking its place",
			mode:       ModeRepeat,
			tracks:     abc(),
			active:     2,
			remove:     2,
			wantActive: 3,
			wantIDs:    []track.ID{1, 3},
		},
		{
			name:       "only track leaves nothing selected",
			mode:       ModeSequential,
			tracks:     []track.Track{song(7, "Solo")},
			active:     7,
			remove:     7,
			wantActive: track.NoneID,
			wantIDs:    nil,
		},
		{
			name:       "inactive track keeps the selection",
			mode:       ModeSequential,
			tracks:     abc(),
			active:     1,
			remove:     3,
			wantActive: 1,
			wantIDs:    []track.ID{1, 2},
		},
		{
			name:       "unknown id only broadcasts",
			mode:       ModeSequential,
			tracks:     abc(),
			active:     1,
			remove:     99,
			wantActive: 1,
			wantIDs:    []track.ID{1, 2, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.tracks...)
			ctx := context.Background()
			require.NoError(t, h.c.SelectSong(ctx, tt.active))
			h.c.SetMode(tt.mode)
			h.flush()
			h.reset()

			require.NoError(t, h.c.RemoveSong(ctx, tt.remove))
			h.flush()

			assert.Equal(t, tt.wantActive, h.c.ActiveID())
			assert.Equal(t, tt.wantIDs, h.ids())
			assert.NotEqual(t, tt.remove, h.c.ActiveID())

			lists := h.events.ofType(EventListChanged)
			require.Len(t, lists, 1)
			assert.Len(t, lists[0].Tracks, len(tt.wantIDs))

			for _, orig := range tt.tracks {
				if orig.ID == tt.remove {
					assert.False(t, h.store.has(orig.Key()), "persisted copy is deleted")
				}
			}
		})
	}
}

func TestController_RemoveOnlyTrackBroadcastsEmptySelection(t *testing.T) {
	h := newHarness(t, song(1, "Solo"))
	h.reset()

	require.NoError(t, h.c.RemoveSong(context.Background(), 1))
	h.flush()

	active := h.events.ofType(EventActiveChanged)
	require.NotEmpty(t, active)
	assert.Nil(t, active[len(active)-1].Track)
}

func TestController_RemoveOnlyTrackWhilePlayingStopsPlayback(t *testing.T) {
	h := newHarness(t, song(1, "Solo"))
	ctx := context.Background()
	require.NoError(t, h.c.Play(ctx, 0))
	h.reset()

	require.NoError(t, h.c.RemoveSong(ctx, 1))
	h.flush()

	assert.Equal(t, track.NoneID, h.c.ActiveID())
	assert.False(t, h.c.Status().IsPlaying)
	assert.Equal(t, []string{"/music/Solo.mp3"}, h.audio.pausedSources())
	assert.Len(t, h.audio.playCalls(), 1, "nothing is left to resume")

	status := h.events.ofType(EventStatusChanged)
	require.Len(t, status, 1)
	assert.False(t, status[0].Status.IsPlaying)
}

func TestController_RemoveActiveWhilePlayingResumesNext(t *testing.T) {
	h := newHarness(t, abc()...)
	ctx := context.Background()
	require.NoError(t, h.c.Play(ctx, 0))

	require.NoError(t, h.c.RemoveSong(ctx, 1))

	plays := h.audio.playCalls()
	require.Len(t, plays, 2)
	assert.Equal(t, "/music/B.mp3", plays[1].source)
	assert.Equal(t, track.ID(2), h.c.ActiveID())
	assert.True(t, h.c.Status().IsPlaying)
}

func TestController_Play(t *testing.T) {
	h := newHarness(t, abc()...)
	h.reset()

	require.NoError(t, h.c.Play(context.Background(), 3))
	h.flush()

	assert.Equal(t, []playCall{{source: "/music/A.mp3", start: 3}}, h.audio.playCalls())
	assert.True(t, h.c.Status().IsPlaying)

	a, _ := h.c.FindByID(1)
	assert.Equal(t, 3.0, a.CurrentTime)
	assert.Equal(t, 100.0, a.Duration)

	events := h.events.all()
	require.Len(t, events, 2)
	assert.Equal(t, EventStatusChanged, events[0].Type)
	assert.True(t, events[0].Status.IsPlaying)
	assert.Equal(t, EventActiveChanged, events[1].Type)
	assert.Equal(t, 100.0, events[1].Track.Duration)
}

func TestController_PlayFailurePublishesError(t *testing.T) {
	h := newHarness(t, abc()...)
	h.audio.playErr = errors.New("device busy")
	h.reset()

	err := h.c.Play(context.Background(), 0)
	h.flush()

	assert.Error(t, err)
	assert.False(t, h.c.Status().IsPlaying)
	failures := h.events.ofType(EventError)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Err.Error(), "device busy")
}

func TestController_StalePlayResultIsDiscarded(t *testing.T) {
	h := newHarness(t, song(1, "Solo"))
	ctx := context.Background()
	h.audio.onPlay = func() {
		require.NoError(t, h.c.RemoveSong(ctx, 1))
	}

	require.NoError(t, h.c.Play(ctx, 0))
	h.flush()

	assert.False(t, h.c.Status().IsPlaying)
	assert.Equal(t, track.NoneID, h.c.ActiveID())
	assert.Empty(t, h.c.Tracks())
	assert.Empty(t, h.events.ofType(EventStatusChanged))
}

func TestController_Pause(t *testing.T) {
	h := newHarness(t, abc()...)
	ctx := context.Background()
	require.NoError(t, h.c.Play(ctx, 0))
	h.reset()

	require.NoError(t, h.c.Pause(ctx))
	h.flush()

	assert.False(t, h.c.Status().IsPlaying)
	assert.Equal(t, []string{"/music/A.mp3"}, h.audio.pausedSources())
	status := h.events.ofType(EventStatusChanged)
	require.Len(t, status, 1)
	assert.False(t, status[0].Status.IsPlaying)
}

func TestController_SelectSong(t *testing.T) {
	h := newHarness(t, abc()...)
	ctx := context.Background()

	require.NoError(t, h.c.SelectSong(ctx, 3))
	assert.Equal(t, track.ID(3), h.c.ActiveID())
	assert.Empty(t, h.audio.playCalls(), "paused player stays paused")

	// While playing, selection resumes at the stored position.
	require.NoError(t, h.c.Play(ctx, 0))
	b, _ := h.c.FindByID(2)
	b.CurrentTime = 7
	require.NoError(t, h.c.UpdateSong(b))

	require.NoError(t, h.c.SelectSong(ctx, 2))
	plays := h.audio.playCalls()
	require.Len(t, plays, 2)
	assert.Equal(t, playCall{source: "/music/B.mp3", start: 7}, plays[1])

	h.reset()
	require.NoError(t, h.c.SelectSong(ctx, 99))
	h.flush()
	assert.Equal(t, track.NoneID, h.c.ActiveID())
	active := h.events.ofType(EventActiveChanged)
	require.Len(t, active, 1)
	assert.Nil(t, active[0].Track)
}

func TestController_UpdateSong(t *testing.T) {
	h := newHarness(t, abc()...)
	h.reset()

	c, _ := h.c.FindByID(3)
	c.Liked = true
	require.NoError(t, h.c.UpdateSong(c))
	h.flush()

	got, _ := h.c.FindByID(3)
	assert.True(t, got.Liked)
	assert.Len(t, h.events.ofType(EventStatusChanged), 1)
	assert.Len(t, h.events.ofType(EventActiveChanged), 1)

	err := h.c.UpdateSong(track.Track{ID: 99, Title: "Ghost"})
	assert.ErrorIs(t, err, ErrTrackNotFound)
}

func TestController_UpdateSongKeepsTitle(t *testing.T) {
	h := newHarness(t, abc()...)
	h.reset()

	renamed := song(2, "Renamed")
	err := h.c.UpdateSong(renamed)
	h.flush()

	assert.ErrorIs(t, err, ErrTitleChanged)
	got, _ := h.c.FindByID(2)
	assert.Equal(t, "B", got.Title)
	assert.Empty(t, h.events.all())

	// The persisted entry stays under its original key, so removal leaves no trace.
	require.NoError(t, h.c.RemoveSong(context.Background(), 2))
	assert.False(t, h.store.has("song_B"))
	assert.False(t, h.store.has("song_Renamed"))
}

func TestController_TotalDuration(t *testing.T) {
	h := newHarness(t, abc()...)
	assert.Equal(t, 540.0, h.c.TotalDuration())

	require.NoError(t, h.c.RemoveSong(context.Background(), 3))
	assert.Equal(t, 360.0, h.c.TotalDuration())
}

func TestController_LoadTopPlaylistByCountry(t *testing.T) {
	h := newHarness(t, song(1, "FIP"))
	h.catalog.resp = &catalog.Response{Radios: []catalog.Item{
		{URI: "http://radio/fip", Name: "FIP"},
		{URI: "http://radio/nova", Name: "Nova", ImageURL: "http://radio/nova.png"},
		{URI: "http://radio/tsf", Name: "TSF Jazz"},
		{URI: "", Name: "Broken"},
	}}
	h.reset()

	require.NoError(t, h.c.LoadTopPlaylistByCountry(context.Background(), "FR"))
	h.flush()

	tracks := h.c.Tracks()
	require.Len(t, tracks, 3)
	assert.Equal(t, "Nova", tracks[1].Title)
	assert.Equal(t, "http://radio/nova", tracks[1].Source)
	assert.Equal(t, "http://radio/nova.png", tracks[1].ImageURL)
	assert.Equal(t, track.DefaultDuration, tracks[1].Duration)
	assert.True(t, h.store.has("song_TSF Jazz"))

	lists := h.events.ofType(EventListChanged)
	require.Len(t, lists, 1, "one broadcast per batch")
	assert.Len(t, lists[0].Tracks, 3)
}

func TestController_LoadTopPlaylistEmptyStillBroadcasts(t *testing.T) {
	h := newHarness(t, abc()...)
	h.catalog.resp = &catalog.Response{Radios: []catalog.Item{}}
	h.reset()

	require.NoError(t, h.c.LoadTopPlaylistByCountry(context.Background(), "FR"))
	h.flush()

	assert.Len(t, h.c.Tracks(), 3)
	lists := h.events.ofType(EventListChanged)
	require.Len(t, lists, 1)
	assert.Len(t, lists[0].Tracks, 3)
}

func TestController_LoadTopPlaylistNilResponse(t *testing.T) {
	h := newHarness(t)
	h.catalog.resp = nil

	require.NoError(t, h.c.LoadTopPlaylistByCountry(context.Background(), "FR"))
	h.flush()

	assert.Empty(t, h.c.Tracks())
	assert.Empty(t, h.events.all())
}

func TestController_LoadTopPlaylistFailure(t *testing.T) {
	h := newHarness(t)
	h.catalog.err = errors.New("catalog offline")

	err := h.c.LoadTopPlaylistByCountry(context.Background(), "FR")
	h.flush()

	assert.Error(t, err)
	assert.Len(t, h.events.ofType(EventError), 1)
}

func TestController_PersistFailureKeepsTrack(t *testing.T) {
	h := newHarness(t)
	h.store.failSet = true

	require.True(t, h.c.AddSong(song(1, "A")))
	h.flush()

	assert.Len(t, h.c.Tracks(), 1)
	assert.Len(t, h.events.ofType(EventError), 1)
}

func TestController_TickRecordsPosition(t *testing.T) {
	h := newHarness(t, abc()...)

	h.audio.ticks <- 12.5

	require.Eventually(t, func() bool {
		a, _ := h.c.FindByID(1)
		return a.CurrentTime == 12.5
	}, time.Second, 5*time.Millisecond)
}

func TestController_EndedAdvances(t *testing.T) {
	h := newHarness(t, abc()...)
	ctx := context.Background()
	require.NoError(t, h.c.Play(ctx, 0))

	h.audio.ended <- struct{}{}

	require.Eventually(t, func() bool {
		return h.c.ActiveID() == 2
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return len(h.audio.playCalls()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "/music/B.mp3", h.audio.playCalls()[1].source)
}

func TestController_FinalTickBelongsToEndedTrack(t *testing.T) {
	audio := newFakeAudio()
	audio.ticks = make(chan float64, 1)
	audio.ended = make(chan struct{}, 1)
	h := &harness{audio: audio, store: newFakeStore(), catalog: &fakeCatalog{}, events: &eventRecorder{}}
	h.store.seed(t, abc()...)
	h.c = NewController(Config{Volume: 0.8}, h.audio, h.store, h.catalog)
	t.Cleanup(h.c.Close)

	// Both signals are pending before the controller starts reading them.
	audio.ticks <- 180
	audio.ended <- struct{}{}
	require.NoError(t, h.c.Initialize(context.Background()))

	require.Eventually(t, func() bool {
		return h.c.ActiveID() == 2
	}, time.Second, 5*time.Millisecond)

	a, _ := h.c.FindByID(1)
	b, _ := h.c.FindByID(2)
	assert.Equal(t, 180.0, a.CurrentTime)
	assert.Equal(t, 0.0, b.CurrentTime)
}
