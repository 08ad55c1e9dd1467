// Package connect provides Connect RPC service implementations.
package connect

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/osa030/playdeck/internal/app/notification"
	"github.com/osa030/playdeck/internal/app/playback"
	"github.com/osa030/playdeck/internal/domain/track"
	"github.com/osa030/playdeck/internal/infra/config"
)

// PlayerServiceName is the fully-qualified name of the player service.
// The service is described in proto/player/v1/player.proto.
const PlayerServiceName = "player.v1.PlayerService"

// Procedure paths of the player service.
const (
	GetStateProcedure   = "/" + PlayerServiceName + "/GetState"
	ListTracksProcedure = "/" + PlayerServiceName + "/ListTracks"
	SelectSongProcedure = "/" + PlayerServiceName + "/SelectSong"
	AddSourceProcedure  = "/" + PlayerServiceName + "/AddSource"
	RemoveSongProcedure = "/" + PlayerServiceName + "/RemoveSong"
	UpdateSongProcedure = "/" + PlayerServiceName + "/UpdateSong"
	PlayProcedure       = "/" + PlayerServiceName + "/Play"
	PauseProcedure      = "/" + PlayerServiceName + "/Pause"
	ForwardProcedure    = "/" + PlayerServiceName + "/Forward"
	BackwardProcedure   = "/" + PlayerServiceName + "/Backward"
	SetModeProcedure    = "/" + PlayerServiceName + "/SetMode"
	SetVolumeProcedure  = "/" + PlayerServiceName + "/SetVolume"
	ImportTopProcedure  = "/" + PlayerServiceName + "/ImportTop"
	SubscribeProcedure  = "/" + PlayerServiceName + "/Subscribe"
)

// Player is the controller surface exposed over RPC.
type Player interface {
	ActiveID() track.ID
	Status() playback.Status
	Tracks() []track.Track
	TotalDuration() float64
	FindByID(id track.ID) (track.Track, bool)

	SelectSong(ctx context.Context, id track.ID) error
	AddFromSource(src *playback.Source) bool
	RemoveSong(ctx context.Context, id track.ID) error
	UpdateSong(t track.Track) error
	Play(ctx context.Context, startTime float64) error
	Pause(ctx context.Context) error
	Forward(ctx context.Context) error
	Backward(ctx context.Context) error
	SetMode(mode playback.Mode)
	SetVolume(volume float64) bool
	LoadTopPlaylistByCountry(ctx context.Context, countryCode string) error

	Subscribe(stream notification.Stream[playback.Event]) string
	Unsubscribe(subscriptionID string)
}

// PlayerService implements the PlayerService RPC.
type PlayerService struct {
	player Player
	config *config.Config

	done      chan struct{}
	closeOnce sync.Once
}

// NewPlayerService creates a new PlayerService.
func NewPlayerService(player Player, cfg *config.Config) *PlayerService {
	return &PlayerService{
		player: player,
		config: cfg,
		done:   make(chan struct{}),
	}
}

// Close ends every open Subscribe stream.
func (s *PlayerService) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// NewPlayerServiceHandler builds an HTTP handler serving every procedure of svc.
// It returns the path to mount the handler on.
func NewPlayerServiceHandler(svc *PlayerService, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(GetStateProcedure, connect.NewUnaryHandler(GetStateProcedure, svc.GetState, opts...))
	mux.Handle(ListTracksProcedure, connect.NewUnaryHandler(ListTracksProcedure, svc.ListTracks, opts...))
	mux.Handle(SelectSongProcedure, connect.NewUnaryHandler(SelectSongProcedure, svc.SelectSong, opts...))
	mux.Handle(AddSourceProcedure, connect.NewUnaryHandler(AddSourceProcedure, svc.AddSource, opts...))
	mux.Handle(RemoveSongProcedure, connect.NewUnaryHandler(RemoveSongProcedure, svc.RemoveSong, opts...))
	mux.Handle(UpdateSongProcedure, connect.NewUnaryHandler(UpdateSongProcedure, svc.UpdateSong, opts...))
	mux.Handle(PlayProcedure, connect.NewUnaryHandler(PlayProcedure, svc.Play, opts...))
	mux.Handle(PauseProcedure, connect.NewUnaryHandler(PauseProcedure, svc.Pause, opts...))
	mux.Handle(ForwardProcedure, connect.NewUnaryHandler(ForwardProcedure, svc.Forward, opts...))
	mux.Handle(BackwardProcedure, connect.NewUnaryHandler(BackwardProcedure, svc.Backward, opts...))
	mux.Handle(SetModeProcedure, connect.NewUnaryHandler(SetModeProcedure, svc.SetMode, opts...))
	mux.Handle(SetVolumeProcedure, connect.NewUnaryHandler(SetVolumeProcedure, svc.SetVolume, opts...))
	mux.Handle(ImportTopProcedure, connect.NewUnaryHandler(ImportTopProcedure, svc.ImportTop, opts...))
	mux.Handle(SubscribeProcedure, connect.NewServerStreamHandler(SubscribeProcedure, svc.Subscribe, opts...))
	return "/" + PlayerServiceName + "/", mux
}

// GetState returns the player status and the active track.
func (s *PlayerService) GetState(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	msg, err := s.state()
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// ListTracks returns the playlist in playback order.
func (s *PlayerService) ListTracks(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	values, err := tracksValue(s.player.Tracks())
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	msg, err := structpb.NewStruct(map[string]any{"tracks": values})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// SelectSong makes a track active.
func (s *PlayerService) SelectSong(
	ctx context.Context,
	req *connect.Request[wrapperspb.Int64Value],
) (*connect.Response[emptypb.Empty], error) {
	if err := s.player.SelectSong(ctx, track.ID(req.Msg.GetValue())); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// AddSource adds a track from a locator ("locator") and optional label ("label").
// The response reports whether a track was added.
func (s *PlayerService) AddSource(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[wrapperspb.BoolValue], error) {
	fields := req.Msg.GetFields()
	locator := strings.TrimSpace(fields["locator"].GetStringValue())
	if locator == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("locator is required"))
	}

	added := s.player.AddFromSource(&playback.Source{
		Locator: locator,
		Label:   strings.TrimSpace(fields["label"].GetStringValue()),
	})
	return connect.NewResponse(wrapperspb.Bool(added)), nil
}

// RemoveSong removes a track.
func (s *PlayerService) RemoveSong(
	ctx context.Context,
	req *connect.Request[wrapperspb.Int64Value],
) (*connect.Response[emptypb.Empty], error) {
	if err := s.player.RemoveSong(ctx, track.ID(req.Msg.GetValue())); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// UpdateSong replaces a track. Fields missing from the request keep their
// current values.
func (s *PlayerService) UpdateSong(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[emptypb.Empty], error) {
	idValue, ok := req.Msg.GetFields()["id"]
	if !ok {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("id is required"))
	}

	current, ok := s.player.FindByID(track.ID(idValue.GetNumberValue()))
	if !ok {
		return nil, toConnectError(playback.ErrTrackNotFound)
	}

	merged, err := trackValue(current)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	for k, v := range req.Msg.GetFields() {
		merged[k] = v.AsInterface()
	}
	patch, err := structpb.NewStruct(merged)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	updated, err := TrackFromStruct(patch)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	if err := s.player.UpdateSong(updated); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// Play starts the active track at the requested position in seconds.
func (s *PlayerService) Play(
	ctx context.Context,
	req *connect.Request[wrapperspb.DoubleValue],
) (*connect.Response[emptypb.Empty], error) {
	if err := s.player.Play(ctx, req.Msg.GetValue()); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// Pause pauses playback.
func (s *PlayerService) Pause(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[emptypb.Empty], error) {
	if err := s.player.Pause(ctx); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// Forward advances according to the playback mode.
func (s *PlayerService) Forward(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[emptypb.Empty], error) {
	if err := s.player.Forward(ctx); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// Backward moves to the previous track.
func (s *PlayerService) Backward(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[emptypb.Empty], error) {
	if err := s.player.Backward(ctx); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// SetMode changes the playback mode.
func (s *PlayerService) SetMode(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[emptypb.Empty], error) {
	mode, err := playback.ParseMode(req.Msg.GetValue())
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	s.player.SetMode(mode)
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// SetVolume changes the volume. The response reports whether it was accepted.
func (s *PlayerService) SetVolume(
	ctx context.Context,
	req *connect.Request[wrapperspb.DoubleValue],
) (*connect.Response[wrapperspb.BoolValue], error) {
	return connect.NewResponse(wrapperspb.Bool(s.player.SetVolume(req.Msg.GetValue()))), nil
}

// ImportTop imports the catalog's top entries for a country.
// An empty country code uses the configured one.
func (s *PlayerService) ImportTop(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[emptypb.Empty], error) {
	code := strings.TrimSpace(req.Msg.GetValue())
	if code == "" {
		code = s.config.Player.CountryCode
	}
	if err := s.player.LoadTopPlaylistByCountry(ctx, code); err != nil {
		return nil, connect.NewError(connect.CodeUnavailable, err)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// Subscribe streams the current state followed by every controller event.
func (s *PlayerService) Subscribe(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
	stream *connect.ServerStream[structpb.Struct],
) error {
	// Events delivered to the adapter wait until the initial state is sent.
	adapter := &eventStreamAdapter{stream: stream}
	adapter.mu.Lock()
	subscriptionID := s.player.Subscribe(adapter)
	defer s.player.Unsubscribe(subscriptionID)

	initial, err := s.state()
	if err == nil {
		err = stream.Send(initial)
	}
	adapter.mu.Unlock()
	if err != nil {
		adapter.close()
		return connect.NewError(connect.CodeInternal, err)
	}
	zlog.Debug().Msgf("subscriber connected: id=%s", subscriptionID)

	// Wait for context cancellation or service shutdown
	select {
	case <-ctx.Done():
	case <-s.done:
	}

	adapter.close()
	zlog.Debug().Msgf("subscriber disconnected: id=%s", subscriptionID)

	return nil
}

func (s *PlayerService) state() (*structpb.Struct, error) {
	activeID := s.player.ActiveID()
	var active *track.Track
	if t, ok := s.player.FindByID(activeID); ok {
		active = &t
	}
	return stateToStruct(s.player.Status(), activeID, active, s.player.TotalDuration())
}

// eventStreamAdapter adapts connect.ServerStream to notification.Stream.
type eventStreamAdapter struct {
	mu     sync.Mutex
	stream *connect.ServerStream[structpb.Struct]
	closed bool
}

func (a *eventStreamAdapter) Send(e playback.Event) error {
	msg, err := eventToStruct(e)
	if err != nil {
		zlog.Warn().Msgf("failed to convert event: type=%s error=%v", e.Type, err)
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errors.New("stream closed")
	}
	return a.stream.Send(msg)
}

// close waits for an in-flight Send and rejects later ones.
func (a *eventStreamAdapter) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
}

// toConnectError maps controller errors to RPC codes.
func toConnectError(err error) error {
	switch {
	case errors.Is(err, playback.ErrPlaylistEmpty), errors.Is(err, playback.ErrNoActiveTrack):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, playback.ErrTrackNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, playback.ErrTitleChanged):
		return connect.NewError(connect.CodeInvalidArgument, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
