package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// PlayerClient is a client for the PlayerService.
type PlayerClient struct {
	getState   *connect.Client[emptypb.Empty, structpb.Struct]
	listTracks *connect.Client[emptypb.Empty, structpb.Struct]
	selectSong *connect.Client[wrapperspb.Int64Value, emptypb.Empty]
	addSource  *connect.Client[structpb.Struct, wrapperspb.BoolValue]
	removeSong *connect.Client[wrapperspb.Int64Value, emptypb.Empty]
	updateSong *connect.Client[structpb.Struct, emptypb.Empty]
	play       *connect.Client[wrapperspb.DoubleValue, emptypb.Empty]
	pause      *connect.Client[emptypb.Empty, emptypb.Empty]
	forward    *connect.Client[emptypb.Empty, emptypb.Empty]
	backward   *connect.Client[emptypb.Empty, emptypb.Empty]
	setMode    *connect.Client[wrapperspb.StringValue, emptypb.Empty]
	setVolume  *connect.Client[wrapperspb.DoubleValue, wrapperspb.BoolValue]
	importTop  *connect.Client[wrapperspb.StringValue, emptypb.Empty]
	subscribe  *connect.Client[emptypb.Empty, structpb.Struct]
}

// NewPlayerClient creates a client for the PlayerService served at baseURL.
func NewPlayerClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *PlayerClient {
	baseURL = strings.TrimRight(baseURL, "/")
	return &PlayerClient{
		getState:   connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+GetStateProcedure, opts...),
		listTracks: connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+ListTracksProcedure, opts...),
		selectSong: connect.NewClient[wrapperspb.Int64Value, emptypb.Empty](httpClient, baseURL+SelectSongProcedure, opts...),
		addSource:  connect.NewClient[structpb.Struct, wrapperspb.BoolValue](httpClient, baseURL+AddSourceProcedure, opts...),
		removeSong: connect.NewClient[wrapperspb.Int64Value, emptypb.Empty](httpClient, baseURL+RemoveSongProcedure, opts...),
		updateSong: connect.NewClient[structpb.Struct, emptypb.Empty](httpClient, baseURL+UpdateSongProcedure, opts...),
		play:       connect.NewClient[wrapperspb.DoubleValue, emptypb.Empty](httpClient, baseURL+PlayProcedure, opts...),
		pause:      connect.NewClient[emptypb.Empty, emptypb.Empty](httpClient, baseURL+PauseProcedure, opts...),
		forward:    connect.NewClient[emptypb.Empty, emptypb.Empty](httpClient, baseURL+ForwardProcedure, opts...),
		backward:   connect.NewClient[emptypb.Empty, emptypb.Empty](httpClient, baseURL+BackwardProcedure, opts...),
		setMode:    connect.NewClient[wrapperspb.StringValue, emptypb.Empty](httpClient, baseURL+SetModeProcedure, opts...),
		setVolume:  connect.NewClient[wrapperspb.DoubleValue, wrapperspb.BoolValue](httpClient, baseURL+SetVolumeProcedure, opts...),
		importTop:  connect.NewClient[wrapperspb.StringValue, emptypb.Empty](httpClient, baseURL+ImportTopProcedure, opts...),
		subscribe:  connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+SubscribeProcedure, opts...),
	}
}

func (c *PlayerClient) GetState(ctx context.Context) (*structpb.Struct, error) {
	resp, err := c.getState.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *PlayerClient) ListTracks(ctx context.Context) (*structpb.Struct, error) {
	resp, err := c.listTracks.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *PlayerClient) SelectSong(ctx context.Context, id int64) error {
	_, err := c.selectSong.CallUnary(ctx, connect.NewRequest(wrapperspb.Int64(id)))
	return err
}

func (c *PlayerClient) AddSource(ctx context.Context, locator, label string) (bool, error) {
	msg, err := structpb.NewStruct(map[string]any{"locator": locator, "label": label})
	if err != nil {
		return false, err
	}
	resp, err := c.addSource.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return false, err
	}
	return resp.Msg.GetValue(), nil
}

func (c *PlayerClient) RemoveSong(ctx context.Context, id int64) error {
	_, err := c.removeSong.CallUnary(ctx, connect.NewRequest(wrapperspb.Int64(id)))
	return err
}

// UpdateSong sends a partial track. It must contain "id".
func (c *PlayerClient) UpdateSong(ctx context.Context, fields map[string]any) error {
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return err
	}
	_, err = c.updateSong.CallUnary(ctx, connect.NewRequest(msg))
	return err
}

func (c *PlayerClient) Play(ctx context.Context, startTime float64) error {
	_, err := c.play.CallUnary(ctx, connect.NewRequest(wrapperspb.Double(startTime)))
	return err
}

func (c *PlayerClient) Pause(ctx context.Context) error {
	_, err := c.pause.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	return err
}

func (c *PlayerClient) Forward(ctx context.Context) error {
	_, err := c.forward.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	return err
}

func (c *PlayerClient) Backward(ctx context.Context) error {
	_, err := c.backward.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	return err
}

func (c *PlayerClient) SetMode(ctx context.Context, mode string) error {
	_, err := c.setMode.CallUnary(ctx, connect.NewRequest(wrapperspb.String(mode)))
	return err
}

func (c *PlayerClient) SetVolume(ctx context.Context, volume float64) (bool, error) {
	resp, err := c.setVolume.CallUnary(ctx, connect.NewRequest(wrapperspb.Double(volume)))
	if err != nil {
		return false, err
	}
	return resp.Msg.GetValue(), nil
}

func (c *PlayerClient) ImportTop(ctx context.Context, countryCode string) error {
	_, err := c.importTop.CallUnary(ctx, connect.NewRequest(wrapperspb.String(countryCode)))
	return err
}

// Subscribe opens the event stream. The first message is the current state.
func (c *PlayerClient) Subscribe(ctx context.Context) (*connect.ServerStreamForClient[structpb.Struct], error) {
	return c.subscribe.CallServerStream(ctx, connect.NewRequest(&emptypb.Empty{}))
}
