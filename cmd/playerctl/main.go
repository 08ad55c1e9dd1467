// Package main provides the player CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"google.golang.org/protobuf/types/known/structpb"

	apiconnect "github.com/osa030/playdeck/internal/api/connect"
	"github.com/osa030/playdeck/internal/domain/track"
)

var (
	app    = kingpin.New("playerctl", "playdeck player client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "API token").Envar("PLAYDECK_API_TOKEN").String()

	stateCmd = app.Command("state", "Show the player state")
	listCmd  = app.Command("list", "List the playlist")

	selectCmd = app.Command("select", "Select a track")
	selectID  = selectCmd.Arg("id", "Track ID").Required().Int64()

	addCmd     = app.Command("add", "Add a track from a file path or URL")
	addLocator = addCmd.Arg("locator", "File path or URL").Required().String()
	addLabel   = addCmd.Arg("label", "Title (default: file name)").String()

	removeCmd = app.Command("remove", "Remove a track")
	removeID  = removeCmd.Arg("id", "Track ID").Required().Int64()

	likeCmd    = app.Command("like", "Like or unlike a track")
	likeID     = likeCmd.Arg("id", "Track ID").Required().Int64()
	likeUnlike = likeCmd.Flag("unlike", "Remove the like").Bool()

	playCmd = app.Command("play", "Play the active track")
	playAt  = playCmd.Flag("at", "Start position in seconds").Default("0").Float64()

	pauseCmd = app.Command("pause", "Pause playback")
	nextCmd  = app.Command("next", "Go to the next track")
	prevCmd  = app.Command("prev", "Go to the previous track")

	modeCmd  = app.Command("mode", "Set the playback mode")
	modeName = modeCmd.Arg("mode", "sequential, repeat or shuffle").Required().Enum("sequential", "repeat", "shuffle")

	volumeCmd   = app.Command("volume", "Set the volume")
	volumeValue = volumeCmd.Arg("value", "Volume between 0 and 1").Required().Float64()

	importCmd     = app.Command("import", "Import the top entries of a country")
	importCountry = importCmd.Arg("country", "ISO 3166-1 alpha-2 code (default: server setting)").String()

	subscribeCmd = app.Command("subscribe", "Subscribe to player events")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Create client
	var opts []connect.ClientOption
	if *token != "" {
		opts = append(opts, connect.WithInterceptors(apiconnect.NewTokenInterceptor(*token)))
	}
	client := apiconnect.NewPlayerClient(http.DefaultClient, *server, opts...)

	ctx := context.Background()

	// Execute command
	var err error
	switch command {
	case stateCmd.FullCommand():
		err = showState(ctx, client)
	case listCmd.FullCommand():
		err = listTracks(ctx, client)
	case selectCmd.FullCommand():
		err = client.SelectSong(ctx, *selectID)
	case addCmd.FullCommand():
		err = addSource(ctx, client, *addLocator, *addLabel)
	case removeCmd.FullCommand():
		err = client.RemoveSong(ctx, *removeID)
	case likeCmd.FullCommand():
		err = client.UpdateSong(ctx, map[string]any{"id": float64(*likeID), "like": !*likeUnlike})
	case playCmd.FullCommand():
		err = client.Play(ctx, *playAt)
	case pauseCmd.FullCommand():
		err = client.Pause(ctx)
	case nextCmd.FullCommand():
		err = client.Forward(ctx)
	case prevCmd.FullCommand():
		err = client.Backward(ctx)
	case modeCmd.FullCommand():
		err = client.SetMode(ctx, *modeName)
	case volumeCmd.FullCommand():
		err = setVolume(ctx, client, *volumeValue)
	case importCmd.FullCommand():
		err = client.ImportTop(ctx, *importCountry)
	case subscribeCmd.FullCommand():
		err = subscribe(ctx, client)
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func showState(ctx context.Context, client *apiconnect.PlayerClient) error {
	state, err := client.GetState(ctx)
	if err != nil {
		return err
	}
	printState(state)
	return nil
}

func listTracks(ctx context.Context, client *apiconnect.PlayerClient) error {
	resp, err := client.ListTracks(ctx)
	if err != nil {
		return err
	}
	tracks, err := apiconnect.TracksFromStruct(resp)
	if err != nil {
		return err
	}
	printTracks(tracks)
	return nil
}

func addSource(ctx context.Context, client *apiconnect.PlayerClient, locator, label string) error {
	added, err := client.AddSource(ctx, locator, label)
	if err != nil {
		return err
	}
	if added {
		fmt.Println("Added")
	} else {
		fmt.Println("Skipped: a track with the same title exists")
	}
	return nil
}

func setVolume(ctx context.Context, client *apiconnect.PlayerClient, volume float64) error {
	ok, err := client.SetVolume(ctx, volume)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Ignored: volume must be between 0 and 1")
	}
	return nil
}

func subscribe(ctx context.Context, client *apiconnect.PlayerClient) error {
	stream, err := client.Subscribe(ctx)
	if err != nil {
		return err
	}

	fmt.Println("Subscribed to player events. Press Ctrl+C to exit.")

	// Handle shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nUnsubscribing...")
		os.Exit(0)
	}()

	// Receive events
	for stream.Receive() {
		printEvent(stream.Msg())
	}

	return stream.Err()
}

func printEvent(msg *structpb.Struct) {
	fields := msg.GetFields()
	eventType := fields["type"].GetStringValue()

	switch eventType {
	case "state":
		fmt.Println("\n=== INITIAL STATE ===")
		printState(msg)
	case "list_changed":
		fmt.Println("\n=== PLAYLIST CHANGED ===")
		tracks, err := apiconnect.TracksFromStruct(msg)
		if err != nil {
			fmt.Printf("  (unreadable: %v)\n", err)
			return
		}
		printTracks(tracks)
	case "active_changed":
		fmt.Println("\n=== ACTIVE TRACK ===")
		printActive(fields["track"].GetStructValue())
	case "status_changed":
		fmt.Println("\n=== STATUS ===")
		printStatus(fields["status"].GetStructValue())
	case "error":
		fmt.Printf("\n=== ERROR ===\n  %s\n", fields["error"].GetStringValue())
	default:
		fmt.Printf("\n=== UNKNOWN EVENT (%s) ===\n", eventType)
	}
}

func printState(state *structpb.Struct) {
	fields := state.GetFields()
	printStatus(fields["status"].GetStructValue())
	printActive(fields["track"].GetStructValue())
	fmt.Printf("  Playlist length: %s\n", formatSeconds(fields["totalDuration"].GetNumberValue()))
}

func printStatus(status *structpb.Struct) {
	fields := status.GetFields()
	playing := "⏸  Paused"
	if fields["isPlaying"].GetBoolValue() {
		playing = "▶️  Playing"
	}
	fmt.Printf("  %s  mode=%s volume=%.0f%%\n",
		playing, fields["mode"].GetStringValue(), fields["volume"].GetNumberValue()*100)
}

func printActive(s *structpb.Struct) {
	if s == nil {
		fmt.Println("  No track selected")
		return
	}
	t, err := apiconnect.TrackFromStruct(s)
	if err != nil {
		fmt.Printf("  (unreadable: %v)\n", err)
		return
	}
	fmt.Printf("  [%d] %s  %s / %s\n", t.ID, t.Title, formatSeconds(t.CurrentTime), formatSeconds(t.Duration))
}

func printTracks(tracks []track.Track) {
	if len(tracks) == 0 {
		fmt.Println("  (empty)")
		return
	}
	for _, t := range tracks {
		like := " "
		if t.Liked {
			like = "♥"
		}
		fmt.Printf("  %s [%d] %-40s %s\n", like, t.ID, t.Title, t.Source)
	}
}

func formatSeconds(seconds float64) string {
	s := int(seconds)
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}
