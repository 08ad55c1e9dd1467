// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/playdeck/internal/api/connect"
	"github.com/osa030/playdeck/internal/app/catalog"
	"github.com/osa030/playdeck/internal/app/playback"
	"github.com/osa030/playdeck/internal/infra/audio"
	"github.com/osa030/playdeck/internal/infra/config"
	"github.com/osa030/playdeck/internal/infra/logger"
	"github.com/osa030/playdeck/internal/infra/store"
)

var (
	app        = kingpin.New("playdeck-server", "playdeck playlist server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// probe command
	probeCmd    = app.Command("probe", "Print the duration of local audio files and exit")
	probeSource = probeCmd.Arg("files", "Audio files (.wav, .mp3)").Required().Strings()
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Handle probe command
	if command == probeCmd.FullCommand() {
		printDurations(*probeSource)
		return
	}

	// Initialize logger
	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
		File:   "",
	}
	// Override with command-line flags if specified
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
	}
	logCloser, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logCloser.Close()

	// Load config
	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		logCloser.Close()
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	// Open persistence
	kv, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			zlog.Error().Msgf("Failed to close store: %v", err)
		}
	}()

	// Create audio engine
	engine := audio.NewClock(audio.Config{
		TickInterval: time.Duration(cfg.Audio.TickIntervalMs) * time.Millisecond,
	})
	defer engine.Close()

	// Create catalog provider chain
	providers, err := catalog.NewProviderChainFromConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create catalog providers: %w", err)
	}

	// Create playlist controller
	mode, err := playback.ParseMode(cfg.Player.Mode)
	if err != nil {
		return fmt.Errorf("invalid player mode: %w", err)
	}
	controller := playback.NewController(playback.Config{
		Volume:       cfg.InitialVolume(),
		Mode:         mode,
		StoreTimeout: time.Duration(cfg.Player.StoreTimeoutMs) * time.Millisecond,
	}, engine, kv, providers)
	defer controller.Close()

	if err := controller.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize controller: %w", err)
	}
	zlog.Info().Msgf("Playlist restored: tracks=%d", len(controller.Tracks()))

	if cfg.Player.ImportOnStart {
		go func() {
			importCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := controller.LoadTopPlaylistByCountry(importCtx, cfg.Player.CountryCode); err != nil {
				zlog.Warn().Msgf("Initial import failed: country=%s error=%v", cfg.Player.CountryCode, err)
			}
		}()
	}

	// Create RPC service
	playerService := apiconnect.NewPlayerService(controller, cfg)

	var handlerOpts []connect.HandlerOption
	if cfg.Server.APIToken != "" {
		handlerOpts = append(handlerOpts, connect.WithInterceptors(apiconnect.NewTokenInterceptor(cfg.Server.APIToken)))
	} else {
		zlog.Warn().Msg("API token not configured, the player API is unauthenticated")
	}

	// Create HTTP mux
	mux := http.NewServeMux()
	playerPath, playerHandler := apiconnect.NewPlayerServiceHandler(playerService, handlerOpts...)
	mux.Handle(playerPath, playerHandler)

	// Create server with h2c (HTTP/2 cleartext) support
	serverAddr := cfg.Server.Addr
	server := &http.Server{
		Addr:    serverAddr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	// Channel to capture server startup errors
	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	// Start server
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", serverAddr)
		// Signal that we're about to start listening
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	// Wait for server to start listening
	<-serverStartedCh
	// Give the server a moment to fully initialize
	time.Sleep(100 * time.Millisecond)

	// Execute startup hook if configured (after server is running)
	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	// Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
		if err := controller.Pause(ctx); err != nil {
			zlog.Error().Msgf("Failed to pause playback: %v", err)
		}
	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// End subscription streams first so Shutdown does not wait on them
	playerService.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	// Execute shutdown hook if configured
	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return nil
}

// printDurations prints the duration of each audio file.
func printDurations(files []string) {
	for _, f := range files {
		seconds, err := audio.Probe(f)
		if err != nil {
			fmt.Printf("  %-50s error: %v\n", f, err)
			continue
		}
		fmt.Printf("  %-50s %02d:%02d\n", f, int(seconds)/60, int(seconds)%60)
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
