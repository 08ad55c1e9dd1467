package catalog

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/playdeck/internal/infra/spotify"
)

// SpotifyClient defines the interface for Spotify operations needed by the provider.
type SpotifyClient interface {
	FeaturedPlaylistURL(ctx context.Context, countryCode string) (string, error)
	GetPlaylistTopTracks(ctx context.Context, playlistURL, market string, limit int) ([]spotify.TopTrack, error)
}

type SpotifyProviderConfig struct {
	ClientID     string `yaml:"client_id" mapstructure:"client_id" validate:"required"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret" validate:"required"`
	RefreshToken string `yaml:"refresh_token" mapstructure:"refresh_token" validate:"required"`
	// Playlists maps a country code to a playlist that replaces the featured one.
	Playlists map[string]string `yaml:"playlists" mapstructure:"playlists"`
	// PreviewOnly skips tracks without an MP3 preview.
	PreviewOnly bool `yaml:"preview_only" mapstructure:"preview_only" default:"false"`
}

// SpotifyProvider provides the tracks of a country's featured Spotify playlist.
type SpotifyProvider struct {
	spotify SpotifyClient
	config  *SpotifyProviderConfig
}

// NewSpotifyProvider creates a new SpotifyProvider.
func NewSpotifyProvider(ctx context.Context, settings map[string]any) (*SpotifyProvider, error) {
	if len(settings) == 0 {
		return nil, errors.New("settings are required")
	}

	var config SpotifyProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	client, err := spotify.New(ctx, spotify.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RefreshToken: config.RefreshToken,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create spotify client")
	}

	return &SpotifyProvider{
		spotify: client,
		config:  &config,
	}, nil
}

// TopByCountry returns the first tracks of the country's playlist.
func (p *SpotifyProvider) TopByCountry(ctx context.Context, countryCode string, limit int) ([]Item, error) {
	playlistURL := p.playlistFor(countryCode)
	if playlistURL == "" {
		url, err := p.spotify.FeaturedPlaylistURL(ctx, countryCode)
		if err != nil {
			return nil, errors.Wrap(err, "failed to find featured playlist")
		}
		if url == "" {
			zlog.Debug().Msgf("spotify provider: no featured playlist: country=%s", countryCode)
			return []Item{}, nil
		}
		playlistURL = url
	}

	tracks, err := p.spotify.GetPlaylistTopTracks(ctx, playlistURL, countryCode, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get playlist tracks")
	}

	items := make([]Item, 0, len(tracks))
	for _, t := range tracks {
		uri := t.PreviewURL
		if uri == "" {
			if p.config.PreviewOnly {
				continue
			}
			uri = t.URL
		}
		items = append(items, Item{
			URI:      uri,
			Name:     displayTitle(strings.Join(t.Artists, ", "), t.Name),
			ImageURL: t.AlbumArtURL,
		})
	}
	return items, nil
}

// Name returns the provider name.
func (p *SpotifyProvider) Name() string {
	return "spotify"
}

func (p *SpotifyProvider) playlistFor(countryCode string) string {
	for code, url := range p.config.Playlists {
		if strings.EqualFold(code, countryCode) {
			return url
		}
	}
	return ""
}
