package catalog

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/osa030/playdeck/internal/infra/lastfm"
)

// LastFmClient defines the interface for Last.fm operations.
type LastFmClient interface {
	GetGeoTopTracks(ctx context.Context, country string, limit int) ([]lastfm.TopTrack, error)
	GetChartTopTracks(ctx context.Context, limit int) ([]lastfm.TopTrack, error)
}

type LastFmProviderConfig struct {
	APIKey          string `yaml:"api_key" mapstructure:"api_key" validate:"required"`
	FallbackToChart bool   `yaml:"fallback_to_chart" mapstructure:"fallback_to_chart" default:"false"`
}

// LastFmProvider provides the country charts of Last.fm.
type LastFmProvider struct {
	lastfm LastFmClient
	config *LastFmProviderConfig
}

// NewLastFmProvider creates a new LastFmProvider.
func NewLastFmProvider(settings map[string]any) (*LastFmProvider, error) {
	if len(settings) == 0 {
		return nil, errors.New("settings are required")
	}

	var config LastFmProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	lastfmClient, err := lastfm.New(lastfm.Config{APIKey: config.APIKey})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create last.fm client")
	}

	return &LastFmProvider{
		lastfm: lastfmClient,
		config: &config,
	}, nil
}

// TopByCountry returns the Last.fm chart of a country.
// Last.fm identifies countries by English name, so the code is resolved first.
func (p *LastFmProvider) TopByCountry(ctx context.Context, countryCode string, limit int) ([]Item, error) {
	country, err := countryName(countryCode)
	if err != nil {
		return nil, err
	}

	tracks, err := p.lastfm.GetGeoTopTracks(ctx, country, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get country chart")
	}
	if len(tracks) == 0 && p.config.FallbackToChart {
		tracks, err = p.lastfm.GetChartTopTracks(ctx, limit)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get global chart")
		}
	}

	items := make([]Item, 0, len(tracks))
	for _, t := range tracks {
		if t.URL == "" {
			continue
		}
		items = append(items, Item{
			URI:      t.URL,
			Name:     displayTitle(t.Artist, t.Name),
			ImageURL: t.ImageURL,
		})
	}
	return items, nil
}

// Name returns the provider name.
func (p *LastFmProvider) Name() string {
	return "lastfm"
}

// countryName resolves an ISO 3166-1 alpha-2 code to its English name.
func countryName(countryCode string) (string, error) {
	region, err := language.ParseRegion(countryCode)
	if err != nil {
		return "", errors.Wrapf(err, "unknown country code: %s", countryCode)
	}
	name := display.English.Regions().Name(region)
	if name == "" {
		return "", errors.Newf("no country name for code: %s", countryCode)
	}
	return name, nil
}

// displayTitle formats an "Artist - Title" label.
func displayTitle(artist, title string) string {
	if artist == "" {
		return title
	}
	return fmt.Sprintf("%s - %s", artist, title)
}
