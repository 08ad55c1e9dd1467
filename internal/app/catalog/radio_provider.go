package catalog

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/playdeck/internal/infra/radiobrowser"
)

// RadioClient defines the interface for internet radio directory lookups.
type RadioClient interface {
	StationsByCountry(ctx context.Context, countryCode string, limit int) ([]radiobrowser.Station, error)
}

type RadioProviderConfig struct {
	BaseURL         string `yaml:"base_url" mapstructure:"base_url" default:"https://de1.api.radio-browser.info" validate:"url"`
	HideBroken      bool   `yaml:"hide_broken" mapstructure:"hide_broken" default:"true"`
	CacheTTLSeconds int    `yaml:"cache_ttl_sec" mapstructure:"cache_ttl_sec" default:"600" validate:"gte=0"`
}

// RadioProvider provides the most listened internet radio stations of a country.
type RadioProvider struct {
	radio  RadioClient
	config *RadioProviderConfig
}

// NewRadioProvider creates a new RadioProvider.
func NewRadioProvider(settings map[string]any) (*RadioProvider, error) {
	var config RadioProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("radio provider config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	client := radiobrowser.New(radiobrowser.Config{
		BaseURL:    config.BaseURL,
		HideBroken: config.HideBroken,
		CacheTTL:   secondsToDuration(config.CacheTTLSeconds),
	})
	return newRadioProvider(client, &config), nil
}

func newRadioProvider(radio RadioClient, config *RadioProviderConfig) *RadioProvider {
	return &RadioProvider{radio: radio, config: config}
}

// TopByCountry returns the most clicked stations of a country.
func (p *RadioProvider) TopByCountry(ctx context.Context, countryCode string, limit int) ([]Item, error) {
	stations, err := p.radio.StationsByCountry(ctx, countryCode, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get stations")
	}

	items := make([]Item, 0, len(stations))
	for _, s := range stations {
		if s.Name == "" || s.StreamURL == "" {
			continue
		}
		items = append(items, Item{
			URI:      s.StreamURL,
			Name:     s.Name,
			ImageURL: s.FaviconURL,
		})
	}
	return items, nil
}

// Name returns the provider name.
func (p *RadioProvider) Name() string {
	return "radio"
}

func secondsToDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
