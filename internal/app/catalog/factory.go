package catalog

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/playdeck/internal/infra/config"
)

// NewProviderChainFromConfig creates a provider chain from configuration.
// Without configured providers the public radio directory is used.
func NewProviderChainFromConfig(ctx context.Context, cfg *config.Config) (*ProviderChain, error) {
	providerConfigs := cfg.Catalog.Providers
	if len(providerConfigs) == 0 {
		providerConfigs = []config.ProviderConfig{{Type: "radio", DisplayName: "Internet radio"}}
	}

	var providers []ProviderWithMetadata

	for i, pcfg := range providerConfigs {
		var provider Provider
		var err error
		zlog.Debug().Msgf("creating catalog provider: index=%d type=%s", i+1, pcfg.Type)
		switch pcfg.Type {
		case "radio":
			provider, err = NewRadioProvider(pcfg.Settings)

		case "lastfm":
			provider, err = NewLastFmProvider(pcfg.Settings)

		case "spotify":
			provider, err = NewSpotifyProvider(ctx, pcfg.Settings)

		default:
			return nil, errors.Newf("unsupported provider type: %s (provider index %d)", pcfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create provider (index %d, type %s)", i, pcfg.Type)
		}

		providers = append(providers, ProviderWithMetadata{
			Provider:    provider,
			DisplayName: pcfg.DisplayName,
		})

		zlog.Info().Msgf("registered catalog provider: index=%d type=%s display_name=%s", i+1, pcfg.Type, pcfg.DisplayName)
	}

	return NewProviderChain(providers, cfg.Catalog.Limit), nil
}
