package catalog

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// DefaultLimit is the number of entries requested when none is configured.
const DefaultLimit = 30

// ProviderWithMetadata wraps a provider with its metadata.
type ProviderWithMetadata struct {
	Provider    Provider
	DisplayName string
}

// ProviderChain tries multiple providers in order until one returns entries.
type ProviderChain struct {
	providers []ProviderWithMetadata
	limit     int
}

// NewProviderChain creates a new provider chain.
func NewProviderChain(providers []ProviderWithMetadata, limit int) *ProviderChain {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &ProviderChain{
		providers: providers,
		limit:     limit,
	}
}

// GetTopByCountry returns the entries of the first provider that has any.
// When every provider answers without entries the response is empty but not
// nil. When every provider fails an error is returned.
func (c *ProviderChain) GetTopByCountry(ctx context.Context, countryCode string) (*Response, error) {
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	if len(code) != 2 {
		return nil, errors.Newf("invalid country code: %q", countryCode)
	}
	if len(c.providers) == 0 {
		return nil, errors.New("no catalog providers configured")
	}

	failures := 0
	for i, pm := range c.providers {
		zlog.Debug().Msgf("trying catalog provider: index=%d total=%d name=%s provider_type=%s",
			i+1, len(c.providers), pm.DisplayName, pm.Provider.Name())

		items, err := pm.Provider.TopByCountry(ctx, code, c.limit)
		if err != nil {
			failures++
			zlog.Warn().Msgf("catalog provider failed, trying next: provider=%s error=%v", pm.DisplayName, err)
			continue
		}

		if len(items) == 0 {
			zlog.Debug().Msgf("catalog provider returned no entries: provider=%s", pm.DisplayName)
			continue
		}

		if len(items) > c.limit {
			items = items[:c.limit]
		}
		zlog.Info().Msgf("catalog provider returned entries: provider=%s country=%s count=%d",
			pm.DisplayName, code, len(items))
		return &Response{Radios: items}, nil
	}

	if failures == len(c.providers) {
		return nil, errors.New("all catalog providers failed")
	}
	return &Response{Radios: []Item{}}, nil
}

// Name returns the chain name.
func (c *ProviderChain) Name() string {
	return "provider_chain"
}
