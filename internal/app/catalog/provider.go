// Package catalog provides remote catalog lookups used to seed the playlist.
package catalog

import "context"

// Item is a catalog entry that can become a playlist track.
type Item struct {
	URI      string `json:"uri"`       // Playable locator
	Name     string `json:"name"`      // Display name, used as the track title
	ImageURL string `json:"image_url"` // Artwork (optional)
}

// Response is the result of a catalog lookup.
type Response struct {
	Radios []Item `json:"radios"`
}

// Provider is the interface for catalog providers.
// Different implementations look up popular entries for a country through
// various services (internet radio directories, charts, streaming services).
type Provider interface {
	// TopByCountry returns at most limit popular entries for an ISO 3166-1
	// alpha-2 country code.
	TopByCountry(ctx context.Context, countryCode string, limit int) ([]Item, error)

	// Name returns the provider name (used in config).
	Name() string
}
