// Package lastfm provides a client for the Last.fm API.
package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// geoTracksCacheEntry represents a cached geo top tracks result.
type geoTracksCacheEntry struct {
	tracks []TopTrack
}

// Client is a Last.fm API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	// Cache for country charts
	geoTracksCache map[string]*geoTracksCacheEntry

	// Mutex for cache access
	cacheMu sync.RWMutex
}

// Config represents Last.fm client configuration.
type Config struct {
	APIKey string
}

// TopTrack represents a chart entry.
type TopTrack struct {
	Name     string
	Artist   string
	URL      string
	ImageURL string
}

// GetTopTracksResponse represents the response from geo.getTopTracks and
// chart.getTopTracks.
type GetTopTracksResponse struct {
	Tracks struct {
		Track []struct {
			Name   string `json:"name"`
			URL    string `json:"url"`
			Artist struct {
				Name string `json:"name"`
			} `json:"artist"`
			Image []struct {
				URL  string `json:"#text"`
				Size string `json:"size"`
			} `json:"image"`
		} `json:"track"`
	} `json:"tracks"`
}

// LastFMError represents an error response from Last.fm API.
type LastFMError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// New creates a new Last.fm client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("last.fm API key is required")
	}

	return &Client{
		apiKey:         cfg.APIKey,
		baseURL:        "https://ws.audioscrobbler.com/2.0/",
		httpClient:     &http.Client{Timeout: 10 * time.Second},
		geoTracksCache: make(map[string]*geoTracksCacheEntry),
	}, nil
}

// GetGeoTopTracks retrieves the most popular tracks of a country.
// country is an English country name as defined by ISO 3166-1 (e.g. "France").
// Reference: https://www.last.fm/api/show/geo.getTopTracks
func (c *Client) GetGeoTopTracks(ctx context.Context, country string, limit int) ([]TopTrack, error) {
	if country == "" {
		return nil, errors.New("country is required")
	}

	limit = clampLimit(limit)

	// Check cache first
	cacheKey := fmt.Sprintf("geotracks:%s:%d", country, limit)
	c.cacheMu.RLock()
	if entry, ok := c.geoTracksCache[cacheKey]; ok {
		c.cacheMu.RUnlock()
		zlog.Debug().Msgf("using cached top tracks for country: %s", country)
		return entry.tracks, nil
	}
	c.cacheMu.RUnlock()

	params := url.Values{}
	params.Set("method", "geo.getTopTracks")
	params.Set("country", country)
	params.Set("limit", fmt.Sprintf("%d", limit))

	var response GetTopTracksResponse
	if err := c.get(ctx, params, &response); err != nil {
		return nil, err
	}
	tracks := convertTopTracks(&response)

	// Cache the result
	c.cacheMu.Lock()
	c.geoTracksCache[cacheKey] = &geoTracksCacheEntry{
		tracks: tracks,
	}
	c.cacheMu.Unlock()
	zlog.Debug().Msgf("cached top tracks for country: %s (count: %d)", country, len(tracks))

	return tracks, nil
}

// GetChartTopTracks retrieves global top tracks from Last.fm charts.
// Reference: https://www.last.fm/api/show/chart.getTopTracks
func (c *Client) GetChartTopTracks(ctx context.Context, limit int) ([]TopTrack, error) {
	params := url.Values{}
	params.Set("method", "chart.getTopTracks")
	params.Set("limit", fmt.Sprintf("%d", clampLimit(limit)))

	var response GetTopTracksResponse
	if err := c.get(ctx, params, &response); err != nil {
		return nil, err
	}
	return convertTopTracks(&response), nil
}

// get performs an API call and decodes a successful response into out.
func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")

	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	// Check for Last.fm API errors
	var apiError LastFMError
	if err := json.Unmarshal(body, &apiError); err == nil && apiError.Error != 0 {
		return errors.Errorf("last.fm API error %d: %s", apiError.Error, apiError.Message)
	}

	// Parse successful response
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

// convertTopTracks picks the largest image of every entry.
func convertTopTracks(response *GetTopTracksResponse) []TopTrack {
	tracks := make([]TopTrack, 0, len(response.Tracks.Track))
	for _, t := range response.Tracks.Track {
		var image string
		for _, img := range t.Image {
			if img.URL != "" {
				image = img.URL
			}
		}
		tracks = append(tracks, TopTrack{
			Name:     t.Name,
			Artist:   t.Artist.Name,
			URL:      t.URL,
			ImageURL: image,
		})
	}
	return tracks
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
