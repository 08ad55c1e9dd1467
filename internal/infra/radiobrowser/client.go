// Package radiobrowser provides a client for the radio-browser.info directory.
package radiobrowser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// DefaultBaseURL is a public radio-browser mirror.
const DefaultBaseURL = "https://de1.api.radio-browser.info"

// stationsCacheEntry represents a cached station lookup.
type stationsCacheEntry struct {
	stations  []Station
	fetchedAt time.Time
}

// Client is a radio-browser API client.
type Client struct {
	baseURL    string
	userAgent  string
	hideBroken bool
	cacheTTL   time.Duration
	httpClient *http.Client

	// Cache for country lookups
	cache   map[string]*stationsCacheEntry
	cacheMu sync.RWMutex
}

// Config represents radio-browser client configuration.
type Config struct {
	BaseURL    string
	UserAgent  string
	HideBroken bool
	CacheTTL   time.Duration
}

// Station represents a radio station.
type Station struct {
	UUID        string
	Name        string
	StreamURL   string
	FaviconURL  string
	CountryCode string
	ClickCount  int
}

// stationResponse is one element of a stations listing.
type stationResponse struct {
	StationUUID string `json:"stationuuid"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	URLResolved string `json:"url_resolved"`
	Favicon     string `json:"favicon"`
	CountryCode string `json:"countrycode"`
	ClickCount  int    `json:"clickcount"`
}

// New creates a new radio-browser client.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "playdeck/1.0"
	}

	return &Client{
		baseURL:    baseURL,
		userAgent:  userAgent,
		hideBroken: cfg.HideBroken,
		cacheTTL:   cfg.CacheTTL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      make(map[string]*stationsCacheEntry),
	}
}

// StationsByCountry retrieves the most clicked stations of a country.
// Reference: https://de1.api.radio-browser.info/#List_of_radio_stations
func (c *Client) StationsByCountry(ctx context.Context, countryCode string, limit int) ([]Station, error) {
	if countryCode == "" {
		return nil, errors.New("country code is required")
	}

	if limit <= 0 {
		limit = 30
	}
	if limit > 500 {
		limit = 500
	}

	// Check cache first
	cacheKey := fmt.Sprintf("%s:%d", strings.ToUpper(countryCode), limit)
	c.cacheMu.RLock()
	if entry, ok := c.cache[cacheKey]; ok && c.cacheTTL > 0 && time.Since(entry.fetchedAt) < c.cacheTTL {
		c.cacheMu.RUnlock()
		zlog.Debug().Msgf("using cached stations for country: %s", countryCode)
		return entry.stations, nil
	}
	c.cacheMu.RUnlock()

	params := url.Values{}
	params.Set("order", "clickcount")
	params.Set("reverse", "true")
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("hidebroken", fmt.Sprintf("%t", c.hideBroken))

	reqURL := c.baseURL + "/json/stations/bycountrycodeexact/" + url.PathEscape(strings.ToUpper(countryCode)) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("radio-browser API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var response []stationResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrap(err, "failed to parse response")
	}

	stations := make([]Station, 0, len(response))
	for _, s := range response {
		streamURL := s.URLResolved
		if streamURL == "" {
			streamURL = s.URL
		}
		stations = append(stations, Station{
			UUID:        s.StationUUID,
			Name:        strings.TrimSpace(s.Name),
			StreamURL:   streamURL,
			FaviconURL:  s.Favicon,
			CountryCode: s.CountryCode,
			ClickCount:  s.ClickCount,
		})
	}

	// Cache the result
	c.cacheMu.Lock()
	c.cache[cacheKey] = &stationsCacheEntry{
		stations:  stations,
		fetchedAt: time.Now(),
	}
	c.cacheMu.Unlock()
	zlog.Debug().Msgf("cached stations for country: %s (count: %d)", countryCode, len(stations))

	return stations, nil
}
