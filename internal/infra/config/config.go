// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Player  PlayerConfig  `yaml:"player"`
	Store   StoreConfig   `yaml:"store"`
	Audio   AudioConfig   `yaml:"audio"`
	Catalog CatalogConfig `yaml:"catalog"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr     string      `yaml:"addr" default:":8080"`
	APIToken string      `yaml:"api_token"` // Empty disables authentication
	Hooks    HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// PlayerConfig represents the initial player state.
type PlayerConfig struct {
	Volume         *float64 `yaml:"volume" default:"0.5" validate:"required,gte=0,lte=1"`
	Mode           string   `yaml:"mode" default:"sequential" validate:"oneof=sequential repeat shuffle"`
	CountryCode    string   `yaml:"country_code" default:"FR" validate:"len=2,alpha"`
	ImportOnStart  bool     `yaml:"import_on_start"`
	StoreTimeoutMs int      `yaml:"store_timeout_ms" default:"5000" validate:"gte=100,lte=60000"`
}

// StoreConfig represents persistence configuration.
type StoreConfig struct {
	Driver string      `yaml:"driver" default:"sqlite" validate:"oneof=memory sqlite mysql redis"`
	DSN    string      `yaml:"dsn"` // SQL data source (sqlite file path or mysql DSN)
	Redis  RedisConfig `yaml:"redis"`
}

// RedisConfig represents Redis connection configuration.
type RedisConfig struct {
	Addr      string `yaml:"addr" default:"localhost:6379"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db" validate:"gte=0"`
	Namespace string `yaml:"namespace" default:"playdeck:"`
}

// AudioConfig represents audio engine configuration.
type AudioConfig struct {
	TickIntervalMs int `yaml:"tick_interval_ms" default:"250" validate:"gte=10,lte=5000"`
}

// CatalogConfig represents remote catalog configuration.
type CatalogConfig struct {
	Limit     int              `yaml:"limit" default:"30" validate:"gte=1,lte=500"`
	Providers []ProviderConfig `yaml:"providers" validate:"dive"`
}

// ProviderConfig represents a single catalog provider configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required,oneof=radio lastfm spotify"`
	DisplayName string         `yaml:"display_name" validate:"required"`
	Settings    map[string]any `yaml:"settings"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("PLAYDECK_API_TOKEN"); v != "" {
		c.Server.APIToken = v
	}
	if v := os.Getenv("PLAYDECK_STORE_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Store.Redis.Password = v
	}
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		c.setProviderSetting("lastfm", "api_key", v)
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.setProviderSetting("spotify", "client_id", v)
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.setProviderSetting("spotify", "client_secret", v)
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.setProviderSetting("spotify", "refresh_token", v)
	}
}

// setProviderSetting sets a setting on every provider of the given type.
func (c *Config) setProviderSetting(providerType, key, value string) {
	for i := range c.Catalog.Providers {
		if c.Catalog.Providers[i].Type != providerType {
			continue
		}
		if c.Catalog.Providers[i].Settings == nil {
			c.Catalog.Providers[i].Settings = make(map[string]any)
		}
		c.Catalog.Providers[i].Settings[key] = value
	}
}

// InitialVolume returns the configured start volume.
func (c *Config) InitialVolume() float64 {
	if c.Player.Volume == nil {
		return 0.5
	}
	return *c.Player.Volume
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if err := c.validateStore(); err != nil {
		return err
	}

	return nil
}

// validateStore checks the settings each store driver depends on.
func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case "mysql":
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required for the mysql driver")
		}
	case "redis":
		if c.Store.Redis.Addr == "" {
			return errors.New("store.redis.addr is required for the redis driver")
		}
		if c.Store.Redis.Namespace != "" && strings.ContainsAny(c.Store.Redis.Namespace, "*?[]") {
			return errors.Newf("store.redis.namespace must not contain glob characters: %q", c.Store.Redis.Namespace)
		}
	}
	return nil
}
