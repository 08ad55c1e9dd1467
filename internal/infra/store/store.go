// Package store provides the key/value persistence backends of the player.
package store

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/playdeck/internal/infra/config"
)

// ErrUnsupportedDriver is returned by Open for an unknown driver name.
var ErrUnsupportedDriver = errors.New("unsupported store driver")

// DefaultSQLitePath is used when the sqlite driver is configured without a DSN.
const DefaultSQLitePath = "playdeck.db"

// Store is a string key/value store.
type Store interface {
	// Keys returns every key in enumeration order.
	Keys(ctx context.Context) ([]string, error)
	// Get returns the value of key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set creates or replaces the value of key.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases the backend.
	Close() error
}

// Open creates the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	zlog.Debug().Msgf("opening store: driver=%s", cfg.Driver)

	switch cfg.Driver {
	case "memory":
		return NewMemory(), nil
	case "sqlite":
		path := cfg.DSN
		if path == "" {
			path = DefaultSQLitePath
		}
		return NewSQLite(ctx, path)
	case "mysql":
		return NewMySQL(ctx, cfg.DSN)
	case "redis":
		return NewRedis(ctx, RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			Namespace: cfg.Redis.Namespace,
		})
	default:
		return nil, errors.Wrapf(ErrUnsupportedDriver, "driver=%q", cfg.Driver)
	}
}
