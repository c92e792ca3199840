// Package store provides the key-value persistence used for dashboard state.
// Handler and service code depends only on the Store interface, so the same
// logic runs against memory (tests), SQLite (single device) or Redis.
package store

import (
	"context"
	"fmt"

	"github.com/sproutwatch/sproutwatch/internal/config"

	"github.com/rs/zerolog/log"
)

// Keys shared by every backend.
const (
	KeySelectedPlantName = "selectedPlantName"
	KeySelectedPlantData = "selectedPlantData"
)

// Store is a minimal string key-value store.
type Store interface {
	// Get returns the value for key, or *ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set writes value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping checks if the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error
}

// ErrNotFound is returned when a key has no value.
type ErrNotFound struct {
	Key string
}

func (e *ErrNotFound) Error() string {
	return "key not found: " + e.Key
}

// IsNotFound reports whether err is an *ErrNotFound.
func IsNotFound(err error) bool {
	_, ok := err.(*ErrNotFound)
	return ok
}

// Open builds the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		log.Info().Msg("✅ In-memory store initialized")
		return NewMemoryStore(), nil
	case "sqlite":
		s, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("✅ SQLite store initialized")
		return s, nil
	case "redis":
		s, err := NewRedisStoreFromURL(ctx, cfg.RedisURL, cfg.Prefix)
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		log.Info().Str("prefix", cfg.Prefix).Msg("✅ Redis store initialized")
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
