// Package storage is the durable mirror behind the tracker store: one named
// blob per store, written whole on every mutation and read once at start.
package storage

import (
	"context"
	"errors"
	"fmt"

	"application-tracker/internal/common/config"
	"application-tracker/internal/common/database"
)

// Blob names used by the tracker and its sibling stores.
const (
	KeyJobApplications = "job-applications"
	KeySavedSearches   = "saved-searches"
	KeySearchHistory   = "search-history"
)

// ErrNotFound is returned by Load when no blob has been written yet.
var ErrNotFound = errors.New("storage: blob not found")

// Storage is a flat key/blob store.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Close() error
}

// Open builds the driver selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case "file":
		return NewFileStorage(cfg.File.Dir)
	case "memory":
		return NewMemoryStorage(), nil
	case "redis":
		rc, err := database.NewRedis(cfg.Redis)
		if err != nil {
			return nil, err
		}
		if err := rc.Ping(ctx); err != nil {
			_ = rc.Close()
			return nil, err
		}
		return NewRedisStorage(rc.Client, cfg.Redis.KeyPrefix), nil
	case "postgres":
		pg, err := database.NewPostgres(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if err := pg.Ping(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
		s := NewPostgresStorage(pg.DB)
		if err := s.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("storage: unsupported driver %q", cfg.Driver)
}
