// Package storage provides the file stores that hold uploaded sales reports.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	infraconfig "github.com/marketplace-analytics/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

var (
	// ErrObjectNotFound is returned when no file is stored under the key
	ErrObjectNotFound = errors.New("storage: object not found")
	// ErrInvalidKey is returned for an empty key or one escaping the store
	ErrInvalidKey = errors.New("storage: invalid storage key")
)

// FileStore reads, writes and deletes source files by storage key
type FileStore interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, r io.Reader) error
	Delete(ctx context.Context, key string) error
}

// New builds the FileStore selected by cfg.Driver
func New(ctx context.Context, cfg *infraconfig.StorageConfig, logger *zap.Logger) (FileStore, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	switch cfg.Driver {
	case infraconfig.StorageLocal, "":
		return NewLocalFileStore(cfg.LocalRoot, logger)
	case infraconfig.StorageS3:
		return NewS3FileStore(ctx, cfg, WithLogger(logger))
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
