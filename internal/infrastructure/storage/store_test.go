package storage

import (
	"context"
	"testing"

	"github.com/marketplace-analytics/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("local driver", func(t *testing.T) {
		store, err := New(ctx, &config.StorageConfig{Driver: config.StorageLocal, LocalRoot: t.TempDir()}, zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &LocalFileStore{}, store)
	})

	t.Run("s3 driver", func(t *testing.T) {
		store, err := New(ctx, &config.StorageConfig{
			Driver:      config.StorageS3,
			S3Bucket:    "reports",
			S3AccessKey: "key",
			S3SecretKey: "secret",
		}, zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &S3FileStore{}, store)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := New(ctx, &config.StorageConfig{Driver: "ftp"}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported storage driver")
	})

	t.Run("nil config", func(t *testing.T) {
		_, err := New(ctx, nil, nil)
		require.Error(t, err)
	})
}
