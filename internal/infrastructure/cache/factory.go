package cache

import (
	"time"

	"github.com/marketplace-analytics/backend/internal/domain/sales"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewReportLocker returns a Redis-backed locker, or an in-process one when
// client is nil. The in-process locker does not coordinate separate workers.
func NewReportLocker(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) sales.ReportLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		logger.Warn("Redis unavailable, using in-process report locks. " +
			"Concurrent workers may process the same report.")
		return NewMemoryReportLocker()
	}
	logger.Info("Using Redis report locks", zap.Duration("ttl", ttl))
	return NewRedisReportLocker(client, WithLockTTL(ttl), WithLockLogger(logger))
}
