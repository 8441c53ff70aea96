package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/marketplace-analytics/backend/internal/domain/sales"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultLockTTL is the lease of a report lock when none is configured
const DefaultLockTTL = 10 * time.Minute

const defaultLockPrefix = "mpa:report-lock:"

// RedisReportLocker implements sales.ReportLocker with Redis leases.
// A held lock is refreshed every half TTL until released.
type RedisReportLocker struct {
	client    *redislock.Client
	ttl       time.Duration
	keyPrefix string
	logger    *zap.Logger
}

// RedisReportLockerOption is a functional option for configuring RedisReportLocker
type RedisReportLockerOption func(*RedisReportLocker)

// WithLockTTL sets the lease duration
func WithLockTTL(ttl time.Duration) RedisReportLockerOption {
	return func(l *RedisReportLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithLockKeyPrefix sets the Redis key prefix
func WithLockKeyPrefix(prefix string) RedisReportLockerOption {
	return func(l *RedisReportLocker) {
		if prefix != "" {
			l.keyPrefix = prefix
		}
	}
}

// WithLockLogger sets the logger
func WithLockLogger(logger *zap.Logger) RedisReportLockerOption {
	return func(l *RedisReportLocker) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewRedisReportLocker creates a locker over an existing Redis client
func NewRedisReportLocker(client redis.UniversalClient, opts ...RedisReportLockerOption) *RedisReportLocker {
	l := &RedisReportLocker{
		client:    redislock.New(client),
		ttl:       DefaultLockTTL,
		keyPrefix: defaultLockPrefix,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock obtains the report lease without waiting
func (l *RedisReportLocker) Lock(ctx context.Context, reportID uuid.UUID) (sales.ReportLock, error) {
	key := l.keyPrefix + reportID.String()
	lock, err := l.client.Obtain(ctx, key, l.ttl, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, sales.ErrReportLocked
		}
		return nil, fmt.Errorf("obtain report lock: %w", err)
	}

	held := &redisReportLock{
		lock: lock,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go held.keepAlive(l.ttl, l.logger.With(zap.String("lock_key", key)))
	return held, nil
}

type redisReportLock struct {
	lock     *redislock.Lock
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (h *redisReportLock) keepAlive(ttl time.Duration, logger *zap.Logger) {
	defer close(h.done)

	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), ttl/2)
			err := h.lock.Refresh(ctx, ttl, nil)
			cancel()
			if err != nil {
				logger.Warn("Failed to refresh report lock", zap.Error(err))
				if errors.Is(err, redislock.ErrNotObtained) {
					return
				}
			}
		}
	}
}

// Release stops the refresher and deletes the lease if still held
func (h *redisReportLock) Release(ctx context.Context) error {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done

	if err := h.lock.Release(ctx); err != nil {
		if errors.Is(err, redislock.ErrLockNotHeld) {
			return fmt.Errorf("release report lock: lease expired: %w", err)
		}
		return fmt.Errorf("release report lock: %w", err)
	}
	return nil
}

// Ensure RedisReportLocker implements ReportLocker
var _ sales.ReportLocker = (*RedisReportLocker)(nil)
