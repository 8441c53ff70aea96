package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/marketplace-analytics/backend/internal/infrastructure/telemetry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultQueueKey is the Redis list holding pending ingestion jobs
const DefaultQueueKey = "mpa:ingestion:jobs"

// RedisJobQueue is a FIFO of jobs stored as JSON in a Redis list.
// Payloads that cannot be decoded are moved to the dead-letter list.
type RedisJobQueue struct {
	client  redis.UniversalClient
	key     string
	deadKey string
	logger  *zap.Logger
}

// NewRedisJobQueue creates a queue on the given list key
func NewRedisJobQueue(client redis.UniversalClient, key string, logger *zap.Logger) *RedisJobQueue {
	if key == "" {
		key = DefaultQueueKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisJobQueue{
		client:  client,
		key:     key,
		deadKey: key + ":dead",
		logger:  logger,
	}
}

// Key returns the list key
func (q *RedisJobQueue) Key() string {
	return q.key
}

// DeadLetterKey returns the list key of undecodable payloads
func (q *RedisJobQueue) DeadLetterKey() string {
	return q.deadKey
}

// Push appends a job to the queue
func (q *RedisJobQueue) Push(ctx context.Context, job *Job) error {
	if err := job.Ingestion.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Pop removes the oldest job, waiting up to timeout for one to arrive.
// It returns nil without error when the wait times out.
func (q *RedisJobQueue) Pop(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pop job: %w", err)
	}
	// BRPOP replies with [key, value]
	payload := res[1]

	job, err := decodeJob(payload)
	if err != nil {
		if dlErr := q.client.LPush(ctx, q.deadKey, payload).Err(); dlErr != nil {
			q.logger.Error("Failed to dead-letter malformed job", zap.Error(dlErr))
		}
		q.logger.Warn("Malformed job moved to dead-letter list",
			zap.String("dead_letter_key", q.deadKey),
			zap.Error(err),
		)
		return nil, err
	}
	return job, nil
}

// Len returns the number of queued jobs
func (q *RedisJobQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return n, nil
}

func decodeJob(payload string) (*Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJob, err)
	}
	if err := job.Ingestion.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJob, err)
	}
	job.Status = JobStatusPending
	return &job, nil
}

// Ensure RedisJobQueue implements QueueDepthProvider
var _ telemetry.QueueDepthProvider = (*RedisJobQueue)(nil)
