package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const (
	defaultPollTimeout = 5 * time.Second
	popErrorBackoff    = time.Second
)

// JobQueue is a durable source of jobs
type JobQueue interface {
	Push(ctx context.Context, job *Job) error
	Pop(ctx context.Context, timeout time.Duration) (*Job, error)
}

// Consumer moves jobs from a JobQueue into a Scheduler
type Consumer struct {
	queue       JobQueue
	scheduler   *Scheduler
	logger      *zap.Logger
	pollTimeout time.Duration
}

// NewConsumer creates a consumer feeding the scheduler from queue
func NewConsumer(queue JobQueue, scheduler *Scheduler, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		queue:       queue,
		scheduler:   scheduler,
		logger:      logger,
		pollTimeout: defaultPollTimeout,
	}
}

// Requeue pushes an abandoned job back to the queue so another worker
// process picks it up. It is meant to be the scheduler's AbandonHandler.
func (c *Consumer) Requeue(ctx context.Context, job *Job) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.queue.Push(ctx, job); err != nil {
		c.logger.Error("Failed to requeue job",
			zap.String("job_id", job.ID.String()),
			zap.String("report_id", job.Ingestion.ReportID.String()),
			zap.Error(err),
		)
	}
}

// Run consumes jobs until ctx is done
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("Job consumer started")
	for {
		if ctx.Err() != nil {
			c.logger.Info("Job consumer stopped")
			return nil
		}

		job, err := c.queue.Pop(ctx, c.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			if !errors.Is(err, ErrMalformedJob) {
				c.logger.Warn("Failed to pop job", zap.Error(err))
				sleep(ctx, popErrorBackoff)
			}
			continue
		}
		if job == nil {
			continue
		}

		if err := c.scheduler.Submit(ctx, job); err != nil {
			c.logger.Warn("Job not accepted by scheduler, requeueing",
				zap.String("job_id", job.ID.String()),
				zap.Error(err),
			)
			c.Requeue(context.WithoutCancel(ctx), job)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
