package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	ingestapp "github.com/marketplace-analytics/backend/internal/application/ingest"
	"go.uber.org/zap"
)

// JobStatus represents the status of a scheduled job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// Job outcomes reported to a JobRecorder
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeRetried   = "retried"
	OutcomeAbandoned = "abandoned"
)

// Job is one queued ingestion and its attempt history
type Job struct {
	ID          uuid.UUID              `json:"id"`
	Ingestion   ingestapp.IngestionJob `json:"ingestion"`
	Status      JobStatus              `json:"status"`
	Error       string                 `json:"error,omitempty"`
	EnqueuedAt  time.Time              `json:"enqueued_at"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
	NextRetryAt *time.Time             `json:"next_retry_at,omitempty"`
}

// NewJob creates a new job instance
func NewJob(ingestion ingestapp.IngestionJob, maxRetries int) *Job {
	return &Job{
		ID:         uuid.New(),
		Ingestion:  ingestion,
		Status:     JobStatusPending,
		EnqueuedAt: time.Now().UTC(),
		MaxRetries: maxRetries,
	}
}

// Start marks the job as running
func (j *Job) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as successful
func (j *Job) Complete() {
	now := time.Now()
	j.Status = JobStatusSuccess
	j.CompletedAt = &now
}

// Fail marks the job as failed
func (j *Job) Fail(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// ShouldRetry returns true if the job should be retried
func (j *Job) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry schedules the job for retry
func (j *Job) ScheduleRetry(delay time.Duration) {
	j.RetryCount++
	j.Status = JobStatusPending
	nextRetry := time.Now().Add(delay)
	j.NextRetryAt = &nextRetry
	j.Error = ""
}

// JobExecutor is the interface for executing jobs
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

// JobRecorder receives job outcomes
type JobRecorder interface {
	RecordJob(ctx context.Context, status string)
}

// RetryPolicy decides whether a failed job may be retried
type RetryPolicy func(err error) bool

// AbandonHandler receives jobs the scheduler gives up on without a final
// outcome, such as jobs still queued or waiting for a retry at shutdown
type AbandonHandler func(ctx context.Context, job *Job)

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	Workers     int
	QueueSize   int
	JobTimeout  time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
}

// DefaultSchedulerConfig returns default scheduler configuration
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Workers:     2,
		QueueSize:   100,
		JobTimeout:  15 * time.Minute,
		MaxAttempts: 3,
		RetryDelay:  30 * time.Second,
	}
}

// Validate checks the configuration
func (c SchedulerConfig) Validate() error {
	switch {
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue size must be positive", ErrInvalidConfig)
	case c.JobTimeout <= 0:
		return fmt.Errorf("%w: job timeout must be positive", ErrInvalidConfig)
	case c.MaxAttempts < 1:
		return fmt.Errorf("%w: max attempts must be at least 1", ErrInvalidConfig)
	case c.RetryDelay < 0:
		return fmt.Errorf("%w: retry delay cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// NewJob creates a job with the retry budget of this configuration
func (c SchedulerConfig) NewJob(ingestion ingestapp.IngestionJob) *Job {
	return NewJob(ingestion, c.MaxAttempts-1)
}

// Option is a functional option for Scheduler configuration
type Option func(*Scheduler)

// WithRetryPolicy sets the policy deciding which failures are retried
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Scheduler) {
		if p != nil {
			s.retryable = p
		}
	}
}

// WithJobRecorder sets the job outcome recorder
func WithJobRecorder(r JobRecorder) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithAbandonHandler sets the handler for jobs abandoned at shutdown
func WithAbandonHandler(h AbandonHandler) Option {
	return func(s *Scheduler) {
		if h != nil {
			s.onAbandon = h
		}
	}
}

// Scheduler runs jobs on a fixed worker pool and retries retryable failures
type Scheduler struct {
	config    SchedulerConfig
	executor  JobExecutor
	logger    *zap.Logger
	retryable RetryPolicy
	recorder  JobRecorder
	onAbandon AbandonHandler

	jobs      chan *Job
	stopped   chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	retries   map[uuid.UUID]*pendingRetry
}

type pendingRetry struct {
	job   *Job
	timer *time.Timer
}

type noopJobRecorder struct{}

func (noopJobRecorder) RecordJob(context.Context, string) {}

// NewScheduler creates a new scheduler instance
func NewScheduler(config SchedulerConfig, executor JobExecutor, logger *zap.Logger, opts ...Option) (*Scheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		config:    config,
		executor:  executor,
		logger:    logger,
		retryable: func(error) bool { return true },
		recorder:  noopJobRecorder{},
		onAbandon: func(context.Context, *Job) {},
		jobs:      make(chan *Job, config.QueueSize),
		retries:   make(map[uuid.UUID]*pendingRetry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start starts the worker pool
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopped = make(chan struct{})
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Ingestion scheduler started",
		zap.Int("workers", s.config.Workers),
		zap.Int("queue_size", s.config.QueueSize),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs, waits for the workers and hands every queued or
// retry-pending job to the abandon handler
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	close(s.stopped)
	pending := make([]*Job, 0, len(s.retries))
	for id, r := range s.retries {
		// a timer that already fired finds its entry gone and backs off
		r.timer.Stop()
		pending = append(pending, r.job)
		delete(s.retries, id)
	}
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	// Wait for workers to finish with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Ingestion scheduler stop timed out")
		err = ctx.Err()
	}

	for {
		select {
		case job := <-s.jobs:
			pending = append(pending, job)
			continue
		default:
		}
		break
	}
	abandonCtx := context.WithoutCancel(ctx)
	for _, job := range pending {
		s.abandon(abandonCtx, job)
	}

	if err == nil {
		s.logger.Info("Ingestion scheduler stopped gracefully", zap.Int("abandoned", len(pending)))
	}
	return err
}

// Submit enqueues a job, waiting for queue capacity until ctx is done
func (s *Scheduler) Submit(ctx context.Context, job *Job) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	stopped := s.stopped
	s.mu.Unlock()

	select {
	case s.jobs <- job:
		s.logSubmitted(job)
		return nil
	case <-stopped:
		return ErrSchedulerNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit enqueues a job without waiting
func (s *Scheduler) TrySubmit(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}

	select {
	case s.jobs <- job:
		s.logSubmitted(job)
		return nil
	default:
		return ErrJobQueueFull
	}
}

// Config returns the scheduler configuration
func (s *Scheduler) Config() SchedulerConfig {
	return s.config
}

// PendingRetries returns the number of jobs waiting for a retry
func (s *Scheduler) PendingRetries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.retries)
}

func (s *Scheduler) logSubmitted(job *Job) {
	s.logger.Debug("Job submitted",
		zap.String("job_id", job.ID.String()),
		zap.String("report_id", job.Ingestion.ReportID.String()),
	)
}

// worker processes jobs from the queue
func (s *Scheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	s.logger.Debug("Worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Worker stopping", zap.Int("worker_id", workerID))
			return
		case job := <-s.jobs:
			s.processJob(ctx, job, workerID)
		}
	}
}

// processJob executes a single job
func (s *Scheduler) processJob(ctx context.Context, job *Job, workerID int) {
	log := s.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("report_id", job.Ingestion.ReportID.String()),
		zap.Int("attempt", job.RetryCount+1),
	)

	job.Start()
	log.Info("Processing job")

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	err := s.execute(jobCtx, job)
	cancel()

	if err == nil {
		job.Complete()
		s.recorder.RecordJob(ctx, OutcomeCompleted)
		log.Info("Job completed successfully")
		return
	}

	if ctx.Err() != nil {
		// interrupted by shutdown, not a verdict on the job
		job.Status = JobStatusPending
		s.abandon(context.WithoutCancel(ctx), job)
		return
	}

	job.Fail(err.Error())
	if !s.retryable(err) || !job.ShouldRetry() {
		s.recorder.RecordJob(ctx, OutcomeFailed)
		log.Error("Job failed", zap.Error(err), zap.Bool("retryable", s.retryable(err)))
		return
	}

	job.ScheduleRetry(s.config.RetryDelay)
	s.recorder.RecordJob(ctx, OutcomeRetried)
	log.Warn("Job failed, scheduled for retry",
		zap.Error(err),
		zap.Int("retry_count", job.RetryCount),
		zap.Int("max_retries", job.MaxRetries),
		zap.Duration("retry_delay", s.config.RetryDelay),
	)
	s.scheduleRetry(job)
}

func (s *Scheduler) execute(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()
	return s.executor.Execute(ctx, job)
}

func (s *Scheduler) scheduleRetry(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		go s.abandon(context.Background(), job)
		return
	}

	s.retries[job.ID] = &pendingRetry{
		job: job,
		timer: time.AfterFunc(s.config.RetryDelay, func() {
			s.mu.Lock()
			_, pending := s.retries[job.ID]
			delete(s.retries, job.ID)
			s.mu.Unlock()
			if !pending {
				return
			}
			if err := s.TrySubmit(job); err != nil {
				s.logger.Warn("Failed to re-queue job for retry",
					zap.String("job_id", job.ID.String()),
					zap.Error(err),
				)
				s.abandon(context.Background(), job)
			}
		}),
	}
}

func (s *Scheduler) abandon(ctx context.Context, job *Job) {
	s.recorder.RecordJob(ctx, OutcomeAbandoned)
	s.logger.Warn("Job abandoned",
		zap.String("job_id", job.ID.String()),
		zap.String("report_id", job.Ingestion.ReportID.String()),
		zap.Int("retry_count", job.RetryCount),
	)
	s.onAbandon(ctx, job)
}
