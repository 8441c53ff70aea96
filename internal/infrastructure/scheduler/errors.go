package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when trying to submit a job to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull is returned when the job queue is full
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrMalformedJob is returned when a queued payload cannot be decoded into a valid job
	ErrMalformedJob = errors.New("malformed queued job")

	// ErrJobPanicked is returned when an executor panics
	ErrJobPanicked = errors.New("job executor panicked")
)
