package service

import "errors"

var (
	// ErrInvalidInput is wrapped by validation failures of submitted data.
	ErrInvalidInput = errors.New("invalid input")

	// ErrExtractionNotFound is returned when an extraction id is unknown.
	ErrExtractionNotFound = errors.New("extraction not found")

	// ErrBatchRunning is returned when a batch job is already in progress.
	ErrBatchRunning = errors.New("batch job already running")

	// ErrJobNotFound is returned when a job id is unknown.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotCancellable is returned when cancelling a finished job.
	ErrJobNotCancellable = errors.New("job cannot be cancelled")
)
