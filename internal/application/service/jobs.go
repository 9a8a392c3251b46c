package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current state of a batch job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Job staleness thresholds
const (
	// DefaultJobStaleThreshold is how long a job can go without progress updates
	// before being considered stale.
	DefaultJobStaleThreshold = 30 * time.Minute

	// DefaultJobMaxDuration is the maximum time a job can run before being
	// forcefully marked as failed.
	DefaultJobMaxDuration = 2 * time.Hour

	// DefaultJobRetention is how long finished jobs are kept in memory.
	DefaultJobRetention = 24 * time.Hour
)

// JobProgress holds real-time progress information.
type JobProgress struct {
	CurrentPhase string // "pending", "matching", "completed", "failed", "cancelled"
	Total        int
	Processed    int
	Linked       int
	Unlinked     int
	Errored      int
	LastUpdate   time.Time
}

// BatchJob represents a running or finished batch job.
type BatchJob struct {
	ID          string
	Status      JobStatus
	Request     BatchRequest
	StartedAt   time.Time
	CompletedAt *time.Time
	Progress    JobProgress
	Result      *BatchResult
	Error       error
	cancelFunc  context.CancelFunc
}

// Active reports whether the job is pending or running.
func (j *BatchJob) Active() bool {
	return j.Status == StatusPending || j.Status == StatusRunning
}

// StartBatchJob starts a batch asynchronously and returns the job ID.
// The passed context is NOT the parent of the job: jobs outlive the request
// that started them and are stopped through CancelJob.
func (s *MatchService) StartBatchJob(_ context.Context, req BatchRequest) (string, error) {
	jobID := uuid.NewString()
	jobCtx, cancel := context.WithCancel(context.Background())
	now := time.Now()

	job := &BatchJob{
		ID:         jobID,
		Status:     StatusPending,
		Request:    BatchRequest{Limit: req.Limit, DryRun: req.DryRun},
		StartedAt:  now,
		cancelFunc: cancel,
		Progress:   JobProgress{CurrentPhase: "pending", LastUpdate: now},
	}

	s.jobsMutex.Lock()
	if running := s.runningJobID; running != "" {
		s.jobsMutex.Unlock()
		cancel()
		return "", fmt.Errorf("%w: %s", ErrBatchRunning, running)
	}
	s.runningJobID = jobID
	s.jobs[jobID] = job
	s.jobsMutex.Unlock()

	go s.runBatchJob(jobCtx, jobID, job.Request)

	s.logger.Info("batch job started",
		"job_id", jobID,
		"limit", req.Limit,
		"dry_run", req.DryRun,
	)

	return jobID, nil
}

// GetJob returns a snapshot of a job by ID.
func (s *MatchService) GetJob(jobID string) (*BatchJob, error) {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	snapshot := *job
	return &snapshot, nil
}

// ListActiveJobs returns snapshots of all running or pending jobs.
func (s *MatchService) ListActiveJobs() []*BatchJob {
	return s.listJobs(func(j *BatchJob) bool { return j.Active() })
}

// ListJobs returns snapshots of all jobs, newest first.
func (s *MatchService) ListJobs() []*BatchJob {
	return s.listJobs(func(*BatchJob) bool { return true })
}

func (s *MatchService) listJobs(keep func(*BatchJob) bool) []*BatchJob {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	jobs := make([]*BatchJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if keep(job) {
			snapshot := *job
			jobs = append(jobs, &snapshot)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].StartedAt.After(jobs[j].StartedAt) })
	return jobs
}

// CancelJob cancels a pending or running job.
func (s *MatchService) CancelJob(jobID string) error {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	if !job.Active() {
		return fmt.Errorf("%w: status=%s", ErrJobNotCancellable, job.Status)
	}

	job.cancelFunc()
	now := time.Now()
	job.Status = StatusCancelled
	job.CompletedAt = &now
	job.Progress.CurrentPhase = "cancelled"
	job.Progress.LastUpdate = now
	// The slot is released by runBatchJob once the goroutine returns.
	s.metrics.ObserveJob(string(StatusCancelled))

	s.logger.Info("batch job cancelled", "job_id", jobID)
	return nil
}

// runBatchJob executes the batch in a background goroutine.
func (s *MatchService) runBatchJob(ctx context.Context, jobID string, req BatchRequest) {
	defer s.releaseBatch(jobID)

	s.updateJob(jobID, func(job *BatchJob) {
		job.Status = StatusRunning
		job.Progress.CurrentPhase = "matching"
		job.Progress.LastUpdate = time.Now()
	})

	req.Progress = func(p BatchProgress) {
		s.updateJob(jobID, func(job *BatchJob) {
			job.Progress.Total = p.Total
			job.Progress.Processed = p.Processed
			job.Progress.Linked = p.Linked
			job.Progress.Unlinked = p.Unlinked
			job.Progress.Errored = p.Errored
			job.Progress.LastUpdate = time.Now()
		})
	}

	result, err := s.RunBatch(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Already marked as cancelled in CancelJob or by stale handling
			s.jobsMutex.Lock()
			if job, exists := s.jobs[jobID]; exists {
				job.Result = result
			}
			s.jobsMutex.Unlock()
			return
		}
		s.failJob(jobID, err)
		return
	}

	s.completeJob(jobID, result)
}

// updateJob applies fn to a job that is still active.
func (s *MatchService) updateJob(jobID string, fn func(*BatchJob)) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists && job.Active() {
		fn(job)
	}
}

// completeJob marks a job as completed with results.
func (s *MatchService) completeJob(jobID string, result *BatchResult) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || !job.Active() {
		return
	}

	now := time.Now()
	job.Status = StatusCompleted
	job.CompletedAt = &now
	job.Result = result
	job.Progress.CurrentPhase = "completed"
	job.Progress.Total = result.Found
	job.Progress.Processed = result.Linked + result.Unlinked + result.Errored
	job.Progress.Linked = result.Linked
	job.Progress.Unlinked = result.Unlinked
	job.Progress.Errored = result.Errored
	job.Progress.LastUpdate = now
	s.metrics.ObserveJob(string(StatusCompleted))

	s.logger.Info("batch job completed",
		"job_id", jobID,
		"run_id", result.RunID,
		"linked", result.Linked,
		"unlinked", result.Unlinked,
		"errors", result.Errored,
	)
}

// failJob marks a job as failed with an error.
func (s *MatchService) failJob(jobID string, err error) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || !job.Active() {
		return
	}

	now := time.Now()
	job.Status = StatusFailed
	job.CompletedAt = &now
	job.Error = err
	job.Progress.CurrentPhase = "failed"
	job.Progress.LastUpdate = now
	s.metrics.ObserveJob(string(StatusFailed))

	s.logger.Error("batch job failed", "job_id", jobID, "error", err)
}

// releaseBatch frees the single batch slot if jobID still holds it.
func (s *MatchService) releaseBatch(jobID string) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()
	s.releaseBatchUnsafe(jobID)
}

// releaseBatchUnsafe MUST only be called while holding jobsMutex.
func (s *MatchService) releaseBatchUnsafe(jobID string) {
	if s.runningJobID == jobID {
		s.runningJobID = ""
	}
}

// CleanupOldJobs removes finished jobs older than maxAge.
func (s *MatchService) CleanupOldJobs(maxAge time.Duration) int {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for id, job := range s.jobs {
		if job.Active() {
			continue
		}
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Debug("cleaned up old batch jobs", "removed", removed)
	}

	return removed
}

// MarkStaleJobsAsFailed finds jobs that appear to be stuck and marks them as failed.
// A job is considered stale if:
// 1. It has been running longer than maxDuration, OR
// 2. Its Progress.LastUpdate is older than staleThreshold
func (s *MatchService) MarkStaleJobsAsFailed(staleThreshold, maxDuration time.Duration) int {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	now := time.Now()
	marked := 0

	for id, job := range s.jobs {
		if !job.Active() {
			continue
		}

		reason := staleReason(job, now, staleThreshold, maxDuration)
		if reason == "" {
			continue
		}

		if job.cancelFunc != nil {
			job.cancelFunc()
		}

		lastUpdate := job.Progress.LastUpdate
		job.Status = StatusFailed
		job.CompletedAt = &now
		job.Error = fmt.Errorf("job marked as stale: %s", reason)
		job.Progress.CurrentPhase = "failed"
		job.Progress.LastUpdate = now
		s.releaseBatchUnsafe(id)
		s.metrics.ObserveJob(string(StatusFailed))

		s.logger.Warn("marked stale job as failed",
			"job_id", id,
			"reason", reason,
			"started_at", job.StartedAt,
			"last_update", lastUpdate,
		)

		marked++
	}

	return marked
}

// staleReason explains why an active job counts as stale, or returns "".
func staleReason(job *BatchJob, now time.Time, staleThreshold, maxDuration time.Duration) string {
	if age := now.Sub(job.StartedAt); age > maxDuration {
		return fmt.Sprintf("exceeded max duration of %v (started %v ago)", maxDuration, age.Round(time.Second))
	}
	if idle := now.Sub(job.Progress.LastUpdate); idle > staleThreshold {
		return fmt.Sprintf("no progress update for %v (threshold: %v)", idle.Round(time.Second), staleThreshold)
	}
	return ""
}

// StartBackgroundCleanup starts a goroutine that periodically marks stale
// jobs as failed and drops finished jobs past retention.
// Call StopBackgroundCleanup to stop it.
func (s *MatchService) StartBackgroundCleanup(checkInterval time.Duration) {
	s.cleanupStop = make(chan struct{})
	s.cleanupDone = make(chan struct{})

	go func() {
		defer close(s.cleanupDone)

		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()

		s.logger.Info("background job cleanup started",
			"check_interval", checkInterval,
			"stale_threshold", DefaultJobStaleThreshold,
			"max_duration", DefaultJobMaxDuration,
		)

		for {
			select {
			case <-s.cleanupStop:
				s.logger.Info("background job cleanup stopped")
				return
			case <-ticker.C:
				if marked := s.MarkStaleJobsAsFailed(DefaultJobStaleThreshold, DefaultJobMaxDuration); marked > 0 {
					s.logger.Info("marked stale jobs as failed", "count", marked)
				}
				s.CleanupOldJobs(DefaultJobRetention)
			}
		}
	}()
}

// StopBackgroundCleanup stops the background cleanup goroutine.
// This method blocks until the cleanup goroutine has fully stopped.
func (s *MatchService) StopBackgroundCleanup() {
	if s.cleanupStop == nil {
		return
	}

	close(s.cleanupStop)
	<-s.cleanupDone
	s.cleanupStop = nil
}
