package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/invoice-match-backend/internal/infrastructure/storage"
)

func TestJobStatus_String(t *testing.T) {
	assert.Equal(t, "pending", string(StatusPending))
	assert.Equal(t, "running", string(StatusRunning))
	assert.Equal(t, "completed", string(StatusCompleted))
	assert.Equal(t, "failed", string(StatusFailed))
	assert.Equal(t, "cancelled", string(StatusCancelled))
}

func TestMatchService_StartBatchJob_Completes(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seedOrders(repo)
	_, err := svc.SubmitExtraction(context.Background(), ExtractionInput{ID: "ext-1", VendorID: "acme", GoalTotal: dec("70")})
	require.NoError(t, err)

	jobID, err := svc.StartBatchJob(context.Background(), BatchRequest{})
	require.NoError(t, err)
	assert.Len(t, jobID, 36)

	require.Eventually(t, func() bool {
		job, err := svc.GetJob(jobID)
		return err == nil && job.Status == StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	job, err := svc.GetJob(jobID)
	require.NoError(t, err)
	require.NotNil(t, job.Result)
	assert.Equal(t, 1, job.Result.Linked)
	assert.Equal(t, "completed", job.Progress.CurrentPhase)
	assert.Equal(t, 1, job.Progress.Processed)
	assert.NotNil(t, job.CompletedAt)
	assert.Empty(t, svc.ListActiveJobs())

	// The slot is free again
	require.Eventually(t, func() bool {
		_, err := svc.StartBatchJob(context.Background(), BatchRequest{DryRun: true})
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestMatchService_StartBatchJob_OnlyOneAtATime(t *testing.T) {
	svc, _, _ := newTestService(t)

	svc.jobsMutex.Lock()
	svc.runningJobID = "busy-job"
	svc.jobsMutex.Unlock()

	_, err := svc.StartBatchJob(context.Background(), BatchRequest{})

	assert.ErrorIs(t, err, ErrBatchRunning)
	assert.Contains(t, err.Error(), "busy-job")
	assert.Empty(t, svc.ListJobs())
}

func TestMatchService_GetJob_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.GetJob("non-existent")

	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.True(t, IsNotFound(err))
}

func TestMatchService_ListJobs_Empty(t *testing.T) {
	svc, _, _ := newTestService(t)

	assert.Empty(t, svc.ListJobs())
	assert.Empty(t, svc.ListActiveJobs())
}

func TestMatchService_CancelJob(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		assert.ErrorIs(t, svc.CancelJob("non-existent"), ErrJobNotFound)
	})

	t.Run("finished job", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		completed := time.Now()
		svc.jobs["done"] = &BatchJob{ID: "done", Status: StatusCompleted, CompletedAt: &completed}

		assert.ErrorIs(t, svc.CancelJob("done"), ErrJobNotCancellable)
	})

	t.Run("running job", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		ctx, cancel := context.WithCancel(context.Background())
		svc.jobs["running"] = &BatchJob{
			ID:         "running",
			Status:     StatusRunning,
			StartedAt:  time.Now(),
			cancelFunc: cancel,
		}
		svc.runningJobID = "running"

		require.NoError(t, svc.CancelJob("running"))

		job, err := svc.GetJob("running")
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, job.Status)
		assert.Equal(t, "cancelled", job.Progress.CurrentPhase)
		assert.NotNil(t, job.CompletedAt)
		assert.ErrorIs(t, ctx.Err(), context.Canceled)

		// The slot stays held until the batch goroutine returns
		_, err = svc.StartBatchJob(context.Background(), BatchRequest{})
		assert.ErrorIs(t, err, ErrBatchRunning)

		svc.releaseBatch("running")
		assert.Empty(t, svc.runningJobID)
	})
}

func TestMatchService_CancelJob_InterruptedExtractionStaysPending(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seedSlowOrder(repo)
	_, err := svc.SubmitExtraction(context.Background(), ExtractionInput{
		ID: "ext-slow", VendorID: "acme", GoalTotal: dec("1000"), POReferences: []string{"PO-9"},
	})
	require.NoError(t, err)

	jobID, err := svc.StartBatchJob(context.Background(), BatchRequest{})
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, svc.CancelJob(jobID))

	require.Eventually(t, func() bool {
		svc.jobsMutex.RLock()
		defer svc.jobsMutex.RUnlock()
		return svc.runningJobID == ""
	}, 5*time.Second, 5*time.Millisecond)

	job, err := svc.GetJob(jobID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, job.Status)

	link, err := repo.GetLatestLink("ext-slow")
	require.NoError(t, err)
	assert.Nil(t, link)
	assert.Empty(t, repo.StatusUpdates)

	stored, err := repo.GetExtraction("ext-slow")
	require.NoError(t, err)
	assert.Equal(t, storage.ExtractionPending, stored.Status)
}

func TestMatchService_ListJobs_NewestFirst(t *testing.T) {
	svc, _, _ := newTestService(t)
	now := time.Now()
	svc.jobs["old"] = &BatchJob{ID: "old", Status: StatusCompleted, StartedAt: now.Add(-time.Hour)}
	svc.jobs["new"] = &BatchJob{ID: "new", Status: StatusRunning, StartedAt: now}

	jobs := svc.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "new", jobs[0].ID)

	active := svc.ListActiveJobs()
	require.Len(t, active, 1)
	assert.Equal(t, "new", active[0].ID)
}

func TestMatchService_CleanupOldJobs(t *testing.T) {
	svc, _, _ := newTestService(t)
	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now().Add(-time.Minute)

	svc.jobs["old-completed"] = &BatchJob{ID: "old-completed", Status: StatusCompleted, CompletedAt: &old}
	svc.jobs["old-failed"] = &BatchJob{ID: "old-failed", Status: StatusFailed, CompletedAt: &old}
	svc.jobs["recent"] = &BatchJob{ID: "recent", Status: StatusCompleted, CompletedAt: &recent}
	svc.jobs["running"] = &BatchJob{ID: "running", Status: StatusRunning, StartedAt: old}

	removed := svc.CleanupOldJobs(24 * time.Hour)

	assert.Equal(t, 2, removed)
	assert.Len(t, svc.jobs, 2)
	assert.Contains(t, svc.jobs, "recent")
	assert.Contains(t, svc.jobs, "running")
}

func TestMatchService_MarkStaleJobsAsFailed(t *testing.T) {
	tests := []struct {
		name       string
		startedAgo time.Duration
		updatedAgo time.Duration
		status     JobStatus
		wantStale  bool
	}{
		{name: "fresh running job", startedAgo: time.Minute, updatedAgo: time.Second, status: StatusRunning},
		{name: "exceeded max duration", startedAgo: 3 * time.Hour, updatedAgo: time.Second, status: StatusRunning, wantStale: true},
		{name: "no progress", startedAgo: time.Hour, updatedAgo: 45 * time.Minute, status: StatusRunning, wantStale: true},
		{name: "stale pending job", startedAgo: time.Hour, updatedAgo: time.Hour, status: StatusPending, wantStale: true},
		{name: "completed job ignored", startedAgo: 5 * time.Hour, updatedAgo: 5 * time.Hour, status: StatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService(t)
			now := time.Now()
			cancelled := false
			svc.jobs["job"] = &BatchJob{
				ID:         "job",
				Status:     tt.status,
				StartedAt:  now.Add(-tt.startedAgo),
				Progress:   JobProgress{LastUpdate: now.Add(-tt.updatedAgo)},
				cancelFunc: func() { cancelled = true },
			}
			svc.runningJobID = "job"

			if svc.jobs["job"].Active() {
				reason := staleReason(svc.jobs["job"], now, DefaultJobStaleThreshold, DefaultJobMaxDuration)
				assert.Equal(t, tt.wantStale, reason != "")
			}

			marked := svc.MarkStaleJobsAsFailed(DefaultJobStaleThreshold, DefaultJobMaxDuration)

			job, err := svc.GetJob("job")
			require.NoError(t, err)
			if tt.wantStale {
				assert.Equal(t, 1, marked)
				assert.Equal(t, StatusFailed, job.Status)
				assert.Contains(t, job.Error.Error(), "stale")
				assert.True(t, cancelled)
				assert.Empty(t, svc.runningJobID)
				return
			}
			assert.Equal(t, 0, marked)
			assert.Equal(t, tt.status, job.Status)
			assert.False(t, cancelled)
		})
	}
}

func TestMatchService_BackgroundCleanup(t *testing.T) {
	svc, _, _ := newTestService(t)
	old := time.Now().Add(-48 * time.Hour)
	svc.jobsMutex.Lock()
	svc.jobs["old"] = &BatchJob{ID: "old", Status: StatusCompleted, CompletedAt: &old}
	svc.jobsMutex.Unlock()

	svc.StartBackgroundCleanup(5 * time.Millisecond)
	defer svc.StopBackgroundCleanup()

	assert.Eventually(t, func() bool {
		svc.jobsMutex.RLock()
		defer svc.jobsMutex.RUnlock()
		return len(svc.jobs) == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestMatchService_StopBackgroundCleanup_NotStarted(t *testing.T) {
	svc, _, _ := newTestService(t)

	assert.NotPanics(t, svc.StopBackgroundCleanup)
}
