package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/invoice-match-backend/internal/api/dto"
	"github.com/eshaffer321/invoice-match-backend/internal/application/service"
)

// JobsHandler handles asynchronous batch job requests.
type JobsHandler struct {
	*Base
	jobs JobService
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(jobs JobService) *JobsHandler {
	return &JobsHandler{
		Base: &Base{},
		jobs: jobs,
	}
}

// Start handles POST /api/jobs - starts a batch job. An empty body runs
// every pending extraction.
func (h *JobsHandler) Start(c *gin.Context) {
	var req dto.StartBatchRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.WriteError(c, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
			return
		}
	}
	if req.Limit < 0 {
		h.WriteError(c, http.StatusBadRequest, dto.ValidationError("limit must not be negative"))
		return
	}

	jobID, err := h.jobs.StartBatchJob(c.Request.Context(), service.BatchRequest{
		Limit:  req.Limit,
		DryRun: req.DryRun,
	})
	if err != nil {
		if errors.Is(err, service.ErrBatchRunning) {
			h.WriteError(c, http.StatusConflict, dto.ConflictError(err.Error()))
			return
		}
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(c, http.StatusAccepted, dto.StartBatchResponse{
		JobID:  jobID,
		Status: string(service.StatusPending),
	})
}

// Get handles GET /api/jobs/:id - gets batch job status.
func (h *JobsHandler) Get(c *gin.Context) {
	job, err := h.jobs.GetJob(c.Param("id"))
	if err != nil {
		h.WriteError(c, http.StatusNotFound, dto.NotFoundError("job"))
		return
	}

	h.WriteJSON(c, http.StatusOK, toBatchJobResponse(job))
}

// ListActive handles GET /api/jobs/active - lists pending and running jobs.
func (h *JobsHandler) ListActive(c *gin.Context) {
	h.WriteJSON(c, http.StatusOK, toJobListResponse(h.jobs.ListActiveJobs()))
}

// List handles GET /api/jobs - lists all jobs still in memory.
func (h *JobsHandler) List(c *gin.Context) {
	h.WriteJSON(c, http.StatusOK, toJobListResponse(h.jobs.ListJobs()))
}

// Cancel handles DELETE /api/jobs/:id - cancels a batch job.
func (h *JobsHandler) Cancel(c *gin.Context) {
	err := h.jobs.CancelJob(c.Param("id"))
	switch {
	case err == nil:
		h.WriteJSON(c, http.StatusOK, dto.MessageResponse{
			Message: "Batch job cancelled successfully",
		})
	case errors.Is(err, service.ErrJobNotFound):
		h.WriteError(c, http.StatusNotFound, dto.NotFoundError("job"))
	default:
		h.WriteError(c, http.StatusConflict, dto.ConflictError(err.Error()))
	}
}

func toJobListResponse(jobs []*service.BatchJob) dto.JobListResponse {
	response := dto.JobListResponse{
		Jobs:  make([]dto.BatchJobResponse, 0, len(jobs)),
		Count: len(jobs),
	}
	for _, job := range jobs {
		response.Jobs = append(response.Jobs, toBatchJobResponse(job))
	}
	return response
}

// toBatchJobResponse converts a service job to an API response.
func toBatchJobResponse(job *service.BatchJob) dto.BatchJobResponse {
	response := dto.BatchJobResponse{
		JobID:     job.ID,
		Status:    string(job.Status),
		DryRun:    job.Request.DryRun,
		Limit:     job.Request.Limit,
		StartedAt: job.StartedAt.Format(time.RFC3339),
		Progress: dto.JobProgressResponse{
			CurrentPhase: job.Progress.CurrentPhase,
			Total:        job.Progress.Total,
			Processed:    job.Progress.Processed,
			Linked:       job.Progress.Linked,
			Unlinked:     job.Progress.Unlinked,
			Errored:      job.Progress.Errored,
			LastUpdate:   job.Progress.LastUpdate.Format(time.RFC3339),
		},
	}

	if job.CompletedAt != nil {
		completedAt := job.CompletedAt.Format(time.RFC3339)
		response.CompletedAt = &completedAt
	}

	if job.Result != nil {
		response.Result = &dto.BatchResultResponse{
			RunID:    job.Result.RunID,
			Found:    job.Result.Found,
			Linked:   job.Result.Linked,
			Unlinked: job.Result.Unlinked,
			Errored:  job.Result.Errored,
		}
	}

	if job.Error != nil {
		errMsg := job.Error.Error()
		response.Error = &errMsg
	}

	return response
}
