package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/invoice-match-backend/internal/api/dto"
	"github.com/eshaffer321/invoice-match-backend/internal/infrastructure/storage"
)

// RunsHandler handles batch run HTTP requests.
type RunsHandler struct {
	*Base
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(repo storage.Repository) *RunsHandler {
	return &RunsHandler{
		Base: NewBase(repo),
	}
}

// List handles GET /api/runs - returns list of batch runs.
func (h *RunsHandler) List(c *gin.Context) {
	limit := ParseIntParam(c, "limit", 20)

	runs, err := h.repo.ListMatchRuns(limit)
	if err != nil {
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.MatchRunListResponse{
		Runs:  make([]dto.MatchRunResponse, 0, len(runs)),
		Count: len(runs),
	}

	for _, run := range runs {
		response.Runs = append(response.Runs, toMatchRunResponse(run))
	}

	h.WriteJSON(c, http.StatusOK, response)
}

// Get handles GET /api/runs/:id - returns a single batch run by ID.
func (h *RunsHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.WriteError(c, http.StatusBadRequest, dto.BadRequestError("invalid run ID"))
		return
	}

	run, err := h.repo.GetMatchRun(id)
	if err != nil {
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}

	if run == nil {
		h.WriteError(c, http.StatusNotFound, dto.NotFoundError("match run"))
		return
	}

	h.WriteJSON(c, http.StatusOK, toMatchRunResponse(*run))
}

// toMatchRunResponse converts a storage MatchRun to an API response.
func toMatchRunResponse(run storage.MatchRun) dto.MatchRunResponse {
	response := dto.MatchRunResponse{
		ID:               run.ID,
		StartedAt:        run.StartedAt.Format(time.RFC3339),
		DryRun:           run.DryRun,
		ExtractionsFound: run.ExtractionsFound,
		Linked:           run.Linked,
		Unlinked:         run.Unlinked,
		Errored:          run.Errored,
		Status:           run.Status,
	}
	if run.CompletedAt != nil {
		completedAt := run.CompletedAt.Format(time.RFC3339)
		response.CompletedAt = &completedAt
	}
	return response
}
