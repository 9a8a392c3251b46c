package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/invoice-match-backend/internal/api/dto"
	"github.com/eshaffer321/invoice-match-backend/internal/infrastructure/storage"
)

// LinksHandler handles link decision HTTP requests.
type LinksHandler struct {
	*Base
}

// NewLinksHandler creates a new links handler.
func NewLinksHandler(repo storage.Repository) *LinksHandler {
	return &LinksHandler{
		Base: NewBase(repo),
	}
}

// List handles GET /api/links - returns recent link decisions.
func (h *LinksHandler) List(c *gin.Context) {
	links, err := h.repo.ListLinks(ParseIntParam(c, "limit", 50))
	if err != nil {
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.LinkListResponse{
		Links: make([]dto.LinkResponse, 0, len(links)),
		Count: len(links),
	}
	for _, link := range links {
		response.Links = append(response.Links, toLinkResponse(link))
	}

	h.WriteJSON(c, http.StatusOK, response)
}

// toLinkResponse converts a storage link record to an API response.
func toLinkResponse(link *storage.LinkRecord) dto.LinkResponse {
	orderIDs := link.OrderIDs
	if orderIDs == nil {
		orderIDs = []int64{}
	}
	lineIDs := link.LineIDs
	if lineIDs == nil {
		lineIDs = []int64{}
	}
	return dto.LinkResponse{
		ID:             link.ID,
		ExtractionID:   link.ExtractionID,
		RunID:          link.RunID,
		Strategy:       link.Strategy,
		Outcome:        link.Outcome,
		Searched:       link.Searched,
		OrderIDs:       orderIDs,
		LineIDs:        lineIDs,
		CandidateCount: link.CandidateCount,
		GoalTotal:      link.GoalTotal,
		MatchedTotal:   link.MatchedTotal,
		DurationMs:     link.DurationMs,
		DryRun:         link.DryRun,
		LinkedAt:       link.LinkedAt.Format(time.RFC3339),
	}
}
