package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/invoice-match-backend/internal/api/dto"
	"github.com/eshaffer321/invoice-match-backend/internal/domain/subsetmatch"
)

// MatchHandler handles stateless subset searches.
type MatchHandler struct {
	*Base
	searcher Searcher
}

// NewMatchHandler creates a new match handler.
func NewMatchHandler(searcher Searcher) *MatchHandler {
	return &MatchHandler{
		Base:     &Base{},
		searcher: searcher,
	}
}

// Search handles POST /api/match - finds the unique subset of candidates
// summing to the goal.
func (h *MatchHandler) Search(c *gin.Context) {
	var req dto.MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.WriteError(c, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}
	if req.TimeoutSeconds < 0 {
		h.WriteError(c, http.StatusBadRequest, dto.ValidationError("timeout_seconds must not be negative"))
		return
	}

	candidates := make([]subsetmatch.Candidate, 0, len(req.Candidates))
	for _, cand := range req.Candidates {
		candidates = append(candidates, subsetmatch.Candidate{
			PurchaseOrder:   cand.PurchaseOrder,
			Line:            cand.Line,
			AmountToInvoice: cand.AmountToInvoice,
		})
	}

	timeout := time.Duration(req.TimeoutSeconds * float64(time.Second))
	result := h.searcher.Search(c.Request.Context(), candidates, req.Goal, timeout)

	response := dto.MatchResponse{
		Outcome:   string(result.Outcome),
		Lines:     make([]dto.CandidateResponse, 0, len(result.Lines)),
		Total:     result.Total(),
		Explored:  result.Explored,
		ElapsedMs: result.Elapsed.Milliseconds(),
	}
	for _, line := range result.Lines {
		response.Lines = append(response.Lines, dto.CandidateResponse{
			PurchaseOrder:   line.PurchaseOrder,
			Line:            line.Line,
			AmountToInvoice: line.AmountToInvoice,
		})
	}

	h.WriteJSON(c, http.StatusOK, response)
}
