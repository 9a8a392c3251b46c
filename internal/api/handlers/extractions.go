package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/invoice-match-backend/internal/api/dto"
	"github.com/eshaffer321/invoice-match-backend/internal/application/service"
	"github.com/eshaffer321/invoice-match-backend/internal/infrastructure/storage"
)

// ExtractionsHandler handles extraction HTTP requests.
type ExtractionsHandler struct {
	*Base
	svc ExtractionService
}

// NewExtractionsHandler creates a new extractions handler.
func NewExtractionsHandler(repo storage.Repository, svc ExtractionService) *ExtractionsHandler {
	return &ExtractionsHandler{
		Base: NewBase(repo),
		svc:  svc,
	}
}

// Create handles POST /api/extractions - stores an extraction as pending.
func (h *ExtractionsHandler) Create(c *gin.Context) {
	var req dto.CreateExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.WriteError(c, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	in := service.ExtractionInput{
		ID:            req.ID,
		VendorID:      req.VendorID,
		InvoiceNumber: req.InvoiceNumber,
		GoalTotal:     req.GoalTotal,
		POReferences:  req.POReferences,
	}
	if req.ReceivedAt != nil {
		in.ReceivedAt = *req.ReceivedAt
	}

	extraction, err := h.svc.SubmitExtraction(c.Request.Context(), in)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			h.WriteError(c, http.StatusBadRequest, dto.ValidationError(err.Error()))
			return
		}
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(c, http.StatusCreated, toExtractionResponse(extraction))
}

// List handles GET /api/extractions - returns a page of extractions.
// Query parameters: status, vendor_id, limit, offset.
func (h *ExtractionsHandler) List(c *gin.Context) {
	status := storage.ExtractionStatus(c.Query("status"))
	switch status {
	case "", storage.ExtractionPending, storage.ExtractionLinked, storage.ExtractionUnlinked:
	default:
		h.WriteError(c, http.StatusBadRequest, dto.BadRequestError("invalid status filter"))
		return
	}

	filters := storage.ExtractionFilters{
		Status:   status,
		VendorID: c.Query("vendor_id"),
		Limit:    ParseIntParam(c, "limit", 50),
		Offset:   ParseIntParam(c, "offset", 0),
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	result, err := h.repo.ListExtractions(filters)
	if err != nil {
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.ExtractionListResponse{
		Extractions: make([]dto.ExtractionResponse, 0, len(result.Extractions)),
		TotalCount:  result.TotalCount,
		Limit:       result.Limit,
		Offset:      result.Offset,
	}
	for _, e := range result.Extractions {
		response.Extractions = append(response.Extractions, toExtractionResponse(e))
	}

	h.WriteJSON(c, http.StatusOK, response)
}

// Get handles GET /api/extractions/:id - returns a single extraction.
func (h *ExtractionsHandler) Get(c *gin.Context) {
	extraction, err := h.repo.GetExtraction(c.Param("id"))
	if err != nil {
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if extraction == nil {
		h.WriteError(c, http.StatusNotFound, dto.NotFoundError("extraction"))
		return
	}

	h.WriteJSON(c, http.StatusOK, toExtractionResponse(extraction))
}

// Match handles POST /api/extractions/:id/match - links one extraction.
// With dry_run=true the decision is recorded but the status is kept.
func (h *ExtractionsHandler) Match(c *gin.Context) {
	dryRun := ParseBoolParam(c, "dry_run", false)

	link, err := h.svc.MatchExtraction(c.Request.Context(), c.Param("id"), dryRun)
	if err != nil {
		if service.IsNotFound(err) {
			h.WriteError(c, http.StatusNotFound, dto.NotFoundError("extraction"))
			return
		}
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(c, http.StatusOK, toLinkResponse(link))
}

// GetLink handles GET /api/extractions/:id/link - returns the latest link
// decision of an extraction.
func (h *ExtractionsHandler) GetLink(c *gin.Context) {
	link, err := h.repo.GetLatestLink(c.Param("id"))
	if err != nil {
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if link == nil {
		h.WriteError(c, http.StatusNotFound, dto.NotFoundError("link"))
		return
	}

	h.WriteJSON(c, http.StatusOK, toLinkResponse(link))
}

// toExtractionResponse converts a storage extraction to an API response.
func toExtractionResponse(e *storage.Extraction) dto.ExtractionResponse {
	refs := e.POReferences
	if refs == nil {
		refs = []string{}
	}
	return dto.ExtractionResponse{
		ID:            e.ID,
		VendorID:      e.VendorID,
		InvoiceNumber: e.InvoiceNumber,
		GoalTotal:     e.GoalTotal,
		POReferences:  refs,
		Status:        string(e.Status),
		ReceivedAt:    e.ReceivedAt.Format(time.RFC3339),
		UpdatedAt:     e.UpdatedAt.Format(time.RFC3339),
	}
}
