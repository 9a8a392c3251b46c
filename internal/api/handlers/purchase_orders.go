package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/invoice-match-backend/internal/api/dto"
	"github.com/eshaffer321/invoice-match-backend/internal/infrastructure/storage"
)

// PurchaseOrdersHandler handles purchase order HTTP requests.
type PurchaseOrdersHandler struct {
	*Base
}

// NewPurchaseOrdersHandler creates a new purchase orders handler.
func NewPurchaseOrdersHandler(repo storage.Repository) *PurchaseOrdersHandler {
	return &PurchaseOrdersHandler{
		Base: NewBase(repo),
	}
}

// Create handles POST /api/purchase-orders - creates or replaces an order
// by reference.
func (h *PurchaseOrdersHandler) Create(c *gin.Context) {
	var req dto.CreatePurchaseOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.WriteError(c, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	req.Reference = strings.TrimSpace(req.Reference)
	req.VendorID = strings.TrimSpace(req.VendorID)
	switch {
	case req.Reference == "":
		h.WriteError(c, http.StatusBadRequest, dto.ValidationError("reference is required"))
		return
	case req.VendorID == "":
		h.WriteError(c, http.StatusBadRequest, dto.ValidationError("vendor_id is required"))
		return
	case len(req.Lines) == 0:
		h.WriteError(c, http.StatusBadRequest, dto.ValidationError("at least one line is required"))
		return
	}

	po := &storage.PurchaseOrder{
		Reference: req.Reference,
		VendorID:  req.VendorID,
	}
	for _, line := range req.Lines {
		po.Lines = append(po.Lines, storage.PurchaseOrderLine{
			Description:     line.Description,
			AmountToInvoice: line.AmountToInvoice,
		})
	}

	if err := h.repo.SavePurchaseOrder(po); err != nil {
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(c, http.StatusCreated, toPurchaseOrderResponse(po))
}

// Get handles GET /api/purchase-orders/:id - returns one order with its lines.
func (h *PurchaseOrdersHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.WriteError(c, http.StatusBadRequest, dto.BadRequestError("invalid purchase order ID"))
		return
	}

	po, err := h.repo.GetPurchaseOrder(id)
	if err != nil {
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if po == nil {
		h.WriteError(c, http.StatusNotFound, dto.NotFoundError("purchase order"))
		return
	}

	h.WriteJSON(c, http.StatusOK, toPurchaseOrderResponse(po))
}

// toPurchaseOrderResponse converts a storage order to an API response.
func toPurchaseOrderResponse(po *storage.PurchaseOrder) dto.PurchaseOrderResponse {
	response := dto.PurchaseOrderResponse{
		ID:         po.ID,
		Reference:  po.Reference,
		VendorID:   po.VendorID,
		CreatedAt:  po.CreatedAt.Format(time.RFC3339),
		OpenAmount: po.OpenAmount(),
		Lines:      make([]dto.PurchaseOrderLineResponse, 0, len(po.Lines)),
	}
	for _, line := range po.Lines {
		response.Lines = append(response.Lines, dto.PurchaseOrderLineResponse{
			ID:              line.ID,
			Description:     line.Description,
			AmountToInvoice: line.AmountToInvoice,
		})
	}
	return response
}
