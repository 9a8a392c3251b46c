package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/invoice-match-backend/internal/api/dto"
	"github.com/eshaffer321/invoice-match-backend/internal/export"
	"github.com/eshaffer321/invoice-match-backend/internal/infrastructure/storage"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePDF  = "application/pdf"
)

// ReportsHandler renders downloadable reports.
type ReportsHandler struct {
	*Base
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(repo storage.Repository) *ReportsHandler {
	return &ReportsHandler{
		Base: NewBase(repo),
	}
}

// Links handles GET /api/reports/links?format=xlsx|pdf - exports recent link
// decisions with summary statistics.
func (h *ReportsHandler) Links(c *gin.Context) {
	format := c.DefaultQuery("format", "xlsx")
	if format != "xlsx" && format != "pdf" {
		h.WriteError(c, http.StatusBadRequest, dto.BadRequestError("format must be xlsx or pdf"))
		return
	}

	links, err := h.repo.ListLinks(ParseIntParam(c, "limit", 500))
	if err != nil {
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}
	stats, err := h.repo.GetStats()
	if err != nil {
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}

	var (
		data        []byte
		contentType string
	)
	if format == "pdf" {
		data, err = export.BuildLinksPDF(links, stats)
		contentType = contentTypePDF
	} else {
		data, err = export.BuildLinksXLSX(links, stats)
		contentType = contentTypeXLSX
	}
	if err != nil {
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}

	filename := fmt.Sprintf("links-%s.%s", time.Now().UTC().Format("20060102"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}
