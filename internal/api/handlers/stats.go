package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/invoice-match-backend/internal/api/dto"
	"github.com/eshaffer321/invoice-match-backend/internal/infrastructure/storage"
)

// StatsHandler handles stats-related HTTP requests.
type StatsHandler struct {
	*Base
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(repo storage.Repository) *StatsHandler {
	return &StatsHandler{
		Base: NewBase(repo),
	}
}

// Get handles GET /api/stats - returns aggregate statistics.
func (h *StatsHandler) Get(c *gin.Context) {
	stats, err := h.repo.GetStats()
	if err != nil {
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(c, http.StatusOK, dto.StatsResponse{
		TotalExtractions: stats.TotalExtractions,
		Pending:          stats.Pending,
		Linked:           stats.Linked,
		Unlinked:         stats.Unlinked,
		TotalLinks:       stats.TotalLinks,
		StrategyCounts:   stats.StrategyCounts,
		OutcomeCounts:    stats.OutcomeCounts,
	})
}
