package handlers_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/invoice-match-backend/internal/api/dto"
	"github.com/eshaffer321/invoice-match-backend/internal/api/handlers"
	"github.com/eshaffer321/invoice-match-backend/internal/application/service"
	"github.com/eshaffer321/invoice-match-backend/internal/infrastructure/storage"
)

func TestExtractionsHandler_Create(t *testing.T) {
	t.Run("submits the extraction", func(t *testing.T) {
		svc := new(mockExtractionService)
		received := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
		svc.On("SubmitExtraction", mock.Anything, mock.MatchedBy(func(in service.ExtractionInput) bool {
			return in.VendorID == "acme" && in.GoalTotal.Equal(dec("70")) && in.ReceivedAt.Equal(received)
		})).Return(&storage.Extraction{
			ID:         "ext-1",
			VendorID:   "acme",
			GoalTotal:  dec("70"),
			Status:     storage.ExtractionPending,
			ReceivedAt: received,
		}, nil)
		handler := handlers.NewExtractionsHandler(storage.NewMockRepository(), svc)

		body := `{"vendor_id":"acme","goal_total":"70","po_references":["PO-1"],"received_at":"2024-03-01T09:00:00Z"}`
		rec := serve(t, http.MethodPost, "/api/extractions", "/api/extractions", body, handler.Create)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var response dto.ExtractionResponse
		decode(t, rec, &response)
		assert.Equal(t, "ext-1", response.ID)
		assert.Equal(t, "pending", response.Status)
		assert.Equal(t, "2024-03-01T09:00:00Z", response.ReceivedAt)
		assert.NotNil(t, response.POReferences)
		svc.AssertExpectations(t)
	})

	t.Run("invalid input is a validation error", func(t *testing.T) {
		svc := new(mockExtractionService)
		svc.On("SubmitExtraction", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: vendor_id is required", service.ErrInvalidInput))
		handler := handlers.NewExtractionsHandler(storage.NewMockRepository(), svc)

		rec := serve(t, http.MethodPost, "/api/extractions", "/api/extractions", `{"goal_total":"1"}`, handler.Create)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var apiErr dto.APIError
		decode(t, rec, &apiErr)
		assert.Equal(t, dto.ErrCodeValidation, apiErr.Code)
		assert.Contains(t, apiErr.Message, "vendor_id")
	})

	t.Run("storage failure is internal", func(t *testing.T) {
		svc := new(mockExtractionService)
		svc.On("SubmitExtraction", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("failed to save extraction: boom"))
		handler := handlers.NewExtractionsHandler(storage.NewMockRepository(), svc)

		rec := serve(t, http.MethodPost, "/api/extractions", "/api/extractions", `{"vendor_id":"acme","goal_total":"1"}`, handler.Create)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		svc := new(mockExtractionService)
		handler := handlers.NewExtractionsHandler(storage.NewMockRepository(), svc)

		rec := serve(t, http.MethodPost, "/api/extractions", "/api/extractions", `{"goal_total":"abc"}`, handler.Create)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "SubmitExtraction", mock.Anything, mock.Anything)
	})
}

func TestExtractionsHandler_List(t *testing.T) {
	repo := storage.NewMockRepository()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, status := range []storage.ExtractionStatus{
		storage.ExtractionPending, storage.ExtractionLinked, storage.ExtractionPending,
	} {
		require.NoError(t, repo.SaveExtraction(&storage.Extraction{
			ID:         fmt.Sprintf("ext-%d", i+1),
			VendorID:   "acme",
			GoalTotal:  dec("10"),
			Status:     status,
			ReceivedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	handler := handlers.NewExtractionsHandler(repo, new(mockExtractionService))

	t.Run("lists newest first with default limit", func(t *testing.T) {
		rec := serve(t, http.MethodGet, "/api/extractions", "/api/extractions", nil, handler.List)

		assert.Equal(t, http.StatusOK, rec.Code)
		var response dto.ExtractionListResponse
		decode(t, rec, &response)
		assert.Equal(t, 3, response.TotalCount)
		assert.Equal(t, 50, response.Limit)
		require.Len(t, response.Extractions, 3)
		assert.Equal(t, "ext-3", response.Extractions[0].ID)
	})

	t.Run("filters by status and paginates", func(t *testing.T) {
		rec := serve(t, http.MethodGet, "/api/extractions", "/api/extractions?status=pending&limit=1&offset=1", nil, handler.List)

		assert.Equal(t, http.StatusOK, rec.Code)
		var response dto.ExtractionListResponse
		decode(t, rec, &response)
		assert.Equal(t, 2, response.TotalCount)
		assert.Equal(t, 1, response.Offset)
		require.Len(t, response.Extractions, 1)
		assert.Equal(t, "ext-1", response.Extractions[0].ID)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		rec := serve(t, http.MethodGet, "/api/extractions", "/api/extractions?status=bogus", nil, handler.List)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestExtractionsHandler_Get(t *testing.T) {
	repo := storage.NewMockRepository()
	require.NoError(t, repo.SaveExtraction(&storage.Extraction{
		ID:        "ext-1",
		VendorID:  "acme",
		GoalTotal: dec("70"),
		Status:    storage.ExtractionPending,
	}))
	handler := handlers.NewExtractionsHandler(repo, new(mockExtractionService))

	t.Run("returns extraction", func(t *testing.T) {
		rec := serve(t, http.MethodGet, "/api/extractions/:id", "/api/extractions/ext-1", nil, handler.Get)

		assert.Equal(t, http.StatusOK, rec.Code)
		var response dto.ExtractionResponse
		decode(t, rec, &response)
		assert.Equal(t, "acme", response.VendorID)
		assert.True(t, response.GoalTotal.Equal(dec("70")))
	})

	t.Run("returns 404 for unknown extraction", func(t *testing.T) {
		rec := serve(t, http.MethodGet, "/api/extractions/:id", "/api/extractions/nope", nil, handler.Get)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestExtractionsHandler_Match(t *testing.T) {
	t.Run("passes dry_run through", func(t *testing.T) {
		svc := new(mockExtractionService)
		svc.On("MatchExtraction", mock.Anything, "ext-1", true).Return(&storage.LinkRecord{
			ID:           1,
			ExtractionID: "ext-1",
			Strategy:     "subset",
			Outcome:      "found",
			Searched:     true,
			OrderIDs:     []int64{1},
			LineIDs:      []int64{2, 3},
			GoalTotal:    dec("70"),
			MatchedTotal: dec("70"),
			DryRun:       true,
		}, nil)
		handler := handlers.NewExtractionsHandler(storage.NewMockRepository(), svc)

		rec := serve(t, http.MethodPost, "/api/extractions/:id/match", "/api/extractions/ext-1/match?dry_run=true", nil, handler.Match)

		assert.Equal(t, http.StatusOK, rec.Code)
		var response dto.LinkResponse
		decode(t, rec, &response)
		assert.Equal(t, "subset", response.Strategy)
		assert.Equal(t, []int64{2, 3}, response.LineIDs)
		assert.True(t, response.DryRun)
		svc.AssertExpectations(t)
	})

	t.Run("returns 404 for unknown extraction", func(t *testing.T) {
		svc := new(mockExtractionService)
		svc.On("MatchExtraction", mock.Anything, "nope", false).
			Return(nil, fmt.Errorf("%w: nope", service.ErrExtractionNotFound))
		handler := handlers.NewExtractionsHandler(storage.NewMockRepository(), svc)

		rec := serve(t, http.MethodPost, "/api/extractions/:id/match", "/api/extractions/nope/match", nil, handler.Match)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("returns 500 on failure", func(t *testing.T) {
		svc := new(mockExtractionService)
		svc.On("MatchExtraction", mock.Anything, "ext-1", false).
			Return(nil, fmt.Errorf("failed to save link: boom"))
		handler := handlers.NewExtractionsHandler(storage.NewMockRepository(), svc)

		rec := serve(t, http.MethodPost, "/api/extractions/:id/match", "/api/extractions/ext-1/match", nil, handler.Match)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestExtractionsHandler_GetLink(t *testing.T) {
	repo := storage.NewMockRepository()
	require.NoError(t, repo.SaveLink(&storage.LinkRecord{ExtractionID: "ext-1", Strategy: "none"}))
	require.NoError(t, repo.SaveLink(&storage.LinkRecord{ExtractionID: "ext-1", Strategy: "all_lines", LineIDs: []int64{1}}))
	handler := handlers.NewExtractionsHandler(repo, new(mockExtractionService))

	t.Run("returns latest link", func(t *testing.T) {
		rec := serve(t, http.MethodGet, "/api/extractions/:id/link", "/api/extractions/ext-1/link", nil, handler.GetLink)

		assert.Equal(t, http.StatusOK, rec.Code)
		var response dto.LinkResponse
		decode(t, rec, &response)
		assert.Equal(t, "all_lines", response.Strategy)
		assert.Equal(t, []int64{}, response.OrderIDs)
	})

	t.Run("returns 404 when never linked", func(t *testing.T) {
		rec := serve(t, http.MethodGet, "/api/extractions/:id/link", "/api/extractions/ext-2/link", nil, handler.GetLink)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
