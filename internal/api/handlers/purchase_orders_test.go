package handlers_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/invoice-match-backend/internal/api/dto"
	"github.com/eshaffer321/invoice-match-backend/internal/api/handlers"
	"github.com/eshaffer321/invoice-match-backend/internal/infrastructure/storage"
)

func TestPurchaseOrdersHandler_Create(t *testing.T) {
	t.Run("stores the order and its lines", func(t *testing.T) {
		repo := storage.NewMockRepository()
		handler := handlers.NewPurchaseOrdersHandler(repo)

		body := dto.CreatePurchaseOrderRequest{
			Reference: " PO-100 ",
			VendorID:  "acme",
			Lines: []dto.PurchaseOrderLineRequest{
				{Description: "Widgets", AmountToInvoice: dec("60.00")},
				{Description: "Bolts", AmountToInvoice: dec("40.00")},
			},
		}
		rec := serve(t, http.MethodPost, "/api/purchase-orders", "/api/purchase-orders", body, handler.Create)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var response dto.PurchaseOrderResponse
		decode(t, rec, &response)
		assert.Equal(t, "PO-100", response.Reference)
		assert.True(t, response.OpenAmount.Equal(dec("100")))
		require.Len(t, response.Lines, 2)
		assert.NotZero(t, response.Lines[0].ID)

		stored, err := repo.GetPurchaseOrder(response.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, "acme", stored.VendorID)
	})

	tests := []struct {
		name    string
		body    interface{}
		wantMsg string
	}{
		{name: "invalid json", body: `{"reference":`, wantMsg: "invalid request body"},
		{name: "missing reference", body: dto.CreatePurchaseOrderRequest{VendorID: "acme"}, wantMsg: "reference is required"},
		{name: "missing vendor", body: dto.CreatePurchaseOrderRequest{Reference: "PO-1"}, wantMsg: "vendor_id is required"},
		{name: "no lines", body: dto.CreatePurchaseOrderRequest{Reference: "PO-1", VendorID: "acme"}, wantMsg: "at least one line is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := handlers.NewPurchaseOrdersHandler(storage.NewMockRepository())

			rec := serve(t, http.MethodPost, "/api/purchase-orders", "/api/purchase-orders", tt.body, handler.Create)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var apiErr dto.APIError
			decode(t, rec, &apiErr)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
		})
	}

	t.Run("storage failure", func(t *testing.T) {
		repo := storage.NewMockRepository()
		repo.SavePurchaseOrderErr = errors.New("disk full")
		handler := handlers.NewPurchaseOrdersHandler(repo)

		body := dto.CreatePurchaseOrderRequest{
			Reference: "PO-1",
			VendorID:  "acme",
			Lines:     []dto.PurchaseOrderLineRequest{{AmountToInvoice: dec("1")}},
		}
		rec := serve(t, http.MethodPost, "/api/purchase-orders", "/api/purchase-orders", body, handler.Create)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestPurchaseOrdersHandler_Get(t *testing.T) {
	repo := storage.NewMockRepository()
	po := repo.AddPurchaseOrder("PO-1", "acme", "100", "50")
	handler := handlers.NewPurchaseOrdersHandler(repo)

	t.Run("returns order", func(t *testing.T) {
		rec := serve(t, http.MethodGet, "/api/purchase-orders/:id", "/api/purchase-orders/1", nil, handler.Get)

		assert.Equal(t, http.StatusOK, rec.Code)
		var response dto.PurchaseOrderResponse
		decode(t, rec, &response)
		assert.Equal(t, po.ID, response.ID)
		assert.Len(t, response.Lines, 2)
		assert.True(t, response.OpenAmount.Equal(dec("150")))
	})

	t.Run("returns 404 for unknown order", func(t *testing.T) {
		rec := serve(t, http.MethodGet, "/api/purchase-orders/:id", "/api/purchase-orders/99", nil, handler.Get)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		var apiErr dto.APIError
		decode(t, rec, &apiErr)
		assert.Equal(t, dto.ErrCodeNotFound, apiErr.Code)
	})

	t.Run("returns 400 for invalid ID", func(t *testing.T) {
		rec := serve(t, http.MethodGet, "/api/purchase-orders/:id", "/api/purchase-orders/abc", nil, handler.Get)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
