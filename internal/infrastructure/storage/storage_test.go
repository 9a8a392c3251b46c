package storage

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func samplePurchaseOrder(reference, vendorID string, amounts ...string) *PurchaseOrder {
	po := &PurchaseOrder{Reference: reference, VendorID: vendorID}
	for _, amount := range amounts {
		po.Lines = append(po.Lines, PurchaseOrderLine{
			Description:     reference + " item",
			AmountToInvoice: dec(amount),
		})
	}
	return po
}

func TestStorage_SaveAndGetPurchaseOrder(t *testing.T) {
	store := newTestStorage(t)

	po := samplePurchaseOrder("PO-1001", "vendor-a", "100.50", "40.25")
	require.NoError(t, store.SavePurchaseOrder(po))

	require.NotZero(t, po.ID)
	require.Len(t, po.Lines, 2)
	assert.NotZero(t, po.Lines[0].ID)
	assert.Equal(t, po.ID, po.Lines[1].PurchaseOrderID)

	retrieved, err := store.GetPurchaseOrder(po.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved)

	assert.Equal(t, "PO-1001", retrieved.Reference)
	assert.Equal(t, "vendor-a", retrieved.VendorID)
	require.Len(t, retrieved.Lines, 2)
	assert.True(t, dec("100.50").Equal(retrieved.Lines[0].AmountToInvoice))
	assert.True(t, dec("40.25").Equal(retrieved.Lines[1].AmountToInvoice))
	assert.True(t, dec("140.75").Equal(retrieved.OpenAmount()))
	assert.WithinDuration(t, po.CreatedAt, retrieved.CreatedAt, time.Second)
}

func TestStorage_GetPurchaseOrder_NotFound(t *testing.T) {
	store := newTestStorage(t)

	po, err := store.GetPurchaseOrder(42)
	require.NoError(t, err)
	assert.Nil(t, po)
}

func TestStorage_SavePurchaseOrder_UpsertReplacesLines(t *testing.T) {
	store := newTestStorage(t)

	first := samplePurchaseOrder("PO-1", "vendor-a", "10", "20", "30")
	require.NoError(t, store.SavePurchaseOrder(first))

	second := samplePurchaseOrder("PO-1", "vendor-b", "5")
	require.NoError(t, store.SavePurchaseOrder(second))

	assert.Equal(t, first.ID, second.ID, "same reference keeps the same order id")

	retrieved, err := store.GetPurchaseOrder(first.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.Equal(t, "vendor-b", retrieved.VendorID)
	require.Len(t, retrieved.Lines, 1)
	assert.True(t, dec("5").Equal(retrieved.Lines[0].AmountToInvoice))
}

func TestStorage_FindPurchaseOrdersByReference(t *testing.T) {
	store := newTestStorage(t)

	for _, po := range []*PurchaseOrder{
		samplePurchaseOrder("PO-1", "vendor-a", "10"),
		samplePurchaseOrder("PO-2", "vendor-a", "20"),
		samplePurchaseOrder("PO-3", "vendor-b", "30"),
	} {
		require.NoError(t, store.SavePurchaseOrder(po))
	}

	t.Run("matches known references", func(t *testing.T) {
		orders, err := store.FindPurchaseOrdersByReference([]string{"PO-3", "PO-1", "PO-404"})
		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, "PO-1", orders[0].Reference)
		assert.Equal(t, "PO-3", orders[1].Reference)
		require.Len(t, orders[1].Lines, 1)
	})

	t.Run("empty references", func(t *testing.T) {
		orders, err := store.FindPurchaseOrdersByReference(nil)
		require.NoError(t, err)
		assert.Empty(t, orders)
	})
}

func TestStorage_ListOpenPurchaseOrders(t *testing.T) {
	store := newTestStorage(t)

	for _, po := range []*PurchaseOrder{
		samplePurchaseOrder("PO-open", "vendor-a", "0", "12.00"),
		samplePurchaseOrder("PO-closed", "vendor-a", "0", "0.00"),
		samplePurchaseOrder("PO-other", "vendor-b", "50"),
		samplePurchaseOrder("PO-credit", "vendor-a", "-5"),
	} {
		require.NoError(t, store.SavePurchaseOrder(po))
	}

	orders, err := store.ListOpenPurchaseOrders("vendor-a")
	require.NoError(t, err)

	var refs []string
	for _, po := range orders {
		refs = append(refs, po.Reference)
	}
	assert.Equal(t, []string{"PO-open", "PO-credit"}, refs)
}

func TestStorage_Extractions(t *testing.T) {
	store := newTestStorage(t)
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"ext-1", "ext-2", "ext-3"} {
		e := &Extraction{
			ID:            id,
			VendorID:      "vendor-a",
			InvoiceNumber: "INV-" + id,
			GoalTotal:     dec("99.99"),
			POReferences:  []string{"PO-1", "PO-2"},
			ReceivedAt:    base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, store.SaveExtraction(e))
		assert.Equal(t, ExtractionPending, e.Status, "status defaults to pending")
	}

	t.Run("get", func(t *testing.T) {
		e, err := store.GetExtraction("ext-2")
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, "INV-ext-2", e.InvoiceNumber)
		assert.True(t, dec("99.99").Equal(e.GoalTotal))
		assert.Equal(t, []string{"PO-1", "PO-2"}, e.POReferences)
		assert.True(t, base.Add(time.Hour).Equal(e.ReceivedAt))
	})

	t.Run("get missing", func(t *testing.T) {
		e, err := store.GetExtraction("nope")
		require.NoError(t, err)
		assert.Nil(t, e)
	})

	t.Run("pending oldest first", func(t *testing.T) {
		pending, err := store.ListPendingExtractions(2)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, "ext-1", pending[0].ID)
		assert.Equal(t, "ext-2", pending[1].ID)
	})

	t.Run("status update removes from pending", func(t *testing.T) {
		require.NoError(t, store.UpdateExtractionStatus("ext-1", ExtractionLinked))

		pending, err := store.ListPendingExtractions(0)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, "ext-2", pending[0].ID)
	})

	t.Run("status update on missing id", func(t *testing.T) {
		assert.Error(t, store.UpdateExtractionStatus("nope", ExtractionLinked))
	})

	t.Run("list with filters", func(t *testing.T) {
		result, err := store.ListExtractions(ExtractionFilters{Status: ExtractionPending, Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, result.TotalCount)
		assert.Equal(t, 1, result.Limit)
		require.Len(t, result.Extractions, 1)
		assert.Equal(t, "ext-3", result.Extractions[0].ID, "newest first")

		result, err = store.ListExtractions(ExtractionFilters{VendorID: "vendor-z"})
		require.NoError(t, err)
		assert.Equal(t, 0, result.TotalCount)
		assert.NotNil(t, result.Extractions)
		assert.Equal(t, defaultListLimit, result.Limit)
	})
}

func TestStorage_SaveExtraction_KeepsLinks(t *testing.T) {
	store := newTestStorage(t)

	e := &Extraction{ID: "ext-1", VendorID: "vendor-a", GoalTotal: dec("10")}
	require.NoError(t, store.SaveExtraction(e))
	require.NoError(t, store.SaveLink(&LinkRecord{ExtractionID: "ext-1", Strategy: "none", GoalTotal: dec("10")}))

	e.InvoiceNumber = "INV-9"
	require.NoError(t, store.SaveExtraction(e))

	link, err := store.GetLatestLink("ext-1")
	require.NoError(t, err)
	assert.NotNil(t, link, "re-saving an extraction must not drop its links")
}

func TestStorage_Links(t *testing.T) {
	store := newTestStorage(t)
	require.NoError(t, store.SaveExtraction(&Extraction{ID: "ext-1", VendorID: "v", GoalTotal: dec("70")}))
	require.NoError(t, store.SaveExtraction(&Extraction{ID: "ext-2", VendorID: "v", GoalTotal: dec("5")}))

	runID, err := store.StartMatchRun(false)
	require.NoError(t, err)

	first := &LinkRecord{
		ExtractionID: "ext-1",
		Strategy:     "whole_orders",
		Outcome:      "ambiguous",
		Searched:     true,
		OrderIDs:     []int64{1, 2},
		GoalTotal:    dec("70"),
		MatchedTotal: decimal.Zero,
	}
	require.NoError(t, store.SaveLink(first))
	assert.NotZero(t, first.ID)

	second := &LinkRecord{
		ExtractionID:   "ext-1",
		RunID:          runID,
		Strategy:       "subset",
		Outcome:        "found",
		Searched:       true,
		OrderIDs:       []int64{1, 2},
		LineIDs:        []int64{12, 21},
		CandidateCount: 3,
		GoalTotal:      dec("70"),
		MatchedTotal:   dec("70.00"),
		DurationMs:     4,
	}
	require.NoError(t, store.SaveLink(second))

	dryRun := &LinkRecord{ExtractionID: "ext-2", Strategy: "none", GoalTotal: dec("5"), DryRun: true}
	require.NoError(t, store.SaveLink(dryRun))

	t.Run("latest link", func(t *testing.T) {
		link, err := store.GetLatestLink("ext-1")
		require.NoError(t, err)
		require.NotNil(t, link)
		assert.Equal(t, second.ID, link.ID)
		assert.Equal(t, runID, link.RunID)
		assert.Equal(t, "subset", link.Strategy)
		assert.Equal(t, []int64{12, 21}, link.LineIDs)
		assert.Equal(t, []int64{1, 2}, link.OrderIDs)
		assert.True(t, link.Searched)
		assert.True(t, dec("70").Equal(link.MatchedTotal))
		assert.Equal(t, int64(4), link.DurationMs)
	})

	t.Run("no link", func(t *testing.T) {
		link, err := store.GetLatestLink("missing")
		require.NoError(t, err)
		assert.Nil(t, link)
	})

	t.Run("list newest first", func(t *testing.T) {
		links, err := store.ListLinks(2)
		require.NoError(t, err)
		require.Len(t, links, 2)
		assert.Equal(t, dryRun.ID, links[0].ID)
		assert.Equal(t, second.ID, links[1].ID)
		assert.Zero(t, links[0].RunID)
	})

	t.Run("stats skip dry runs", func(t *testing.T) {
		require.NoError(t, store.UpdateExtractionStatus("ext-1", ExtractionLinked))

		stats, err := store.GetStats()
		require.NoError(t, err)
		assert.Equal(t, 2, stats.TotalExtractions)
		assert.Equal(t, 1, stats.Linked)
		assert.Equal(t, 1, stats.Pending)
		assert.Equal(t, 2, stats.TotalLinks)
		assert.Equal(t, map[string]int{"whole_orders": 1, "subset": 1}, stats.StrategyCounts)
		assert.Equal(t, map[string]int{"ambiguous": 1, "found": 1}, stats.OutcomeCounts)
	})
}

func TestStorage_MatchRuns(t *testing.T) {
	store := newTestStorage(t)

	runID, err := store.StartMatchRun(true)
	require.NoError(t, err)

	run, err := store.GetMatchRun(runID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.True(t, run.DryRun)
	assert.Nil(t, run.CompletedAt)

	require.NoError(t, store.CompleteMatchRun(runID, 5, 3, 1, 1))

	run, err = store.GetMatchRun(runID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, RunStatusCompletedWithErrors, run.Status)
	assert.Equal(t, 5, run.ExtractionsFound)
	assert.Equal(t, 3, run.Linked)
	assert.Equal(t, 1, run.Unlinked)
	assert.Equal(t, 1, run.Errored)
	require.NotNil(t, run.CompletedAt)

	secondID, err := store.StartMatchRun(false)
	require.NoError(t, err)
	require.NoError(t, store.CompleteMatchRun(secondID, 0, 0, 0, 0))

	runs, err := store.ListMatchRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, secondID, runs[0].ID)
	assert.Equal(t, RunStatusCompleted, runs[0].Status)

	missing, err := store.GetMatchRun(999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
