package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps and slices, making tests fast and isolated.
// It is safe for concurrent use so background batch jobs can share it.
type MockRepository struct {
	mu sync.Mutex

	orders      map[int64]*PurchaseOrder
	extractions map[string]*Extraction
	links       []*LinkRecord
	runs        map[int64]*MatchRun
	nextOrderID int64
	nextLineID  int64
	nextLinkID  int64
	nextRunID   int64

	// Hooks for test assertions
	SaveLinkCalled      bool
	LastSavedLink       *LinkRecord
	StartMatchRunCalled bool
	StatusUpdates       map[string]ExtractionStatus

	// Error injection for testing error paths
	SavePurchaseOrderErr      error
	GetExtractionErr          error
	SaveExtractionErr         error
	ListPendingErr            error
	FindOrdersErr             error
	SaveLinkErr               error
	UpdateExtractionStatusErr error
	StartMatchRunErr          error
	CompleteMatchRunErr       error
	ListLinksErr              error
	GetStatsErr               error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		orders:        make(map[int64]*PurchaseOrder),
		extractions:   make(map[string]*Extraction),
		runs:          make(map[int64]*MatchRun),
		StatusUpdates: make(map[string]ExtractionStatus),
		nextOrderID:   1,
		nextLineID:    1,
		nextLinkID:    1,
		nextRunID:     1,
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// SavePurchaseOrder upserts by reference and assigns IDs
func (m *MockRepository) SavePurchaseOrder(po *PurchaseOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SavePurchaseOrderErr != nil {
		return m.SavePurchaseOrderErr
	}

	po.ID = 0
	for id, existing := range m.orders {
		if existing.Reference == po.Reference {
			po.ID = id
			po.CreatedAt = existing.CreatedAt
			break
		}
	}
	if po.ID == 0 {
		po.ID = m.nextOrderID
		m.nextOrderID++
	}
	if po.CreatedAt.IsZero() {
		po.CreatedAt = time.Now().UTC()
	}

	for i := range po.Lines {
		po.Lines[i].ID = m.nextLineID
		po.Lines[i].PurchaseOrderID = po.ID
		m.nextLineID++
	}

	m.orders[po.ID] = copyOrder(po)
	return nil
}

// GetPurchaseOrder returns a copy of the stored order
func (m *MockRepository) GetPurchaseOrder(id int64) (*PurchaseOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	po, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	return copyOrder(po), nil
}

// FindPurchaseOrdersByReference returns orders whose reference is in refs
func (m *MockRepository) FindPurchaseOrdersByReference(refs []string) ([]*PurchaseOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FindOrdersErr != nil {
		return nil, m.FindOrdersErr
	}

	wanted := make(map[string]bool, len(refs))
	for _, ref := range refs {
		wanted[ref] = true
	}
	return m.sortedOrders(func(po *PurchaseOrder) bool { return wanted[po.Reference] }), nil
}

// ListOpenPurchaseOrders returns the vendor's orders with a non-zero line
func (m *MockRepository) ListOpenPurchaseOrders(vendorID string) ([]*PurchaseOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FindOrdersErr != nil {
		return nil, m.FindOrdersErr
	}

	return m.sortedOrders(func(po *PurchaseOrder) bool {
		if po.VendorID != vendorID {
			return false
		}
		for _, line := range po.Lines {
			if !line.AmountToInvoice.IsZero() {
				return true
			}
		}
		return false
	}), nil
}

func (m *MockRepository) sortedOrders(keep func(*PurchaseOrder) bool) []*PurchaseOrder {
	var result []*PurchaseOrder
	for _, po := range m.orders {
		if keep(po) {
			result = append(result, copyOrder(po))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func copyOrder(po *PurchaseOrder) *PurchaseOrder {
	copied := *po
	copied.Lines = append([]PurchaseOrderLine(nil), po.Lines...)
	return &copied
}

// SaveExtraction stores a copy of the extraction
func (m *MockRepository) SaveExtraction(e *Extraction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveExtractionErr != nil {
		return m.SaveExtractionErr
	}

	now := time.Now().UTC()
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = now
	}
	e.UpdatedAt = now
	if e.Status == "" {
		e.Status = ExtractionPending
	}

	copied := *e
	copied.POReferences = append([]string(nil), e.POReferences...)
	m.extractions[e.ID] = &copied
	return nil
}

// GetExtraction retrieves an extraction from the in-memory map
func (m *MockRepository) GetExtraction(id string) (*Extraction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetExtractionErr != nil {
		return nil, m.GetExtractionErr
	}
	e, ok := m.extractions[id]
	if !ok {
		return nil, nil
	}
	copied := *e
	return &copied, nil
}

// ListExtractions filters and paginates, newest first
func (m *MockRepository) ListExtractions(filters ExtractionFilters) (*ExtractionListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matching := make([]*Extraction, 0)
	for _, e := range m.extractions {
		if filters.Status != "" && e.Status != filters.Status {
			continue
		}
		if filters.VendorID != "" && e.VendorID != filters.VendorID {
			continue
		}
		copied := *e
		matching = append(matching, &copied)
	}
	sort.Slice(matching, func(i, j int) bool {
		if !matching[i].ReceivedAt.Equal(matching[j].ReceivedAt) {
			return matching[i].ReceivedAt.After(matching[j].ReceivedAt)
		}
		return matching[i].ID < matching[j].ID
	})

	limit := filters.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	total := len(matching)
	start := filters.Offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &ExtractionListResult{
		Extractions: matching[start:end],
		TotalCount:  total,
		Limit:       limit,
		Offset:      filters.Offset,
	}, nil
}

// ListPendingExtractions returns pending extractions, oldest first
func (m *MockRepository) ListPendingExtractions(limit int) ([]*Extraction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListPendingErr != nil {
		return nil, m.ListPendingErr
	}

	var pending []*Extraction
	for _, e := range m.extractions {
		if e.Status == ExtractionPending {
			copied := *e
			pending = append(pending, &copied)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].ReceivedAt.Equal(pending[j].ReceivedAt) {
			return pending[i].ReceivedAt.Before(pending[j].ReceivedAt)
		}
		return pending[i].ID < pending[j].ID
	})

	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// UpdateExtractionStatus sets the status and records the update
func (m *MockRepository) UpdateExtractionStatus(id string, status ExtractionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpdateExtractionStatusErr != nil {
		return m.UpdateExtractionStatusErr
	}
	e, ok := m.extractions[id]
	if !ok {
		return fmt.Errorf("extraction %s not found", id)
	}
	e.Status = status
	e.UpdatedAt = time.Now().UTC()
	m.StatusUpdates[id] = status
	return nil
}

// SaveLink appends a link decision
func (m *MockRepository) SaveLink(link *LinkRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveLinkCalled = true
	m.LastSavedLink = link
	if m.SaveLinkErr != nil {
		return m.SaveLinkErr
	}

	if link.LinkedAt.IsZero() {
		link.LinkedAt = time.Now().UTC()
	}
	link.ID = m.nextLinkID
	m.nextLinkID++

	copied := *link
	m.links = append(m.links, &copied)
	return nil
}

// GetLatestLink returns the last saved link of an extraction
func (m *MockRepository) GetLatestLink(extractionID string) (*LinkRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.links) - 1; i >= 0; i-- {
		if m.links[i].ExtractionID == extractionID {
			copied := *m.links[i]
			return &copied, nil
		}
	}
	return nil, nil
}

// ListLinks returns recent links, newest first
func (m *MockRepository) ListLinks(limit int) ([]*LinkRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListLinksErr != nil {
		return nil, m.ListLinksErr
	}

	if limit <= 0 {
		limit = defaultListLimit
	}

	links := make([]*LinkRecord, 0)
	for i := len(m.links) - 1; i >= 0 && len(links) < limit; i-- {
		copied := *m.links[i]
		links = append(links, &copied)
	}
	return links, nil
}

// GetStats computes statistics over the in-memory data
func (m *MockRepository) GetStats() (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetStatsErr != nil {
		return nil, m.GetStatsErr
	}

	stats := &Stats{
		StrategyCounts: make(map[string]int),
		OutcomeCounts:  make(map[string]int),
	}

	for _, e := range m.extractions {
		stats.TotalExtractions++
		switch e.Status {
		case ExtractionPending:
			stats.Pending++
		case ExtractionLinked:
			stats.Linked++
		case ExtractionUnlinked:
			stats.Unlinked++
		}
	}

	for _, link := range m.links {
		if link.DryRun {
			continue
		}
		stats.TotalLinks++
		stats.StrategyCounts[link.Strategy]++
		if link.Searched && link.Outcome != "" {
			stats.OutcomeCounts[link.Outcome]++
		}
	}

	return stats, nil
}

// StartMatchRun creates a new run and returns its ID
func (m *MockRepository) StartMatchRun(dryRun bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StartMatchRunCalled = true
	if m.StartMatchRunErr != nil {
		return 0, m.StartMatchRunErr
	}

	id := m.nextRunID
	m.nextRunID++

	m.runs[id] = &MatchRun{
		ID:        id,
		StartedAt: time.Now().UTC(),
		DryRun:    dryRun,
		Status:    RunStatusRunning,
	}
	return id, nil
}

// CompleteMatchRun marks a run as complete
func (m *MockRepository) CompleteMatchRun(runID int64, found, linked, unlinked, errored int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CompleteMatchRunErr != nil {
		return m.CompleteMatchRunErr
	}

	run, ok := m.runs[runID]
	if !ok {
		return nil
	}

	now := time.Now().UTC()
	run.CompletedAt = &now
	run.ExtractionsFound = found
	run.Linked = linked
	run.Unlinked = unlinked
	run.Errored = errored
	run.Status = RunStatusCompleted
	if errored > 0 {
		run.Status = RunStatusCompletedWithErrors
	}
	return nil
}

// ListMatchRuns returns recent runs, newest first
func (m *MockRepository) ListMatchRuns(limit int) ([]MatchRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = defaultListLimit
	}

	runs := make([]MatchRun, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, *r)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID > runs[j].ID })
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// GetMatchRun retrieves a run by ID
func (m *MockRepository) GetMatchRun(runID int64) (*MatchRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return nil, nil
	}
	copied := *run
	return &copied, nil
}

// AddPurchaseOrder is a test helper that stores an order built from plain
// amounts and returns it with IDs assigned
func (m *MockRepository) AddPurchaseOrder(reference, vendorID string, amounts ...string) *PurchaseOrder {
	po := &PurchaseOrder{Reference: reference, VendorID: vendorID}
	for i, amount := range amounts {
		po.Lines = append(po.Lines, PurchaseOrderLine{
			Description:     fmt.Sprintf("%s line %d", reference, i+1),
			AmountToInvoice: decimal.RequireFromString(amount),
		})
	}
	_ = m.SavePurchaseOrder(po)
	return po
}
