package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseOrder is an order placed with a vendor
type PurchaseOrder struct {
	ID        int64               `json:"id"`
	Reference string              `json:"reference"`
	VendorID  string              `json:"vendor_id"`
	CreatedAt time.Time           `json:"created_at"`
	Lines     []PurchaseOrderLine `json:"lines"`
}

// PurchaseOrderLine is one line of a purchase order with the amount still
// left to invoice
type PurchaseOrderLine struct {
	ID              int64           `json:"id"`
	PurchaseOrderID int64           `json:"purchase_order_id"`
	Description     string          `json:"description"`
	AmountToInvoice decimal.Decimal `json:"amount_to_invoice"`
}

// OpenAmount sums the amount left to invoice over all lines
func (po *PurchaseOrder) OpenAmount() decimal.Decimal {
	total := decimal.Zero
	for _, line := range po.Lines {
		total = total.Add(line.AmountToInvoice)
	}
	return total
}

// ExtractionStatus tracks whether a bill has been linked
type ExtractionStatus string

const (
	ExtractionPending  ExtractionStatus = "pending"
	ExtractionLinked   ExtractionStatus = "linked"
	ExtractionUnlinked ExtractionStatus = "unlinked"
)

// Extraction is the OCR result for one vendor bill
type Extraction struct {
	ID            string           `json:"id"`
	VendorID      string           `json:"vendor_id"`
	InvoiceNumber string           `json:"invoice_number"`
	GoalTotal     decimal.Decimal  `json:"goal_total"`
	POReferences  []string         `json:"po_references"`
	Status        ExtractionStatus `json:"status"`
	ReceivedAt    time.Time        `json:"received_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// LinkRecord stores one link decision for an extraction
type LinkRecord struct {
	ID             int64           `json:"id"`
	ExtractionID   string          `json:"extraction_id"`
	RunID          int64           `json:"run_id,omitempty"`
	Strategy       string          `json:"strategy"`
	Outcome        string          `json:"outcome,omitempty"`
	Searched       bool            `json:"searched"`
	OrderIDs       []int64         `json:"order_ids"`
	LineIDs        []int64         `json:"line_ids"`
	CandidateCount int             `json:"candidate_count"`
	GoalTotal      decimal.Decimal `json:"goal_total"`
	MatchedTotal   decimal.Decimal `json:"matched_total"`
	DurationMs     int64           `json:"duration_ms"`
	DryRun         bool            `json:"dry_run"`
	LinkedAt       time.Time       `json:"linked_at"`
}

// MatchRun represents a batch run record
type MatchRun struct {
	ID               int64      `json:"id"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	DryRun           bool       `json:"dry_run"`
	ExtractionsFound int        `json:"extractions_found"`
	Linked           int        `json:"linked"`
	Unlinked         int        `json:"unlinked"`
	Errored          int        `json:"errored"`
	Status           string     `json:"status"`
}

// Match run statuses
const (
	RunStatusRunning             = "running"
	RunStatusCompleted           = "completed"
	RunStatusCompletedWithErrors = "completed_with_errors"
)

// Stats contains aggregate statistics
type Stats struct {
	TotalExtractions int            `json:"total_extractions"`
	Pending          int            `json:"pending"`
	Linked           int            `json:"linked"`
	Unlinked         int            `json:"unlinked"`
	TotalLinks       int            `json:"total_links"`
	StrategyCounts   map[string]int `json:"strategy_counts"`
	OutcomeCounts    map[string]int `json:"outcome_counts"`
}
