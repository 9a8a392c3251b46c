package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchRequest is the request body for a stateless subset search.
type MatchRequest struct {
	Goal           decimal.Decimal    `json:"goal"`
	Candidates     []CandidateRequest `json:"candidates"`
	TimeoutSeconds float64            `json:"timeout_seconds"` // 0 = configured timeout
}

// CandidateRequest is one purchase order line offered to the search.
type CandidateRequest struct {
	PurchaseOrder   string          `json:"purchase_order"`
	Line            string          `json:"line"`
	AmountToInvoice decimal.Decimal `json:"amount_to_invoice"`
}

// CreatePurchaseOrderRequest creates or replaces a purchase order by reference.
type CreatePurchaseOrderRequest struct {
	Reference string                     `json:"reference"`
	VendorID  string                     `json:"vendor_id"`
	Lines     []PurchaseOrderLineRequest `json:"lines"`
}

// PurchaseOrderLineRequest is one line of a purchase order.
type PurchaseOrderLineRequest struct {
	Description     string          `json:"description"`
	AmountToInvoice decimal.Decimal `json:"amount_to_invoice"`
}

// CreateExtractionRequest submits an OCR result for matching.
type CreateExtractionRequest struct {
	ID            string          `json:"id"` // Optional
	VendorID      string          `json:"vendor_id"`
	InvoiceNumber string          `json:"invoice_number"`
	GoalTotal     decimal.Decimal `json:"goal_total"`
	POReferences  []string        `json:"po_references"`
	ReceivedAt    *time.Time      `json:"received_at"` // Optional, defaults to now
}

// StartBatchRequest is the request body for starting a batch job.
type StartBatchRequest struct {
	Limit  int  `json:"limit"` // Max pending extractions (0 = all)
	DryRun bool `json:"dry_run"`
}
