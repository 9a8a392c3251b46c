package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a health response with current timestamp.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// MessageResponse is a generic message response.
type MessageResponse struct {
	Message string `json:"message"`
}

// MatchResponse is the result of a stateless subset search.
type MatchResponse struct {
	Outcome   string              `json:"outcome"`
	Lines     []CandidateResponse `json:"lines"`
	Total     decimal.Decimal     `json:"total"`
	Explored  int                 `json:"explored"`
	ElapsedMs int64               `json:"elapsed_ms"`
}

// CandidateResponse is one matched purchase order line.
type CandidateResponse struct {
	PurchaseOrder   string          `json:"purchase_order"`
	Line            string          `json:"line"`
	AmountToInvoice decimal.Decimal `json:"amount_to_invoice"`
}

// PurchaseOrderResponse represents a purchase order in API responses.
type PurchaseOrderResponse struct {
	ID         int64                       `json:"id"`
	Reference  string                      `json:"reference"`
	VendorID   string                      `json:"vendor_id"`
	CreatedAt  string                      `json:"created_at"`
	OpenAmount decimal.Decimal             `json:"open_amount"`
	Lines      []PurchaseOrderLineResponse `json:"lines"`
}

// PurchaseOrderLineResponse represents one purchase order line.
type PurchaseOrderLineResponse struct {
	ID              int64           `json:"id"`
	Description     string          `json:"description"`
	AmountToInvoice decimal.Decimal `json:"amount_to_invoice"`
}

// ExtractionResponse represents an extraction in API responses.
type ExtractionResponse struct {
	ID            string          `json:"id"`
	VendorID      string          `json:"vendor_id"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	GoalTotal     decimal.Decimal `json:"goal_total"`
	POReferences  []string        `json:"po_references"`
	Status        string          `json:"status"`
	ReceivedAt    string          `json:"received_at"`
	UpdatedAt     string          `json:"updated_at"`
}

// ExtractionListResponse is returned when listing extractions.
type ExtractionListResponse struct {
	Extractions []ExtractionResponse `json:"extractions"`
	TotalCount  int                  `json:"total_count"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

// LinkResponse represents one link decision.
type LinkResponse struct {
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
	LinkedAt       string          `json:"linked_at"`
}

// LinkListResponse is returned when listing link decisions.
type LinkListResponse struct {
	Links []LinkResponse `json:"links"`
	Count int            `json:"count"`
}

// StatsResponse contains aggregate statistics.
type StatsResponse struct {
	TotalExtractions int            `json:"total_extractions"`
	Pending          int            `json:"pending"`
	Linked           int            `json:"linked"`
	Unlinked         int            `json:"unlinked"`
	TotalLinks       int            `json:"total_links"`
	StrategyCounts   map[string]int `json:"strategy_counts"`
	OutcomeCounts    map[string]int `json:"outcome_counts"`
}

// MatchRunResponse represents a batch run record.
type MatchRunResponse struct {
	ID               int64   `json:"id"`
	StartedAt        string  `json:"started_at"`
	CompletedAt      *string `json:"completed_at,omitempty"`
	DryRun           bool    `json:"dry_run"`
	ExtractionsFound int     `json:"extractions_found"`
	Linked           int     `json:"linked"`
	Unlinked         int     `json:"unlinked"`
	Errored          int     `json:"errored"`
	Status           string  `json:"status"`
}

// MatchRunListResponse is returned when listing batch runs.
type MatchRunListResponse struct {
	Runs  []MatchRunResponse `json:"runs"`
	Count int                `json:"count"`
}
