package storage

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, in-memory, etc.)
// and makes testing with mocks straightforward.
type Repository interface {
	PurchaseOrderRepository
	ExtractionRepository
	LinkRepository
	MatchRunRepository
	Close() error
}

// PurchaseOrderRepository handles purchase orders and their lines
type PurchaseOrderRepository interface {
	// SavePurchaseOrder inserts or updates an order by reference and replaces
	// its lines. IDs are written back into po.
	SavePurchaseOrder(po *PurchaseOrder) error

	// GetPurchaseOrder retrieves an order with its lines, or nil if missing
	GetPurchaseOrder(id int64) (*PurchaseOrder, error)

	// FindPurchaseOrdersByReference returns the orders whose reference is in refs
	FindPurchaseOrdersByReference(refs []string) ([]*PurchaseOrder, error)

	// ListOpenPurchaseOrders returns the vendor's orders that still have a
	// non-zero amount to invoice on at least one line
	ListOpenPurchaseOrders(vendorID string) ([]*PurchaseOrder, error)
}

// ExtractionRepository handles extracted vendor bills
type ExtractionRepository interface {
	// SaveExtraction inserts or replaces an extraction
	SaveExtraction(extraction *Extraction) error

	// GetExtraction retrieves an extraction by ID, or nil if missing
	GetExtraction(id string) (*Extraction, error)

	// ListExtractions returns extractions matching the filters with pagination
	ListExtractions(filters ExtractionFilters) (*ExtractionListResult, error)

	// ListPendingExtractions returns pending extractions, oldest first
	ListPendingExtractions(limit int) ([]*Extraction, error)

	// UpdateExtractionStatus sets the status of an extraction
	UpdateExtractionStatus(id string, status ExtractionStatus) error
}

// ExtractionFilters defines filters for listing extractions
type ExtractionFilters struct {
	Status   ExtractionStatus // Filter by status (empty = all)
	VendorID string           // Filter by vendor (empty = all)
	Limit    int              // Max results (0 = default 50)
	Offset   int              // Pagination offset
}

// ExtractionListResult contains paginated extraction results
type ExtractionListResult struct {
	Extractions []*Extraction `json:"extractions"`
	TotalCount  int           `json:"total_count"`
	Limit       int           `json:"limit"`
	Offset      int           `json:"offset"`
}

// LinkRepository handles link decisions
type LinkRepository interface {
	// SaveLink records a link decision. The ID is written back into link.
	SaveLink(link *LinkRecord) error

	// GetLatestLink returns the most recent link of an extraction, or nil
	GetLatestLink(extractionID string) (*LinkRecord, error)

	// ListLinks returns recent links, newest first
	ListLinks(limit int) ([]*LinkRecord, error)

	// GetStats returns aggregate statistics
	GetStats() (*Stats, error)
}

// MatchRunRepository handles batch run tracking
type MatchRunRepository interface {
	// StartMatchRun records the start of a batch run and returns the run ID
	StartMatchRun(dryRun bool) (int64, error)

	// CompleteMatchRun records the completion of a batch run
	CompleteMatchRun(runID int64, found, linked, unlinked, errored int) error

	// ListMatchRuns returns recent runs, newest first
	ListMatchRuns(limit int) ([]MatchRun, error)

	// GetMatchRun retrieves a run by ID, or nil if missing
	GetMatchRun(runID int64) (*MatchRun, error)
}

const defaultListLimit = 50
