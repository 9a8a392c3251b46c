package subsetmatch

import (
	"time"

	"github.com/shopspring/decimal"
)

// defaultTolerance is the absolute slack, in currency units, admitted when
// comparing a sum against the goal total.
const defaultTolerance = "0.02"

// DefaultTimeout is the wall-clock budget of a single search.
const DefaultTimeout = 10 * time.Second

// Config holds matcher configuration
type Config struct {
	Tolerance decimal.Decimal // Default: 0.02
	Timeout   time.Duration   // Default: 10s
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Tolerance: decimal.RequireFromString(defaultTolerance),
		Timeout:   DefaultTimeout,
	}
}

// Candidate is one purchase order line that could be paid by the bill.
// PurchaseOrder and Line are opaque references owned by the caller.
type Candidate struct {
	PurchaseOrder   string          `json:"purchase_order"`
	Line            string          `json:"line"`
	AmountToInvoice decimal.Decimal `json:"amount_to_invoice"`
}

// Outcome tells the caller why a search did or did not produce a subset.
type Outcome string

const (
	OutcomeFound     Outcome = "found"
	OutcomeAmbiguous Outcome = "ambiguous"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeNotFound  Outcome = "not_found"
)

// Result contains search information
type Result struct {
	Outcome  Outcome
	Lines    []Candidate   // Only set when Outcome is OutcomeFound
	Explored int           // Search frames expanded before the search stopped
	Elapsed  time.Duration // Wall-clock time spent searching
}

// Matched reports whether a unique subset was found.
func (r Result) Matched() bool {
	return r.Outcome == OutcomeFound
}

// Total sums the amounts of the matched lines.
func (r Result) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range r.Lines {
		total = total.Add(line.AmountToInvoice)
	}
	return total
}
