package polink

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/invoice-match-backend/internal/domain/subsetmatch"
)

// Line is an open purchase order line
type Line struct {
	ID              int64
	Description     string
	AmountToInvoice decimal.Decimal
}

// Order is a purchase order with its open lines
type Order struct {
	ID        int64
	Reference string
	Lines     []Line
}

// Request describes one extracted bill to link.
type Request struct {
	GoalTotal decimal.Decimal
	Orders    []Order
	// Referenced is true when Orders were named on the bill itself, false
	// when they are every open order of the vendor.
	Referenced bool
}

// Strategy is how a bill ended up linked to purchase orders.
type Strategy string

const (
	StrategyAllLines    Strategy = "all_lines"
	StrategySubset      Strategy = "subset"
	StrategyWholeOrders Strategy = "whole_orders"
	StrategyNone        Strategy = "none"
)

// Decision is the result of linking a bill.
type Decision struct {
	Strategy       Strategy
	Outcome        subsetmatch.Outcome // Only meaningful when Searched
	Searched       bool
	OrderIDs       []int64
	LineIDs        []int64
	CandidateCount int
	Total          decimal.Decimal // Sum of the linked lines (zero for whole_orders/none)
	Elapsed        time.Duration
}

// Linked reports whether the bill is attached to at least one order.
func (d Decision) Linked() bool {
	return d.Strategy != StrategyNone
}
