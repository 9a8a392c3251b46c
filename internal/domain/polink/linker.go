// Package polink decides which purchase order lines an extracted vendor
// bill pays.
//
// The decision goes through these steps, stopping at the first that applies:
//  1. No open lines: link the referenced orders as a whole (or nothing)
//  2. All open lines together match the bill total: link them all
//  3. A unique subset of lines matches the bill total: link that subset
//  4. Otherwise: link the referenced orders as a whole (or nothing)
package polink

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/invoice-match-backend/internal/domain/subsetmatch"
)

// Linker links extracted bills to purchase order lines.
type Linker struct {
	matcher *subsetmatch.Matcher
	logger  *slog.Logger
	now     func() time.Time
}

// NewLinker creates a linker around the given matcher.
func NewLinker(matcher *subsetmatch.Matcher, logger *slog.Logger) *Linker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Linker{
		matcher: matcher,
		logger:  logger,
		now:     time.Now,
	}
}

// Link decides how the bill described by req links to its purchase orders.
func (l *Linker) Link(ctx context.Context, req Request) Decision {
	start := l.now()
	tol := l.matcher.Config().Tolerance

	lines := make(map[int64]Line)
	lineOrder := make(map[int64]int64)
	var candidates []subsetmatch.Candidate
	total := decimal.Zero

	// Credit notes carry a negative total; the search only builds sums
	// upwards, so flip both sides.
	negate := req.GoalTotal.IsNegative()
	goal := req.GoalTotal
	if negate {
		goal = goal.Neg()
	}

	for _, order := range req.Orders {
		for _, line := range order.Lines {
			// Zero lines fit into any subset and would make every match ambiguous
			if line.AmountToInvoice.IsZero() {
				continue
			}
			amount := line.AmountToInvoice
			if negate {
				amount = amount.Neg()
			}
			lines[line.ID] = line
			lineOrder[line.ID] = order.ID
			total = total.Add(line.AmountToInvoice)
			candidates = append(candidates, subsetmatch.Candidate{
				PurchaseOrder:   strconv.FormatInt(order.ID, 10),
				Line:            strconv.FormatInt(line.ID, 10),
				AmountToInvoice: amount,
			})
		}
	}

	decision := Decision{CandidateCount: len(candidates), Total: decimal.Zero}

	if len(candidates) == 0 {
		l.fallback(&decision, req)
		decision.Elapsed = l.now().Sub(start)
		return decision
	}

	if total.Sub(req.GoalTotal).Abs().LessThanOrEqual(tol) {
		decision.Strategy = StrategyAllLines
		for id := range lines {
			decision.LineIDs = append(decision.LineIDs, id)
			decision.OrderIDs = append(decision.OrderIDs, lineOrder[id])
		}
		decision.Total = total
		normalize(&decision)
		decision.Elapsed = l.now().Sub(start)
		l.logger.Debug("all open lines match bill total",
			"lines", len(decision.LineIDs),
			"total", total.String(),
		)
		return decision
	}

	result := l.matcher.FindMatchingSubset(ctx, candidates, goal)
	decision.Searched = true
	decision.Outcome = result.Outcome

	if result.Matched() {
		decision.Strategy = StrategySubset
		for _, c := range result.Lines {
			id, _ := strconv.ParseInt(c.Line, 10, 64)
			decision.LineIDs = append(decision.LineIDs, id)
			decision.OrderIDs = append(decision.OrderIDs, lineOrder[id])
			decision.Total = decision.Total.Add(lines[id].AmountToInvoice)
		}
		normalize(&decision)
	} else {
		l.fallback(&decision, req)
	}

	decision.Elapsed = l.now().Sub(start)
	l.logger.Debug("subset search finished",
		"outcome", string(result.Outcome),
		"strategy", string(decision.Strategy),
		"candidates", len(candidates),
		"explored", result.Explored,
	)
	return decision
}

// fallback links the referenced orders as a whole, or nothing when the
// orders were only guessed from the vendor.
func (l *Linker) fallback(decision *Decision, req Request) {
	if !req.Referenced || len(req.Orders) == 0 {
		decision.Strategy = StrategyNone
		return
	}
	decision.Strategy = StrategyWholeOrders
	for _, order := range req.Orders {
		decision.OrderIDs = append(decision.OrderIDs, order.ID)
	}
	normalize(decision)
}

// normalize sorts and deduplicates the ids of a decision.
func normalize(decision *Decision) {
	decision.OrderIDs = uniqueSorted(decision.OrderIDs)
	decision.LineIDs = uniqueSorted(decision.LineIDs)
}

func uniqueSorted(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := ids[:1]
	for _, id := range ids[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}
