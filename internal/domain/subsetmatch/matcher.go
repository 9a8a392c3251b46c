// Package subsetmatch finds the purchase order lines paid by a vendor bill.
//
// Given the bill total reported by OCR and the open purchase order lines,
// the matcher searches for the subset of lines whose amounts add up to the
// total:
//   - Sums are compared within an absolute tolerance (0.02 by default)
//   - Two or more valid subsets make the answer ambiguous and nothing is returned
//   - The search gives up after a wall-clock timeout (10 seconds by default)
//
// Example usage:
//
//	m := subsetmatch.NewMatcher(subsetmatch.DefaultConfig())
//	result := m.FindMatchingSubset(ctx, candidates, goal)
//	if result.Matched() {
//		// link result.Lines to the bill
//	}
package subsetmatch

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Matcher searches candidate lines for a unique subset summing to a goal.
// A Matcher holds no per-search state and is safe for concurrent use.
type Matcher struct {
	config Config
	now    func() time.Time
	logger *slog.Logger
}

// Option customizes a Matcher.
type Option func(*Matcher)

// WithClock replaces the wall clock used for the timeout check.
func WithClock(now func() time.Time) Option {
	return func(m *Matcher) {
		m.now = now
	}
}

// WithLogger sets the logger used to report timeouts.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) {
		m.logger = logger
	}
}

// NewMatcher creates a new matcher with the given config
func NewMatcher(config Config, opts ...Option) *Matcher {
	m := &Matcher{
		config: config,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns the matcher configuration.
func (m *Matcher) Config() Config {
	return m.config
}

// frame is one pending level of the depth-first search: candidates from
// next onwards still have to be tried against remaining.
type frame struct {
	next      int
	remaining decimal.Decimal
	path      []int
}

// FindMatchingSubset searches candidates for the unique subset whose amounts
// sum to goal within the configured tolerance.
//
// Candidates are tried largest first. A candidate strictly below
// remaining-tolerance is taken as a partial contribution and the search
// continues with the later candidates; otherwise a candidate inside
// [remaining-tolerance, remaining+tolerance] closes a solution. The search
// stops as soon as a second solution appears, when the timeout elapses, or
// when ctx is done.
func (m *Matcher) FindMatchingSubset(ctx context.Context, candidates []Candidate, goal decimal.Decimal) Result {
	start := m.now()
	tol := m.config.Tolerance

	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AmountToInvoice.GreaterThan(sorted[j].AmountToInvoice)
	})

	var solutions [][]int
	explored := 0
	stack := []*frame{{next: 0, remaining: goal}}
	entered := true

	for len(stack) > 0 {
		if entered {
			entered = false
			explored++
			if m.expired(ctx, start) {
				m.logger.Warn("timed out during search of a matching subset of purchase order lines",
					"candidates", len(sorted),
					"goal", goal.String(),
					"explored", explored,
				)
				return Result{Outcome: OutcomeTimedOut, Explored: explored, Elapsed: m.now().Sub(start)}
			}
		}

		top := stack[len(stack)-1]
		if top.next >= len(sorted) {
			stack = stack[:len(stack)-1]
			continue
		}

		i := top.next
		top.next++
		amount := sorted[i].AmountToInvoice
		lower := top.remaining.Sub(tol)

		if amount.LessThan(lower) {
			stack = append(stack, &frame{
				next:      i + 1,
				remaining: top.remaining.Sub(amount),
				path:      append(top.path[:len(top.path):len(top.path)], i),
			})
			entered = true
			continue
		}

		if amount.LessThanOrEqual(top.remaining.Add(tol)) {
			solutions = append(solutions, append(top.path[:len(top.path):len(top.path)], i))
			if len(solutions) > 1 {
				return Result{Outcome: OutcomeAmbiguous, Explored: explored, Elapsed: m.now().Sub(start)}
			}
		}
	}

	if len(solutions) == 0 {
		return Result{Outcome: OutcomeNotFound, Explored: explored, Elapsed: m.now().Sub(start)}
	}

	lines := make([]Candidate, 0, len(solutions[0]))
	for _, idx := range solutions[0] {
		lines = append(lines, sorted[idx])
	}

	return Result{
		Outcome:  OutcomeFound,
		Lines:    lines,
		Explored: explored,
		Elapsed:  m.now().Sub(start),
	}
}

// expired reports whether the search budget is spent or the caller gave up.
func (m *Matcher) expired(ctx context.Context, start time.Time) bool {
	if ctx.Err() != nil {
		return true
	}
	return m.config.Timeout > 0 && m.now().Sub(start) > m.config.Timeout
}

// FindMatchingSubset runs a search with the default tolerance and returns
// the matched lines, or nil when no unique subset was found in time.
func FindMatchingSubset(candidates []Candidate, goal decimal.Decimal, timeout time.Duration) []Candidate {
	cfg := DefaultConfig()
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	result := NewMatcher(cfg).FindMatchingSubset(context.Background(), candidates, goal)
	if !result.Matched() {
		return nil
	}
	return result.Lines
}
