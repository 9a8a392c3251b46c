package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/eshaffer321/invoice-match-backend/internal/domain/polink"
	"github.com/eshaffer321/invoice-match-backend/internal/domain/subsetmatch"
	"github.com/eshaffer321/invoice-match-backend/internal/infrastructure/metrics"
	"github.com/eshaffer321/invoice-match-backend/internal/infrastructure/storage"
)

// ExtractionInput is a newly received OCR result.
type ExtractionInput struct {
	ID            string // Optional; a uuid is assigned when empty
	VendorID      string
	InvoiceNumber string
	GoalTotal     decimal.Decimal
	POReferences  []string
	ReceivedAt    time.Time
}

// BatchProgress is reported after each extraction of a batch.
type BatchProgress struct {
	Total     int
	Processed int
	Linked    int
	Unlinked  int
	Errored   int
}

// BatchRequest holds parameters for a batch run.
type BatchRequest struct {
	Limit    int // Max pending extractions to process (0 = all)
	DryRun   bool
	Progress func(BatchProgress) `json:"-"`
}

// BatchResult holds batch results.
type BatchResult struct {
	RunID    int64
	Found    int
	Linked   int
	Unlinked int
	Errored  int
	Errors   []error
}

// MatchService links extracted bills to purchase orders.
type MatchService struct {
	storage storage.Repository
	matcher *subsetmatch.Matcher
	linker  *polink.Linker
	metrics *metrics.Metrics
	logger  *slog.Logger

	// Job management
	jobs         map[string]*BatchJob
	jobsMutex    sync.RWMutex
	runningJobID string

	// Background cleanup
	cleanupStop chan struct{}
	cleanupDone chan struct{}
}

// NewMatchService creates a new match service. A nil metrics records nothing.
func NewMatchService(
	store storage.Repository,
	matcher *subsetmatch.Matcher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *MatchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MatchService{
		storage: store,
		matcher: matcher,
		linker:  polink.NewLinker(matcher, logger),
		metrics: m,
		logger:  logger,
		jobs:    make(map[string]*BatchJob),
	}
}

// Search runs a stateless subset search. A positive timeout overrides the
// configured one for this call only.
func (s *MatchService) Search(
	ctx context.Context,
	candidates []subsetmatch.Candidate,
	goal decimal.Decimal,
	timeout time.Duration,
) subsetmatch.Result {
	matcher := s.matcher
	if timeout > 0 && timeout != matcher.Config().Timeout {
		cfg := matcher.Config()
		cfg.Timeout = timeout
		matcher = subsetmatch.NewMatcher(cfg, subsetmatch.WithLogger(s.logger))
	}

	result := matcher.FindMatchingSubset(ctx, candidates, goal)
	s.metrics.ObserveSearch(string(result.Outcome), len(candidates), result.Elapsed)
	return result
}

// SubmitExtraction validates and stores a new extraction as pending.
func (s *MatchService) SubmitExtraction(_ context.Context, in ExtractionInput) (*storage.Extraction, error) {
	vendorID := strings.TrimSpace(in.VendorID)
	if vendorID == "" {
		return nil, fmt.Errorf("%w: vendor_id is required", ErrInvalidInput)
	}
	if in.GoalTotal.IsZero() {
		return nil, fmt.Errorf("%w: goal_total must be non-zero", ErrInvalidInput)
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	var refs []string
	for _, ref := range in.POReferences {
		if ref = strings.TrimSpace(ref); ref != "" {
			refs = append(refs, ref)
		}
	}

	extraction := &storage.Extraction{
		ID:            id,
		VendorID:      vendorID,
		InvoiceNumber: in.InvoiceNumber,
		GoalTotal:     in.GoalTotal,
		POReferences:  refs,
		Status:        storage.ExtractionPending,
		ReceivedAt:    in.ReceivedAt,
	}
	if err := s.storage.SaveExtraction(extraction); err != nil {
		return nil, fmt.Errorf("failed to save extraction: %w", err)
	}

	s.logger.Info("extraction submitted",
		"extraction_id", extraction.ID,
		"vendor_id", vendorID,
		"goal_total", in.GoalTotal.String(),
		"po_references", len(refs),
	)
	return extraction, nil
}

// MatchExtraction links one extraction and records the decision. Dry runs
// record the decision but leave the extraction status untouched. When ctx is
// done before the decision is stored, nothing is recorded and ctx.Err() is
// returned.
func (s *MatchService) MatchExtraction(ctx context.Context, id string, dryRun bool) (*storage.LinkRecord, error) {
	extraction, err := s.storage.GetExtraction(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load extraction: %w", err)
	}
	if extraction == nil {
		return nil, fmt.Errorf("%w: %s", ErrExtractionNotFound, id)
	}

	return s.matchOne(ctx, extraction, 0, dryRun)
}

// RunBatch matches pending extractions, oldest first. A cancelled context
// stops the batch; an extraction whose search was interrupted stays pending
// and is not counted. The run is still completed with the counts so far and
// the context error is returned.
func (s *MatchService) RunBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	runID, err := s.storage.StartMatchRun(req.DryRun)
	if err != nil {
		return nil, fmt.Errorf("failed to start match run: %w", err)
	}

	result := &BatchResult{RunID: runID}

	pending, err := s.storage.ListPendingExtractions(req.Limit)
	if err != nil {
		_ = s.storage.CompleteMatchRun(runID, 0, 0, 0, 1)
		return nil, fmt.Errorf("failed to list pending extractions: %w", err)
	}
	result.Found = len(pending)

	s.logger.Info("batch started",
		"run_id", runID,
		"pending", len(pending),
		"dry_run", req.DryRun,
	)

	for _, extraction := range pending {
		if ctx.Err() != nil {
			break
		}

		link, err := s.matchOne(ctx, extraction, runID, req.DryRun)
		if err != nil && ctx.Err() != nil {
			break
		}
		switch {
		case err != nil:
			result.Errored++
			result.Errors = append(result.Errors, fmt.Errorf("extraction %s: %w", extraction.ID, err))
		case link.Strategy == string(polink.StrategyNone):
			result.Unlinked++
		default:
			result.Linked++
		}

		if req.Progress != nil {
			req.Progress(BatchProgress{
				Total:     result.Found,
				Processed: result.Linked + result.Unlinked + result.Errored,
				Linked:    result.Linked,
				Unlinked:  result.Unlinked,
				Errored:   result.Errored,
			})
		}
	}

	if err := s.storage.CompleteMatchRun(runID, result.Found, result.Linked, result.Unlinked, result.Errored); err != nil {
		s.logger.Error("failed to complete match run", "run_id", runID, "error", err)
	}

	s.logger.Info("batch finished",
		"run_id", runID,
		"linked", result.Linked,
		"unlinked", result.Unlinked,
		"errored", result.Errored,
	)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// matchOne resolves the candidate orders of an extraction, runs the linker
// and stores the decision.
func (s *MatchService) matchOne(
	ctx context.Context,
	extraction *storage.Extraction,
	runID int64,
	dryRun bool,
) (*storage.LinkRecord, error) {
	orders, referenced, err := s.resolveOrders(extraction)
	if err != nil {
		return nil, err
	}

	decision := s.linker.Link(ctx, polink.Request{
		GoalTotal:  extraction.GoalTotal,
		Orders:     toLinkOrders(orders),
		Referenced: referenced,
	})

	// A search cut short by the caller is not a decision.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.metrics.ObserveDecision(string(decision.Strategy))
	if decision.Searched {
		s.metrics.ObserveSearch(string(decision.Outcome), decision.CandidateCount, decision.Elapsed)
	}

	link := &storage.LinkRecord{
		ExtractionID:   extraction.ID,
		RunID:          runID,
		Strategy:       string(decision.Strategy),
		Outcome:        string(decision.Outcome),
		Searched:       decision.Searched,
		OrderIDs:       decision.OrderIDs,
		LineIDs:        decision.LineIDs,
		CandidateCount: decision.CandidateCount,
		GoalTotal:      extraction.GoalTotal,
		MatchedTotal:   decision.Total,
		DurationMs:     decision.Elapsed.Milliseconds(),
		DryRun:         dryRun,
	}
	if err := s.storage.SaveLink(link); err != nil {
		return nil, fmt.Errorf("failed to save link: %w", err)
	}

	if !dryRun {
		status := storage.ExtractionUnlinked
		if decision.Linked() {
			status = storage.ExtractionLinked
		}
		if err := s.storage.UpdateExtractionStatus(extraction.ID, status); err != nil {
			return nil, fmt.Errorf("failed to update extraction status: %w", err)
		}
	}

	logLevel := slog.LevelInfo
	if decision.Outcome == subsetmatch.OutcomeTimedOut {
		logLevel = slog.LevelWarn
	}
	s.logger.Log(ctx, logLevel, "extraction matched",
		"extraction_id", extraction.ID,
		"strategy", link.Strategy,
		"outcome", link.Outcome,
		"orders", len(link.OrderIDs),
		"lines", len(link.LineIDs),
		"dry_run", dryRun,
	)

	return link, nil
}

// resolveOrders returns the orders referenced by the bill, or the vendor's
// open orders when the bill names none that are known.
func (s *MatchService) resolveOrders(extraction *storage.Extraction) ([]*storage.PurchaseOrder, bool, error) {
	if len(extraction.POReferences) > 0 {
		orders, err := s.storage.FindPurchaseOrdersByReference(extraction.POReferences)
		if err != nil {
			return nil, false, fmt.Errorf("failed to find referenced orders: %w", err)
		}
		if len(orders) > 0 {
			return orders, true, nil
		}
		s.logger.Debug("no referenced order is known, using vendor orders",
			"extraction_id", extraction.ID,
			"references", extraction.POReferences,
		)
	}

	orders, err := s.storage.ListOpenPurchaseOrders(extraction.VendorID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list open orders: %w", err)
	}
	return orders, false, nil
}

func toLinkOrders(orders []*storage.PurchaseOrder) []polink.Order {
	result := make([]polink.Order, 0, len(orders))
	for _, po := range orders {
		order := polink.Order{ID: po.ID, Reference: po.Reference}
		for _, line := range po.Lines {
			order.Lines = append(order.Lines, polink.Line{
				ID:              line.ID,
				Description:     line.Description,
				AmountToInvoice: line.AmountToInvoice,
			})
		}
		result = append(result, order)
	}
	return result
}

// IsNotFound reports whether err means the requested entity does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrExtractionNotFound) || errors.Is(err, ErrJobNotFound)
}
