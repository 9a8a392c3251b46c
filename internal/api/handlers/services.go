package handlers

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/invoice-match-backend/internal/application/service"
	"github.com/eshaffer321/invoice-match-backend/internal/domain/subsetmatch"
	"github.com/eshaffer321/invoice-match-backend/internal/infrastructure/storage"
)

// Searcher runs stateless subset searches.
type Searcher interface {
	Search(ctx context.Context, candidates []subsetmatch.Candidate, goal decimal.Decimal, timeout time.Duration) subsetmatch.Result
}

// ExtractionService stores and links extractions.
type ExtractionService interface {
	SubmitExtraction(ctx context.Context, in service.ExtractionInput) (*storage.Extraction, error)
	MatchExtraction(ctx context.Context, id string, dryRun bool) (*storage.LinkRecord, error)
}

// JobService manages asynchronous batch jobs.
type JobService interface {
	StartBatchJob(ctx context.Context, req service.BatchRequest) (string, error)
	GetJob(jobID string) (*service.BatchJob, error)
	ListJobs() []*service.BatchJob
	ListActiveJobs() []*service.BatchJob
	CancelJob(jobID string) error
}

var (
	_ Searcher          = (*service.MatchService)(nil)
	_ ExtractionService = (*service.MatchService)(nil)
	_ JobService        = (*service.MatchService)(nil)
)
