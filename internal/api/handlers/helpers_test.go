package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/invoice-match-backend/internal/application/service"
	"github.com/eshaffer321/invoice-match-backend/internal/domain/subsetmatch"
	"github.com/eshaffer321/invoice-match-backend/internal/infrastructure/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// serve runs one request through a router holding a single route.
func serve(t *testing.T, method, route, target string, body interface{}, handler gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	r := gin.New()
	r.Handle(method, route, handler)

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Search(ctx context.Context, candidates []subsetmatch.Candidate, goal decimal.Decimal, timeout time.Duration) subsetmatch.Result {
	args := m.Called(ctx, candidates, goal, timeout)
	return args.Get(0).(subsetmatch.Result)
}

type mockExtractionService struct {
	mock.Mock
}

func (m *mockExtractionService) SubmitExtraction(ctx context.Context, in service.ExtractionInput) (*storage.Extraction, error) {
	args := m.Called(ctx, in)
	if e := args.Get(0); e != nil {
		return e.(*storage.Extraction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockExtractionService) MatchExtraction(ctx context.Context, id string, dryRun bool) (*storage.LinkRecord, error) {
	args := m.Called(ctx, id, dryRun)
	if l := args.Get(0); l != nil {
		return l.(*storage.LinkRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockJobService struct {
	mock.Mock
}

func (m *mockJobService) StartBatchJob(ctx context.Context, req service.BatchRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockJobService) GetJob(jobID string) (*service.BatchJob, error) {
	args := m.Called(jobID)
	if j := args.Get(0); j != nil {
		return j.(*service.BatchJob), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockJobService) ListJobs() []*service.BatchJob {
	return m.Called().Get(0).([]*service.BatchJob)
}

func (m *mockJobService) ListActiveJobs() []*service.BatchJob {
	return m.Called().Get(0).([]*service.BatchJob)
}

func (m *mockJobService) CancelJob(jobID string) error {
	return m.Called(jobID).Error(0)
}
