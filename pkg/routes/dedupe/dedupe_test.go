package dedupe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/dedupe"
	dedupeerrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/models"
)

type fakeService struct {
	forced    []int64
	pairs     []models.ContactPair
	filter    models.CandidateFilter
	reviewer  string
	config    models.DedupeConfig
	normalize [2]int64
}

func (s *fakeService) ForcePair(_ context.Context, id1, id2 int64) (*models.DedupeCandidate, error) {
	if id1 == id2 {
		return nil, dedupeerrors.InvalidInput("cannot pair contact %d with itself", id1)
	}
	if id2 == 404 {
		return nil, dedupeerrors.NotFound("contact %d not found", id2)
	}
	s.forced = []int64{id1, id2}
	pair := models.NewContactPair(id1, id2)
	return &models.DedupeCandidate{ID: "c-1", ContactID1: pair.ContactID1, ContactID2: pair.ContactID2, Score: 0.7, Status: models.CandidateStatusPending}, nil
}

func (s *fakeService) BulkNormalize(_ context.Context, afterID int64, limit int) (*models.NormalizeResult, error) {
	s.normalize = [2]int64{afterID, int64(limit)}
	return &models.NormalizeResult{ProcessedCount: 2, LastID: afterID + 2, Done: true}, nil
}

func (s *fakeService) RunDueScoring(ctx context.Context, source dedupe.PairSource) (*models.ScoringResult, error) {
	s.pairs, _ = source.DuePairs(ctx)
	return &models.ScoringResult{Requested: len(s.pairs), Scored: len(s.pairs), Upserted: len(s.pairs)}, nil
}

func (s *fakeService) GetCandidate(_ context.Context, id string) (*models.DedupeCandidate, error) {
	if id != "c-1" {
		return nil, dedupeerrors.NotFound("dedupe candidate %s not found", id)
	}
	return &models.DedupeCandidate{ID: id}, nil
}

func (s *fakeService) ListCandidates(_ context.Context, filter models.CandidateFilter) ([]models.DedupeCandidate, error) {
	s.filter = filter
	return nil, nil
}

func (s *fakeService) ApproveCandidate(_ context.Context, id, reviewer string) (*models.DedupeCandidate, error) {
	s.reviewer = reviewer
	return &models.DedupeCandidate{ID: id, Status: models.CandidateStatusApproved}, nil
}

func (s *fakeService) RejectCandidate(_ context.Context, id, reviewer string) (*models.DedupeCandidate, error) {
	s.reviewer = reviewer
	return &models.DedupeCandidate{ID: id, Status: models.CandidateStatusRejected}, nil
}

func (s *fakeService) Config() models.DedupeConfig {
	return s.config
}

func (s *fakeService) UpdateConfig(_ context.Context, config models.DedupeConfig) (models.DedupeConfig, error) {
	if err := config.Validate(); err != nil {
		return s.config, dedupeerrors.InvalidInput("%v", err)
	}
	prev := s.config
	s.config = config
	return prev, nil
}

type fakeRecorder struct {
	req models.MergeRequest
}

func (r *fakeRecorder) RecordMerge(_ context.Context, req models.MergeRequest) (*models.DedupeMerge, error) {
	r.req = req
	return &models.DedupeMerge{ID: "m-1", ContactID1: req.ContactID1, ContactID2: req.ContactID2, SurvivorID: req.SurvivorID}, nil
}

func (r *fakeRecorder) GetMerge(_ context.Context, id string) (*models.DedupeMerge, error) {
	return nil, dedupeerrors.NotFound("dedupe merge %s not found", id)
}

func (r *fakeRecorder) ListMerges(_ context.Context, contactID int64, _ int) ([]models.DedupeMerge, error) {
	return []models.DedupeMerge{{ID: "m-1", ContactID1: contactID, ContactID2: contactID + 1, SurvivorID: contactID}}, nil
}

func (r *fakeRecorder) ResolveSurvivor(_ context.Context, contactID int64) (int64, error) {
	if contactID == 3 {
		return 8, nil
	}
	return contactID, nil
}

func newTestServer(service *fakeService, recorder *fakeRecorder) *echo.Echo {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())
	NewHandler(service, recorder).Register(e.Group("/api/v1/dedupe"))
	return e
}

func do(e *echo.Echo, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestForcePairRoute(t *testing.T) {
	service := &fakeService{}
	e := newTestServer(service, &fakeRecorder{})

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"numeric ids", `{"contact_id_1": 9, "contact_id_2": 4}`, http.StatusOK},
		{"string ids", `{"contact_id_1": "9", "contact_id_2": "4"}`, http.StatusOK},
		{"missing id", `{"contact_id_1": 9}`, http.StatusBadRequest},
		{"non numeric id", `{"contact_id_1": "abc", "contact_id_2": 4}`, http.StatusBadRequest},
		{"zero id", `{"contact_id_1": 0, "contact_id_2": 4}`, http.StatusBadRequest},
		{"same id", `{"contact_id_1": 4, "contact_id_2": 4}`, http.StatusBadRequest},
		{"unknown contact", `{"contact_id_1": 1, "contact_id_2": 404}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, http.MethodPost, "/api/v1/dedupe/force-pair", tt.body, nil)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	rec := do(e, http.MethodPost, "/api/v1/dedupe/force-pair", `{"contact_id_1": 9, "contact_id_2": 4}`, nil)
	var candidate models.DedupeCandidate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &candidate))
	assert.Equal(t, int64(4), candidate.ContactID1)
	assert.Equal(t, int64(9), candidate.ContactID2)
}

func TestNormalizeAndScoreRoutes(t *testing.T) {
	service := &fakeService{}
	e := newTestServer(service, &fakeRecorder{})

	rec := do(e, http.MethodPost, "/api/v1/dedupe/normalize", `{"after_id": 100, "limit": 50}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, [2]int64{100, 50}, service.normalize)

	rec = do(e, http.MethodPost, "/api/v1/dedupe/normalize", `{"after_id": -5}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/api/v1/dedupe/score", `{"pairs": [{"contact_id_1": 1, "contact_id_2": 2}]}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, service.pairs, 1)

	rec = do(e, http.MethodPost, "/api/v1/dedupe/score", `{"pairs": []}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCandidateRoutes(t *testing.T) {
	service := &fakeService{}
	e := newTestServer(service, &fakeRecorder{})

	rec := do(e, http.MethodGet, "/api/v1/dedupe/candidates?status=pending&min_score=0.6&contact_id=7&limit=20", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, models.CandidateStatusPending, service.filter.Status)
	require.NotNil(t, service.filter.MinScore)
	assert.Equal(t, 0.6, *service.filter.MinScore)
	assert.Equal(t, int64(7), service.filter.ContactID)

	rec = do(e, http.MethodGet, "/api/v1/dedupe/candidates?status=merged", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/api/v1/dedupe/candidates/c-1", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, http.MethodGet, "/api/v1/dedupe/candidates/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(e, http.MethodPost, "/api/v1/dedupe/candidates/c-1/approve", "", map[string]string{middleware.HeaderReviewer: "reviewer-1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "reviewer-1", service.reviewer)

	rec = do(e, http.MethodPost, "/api/v1/dedupe/candidates/c-1/reject", "", map[string]string{middleware.HeaderReviewer: "reviewer-2"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "reviewer-2", service.reviewer)
}

func TestMergeRoutes(t *testing.T) {
	recorder := &fakeRecorder{}
	e := newTestServer(&fakeService{}, recorder)

	rec := do(e, http.MethodPost, "/api/v1/dedupe/merges",
		`{"contact_id_1": 3, "contact_id_2": 8, "survivor_id": 3}`,
		map[string]string{middleware.HeaderReviewer: "reviewer-1"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "reviewer-1", recorder.req.PerformedBy)

	rec = do(e, http.MethodGet, "/api/v1/dedupe/merges/m-9", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(e, http.MethodGet, "/api/v1/dedupe/merges?contact_id=3", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, http.MethodGet, "/api/v1/dedupe/merges", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/api/v1/dedupe/contacts/3/survivor", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"contact_id": 3, "survivor_id": 8}`, rec.Body.String())

	rec = do(e, http.MethodGet, "/api/v1/dedupe/contacts/abc/survivor", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfigRoutes(t *testing.T) {
	service := &fakeService{config: models.DefaultDedupeConfig()}
	e := newTestServer(service, &fakeRecorder{})

	rec := do(e, http.MethodGet, "/api/v1/dedupe/config", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	updated := models.DefaultDedupeConfig()
	updated.Thresholds.Auto = 0.9
	body, err := json.Marshal(updated)
	require.NoError(t, err)

	rec = do(e, http.MethodPut, "/api/v1/dedupe/config", string(body), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.9, service.config.Thresholds.Auto)

	invalid := models.DefaultDedupeConfig()
	invalid.Thresholds.Review = 0.95
	body, err = json.Marshal(invalid)
	require.NoError(t, err)

	rec = do(e, http.MethodPut, "/api/v1/dedupe/config", string(body), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0.9, service.config.Thresholds.Auto)
}
