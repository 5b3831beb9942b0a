package interfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"recruit-pipeline/domain"
	"recruit-pipeline/infrastructure"
	"recruit-pipeline/service"
)

type memoryBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (b *memoryBlobs) Put(_ context.Context, key string, data []byte, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *memoryBlobs) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func (b *memoryBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(context.Context, domain.NotificationJob) error { return nil }

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	job    domain.Job
}

func newTestServer(t *testing.T, limiter RateLimiter, ratePerMin int) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, infrastructure.Migrate(db))

	log := logrus.New()
	log.SetOutput(io.Discard)

	region := domain.Region{Name: "Head Office"}
	require.NoError(t, db.Create(&region).Error)
	job := domain.Job{RegionID: region.ID, Title: "Backend Engineer", Active: true}
	require.NoError(t, db.Create(&job).Error)

	audit := service.NewAuditLog(db, log, 30, 5*time.Second)
	h := &HTTPHandler{
		Intake: service.NewIntake(db, &memoryBlobs{objects: map[string][]byte{}}, infrastructure.NewTextExtractor(log), audit, log,
			service.IntakeConfig{}),
		Pipeline:  service.NewPipeline(db, audit, nopDispatcher{}, log, service.PipelineConfig{}),
		Audit:     audit,
		Reference: service.NewReference(db, infrastructure.NewMemoryCache(), time.Minute, audit, log, 0),
		Log:       log,
	}
	router := gin.New()
	NewHTTPHandler(router, h, RouterOptions{
		OperatorTokens:   map[string]string{"secret": "alice"},
		Limiter:          limiter,
		IntakeRatePerMin: ratePerMin,
	})
	return &testServer{router: router, db: db, job: job}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) admin(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	return s.do(t, method, path, body, map[string]string{"Authorization": "Bearer secret"})
}

func (s *testServer) upload(t *testing.T, id uint, token string, category domain.AttachmentCategory) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("category", string(category)))
	fw, err := mw.CreateFormFile("file", string(category)+".txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("file for " + string(category)))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/applications/%d/attachments", id), &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set(headerToken, token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil, 0)
	w := s.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
	assert.NotEmpty(t, w.Header().Get(headerRequestID))
}

func TestAdminRequiresOperatorToken(t *testing.T) {
	s := newTestServer(t, nil, 0)

	w := s.do(t, http.MethodGet, "/admin/candidates", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.do(t, http.MethodGet, "/admin/candidates", nil, map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.admin(t, http.MethodGet, "/admin/candidates", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateApplicationValidationEnvelope(t *testing.T) {
	s := newTestServer(t, nil, 0)

	w := s.do(t, http.MethodPost, "/api/applications", map[string]any{"region_id": s.job.RegionID, "job_id": s.job.ID}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[errorBody](t, w)
	assert.Equal(t, domain.CodeValidation, body.Code)
	assert.Equal(t, "required", body.Details["name"])
	assert.Equal(t, "required", body.Details["phone"])
}

func TestApplicationFlowIntoInterview(t *testing.T) {
	s := newTestServer(t, nil, 0)

	w := s.do(t, http.MethodPost, "/api/applications", map[string]any{
		"region_id": s.job.RegionID, "job_id": s.job.ID, "name": "Ann Lee", "phone": "13800000000",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	receipt := decode[service.DraftReceipt](t, w)
	require.NotEmpty(t, receipt.AttachmentToken)

	w = s.upload(t, receipt.ApplicantID, "", domain.CategoryPhoto)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, domain.CodeTokenMissing, decode[errorBody](t, w).Code)

	for _, c := range domain.RequiredCategories {
		w = s.upload(t, receipt.ApplicantID, receipt.AttachmentToken, c)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/applications/%d/finalize", receipt.ApplicantID), nil,
		map[string]string{headerToken: receipt.AttachmentToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.admin(t, http.MethodPost, "/admin/pools/interview/from-applicants", map[string]any{"ids": []uint{receipt.ApplicantID}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.TransferResult{Moved: 1, Total: 1}, decode[service.TransferResult](t, w))

	var cand domain.Candidate
	require.NoError(t, s.db.Where("applicant_id = ?", receipt.ApplicantID).First(&cand).Error)

	w = s.admin(t, http.MethodPost, fmt.Sprintf("/admin/candidates/%d/cancel", cand.ID), nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, domain.CodeNotScheduled, decode[errorBody](t, w).Code)

	at := time.Now().UTC().Add(72 * time.Hour)
	w = s.admin(t, http.MethodPost, fmt.Sprintf("/admin/candidates/%d/schedule", cand.ID), map[string]any{
		"at": at, "interviewers": []string{"Bob"}, "notify": false,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.admin(t, http.MethodGet, "/admin/operation-logs?module=interview", nil)
	require.Equal(t, http.StatusOK, w.Code)
	logs := decode[service.AuditPage](t, w)
	require.Len(t, logs.Results, 4)
	assert.Equal(t, "schedule", logs.Results[0].Action)
	assert.Equal(t, "alice", logs.Results[0].Operator)
}

func TestUnknownCandidateIsNotFound(t *testing.T) {
	s := newTestServer(t, nil, 0)

	w := s.admin(t, http.MethodGet, "/admin/candidates/77", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, domain.CodeCandidateNotFound, decode[errorBody](t, w).Code)

	w = s.admin(t, http.MethodGet, "/admin/candidates/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIntakeRateLimit(t *testing.T) {
	s := newTestServer(t, infrastructure.NewMemoryLimiter(), 1)

	first := s.do(t, http.MethodPost, "/api/applications", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, first.Code)
	second := s.do(t, http.MethodPost, "/api/applications", map[string]any{}, nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, domain.CodeRateLimited, decode[errorBody](t, second).Code)
}

func TestOperationLogsRejectBadDates(t *testing.T) {
	s := newTestServer(t, nil, 0)

	w := s.admin(t, http.MethodGet, "/admin/operation-logs?date_from=yesterday", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[errorBody](t, w).Details, "date_from")

	w = s.admin(t, http.MethodGet, "/admin/operation-logs?date_from=2026-03-05&date_to=2026-03-01", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReferenceEndpoints(t *testing.T) {
	s := newTestServer(t, nil, 0)

	w := s.admin(t, http.MethodPost, "/admin/jobs", map[string]any{"region_id": s.job.RegionID, "title": "QA"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[domain.Job](t, w)

	w = s.admin(t, http.MethodPost, fmt.Sprintf("/admin/jobs/%d/active", created.ID), map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.admin(t, http.MethodPost, fmt.Sprintf("/admin/jobs/%d/active", created.ID), map[string]any{"active": false})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/jobs?region_id=%d", s.job.RegionID), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	jobs := decode[struct {
		Results []domain.Job `json:"results"`
	}](t, w)
	require.Len(t, jobs.Results, 1)
	assert.Equal(t, "Backend Engineer", jobs.Results[0].Title)
}
