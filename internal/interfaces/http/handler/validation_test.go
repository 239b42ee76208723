package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appvalidation "github.com/facturasegura/backend/internal/application/validation"
	"github.com/facturasegura/backend/internal/domain/shared"
	"github.com/facturasegura/backend/internal/domain/validation"
	"github.com/facturasegura/backend/internal/interfaces/http/middleware"
	"github.com/facturasegura/backend/internal/interfaces/http/router"
)

type fakeValidator struct {
	run    *validation.AggregateResult
	result *validation.Result
	err    error
}

func (v *fakeValidator) ValidateDocument(_ context.Context, doc *validation.DocumentData) (*validation.AggregateResult, error) {
	if v.err != nil {
		return nil, v.err
	}
	run := v.run
	if run == nil {
		run = &validation.AggregateResult{DocumentID: doc.ID, Overall: validation.OverallValid}
	}
	return run, nil
}

func (v *fakeValidator) ValidateCUIT(context.Context, string) (*validation.Result, error) {
	return v.result, v.err
}

func (v *fakeValidator) ValidateCAE(context.Context, string, *validation.DocumentData) (*validation.Result, error) {
	return v.result, v.err
}

type fakeResults struct {
	run *validation.AggregateResult
}

func (r *fakeResults) SaveRun(context.Context, *validation.AggregateResult) error { return nil }
func (r *fakeResults) FindLatestByDocumentID(context.Context, string) (*validation.AggregateResult, error) {
	if r.run == nil {
		return nil, shared.ErrNotFound
	}
	return r.run, nil
}
func (r *fakeResults) StatsSince(context.Context, time.Time) ([]validation.TypeStats, error) {
	return nil, nil
}

type fakeQueue struct {
	processed int
	summary   *appvalidation.QueueSummary
}

func (q *fakeQueue) ProcessQueue(context.Context) (int, error) { return q.processed, nil }
func (q *fakeQueue) Summary(context.Context, validation.QueueStatus, int) (*appvalidation.QueueSummary, error) {
	return q.summary, nil
}

type fakeStats struct {
	stats []validation.TypeStats
}

func (s *fakeStats) Stats(_ context.Context, period string) ([]validation.TypeStats, time.Time, error) {
	d, err := appvalidation.ParsePeriod(period)
	if err != nil {
		return nil, time.Time{}, err
	}
	return s.stats, time.Now().Add(-d), nil
}

type fakeHealth struct{ status string }

func (h *fakeHealth) Status() string { return h.status }

type fakeConnectivity struct {
	records []validation.ConnectivityRecord
}

func (r *fakeConnectivity) Append(context.Context, *validation.ConnectivityRecord) error { return nil }
func (r *fakeConnectivity) Latest(context.Context, string) (*validation.ConnectivityRecord, error) {
	return nil, shared.ErrNotFound
}
func (r *fakeConnectivity) LatestAll(context.Context) ([]validation.ConnectivityRecord, error) {
	return r.records, nil
}

type handlerFixture struct {
	validator    *fakeValidator
	results      *fakeResults
	queue        *fakeQueue
	stats        *fakeStats
	health       *fakeHealth
	connectivity *fakeConnectivity
	engine       *gin.Engine
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()

	f := &handlerFixture{
		validator:    &fakeValidator{result: &validation.Result{Valid: true, Severity: validation.SeverityInfo}},
		results:      &fakeResults{},
		queue:        &fakeQueue{summary: &appvalidation.QueueSummary{Counts: map[validation.QueueStatus]int64{}}},
		stats:        &fakeStats{},
		health:       &fakeHealth{status: validation.ServiceHealthOnline},
		connectivity: &fakeConnectivity{},
	}

	engine := gin.New()
	engine.Use(middleware.RequestID())
	h := NewValidationHandler(f.validator, f.results, f.queue, f.stats, f.health, f.connectivity, nil)
	router.NewRouter(engine).Register(h).Setup()
	f.engine = engine
	return f
}

func (f *handlerFixture) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func TestValidationHandler_ValidateDocument(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.request(t, http.MethodPost, "/api/v1/validate/doc-1", gin.H{
		"document_type":  "invoice",
		"cuit":           "30500010912",
		"cae":            "74123456789012",
		"invoice_number": "0001-00000001",
		"invoice_type":   "A",
		"subtotal":       "100.00",
		"iva":            "21.00",
		"total_amount":   "121.00",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			DocumentID        string                      `json:"document_id"`
			ValidationResults *validation.AggregateResult `json:"validation_results"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "doc-1", resp.Data.DocumentID)
	assert.Equal(t, validation.OverallValid, resp.Data.ValidationResults.Overall)
}

func TestValidationHandler_InvalidVerdictIsStillOK(t *testing.T) {
	f := newHandlerFixture(t)
	f.validator.run = &validation.AggregateResult{DocumentID: "doc-1", Overall: validation.OverallInvalid}

	rec := f.request(t, http.MethodPost, "/api/v1/validate/doc-1", gin.H{"document_type": "invoice"})
	assert.Equal(t, http.StatusOK, rec.Code, "a computed invalid verdict is a business response")
}

func TestValidationHandler_ConnectivityFailureIs503(t *testing.T) {
	f := newHandlerFixture(t)
	f.validator.err = validation.NewError(validation.KindConnectivity, "", "remote unreachable")

	rec := f.request(t, http.MethodPost, "/api/v1/validate/doc-1", gin.H{"document_type": "invoice"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestValidationHandler_MalformedBodyIs400(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.request(t, http.MethodPost, "/api/v1/validate/doc-1", gin.H{
		"cuit": "30500010912",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "document_type")
}

func TestValidationHandler_MalformedIdentifiersReachTheValidator(t *testing.T) {
	// OCR output is noisy. A garbled CUIT or CAE belongs in the verdict as a
	// warning-level sub-check outcome, never in a 400.
	f := newHandlerFixture(t)
	f.validator.run = &validation.AggregateResult{
		DocumentID: "doc-1",
		CUITValidation: &validation.Result{
			Valid:    false,
			Error:    "CUIT must be 11 digits",
			Severity: validation.SeverityWarning,
		},
		Overall: validation.OverallValidWithWarnings,
	}

	rec := f.request(t, http.MethodPost, "/api/v1/validate/doc-1", gin.H{
		"document_type": "invoice",
		"cuit":          "not-a-cuit",
		"cae":           "nope",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "valid_with_warnings")
}

func TestValidationHandler_GetResult(t *testing.T) {
	f := newHandlerFixture(t)

	t.Run("missing result yields 404", func(t *testing.T) {
		rec := f.request(t, http.MethodGet, "/api/v1/validate/doc-unknown", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("persisted result is returned", func(t *testing.T) {
		f.results.run = &validation.AggregateResult{DocumentID: "doc-1", Overall: validation.OverallValidWithWarnings}
		rec := f.request(t, http.MethodGet, "/api/v1/validate/doc-1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "valid_with_warnings")
	})
}

func TestValidationHandler_SingleCUITCheck(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.request(t, http.MethodPost, "/api/v1/validate/cuit", gin.H{"cuit": "30-50001091-2"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "30-50001091-2")

	rec = f.request(t, http.MethodPost, "/api/v1/validate/cuit", gin.H{"cuit": "123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidationHandler_SingleCAECheck(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.request(t, http.MethodPost, "/api/v1/validate/cae", gin.H{"cae": "74123456789012"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.request(t, http.MethodPost, "/api/v1/validate/cae", gin.H{"cae": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidationHandler_Status(t *testing.T) {
	f := newHandlerFixture(t)
	now := time.Now().UTC()
	ms := int64(42)
	f.connectivity.records = []validation.ConnectivityRecord{
		{ServiceName: "wsfe", Status: validation.ConnectivityOnline, ResponseTimeMs: &ms, CheckedAt: now},
	}

	rec := f.request(t, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"online"`)
	assert.Contains(t, rec.Body.String(), "wsfe")
}

func TestValidationHandler_DrainQueue(t *testing.T) {
	f := newHandlerFixture(t)
	f.queue.processed = 4

	rec := f.request(t, http.MethodPost, "/api/v1/retry-queue", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"processed":4`)
}

func TestValidationHandler_Stats(t *testing.T) {
	f := newHandlerFixture(t)
	f.stats.stats = []validation.TypeStats{
		{ValidationType: validation.TypeCUIT, Total: 3, ValidCount: 3, SuccessRate: 1},
	}

	rec := f.request(t, http.MethodGet, "/api/v1/validations/stats?period=24h", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"validation_type":"cuit"`)

	rec = f.request(t, http.MethodGet, "/api/v1/validations/stats?period=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidationHandler_Queue(t *testing.T) {
	f := newHandlerFixture(t)
	f.queue.summary = &appvalidation.QueueSummary{
		Counts: map[validation.QueueStatus]int64{validation.QueueStatusPending: 2},
	}

	rec := f.request(t, http.MethodGet, "/api/v1/validations/queue?status=pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pending":2`)

	rec = f.request(t, http.MethodGet, "/api/v1/validations/queue?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
