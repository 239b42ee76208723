package validation

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturasegura/backend/internal/afip"
	"github.com/facturasegura/backend/internal/domain/validation"
	"github.com/facturasegura/backend/internal/infrastructure/cache"
	"github.com/facturasegura/backend/internal/infrastructure/config"
)

// stubGateway plays the remote services with scripted answers
type stubGateway struct {
	mu             sync.Mutex
	taxpayer       *afip.Taxpayer
	taxpayerErr    error
	lookupCAE      string
	lookupErr      error
	taxpayerCalls  int
	lookupCalls    int
}

func (g *stubGateway) GetTaxpayer(_ context.Context, _ *afip.Credential, cuit string) (*afip.Taxpayer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.taxpayerCalls++
	if g.taxpayerErr != nil {
		return nil, g.taxpayerErr
	}
	if g.taxpayer != nil {
		return g.taxpayer, nil
	}
	return &afip.Taxpayer{CUIT: cuit, Name: "STUB SA", Kind: "JURIDICA", Active: true}, nil
}

func (g *stubGateway) LookupInvoice(_ context.Context, _ *afip.Credential, _, _ int, _ int64) (*afip.FECompConsultarResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lookupCalls++
	if g.lookupErr != nil {
		return nil, g.lookupErr
	}
	var result afip.FECompConsultarResult
	result.ResultGet.CodAutorizacion = g.lookupCAE
	result.ResultGet.Resultado = "A"
	result.ResultGet.FchVto = "20261231"
	return &result, nil
}

type stubAuthenticator struct {
	err error
}

func (a *stubAuthenticator) Authenticate(context.Context, string) (*afip.Credential, error) {
	if a.err != nil {
		return nil, a.err
	}
	return &afip.Credential{ServiceName: "wsfe", Token: "tok", Sign: "sig", ExpirationTime: time.Now().Add(12 * time.Hour)}, nil
}

func (a *stubAuthenticator) Invalidate(string) {}

type memResultRepo struct {
	mu      sync.Mutex
	runs    []*validation.AggregateResult
	saveErr error
}

func (r *memResultRepo) SaveRun(_ context.Context, run *validation.AggregateResult) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return nil
}

func (r *memResultRepo) FindLatestByDocumentID(_ context.Context, documentID string) (*validation.AggregateResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.runs) - 1; i >= 0; i-- {
		if r.runs[i].DocumentID == documentID {
			return r.runs[i], nil
		}
	}
	return nil, nil
}

func (r *memResultRepo) StatsSince(context.Context, time.Time) ([]validation.TypeStats, error) {
	return nil, nil
}

type memDocRepo struct {
	mu        sync.Mutex
	count     int64
	err       error
	upsertErr error
	statuses  map[string]string
}

func (r *memDocRepo) CountDuplicates(context.Context, string, string, time.Time, string) (int64, error) {
	return r.count, r.err
}

func (r *memDocRepo) Upsert(_ context.Context, doc *validation.DocumentData, status string) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.statuses == nil {
		r.statuses = make(map[string]string)
	}
	r.statuses[doc.ID] = status
	return nil
}

func (r *memDocRepo) MarkCompleted(_ context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.statuses == nil {
		r.statuses = make(map[string]string)
	}
	r.statuses[documentID] = validation.DocumentStatusCompleted
	return nil
}

func (r *memDocRepo) status(documentID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statuses[documentID]
}

type memQueueRepo struct {
	mu    sync.Mutex
	items []validation.RetryQueueItem
}

func (r *memQueueRepo) Insert(_ context.Context, item *validation.RetryQueueItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, *item)
	return nil
}

func (r *memQueueRepo) Update(_ context.Context, item *validation.RetryQueueItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ID == item.ID {
			r.items[i] = *item
			return nil
		}
	}
	return nil
}

func (r *memQueueRepo) DueItems(_ context.Context, now time.Time, limit int) ([]validation.RetryQueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []validation.RetryQueueItem
	for _, item := range r.items {
		if item.Status == validation.QueueStatusPending && !item.NextRetryAt.After(now) {
			due = append(due, item)
		}
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

func (r *memQueueRepo) FindByStatus(_ context.Context, status validation.QueueStatus, limit int) ([]validation.RetryQueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []validation.RetryQueueItem
	for _, item := range r.items {
		if item.Status == status {
			out = append(out, item)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memQueueRepo) CountByStatus(context.Context) (map[validation.QueueStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[validation.QueueStatus]int64)
	for _, item := range r.items {
		counts[item.Status]++
	}
	return counts, nil
}

func (r *memQueueRepo) ReleaseStale(context.Context, time.Time) (int64, error) { return 0, nil }

func (r *memQueueRepo) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

type orchestratorFixture struct {
	gateway *stubGateway
	results *memResultRepo
	docs    *memDocRepo
	queue   *memQueueRepo
	cache   *cache.MemoryStore
	orch    *Orchestrator
}

func newFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	f := &orchestratorFixture{
		gateway: &stubGateway{lookupCAE: "12345678901234"},
		results: &memResultRepo{},
		docs:    &memDocRepo{},
		queue:   &memQueueRepo{},
		cache: cache.NewMemoryStore(cache.TTLPolicy{
			validation.CacheTypeCUIT: 24 * time.Hour,
			validation.CacheTypeCAE:  time.Hour,
		}),
	}
	t.Cleanup(func() { f.cache.Close() })
	f.orch = NewOrchestrator(
		f.gateway, &stubAuthenticator{}, f.cache,
		f.results, f.docs, f.queue, nil,
		"wsfe", testRetryConfig(),
	)
	return f
}

func testRetryConfig() config.RetryQueueConfig {
	return config.RetryQueueConfig{
		MaxAttempts:  3,
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		ScanInterval: 5 * time.Second,
		BatchSize:    10,
		StaleAfter:   10 * time.Minute,
	}
}

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func sampleDocument() *validation.DocumentData {
	date := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	return &validation.DocumentData{
		ID:            "doc-1",
		DocumentType:  "invoice",
		CUIT:          "20123456789",
		CAE:           "12345678901234",
		InvoiceNumber: "0001-00000001",
		InvoiceType:   "A",
		Date:          &date,
		Subtotal:      amount("100.00"),
		IVA:           amount("21.00"),
		TotalAmount:   amount("121.00"),
	}
}

func TestOrchestrator_EndToEndValid(t *testing.T) {
	// The sample CUIT fails the local check digit on purpose: the registry
	// answer is authoritative and must carry the verdict alone.
	f := newFixture(t)

	run, err := f.orch.ValidateDocument(context.Background(), sampleDocument())
	require.NoError(t, err)

	assert.Equal(t, validation.OverallValid, run.Overall)
	require.NotNil(t, run.CUITValidation)
	assert.True(t, run.CUITValidation.Valid)
	assert.False(t, run.CUITValidation.FromCache)
	require.NotNil(t, run.CAEValidation)
	assert.True(t, run.CAEValidation.Valid)
	assert.False(t, run.CAEValidation.EstimatedValidation)
	require.NotNil(t, run.DuplicateCheck)
	assert.False(t, run.DuplicateCheck.IsDuplicate)
	require.NotNil(t, run.TaxConsistency)
	assert.True(t, run.TaxConsistency.Valid)
	assert.Empty(t, run.Errors)

	assert.Len(t, f.results.runs, 1, "run persisted")
	assert.Zero(t, f.queue.len(), "nothing queued")
}

func TestOrchestrator_SecondRunServedFromCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.ValidateDocument(ctx, sampleDocument())
	require.NoError(t, err)
	run, err := f.orch.ValidateDocument(ctx, sampleDocument())
	require.NoError(t, err)

	assert.True(t, run.CUITValidation.FromCache)
	assert.True(t, run.CAEValidation.FromCache)
	assert.Equal(t, 1, f.gateway.taxpayerCalls, "registry hit once")
	assert.Equal(t, 1, f.gateway.lookupCalls, "invoice lookup hit once")
	assert.Equal(t, validation.OverallValid, run.Overall)
}

func TestOrchestrator_LiveCUITRejectionIsInvalid(t *testing.T) {
	f := newFixture(t)
	f.gateway.taxpayer = &afip.Taxpayer{CUIT: "20123456789", Name: "BAJA SA", Active: false}

	run, err := f.orch.ValidateDocument(context.Background(), sampleDocument())
	require.NoError(t, err)

	assert.Equal(t, validation.OverallInvalid, run.Overall)
	assert.False(t, run.CUITValidation.Valid)
	assert.Equal(t, validation.SeverityError, run.CUITValidation.Severity)
}

func TestOrchestrator_CachedCUITRejectionStaysInvalid(t *testing.T) {
	// The registry answer is cached after the first run. The replayed
	// rejection must carry the same verdict as the live one.
	f := newFixture(t)
	f.gateway.taxpayer = &afip.Taxpayer{CUIT: "20123456789", Name: "BAJA SA", Active: false}
	ctx := context.Background()

	cold, err := f.orch.ValidateDocument(ctx, sampleDocument())
	require.NoError(t, err)
	warm, err := f.orch.ValidateDocument(ctx, sampleDocument())
	require.NoError(t, err)

	assert.Equal(t, validation.OverallInvalid, cold.Overall)
	assert.False(t, cold.CUITValidation.FromCache)
	assert.Equal(t, validation.OverallInvalid, warm.Overall, "verdict must not change between cold and warm cache")
	assert.True(t, warm.CUITValidation.FromCache)
	assert.Equal(t, 1, f.gateway.taxpayerCalls, "registry hit once")
}

func TestOrchestrator_CAEMismatchIsInvalid(t *testing.T) {
	f := newFixture(t)
	f.gateway.lookupCAE = "99999999999999"

	run, err := f.orch.ValidateDocument(context.Background(), sampleDocument())
	require.NoError(t, err)

	assert.Equal(t, validation.OverallInvalid, run.Overall)
	assert.False(t, run.CAEValidation.Valid)
	assert.Contains(t, run.CAEValidation.Error, "does not match")
}

func TestOrchestrator_ConnectivityDegradesAndQueues(t *testing.T) {
	f := newFixture(t)
	connErr := validation.NewError(validation.KindConnectivity, "", "dial tcp: connection refused")
	f.gateway.taxpayerErr = connErr
	f.gateway.lookupErr = connErr

	run, err := f.orch.ValidateDocument(context.Background(), sampleDocument())
	require.NoError(t, err, "degraded runs still produce a verdict")

	// Check digit fallback: the sample CUIT fails it, warning severity only
	assert.False(t, run.CUITValidation.Valid)
	assert.Equal(t, validation.SeverityWarning, run.CUITValidation.Severity)
	// CAE falls back to the flagged estimate
	assert.True(t, run.CAEValidation.EstimatedValidation)
	assert.NotEqual(t, validation.OverallInvalid, run.Overall, "no live rejection happened")

	require.Equal(t, 1, f.queue.len(), "document queued for retry")
	item := f.queue.items[0]
	assert.Equal(t, "doc-1", item.DocumentID)
	assert.Equal(t, validation.QueueStatusPending, item.Status)

	var queued validation.DocumentData
	require.NoError(t, json.Unmarshal(item.Payload, &queued))
	assert.Equal(t, "doc-1", queued.ID)
}

func TestOrchestrator_DuplicateIsWarningNotInvalid(t *testing.T) {
	f := newFixture(t)
	f.docs.count = 2

	run, err := f.orch.ValidateDocument(context.Background(), sampleDocument())
	require.NoError(t, err)

	assert.Equal(t, validation.OverallValidWithWarnings, run.Overall)
	assert.True(t, run.DuplicateCheck.IsDuplicate)
	assert.Equal(t, int64(2), run.DuplicateCheck.DuplicateCount)
	assert.Equal(t, validation.SeverityWarning, run.DuplicateCheck.Severity)
}

func TestOrchestrator_TaxMismatchIsWarning(t *testing.T) {
	f := newFixture(t)
	doc := sampleDocument()
	doc.IVA = amount("15.00")

	run, err := f.orch.ValidateDocument(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, validation.OverallValidWithWarnings, run.Overall)
	require.Len(t, run.TaxConsistency.Issues, 1)
	assert.Equal(t, "iva_consistency", run.TaxConsistency.Issues[0].Type)
}

func TestOrchestrator_MissingIdentifiersAreWarnings(t *testing.T) {
	f := newFixture(t)
	doc := &validation.DocumentData{ID: "doc-bare", DocumentType: "receipt"}

	run, err := f.orch.ValidateDocument(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, validation.OverallValidWithWarnings, run.Overall)
	assert.False(t, run.CUITValidation.Valid)
	assert.Equal(t, validation.SeverityWarning, run.CUITValidation.Severity)
	assert.False(t, run.CAEValidation.Valid)
	assert.Equal(t, validation.SeverityWarning, run.CAEValidation.Severity)
	assert.Zero(t, f.gateway.taxpayerCalls, "no remote call without identifiers")
}

func TestOrchestrator_PersistenceFailurePropagates(t *testing.T) {
	f := newFixture(t)
	f.results.saveErr = validation.NewError(validation.KindPersistence, "", "insert failed")

	run, err := f.orch.ValidateDocument(context.Background(), sampleDocument())
	require.Error(t, err)
	assert.Nil(t, run)
	assert.Equal(t, validation.KindPersistence, validation.KindOf(err))
	assert.Equal(t, validation.DocumentStatusProcessing, f.docs.status("doc-1"),
		"unsaved run never completes the document")
}

func TestOrchestrator_RegistersDocumentForDuplicateTracking(t *testing.T) {
	t.Run("completed run lands the document in the read model", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.orch.ValidateDocument(context.Background(), sampleDocument())
		require.NoError(t, err)
		assert.Equal(t, validation.DocumentStatusCompleted, f.docs.status("doc-1"))
	})

	t.Run("registration failure aborts the run", func(t *testing.T) {
		f := newFixture(t)
		f.docs.upsertErr = validation.NewError(validation.KindPersistence, "", "save failed")

		run, err := f.orch.ValidateDocument(context.Background(), sampleDocument())
		require.Error(t, err)
		assert.Nil(t, run)
		assert.Equal(t, validation.KindPersistence, validation.KindOf(err))
		assert.Empty(t, f.results.runs)
	})
}

func TestOrchestrator_AggregateIsDeterministic(t *testing.T) {
	f := newFixture(t)
	run, err := f.orch.ValidateDocument(context.Background(), sampleDocument())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		assert.Equal(t, run.Overall, run.Aggregate())
	}
}

func TestOrchestrator_RevalidateReportsDegradation(t *testing.T) {
	f := newFixture(t)
	connErr := validation.NewError(validation.KindConnectivity, "", "timeout")
	f.gateway.taxpayerErr = connErr
	f.gateway.lookupErr = connErr

	run, err := f.orch.Revalidate(context.Background(), sampleDocument())
	require.Error(t, err)
	assert.True(t, validation.IsConnectivity(err))
	assert.NotNil(t, run, "degraded verdict still returned")
	assert.Zero(t, f.queue.len(), "revalidation never self-enqueues")
}
