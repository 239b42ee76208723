// Package validation orchestrates the per-document validation run: four
// concurrent sub-checks, one aggregated verdict, transactional persistence
// and lifecycle events.
package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/facturasegura/backend/internal/afip"
	"github.com/facturasegura/backend/internal/domain/shared"
	"github.com/facturasegura/backend/internal/domain/validation"
	"github.com/facturasegura/backend/internal/infrastructure/config"
)

// Authenticator supplies session credentials for the remote services
type Authenticator interface {
	Authenticate(ctx context.Context, serviceName string) (*afip.Credential, error)
	Invalidate(serviceName string)
}

// Gateway is the subset of remote operations the orchestrator consumes
type Gateway interface {
	GetTaxpayer(ctx context.Context, cred *afip.Credential, cuit string) (*afip.Taxpayer, error)
	LookupInvoice(ctx context.Context, cred *afip.Credential, invoiceType, pointOfSale int, number int64) (*afip.FECompConsultarResult, error)
}

// Orchestrator runs the four sub-validations concurrently over one document
// and derives the aggregate verdict. Sub-check failures are isolated: one
// failing check never prevents its siblings from completing.
type Orchestrator struct {
	gateway     Gateway
	creds       Authenticator
	cache       validation.CacheStore
	results     validation.ResultRepository
	documents   validation.DocumentRepository
	queue       validation.QueueRepository
	bus         shared.EventPublisher
	serviceName string
	retryCfg    config.RetryQueueConfig
	logger      *zap.Logger
}

// OrchestratorOption configures an Orchestrator
type OrchestratorOption func(*Orchestrator)

func WithOrchestratorLogger(logger *zap.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOrchestrator creates the validation orchestrator
func NewOrchestrator(
	gateway Gateway,
	creds Authenticator,
	cache validation.CacheStore,
	results validation.ResultRepository,
	documents validation.DocumentRepository,
	queue validation.QueueRepository,
	bus shared.EventPublisher,
	serviceName string,
	retryCfg config.RetryQueueConfig,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		gateway:     gateway,
		creds:       creds,
		cache:       cache,
		results:     results,
		documents:   documents,
		queue:       queue,
		bus:         bus,
		serviceName: serviceName,
		retryCfg:    retryCfg,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ValidateDocument runs a full validation over doc. Connectivity-degraded
// runs still produce a verdict; the document is additionally enqueued for
// later replay. Only persistence failures surface as errors.
func (o *Orchestrator) ValidateDocument(ctx context.Context, doc *validation.DocumentData) (*validation.AggregateResult, error) {
	run, degraded, err := o.validate(ctx, doc)
	if err != nil {
		return nil, err
	}
	if degraded {
		o.enqueueRetry(ctx, doc)
	}
	return run, nil
}

// Revalidate re-runs a queued document. Unlike ValidateDocument it never
// re-enqueues on connectivity trouble; instead the degradation is reported
// to the caller so the retry service controls the backoff.
func (o *Orchestrator) Revalidate(ctx context.Context, doc *validation.DocumentData) (*validation.AggregateResult, error) {
	run, degraded, err := o.validate(ctx, doc)
	if err != nil {
		return nil, err
	}
	if degraded {
		return run, validation.NewError(validation.KindConnectivity, "degraded",
			fmt.Sprintf("validation of document %s degraded by remote connectivity", doc.ID))
	}
	return run, nil
}

func (o *Orchestrator) validate(ctx context.Context, doc *validation.DocumentData) (*validation.AggregateResult, bool, error) {
	started := time.Now()
	run := &validation.AggregateResult{
		ValidationID: uuid.New(),
		DocumentID:   doc.ID,
		Overall:      validation.OverallPending,
		Errors:       []validation.Issue{},
		StartedAt:    started,
	}
	o.publish(ctx, validation.NewStartedEvent(doc.ID))

	// Register the document up front so later runs over other documents can
	// count this one as a duplicate once it completes.
	if err := o.documents.Upsert(ctx, doc, validation.DocumentStatusProcessing); err != nil {
		o.logger.Error("failed to register document",
			zap.String("document_id", doc.ID),
			zap.Error(err))
		o.publish(ctx, validation.NewErrorEvent(doc.ID, err.Error(), false))
		return nil, false, err
	}

	var (
		mu       sync.Mutex
		degraded bool
		wg       sync.WaitGroup
	)
	fail := func(vtype validation.Type, severity validation.Severity, err error) {
		mu.Lock()
		defer mu.Unlock()
		run.Errors = append(run.Errors, validation.Issue{
			Type:     vtype,
			Message:  err.Error(),
			Severity: severity,
		})
	}
	settle := func(vtype validation.Type, checkDegraded bool, err error) {
		if checkDegraded {
			mu.Lock()
			degraded = true
			mu.Unlock()
		}
		if err == nil {
			return
		}
		// Connectivity trouble is warning-level and queued for replay,
		// never an immediate invalid verdict.
		if validation.IsConnectivity(err) {
			mu.Lock()
			degraded = true
			mu.Unlock()
			fail(vtype, validation.SeverityWarning, err)
			return
		}
		fail(vtype, validation.SeverityError, err)
	}

	wg.Add(4)
	go func() {
		defer wg.Done()
		result, checkDegraded, err := o.checkCUIT(ctx, doc)
		run.CUITValidation = result
		settle(validation.TypeCUIT, checkDegraded, err)
	}()
	go func() {
		defer wg.Done()
		result, checkDegraded, err := o.checkCAE(ctx, doc)
		run.CAEValidation = result
		settle(validation.TypeCAE, checkDegraded, err)
	}()
	go func() {
		defer wg.Done()
		result, err := o.checkDuplicate(ctx, doc)
		run.DuplicateCheck = result
		settle(validation.TypeDuplicate, false, err)
	}()
	go func() {
		defer wg.Done()
		run.TaxConsistency = o.checkTax(doc)
	}()
	wg.Wait()

	run.CompletedAt = time.Now()
	run.ProcessingTimeMs = run.CompletedAt.Sub(started).Milliseconds()
	run.Overall = run.Aggregate()

	if err := o.results.SaveRun(ctx, run); err != nil {
		o.logger.Error("failed to persist validation run",
			zap.String("document_id", doc.ID),
			zap.Error(err))
		o.publish(ctx, validation.NewErrorEvent(doc.ID, err.Error(), false))
		return nil, false, err
	}
	if err := o.documents.MarkCompleted(ctx, doc.ID); err != nil {
		o.logger.Warn("failed to mark document completed",
			zap.String("document_id", doc.ID),
			zap.Error(err))
	}

	o.publish(ctx, validation.NewCompletedEvent(doc.ID, run.Overall, run.ProcessingTimeMs))
	o.logger.Info("validation run completed",
		zap.String("document_id", doc.ID),
		zap.String("overall", run.Overall.String()),
		zap.Int64("processing_time_ms", run.ProcessingTimeMs),
		zap.Bool("degraded", degraded))
	return run, degraded, nil
}

// enqueueRetry queues doc for replay after the base delay. Enqueue failures
// are logged only; the caller already holds a usable (degraded) verdict.
func (o *Orchestrator) enqueueRetry(ctx context.Context, doc *validation.DocumentData) {
	payload, err := json.Marshal(doc)
	if err != nil {
		o.logger.Error("failed to serialize retry payload",
			zap.String("document_id", doc.ID),
			zap.Error(err))
		return
	}
	item := validation.NewRetryQueueItem(doc.ID, payload, 0, o.retryCfg.BaseDelay)
	if err := o.queue.Insert(ctx, item); err != nil {
		o.logger.Error("failed to enqueue document for retry",
			zap.String("document_id", doc.ID),
			zap.Error(err))
		return
	}
	o.publish(ctx, validation.NewErrorEvent(doc.ID, "degraded by remote connectivity, queued for retry", true))
	o.logger.Warn("document queued for retry",
		zap.String("document_id", doc.ID),
		zap.Time("next_retry_at", item.NextRetryAt))
}

func (o *Orchestrator) publish(ctx context.Context, evt shared.DomainEvent) {
	if o.bus == nil {
		return
	}
	if err := o.bus.Publish(ctx, evt); err != nil {
		o.logger.Warn("failed to publish event",
			zap.String("event_type", evt.EventType()),
			zap.Error(err))
	}
}
