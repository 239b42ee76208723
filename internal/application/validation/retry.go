package validation

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/facturasegura/backend/internal/domain/validation"
	"github.com/facturasegura/backend/internal/infrastructure/config"
)

// Revalidator re-runs a queued document through the orchestrator
type Revalidator interface {
	Revalidate(ctx context.Context, doc *validation.DocumentData) (*validation.AggregateResult, error)
}

// RetryService drains the persisted retry queue: due items are re-validated
// and either completed, re-queued with exponential backoff, or failed once
// the attempt budget is exhausted.
type RetryService struct {
	queue     validation.QueueRepository
	validator Revalidator
	cfg       config.RetryQueueConfig
	logger    *zap.Logger
	scanning  atomic.Bool
}

// RetryServiceOption configures a RetryService
type RetryServiceOption func(*RetryService)

func WithRetryLogger(logger *zap.Logger) RetryServiceOption {
	return func(s *RetryService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewRetryService creates the retry queue service
func NewRetryService(queue validation.QueueRepository, validator Revalidator, cfg config.RetryQueueConfig, opts ...RetryServiceOption) *RetryService {
	s := &RetryService{
		queue:     queue,
		validator: validator,
		cfg:       cfg,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue queues a document for replay after the base delay
func (s *RetryService) Enqueue(ctx context.Context, documentID string, payload json.RawMessage, priority int) (*validation.RetryQueueItem, error) {
	item := validation.NewRetryQueueItem(documentID, payload, priority, s.cfg.BaseDelay)
	if err := s.queue.Insert(ctx, item); err != nil {
		return nil, err
	}
	s.logger.Info("document enqueued for retry",
		zap.String("document_id", documentID),
		zap.Int("priority", priority),
		zap.Time("next_retry_at", item.NextRetryAt))
	return item, nil
}

// ProcessQueue processes one batch of due items. Scans are single-flight; a
// call arriving while another scan runs returns immediately with zero.
func (s *RetryService) ProcessQueue(ctx context.Context) (int, error) {
	if !s.scanning.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer s.scanning.Store(false)

	items, err := s.queue.DueItems(ctx, time.Now(), s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range items {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		s.processItem(ctx, &items[i])
		processed++
	}
	return processed, nil
}

// processItem replays one queued document. Re-processing is idempotent: it
// only re-derives and re-persists results.
func (s *RetryService) processItem(ctx context.Context, item *validation.RetryQueueItem) {
	item.Status = validation.QueueStatusProcessing
	item.Attempts++
	item.UpdatedAt = time.Now()
	if err := s.queue.Update(ctx, item); err != nil {
		s.logger.Error("failed to claim queue item",
			zap.String("item_id", item.ID.String()),
			zap.Error(err))
		return
	}

	var doc validation.DocumentData
	if err := json.Unmarshal(item.Payload, &doc); err != nil {
		s.logger.Error("discarding queue item with undecodable payload",
			zap.String("item_id", item.ID.String()),
			zap.Error(err))
		s.finalize(ctx, item, validation.QueueStatusFailed)
		return
	}

	run, err := s.validator.Revalidate(ctx, &doc)
	if err == nil {
		s.logger.Info("retried validation succeeded",
			zap.String("document_id", item.DocumentID),
			zap.String("overall", run.Overall.String()),
			zap.Int("attempts", item.Attempts))
		s.finalize(ctx, item, validation.QueueStatusCompleted)
		return
	}

	if item.Attempts >= s.cfg.MaxAttempts {
		s.logger.Warn("retry budget exhausted",
			zap.String("document_id", item.DocumentID),
			zap.Int("attempts", item.Attempts),
			zap.Error(err))
		s.finalize(ctx, item, validation.QueueStatusFailed)
		return
	}

	delay := validation.NextRetryDelay(item.Attempts, s.cfg.BaseDelay, s.cfg.MaxDelay)
	item.Status = validation.QueueStatusPending
	item.NextRetryAt = time.Now().Add(delay)
	item.UpdatedAt = time.Now()
	if updateErr := s.queue.Update(ctx, item); updateErr != nil {
		s.logger.Error("failed to re-queue item",
			zap.String("item_id", item.ID.String()),
			zap.Error(updateErr))
		return
	}
	s.logger.Info("validation re-queued",
		zap.String("document_id", item.DocumentID),
		zap.Int("attempts", item.Attempts),
		zap.Duration("delay", delay),
		zap.Error(err))
}

func (s *RetryService) finalize(ctx context.Context, item *validation.RetryQueueItem, status validation.QueueStatus) {
	item.Status = status
	item.UpdatedAt = time.Now()
	if err := s.queue.Update(ctx, item); err != nil {
		s.logger.Error("failed to finalize queue item",
			zap.String("item_id", item.ID.String()),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}

// QueueSummary is the introspection view of the retry queue
type QueueSummary struct {
	Counts map[validation.QueueStatus]int64 `json:"counts"`
	Items  []validation.RetryQueueItem      `json:"items"`
}

// Summary returns per-status counts plus the items in one status. An empty
// status lists pending items.
func (s *RetryService) Summary(ctx context.Context, status validation.QueueStatus, limit int) (*QueueSummary, error) {
	if status == "" {
		status = validation.QueueStatusPending
	}
	counts, err := s.queue.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.queue.FindByStatus(ctx, status, limit)
	if err != nil {
		return nil, err
	}
	return &QueueSummary{Counts: counts, Items: items}, nil
}
