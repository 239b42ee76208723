// Package scheduler runs the background loops: the retry queue drain and
// the connectivity monitor.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/facturasegura/backend/internal/domain/validation"
	"github.com/facturasegura/backend/internal/infrastructure/config"
)

// staleReaperInterval is how often stranded processing items are checked
const staleReaperInterval = time.Minute

// QueueProcessor drains due retry queue items. Implemented by the
// application layer's retry service.
type QueueProcessor interface {
	// ProcessQueue processes one batch of due items and reports how many
	ProcessQueue(ctx context.Context) (int, error)
}

// RetryScheduler periodically drains the retry queue and reverts stale
// processing items. Scans are single-flight: a slow drain is never
// overlapped by the next tick.
type RetryScheduler struct {
	processor QueueProcessor
	queueRepo validation.QueueRepository
	logger    *zap.Logger
	cfg       config.RetryQueueConfig

	scanning  atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewRetryScheduler creates a scheduler over the queue processor
func NewRetryScheduler(processor QueueProcessor, queueRepo validation.QueueRepository, cfg config.RetryQueueConfig, logger *zap.Logger) *RetryScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryScheduler{
		processor: processor,
		queueRepo: queueRepo,
		logger:    logger,
		cfg:       cfg,
	}
}

// Start launches the drain and reaper loops
func (s *RetryScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(2)
	go s.runDrain(ctx)
	go s.runStaleReaper(ctx)

	s.logger.Info("retry scheduler started",
		zap.Duration("scan_interval", s.cfg.ScanInterval),
		zap.Int("batch_size", s.cfg.BatchSize),
	)
	return nil
}

// Stop gracefully stops the scheduler
func (s *RetryScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("retry scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("retry scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *RetryScheduler) runDrain(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.drainOnce(ctx)
		}
	}
}

// drainOnce runs one scan unless a previous one is still in flight
func (s *RetryScheduler) drainOnce(ctx context.Context) {
	if !s.scanning.CompareAndSwap(false, true) {
		s.logger.Debug("previous queue scan still running, skipping tick")
		return
	}
	defer s.scanning.Store(false)

	processed, err := s.processor.ProcessQueue(ctx)
	if err != nil {
		s.logger.Error("queue scan failed", zap.Error(err))
		return
	}
	if processed > 0 {
		s.logger.Info("queue scan completed", zap.Int("processed", processed))
	}
}

func (s *RetryScheduler) runStaleReaper(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(staleReaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.cfg.StaleAfter)
			released, err := s.queueRepo.ReleaseStale(ctx, cutoff)
			if err != nil {
				s.logger.Error("stale queue reaper failed", zap.Error(err))
				continue
			}
			if released > 0 {
				s.logger.Warn("released stranded queue items",
					zap.Int64("count", released),
					zap.Duration("stale_after", s.cfg.StaleAfter),
				)
			}
		}
	}
}
