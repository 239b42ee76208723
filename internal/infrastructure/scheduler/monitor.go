package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/facturasegura/backend/internal/afip"
	"github.com/facturasegura/backend/internal/domain/validation"
	"github.com/facturasegura/backend/internal/infrastructure/config"
)

// probeTimeout bounds a single FEDummy round trip
const probeTimeout = 15 * time.Second

// Prober issues the synthetic availability check against the remote service
type Prober interface {
	Dummy(ctx context.Context) (*afip.FEDummyResult, error)
}

// ConnectivityMonitor periodically probes the fiscal web service and appends
// the outcome to the connectivity log. Probe outcomes are advisory; they
// never gate validation requests.
type ConnectivityMonitor struct {
	prober      Prober
	repo        validation.ConnectivityRepository
	logger      *zap.Logger
	cfg         config.MonitorConfig
	serviceName string

	lastMu sync.RWMutex
	last   *validation.ConnectivityRecord

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewConnectivityMonitor creates a monitor for the named service
func NewConnectivityMonitor(prober Prober, repo validation.ConnectivityRepository, serviceName string, cfg config.MonitorConfig, logger *zap.Logger) *ConnectivityMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectivityMonitor{
		prober:      prober,
		repo:        repo,
		logger:      logger,
		cfg:         cfg,
		serviceName: serviceName,
	}
}

// Start launches the probe loop. The first probe runs immediately so the
// status endpoint has data before the first interval elapses.
func (m *ConnectivityMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.isRunning {
		m.mu.Unlock()
		return nil
	}
	m.isRunning = true
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go m.run(ctx)

	m.logger.Info("connectivity monitor started",
		zap.String("service", m.serviceName),
		zap.Duration("interval", m.cfg.Interval),
	)
	return nil
}

// Stop gracefully stops the monitor
func (m *ConnectivityMonitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return nil
	}
	m.isRunning = false
	m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("connectivity monitor stopped gracefully")
		return nil
	case <-ctx.Done():
		m.logger.Warn("connectivity monitor stop timed out")
		return ctx.Err()
	}
}

// Status derives the current advisory health from the last probe. With no
// probe recorded yet the service is reported degraded.
func (m *ConnectivityMonitor) Status() string {
	m.lastMu.RLock()
	defer m.lastMu.RUnlock()

	if m.last != nil && m.last.Status == validation.ConnectivityOnline {
		return validation.ServiceHealthOnline
	}
	return validation.ServiceHealthDegraded
}

// LastRecord returns a copy of the most recent probe outcome, or nil
func (m *ConnectivityMonitor) LastRecord() *validation.ConnectivityRecord {
	m.lastMu.RLock()
	defer m.lastMu.RUnlock()

	if m.last == nil {
		return nil
	}
	rec := *m.last
	return &rec
}

func (m *ConnectivityMonitor) run(ctx context.Context) {
	defer m.wg.Done()

	m.probe(ctx)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *ConnectivityMonitor) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	result, err := m.prober.Dummy(ctx)
	elapsed := time.Since(start).Milliseconds()

	record := &validation.ConnectivityRecord{
		ServiceName:    m.serviceName,
		ResponseTimeMs: &elapsed,
		CheckedAt:      time.Now().UTC(),
	}

	switch {
	case err != nil:
		record.Status = validation.ConnectivityOffline
		record.ErrorMessage = err.Error()
		record.ResponseTimeMs = nil
		m.logger.Warn("connectivity probe failed",
			zap.String("service", m.serviceName),
			zap.Error(err),
		)
	case !result.OK():
		record.Status = validation.ConnectivityOffline
		record.ErrorMessage = "service reported degraded infrastructure"
		m.logger.Warn("connectivity probe degraded",
			zap.String("service", m.serviceName),
			zap.String("app_server", result.AppServer),
			zap.String("db_server", result.DbServer),
			zap.String("auth_server", result.AuthServer),
		)
	default:
		record.Status = validation.ConnectivityOnline
		m.logger.Debug("connectivity probe ok",
			zap.String("service", m.serviceName),
			zap.Int64("response_time_ms", elapsed),
		)
	}

	m.lastMu.Lock()
	m.last = record
	m.lastMu.Unlock()

	if appendErr := m.repo.Append(ctx, record); appendErr != nil {
		m.logger.Error("failed to append connectivity record", zap.Error(appendErr))
	}
}
