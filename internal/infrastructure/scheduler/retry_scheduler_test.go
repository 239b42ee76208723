package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/facturasegura/backend/internal/domain/validation"
	"github.com/facturasegura/backend/internal/infrastructure/config"
)

// fakeProcessor counts scans and can simulate slow drains
type fakeProcessor struct {
	calls   atomic.Int32
	active  atomic.Int32
	overlap atomic.Bool
	delay   time.Duration
}

func (p *fakeProcessor) ProcessQueue(ctx context.Context) (int, error) {
	if p.active.Add(1) > 1 {
		p.overlap.Store(true)
	}
	defer p.active.Add(-1)

	p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
		}
	}
	return 1, nil
}

// fakeQueueRepo implements only what the scheduler touches
type fakeQueueRepo struct {
	mu       sync.Mutex
	released int
	cutoffs  []time.Time
}

func (r *fakeQueueRepo) Insert(context.Context, *validation.RetryQueueItem) error { return nil }
func (r *fakeQueueRepo) Update(context.Context, *validation.RetryQueueItem) error { return nil }
func (r *fakeQueueRepo) DueItems(context.Context, time.Time, int) ([]validation.RetryQueueItem, error) {
	return nil, nil
}
func (r *fakeQueueRepo) FindByStatus(context.Context, validation.QueueStatus, int) ([]validation.RetryQueueItem, error) {
	return nil, nil
}
func (r *fakeQueueRepo) CountByStatus(context.Context) (map[validation.QueueStatus]int64, error) {
	return nil, nil
}
func (r *fakeQueueRepo) ReleaseStale(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released++
	r.cutoffs = append(r.cutoffs, cutoff)
	return 1, nil
}

func testRetryConfig(scan time.Duration) config.RetryQueueConfig {
	return config.RetryQueueConfig{
		MaxAttempts:  3,
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		ScanInterval: scan,
		BatchSize:    10,
		StaleAfter:   10 * time.Minute,
	}
}

func TestRetryScheduler_DrainsOnInterval(t *testing.T) {
	processor := &fakeProcessor{}
	sched := NewRetryScheduler(processor, &fakeQueueRepo{}, testRetryConfig(20*time.Millisecond), zap.NewNop())

	require.NoError(t, sched.Start(context.Background()))
	time.Sleep(110 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sched.Stop(stopCtx))

	assert.GreaterOrEqual(t, processor.calls.Load(), int32(3))
}

func TestRetryScheduler_ScansNeverOverlap(t *testing.T) {
	// drain takes far longer than the tick; overlapping would be caught
	processor := &fakeProcessor{delay: 60 * time.Millisecond}
	sched := NewRetryScheduler(processor, &fakeQueueRepo{}, testRetryConfig(10*time.Millisecond), zap.NewNop())

	require.NoError(t, sched.Start(context.Background()))
	time.Sleep(150 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sched.Stop(stopCtx))

	assert.False(t, processor.overlap.Load(), "concurrent scans detected")
	assert.GreaterOrEqual(t, processor.calls.Load(), int32(1))
}

func TestRetryScheduler_StartIsIdempotent(t *testing.T) {
	processor := &fakeProcessor{}
	sched := NewRetryScheduler(processor, &fakeQueueRepo{}, testRetryConfig(time.Hour), zap.NewNop())

	require.NoError(t, sched.Start(context.Background()))
	require.NoError(t, sched.Start(context.Background()))

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sched.Stop(stopCtx))
	require.NoError(t, sched.Stop(stopCtx))
}
