package cache

import (
	"context"
	"encoding/json"
	"path"
	"sync"
	"time"

	"github.com/facturasegura/backend/internal/domain/validation"
)

// cleanupInterval is how often the background sweep removes expired entries.
// Reads never depend on the sweep; expiry is also checked lazily on Get.
const cleanupInterval = 5 * time.Minute

type memoryEntry struct {
	value     json.RawMessage
	expiresAt time.Time
}

// MemoryStore is the in-process cache tier. Suitable on its own for
// single-instance deployments and as the fast tier of TieredStore.
type MemoryStore struct {
	policy TTLPolicy
	now    func() time.Time

	mu        sync.RWMutex
	entries   map[string]memoryEntry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ validation.CacheStore = (*MemoryStore)(nil)

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithMemoryClock overrides the time source, used by TTL tests.
func WithMemoryClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates an in-memory store and starts its cleanup sweep.
func NewMemoryStore(policy TTLPolicy, opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		policy:   policy,
		now:      time.Now,
		entries:  make(map[string]memoryEntry),
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.cleanupLoop()
	return s
}

// Get returns the cached value, treating expired entries as misses.
func (s *MemoryStore) Get(_ context.Context, key string, _ validation.CacheType) (json.RawMessage, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || !s.now().Before(entry.expiresAt) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores the value with the TTL of its cache type.
func (s *MemoryStore) Set(_ context.Context, key string, value json.RawMessage, ctype validation.CacheType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{
		value:     value,
		expiresAt: s.now().Add(s.policy.TTLFor(ctype)),
	}
	return nil
}

// Clear removes entries whose keys match the glob pattern. An empty pattern
// or "*" clears everything.
func (s *MemoryStore) Clear(_ context.Context, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pattern == "" || pattern == "*" {
		s.entries = make(map[string]memoryEntry)
		return nil
	}
	for key := range s.entries {
		if ok, err := path.Match(pattern, key); err == nil && ok {
			delete(s.entries, key)
		}
	}
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *MemoryStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			now := s.now()
			s.mu.Lock()
			for key, entry := range s.entries {
				if !now.Before(entry.expiresAt) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		}
	}
}
