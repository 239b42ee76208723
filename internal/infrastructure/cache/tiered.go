package cache

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/facturasegura/backend/internal/domain/validation"
)

// TieredStore layers a fast in-process tier over a persistent one. Reads
// check memory first and backfill it on a persistent hit; writes go to both.
// A persistent-tier failure on read degrades to a miss so callers fall
// through to live lookups.
type TieredStore struct {
	fast       validation.CacheStore
	persistent validation.CacheStore
	logger     *zap.Logger
}

var _ validation.CacheStore = (*TieredStore)(nil)

// NewTieredStore combines a fast tier and a persistent tier.
func NewTieredStore(fast, persistent validation.CacheStore, logger *zap.Logger) *TieredStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TieredStore{fast: fast, persistent: persistent, logger: logger}
}

// Get checks the fast tier, then the persistent tier with backfill.
func (s *TieredStore) Get(ctx context.Context, key string, ctype validation.CacheType) (json.RawMessage, bool, error) {
	if value, found, err := s.fast.Get(ctx, key, ctype); err == nil && found {
		return value, true, nil
	}

	value, found, err := s.persistent.Get(ctx, key, ctype)
	if err != nil {
		s.logger.Warn("persistent cache tier read failed",
			zap.String("key", key),
			zap.Error(err))
		return nil, false, nil
	}
	if !found {
		return nil, false, nil
	}

	if err := s.fast.Set(ctx, key, value, ctype); err != nil {
		s.logger.Warn("cache backfill failed", zap.String("key", key), zap.Error(err))
	}
	return value, true, nil
}

// Set writes to both tiers. The persistent tier's error wins because losing
// it means the entry will not survive a restart.
func (s *TieredStore) Set(ctx context.Context, key string, value json.RawMessage, ctype validation.CacheType) error {
	if err := s.fast.Set(ctx, key, value, ctype); err != nil {
		s.logger.Warn("fast cache tier write failed", zap.String("key", key), zap.Error(err))
	}
	return s.persistent.Set(ctx, key, value, ctype)
}

// Clear clears both tiers.
func (s *TieredStore) Clear(ctx context.Context, pattern string) error {
	if err := s.fast.Clear(ctx, pattern); err != nil {
		s.logger.Warn("fast cache tier clear failed", zap.Error(err))
	}
	return s.persistent.Clear(ctx, pattern)
}
