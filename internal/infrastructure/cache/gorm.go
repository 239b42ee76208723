package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/facturasegura/backend/internal/domain/validation"
	"github.com/facturasegura/backend/internal/infrastructure/persistence/models"
)

// GormStore is the database-backed cache tier. It survives restarts and is
// the persistent half of TieredStore. Expiry is lazy: expired rows are
// deleted when read.
type GormStore struct {
	db     *gorm.DB
	policy TTLPolicy
	now    func() time.Time
}

var _ validation.CacheStore = (*GormStore)(nil)

// GormStoreOption configures a GormStore.
type GormStoreOption func(*GormStore)

// WithGormClock overrides the time source, used by TTL tests.
func WithGormClock(now func() time.Time) GormStoreOption {
	return func(s *GormStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewGormStore creates a database-backed store over an open connection.
func NewGormStore(db *gorm.DB, policy TTLPolicy, opts ...GormStoreOption) *GormStore {
	s := &GormStore{db: db, policy: policy, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the cached value, deleting and missing on expired rows.
func (s *GormStore) Get(ctx context.Context, key string, _ validation.CacheType) (json.RawMessage, bool, error) {
	var entry models.CacheEntryModel
	err := s.db.WithContext(ctx).Where("cache_key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, validation.WrapError(validation.KindCache, "cache select", err)
	}

	if !s.now().Before(entry.ExpiresAt) {
		if err := s.db.WithContext(ctx).Delete(&models.CacheEntryModel{}, "cache_key = ?", key).Error; err != nil {
			return nil, false, validation.WrapError(validation.KindCache, "cache expire", err)
		}
		return nil, false, nil
	}
	return json.RawMessage(entry.Value), true, nil
}

// Set upserts the value with the TTL of its cache type.
func (s *GormStore) Set(ctx context.Context, key string, value json.RawMessage, ctype validation.CacheType) error {
	now := s.now()
	entry := models.CacheEntryModel{
		ID:        uuid.New(),
		CacheKey:  key,
		CacheType: string(ctype),
		Value:     string(value),
		ExpiresAt: now.Add(s.policy.TTLFor(ctype)),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"cache_type", "value", "expires_at", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return validation.WrapError(validation.KindCache, "cache upsert", err)
	}
	return nil
}

// Clear removes entries whose keys match the glob pattern, translated to a
// SQL LIKE expression.
func (s *GormStore) Clear(ctx context.Context, pattern string) error {
	tx := s.db.WithContext(ctx)
	var err error
	if pattern == "" || pattern == "*" {
		err = tx.Where("1 = 1").Delete(&models.CacheEntryModel{}).Error
	} else {
		like := strings.ReplaceAll(strings.ReplaceAll(pattern, "%", `\%`), "*", "%")
		err = tx.Where("cache_key LIKE ?", like).Delete(&models.CacheEntryModel{}).Error
	}
	if err != nil {
		return validation.WrapError(validation.KindCache, "cache clear", err)
	}
	return nil
}
