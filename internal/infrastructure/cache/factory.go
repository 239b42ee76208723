package cache

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/facturasegura/backend/internal/domain/validation"
	"github.com/facturasegura/backend/internal/infrastructure/config"
)

// StoreFactory builds the cache store selected by configuration.
type StoreFactory struct {
	cfg    *config.Config
	db     *gorm.DB
	logger *zap.Logger
}

// StoreFactoryOption is a functional option for configuring the factory
type StoreFactoryOption func(*StoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) StoreFactoryOption {
	return func(f *StoreFactory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewStoreFactory creates a factory. db may be nil when the configured
// backend does not need the database.
func NewStoreFactory(cfg *config.Config, db *gorm.DB, opts ...StoreFactoryOption) *StoreFactory {
	f := &StoreFactory{cfg: cfg, db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore builds the configured backend:
//   - memory:   in-process only
//   - redis:    Redis only
//   - postgres: database only
//   - tiered:   memory over Redis, falling back to memory over the database
//     when Redis is unreachable
func (f *StoreFactory) CreateStore() (validation.CacheStore, error) {
	policy := PolicyFromConfig(f.cfg.Cache)

	switch f.cfg.Cache.Backend {
	case "memory":
		return NewMemoryStore(policy), nil

	case "redis":
		store, err := NewRedisStore(f.cfg.Redis, policy)
		if err != nil {
			return nil, fmt.Errorf("creating redis cache store: %w", err)
		}
		return store, nil

	case "postgres":
		if f.db == nil {
			return nil, fmt.Errorf("postgres cache backend requires a database connection")
		}
		return NewGormStore(f.db, policy), nil

	case "tiered":
		persistent, err := f.persistentTier(policy)
		if err != nil {
			return nil, err
		}
		return NewTieredStore(NewMemoryStore(policy), persistent, f.logger), nil

	default:
		return nil, fmt.Errorf("unknown cache backend %q", f.cfg.Cache.Backend)
	}
}

func (f *StoreFactory) persistentTier(policy TTLPolicy) (validation.CacheStore, error) {
	store, err := NewRedisStore(f.cfg.Redis, policy)
	if err == nil {
		f.logger.Info("using redis as the persistent cache tier")
		return store, nil
	}

	if f.db == nil {
		return nil, fmt.Errorf("redis unavailable and no database for the persistent cache tier: %w", err)
	}
	f.logger.Warn("redis unavailable, using the database as the persistent cache tier",
		zap.Error(err))
	return NewGormStore(f.db, policy), nil
}
