package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/facturasegura/backend/internal/domain/validation"
	"github.com/facturasegura/backend/internal/infrastructure/persistence/models"
)

// GormQueueRepository persists retry queue items.
type GormQueueRepository struct {
	db *gorm.DB
}

var _ validation.QueueRepository = (*GormQueueRepository)(nil)

// NewGormQueueRepository creates a repository over an open connection
func NewGormQueueRepository(db *gorm.DB) *GormQueueRepository {
	return &GormQueueRepository{db: db}
}

// Insert stores a new queue item
func (r *GormQueueRepository) Insert(ctx context.Context, item *validation.RetryQueueItem) error {
	var m models.ValidationQueueModel
	m.FromDomain(item)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return validation.WrapError(validation.KindPersistence, "inserting queue item", err)
	}
	return nil
}

// Update rewrites an existing queue item
func (r *GormQueueRepository) Update(ctx context.Context, item *validation.RetryQueueItem) error {
	var m models.ValidationQueueModel
	item.UpdatedAt = time.Now()
	m.FromDomain(item)
	result := r.db.WithContext(ctx).Model(&models.ValidationQueueModel{}).
		Where("id = ?", m.ID).
		Updates(map[string]any{
			"attempts":      m.Attempts,
			"status":        m.Status,
			"next_retry_at": m.NextRetryAt,
			"updated_at":    m.UpdatedAt,
		})
	if result.Error != nil {
		return validation.WrapError(validation.KindPersistence, "updating queue item", result.Error)
	}
	return nil
}

// DueItems returns up to limit pending items whose retry time has elapsed,
// highest priority first, oldest first within a priority.
func (r *GormQueueRepository) DueItems(ctx context.Context, now time.Time, limit int) ([]validation.RetryQueueItem, error) {
	var rows []models.ValidationQueueModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at <= ?", string(validation.QueueStatusPending), now).
		Order("priority DESC, created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, validation.WrapError(validation.KindPersistence, "loading due queue items", err)
	}
	return toDomainItems(rows), nil
}

// FindByStatus returns up to limit items in the given lifecycle state
func (r *GormQueueRepository) FindByStatus(ctx context.Context, status validation.QueueStatus, limit int) ([]validation.RetryQueueItem, error) {
	var rows []models.ValidationQueueModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, validation.WrapError(validation.KindPersistence, "loading queue items by status", err)
	}
	return toDomainItems(rows), nil
}

// CountByStatus returns the number of items per lifecycle state
func (r *GormQueueRepository) CountByStatus(ctx context.Context) (map[validation.QueueStatus]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.ValidationQueueModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, validation.WrapError(validation.KindPersistence, "counting queue items", err)
	}

	counts := make(map[validation.QueueStatus]int64, len(rows))
	for _, rw := range rows {
		counts[validation.QueueStatus(rw.Status)] = rw.Count
	}
	return counts, nil
}

// ReleaseStale reverts processing items older than cutoff to pending so a
// crashed worker never strands them.
func (r *GormQueueRepository) ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ValidationQueueModel{}).
		Where("status = ? AND updated_at < ?", string(validation.QueueStatusProcessing), cutoff).
		Updates(map[string]any{
			"status":     string(validation.QueueStatusPending),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return 0, validation.WrapError(validation.KindPersistence, "releasing stale queue items", result.Error)
	}
	return result.RowsAffected, nil
}

func toDomainItems(rows []models.ValidationQueueModel) []validation.RetryQueueItem {
	items := make([]validation.RetryQueueItem, 0, len(rows))
	for i := range rows {
		items = append(items, *rows[i].ToDomain())
	}
	return items
}
