package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/facturasegura/backend/internal/domain/shared"
	"github.com/facturasegura/backend/internal/domain/validation"
	"github.com/facturasegura/backend/internal/infrastructure/persistence/models"
)

// GormConnectivityRepository appends and reads the probe log.
type GormConnectivityRepository struct {
	db *gorm.DB
}

var _ validation.ConnectivityRepository = (*GormConnectivityRepository)(nil)

// NewGormConnectivityRepository creates a repository over an open connection
func NewGormConnectivityRepository(db *gorm.DB) *GormConnectivityRepository {
	return &GormConnectivityRepository{db: db}
}

// Append stores one probe outcome
func (r *GormConnectivityRepository) Append(ctx context.Context, record *validation.ConnectivityRecord) error {
	var m models.ConnectivityLogModel
	m.FromDomain(record)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return validation.WrapError(validation.KindPersistence, "appending connectivity record", err)
	}
	return nil
}

// Latest returns the newest probe outcome for one service
func (r *GormConnectivityRepository) Latest(ctx context.Context, serviceName string) (*validation.ConnectivityRecord, error) {
	var m models.ConnectivityLogModel
	err := r.db.WithContext(ctx).
		Where("service_name = ?", serviceName).
		Order("checked_at DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, validation.WrapError(validation.KindPersistence, "loading connectivity record", err)
	}
	return m.ToDomain(), nil
}

// LatestAll returns the newest probe outcome per tracked service
func (r *GormConnectivityRepository) LatestAll(ctx context.Context) ([]validation.ConnectivityRecord, error) {
	var rows []models.ConnectivityLogModel
	err := r.db.WithContext(ctx).
		Raw(`SELECT DISTINCT ON (service_name) *
		     FROM connectivity_log
		     ORDER BY service_name, checked_at DESC`).
		Scan(&rows).Error
	if err != nil {
		return nil, validation.WrapError(validation.KindPersistence, "loading connectivity records", err)
	}

	records := make([]validation.ConnectivityRecord, 0, len(rows))
	for i := range rows {
		records = append(records, *rows[i].ToDomain())
	}
	return records, nil
}
