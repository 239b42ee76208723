package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/facturasegura/backend/internal/domain/shared"
	"github.com/facturasegura/backend/internal/domain/validation"
	"github.com/facturasegura/backend/internal/infrastructure/persistence/models"
)

// GormResultRepository persists validation runs and their child results.
type GormResultRepository struct {
	db *gorm.DB
}

var _ validation.ResultRepository = (*GormResultRepository)(nil)

// NewGormResultRepository creates a repository over an open connection
func NewGormResultRepository(db *gorm.DB) *GormResultRepository {
	return &GormResultRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *GormResultRepository) WithTx(tx *gorm.DB) *GormResultRepository {
	return &GormResultRepository{db: tx}
}

// SaveRun persists the aggregate and its children in one transaction, so a
// run row without its child rows is never observable.
func (r *GormResultRepository) SaveRun(ctx context.Context, run *validation.AggregateResult) error {
	runModel, results := models.FromAggregate(run)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(runModel).Error; err != nil {
			return err
		}
		if len(results) > 0 {
			if err := tx.Create(&results).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return validation.WrapError(validation.KindPersistence, "saving validation run", err)
	}
	return nil
}

// FindLatestByDocumentID returns the most recent persisted run for a document
func (r *GormResultRepository) FindLatestByDocumentID(ctx context.Context, documentID string) (*validation.AggregateResult, error) {
	var runModel models.ValidationRunModel
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("started_at DESC").
		First(&runModel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, validation.WrapError(validation.KindPersistence, "loading validation run", err)
	}

	var results []models.ValidationResultModel
	if err := r.db.WithContext(ctx).Where("run_id = ?", runModel.ID).Find(&results).Error; err != nil {
		return nil, validation.WrapError(validation.KindPersistence, "loading validation results", err)
	}

	return models.ToAggregate(&runModel, results), nil
}

// StatsSince aggregates per-type counts, success rates and response times
// over the persisted child results.
func (r *GormResultRepository) StatsSince(ctx context.Context, since time.Time) ([]validation.TypeStats, error) {
	type row struct {
		ValidationType string
		Total          int64
		ValidCount     int64
		AvgResponseMs  float64
	}

	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.ValidationResultModel{}).
		Select("validation_type, COUNT(*) AS total, COUNT(*) FILTER (WHERE valid) AS valid_count, AVG(response_time_ms) AS avg_response_ms").
		Where("created_at >= ?", since).
		Group("validation_type").
		Order("validation_type").
		Scan(&rows).Error
	if err != nil {
		return nil, validation.WrapError(validation.KindPersistence, "aggregating validation stats", err)
	}

	stats := make([]validation.TypeStats, 0, len(rows))
	for _, rw := range rows {
		s := validation.TypeStats{
			ValidationType:    validation.Type(rw.ValidationType),
			Total:             rw.Total,
			ValidCount:        rw.ValidCount,
			AvgResponseTimeMs: rw.AvgResponseMs,
		}
		if rw.Total > 0 {
			s.SuccessRate = float64(rw.ValidCount) / float64(rw.Total)
		}
		stats = append(stats, s)
	}
	return stats, nil
}
