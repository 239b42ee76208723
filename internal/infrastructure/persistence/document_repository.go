package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/facturasegura/backend/internal/domain/validation"
	"github.com/facturasegura/backend/internal/infrastructure/persistence/models"
)

// GormDocumentRepository reads and writes the processed-document read model.
type GormDocumentRepository struct {
	db *gorm.DB
}

var _ validation.DocumentRepository = (*GormDocumentRepository)(nil)

// NewGormDocumentRepository creates a repository over an open connection
func NewGormDocumentRepository(db *gorm.DB) *GormDocumentRepository {
	return &GormDocumentRepository{db: db}
}

// CountDuplicates counts completed documents sharing invoice number, CUIT
// and calendar date, excluding the document being validated.
func (r *GormDocumentRepository) CountDuplicates(ctx context.Context, invoiceNumber, cuit string, date time.Time, excludeDocumentID string) (int64, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DocumentModel{}).
		Where("invoice_number = ? AND cuit = ? AND status = ?", invoiceNumber, cuit, validation.DocumentStatusCompleted).
		Where("issue_date >= ? AND issue_date < ?", dayStart, dayEnd).
		Where("id <> ?", excludeDocumentID).
		Count(&count).Error
	if err != nil {
		return 0, validation.WrapError(validation.KindPersistence, "counting duplicate documents", err)
	}
	return count, nil
}

// Upsert stores or refreshes a document in the read model
func (r *GormDocumentRepository) Upsert(ctx context.Context, doc *validation.DocumentData, status string) error {
	var m models.DocumentModel
	m.FromDomain(doc, status)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&m).Error
	if err != nil {
		return validation.WrapError(validation.KindPersistence, "saving document", err)
	}
	return nil
}

// MarkCompleted flags a document as completed so later runs see it in the
// duplicate check.
func (r *GormDocumentRepository) MarkCompleted(ctx context.Context, documentID string) error {
	err := r.db.WithContext(ctx).
		Model(&models.DocumentModel{}).
		Where("id = ?", documentID).
		Updates(map[string]any{"status": validation.DocumentStatusCompleted, "updated_at": time.Now()}).Error
	if err != nil {
		return validation.WrapError(validation.KindPersistence, "marking document completed", err)
	}
	return nil
}
