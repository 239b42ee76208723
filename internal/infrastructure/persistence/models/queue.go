package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/facturasegura/backend/internal/domain/validation"
)

// ValidationQueueModel is the persistence model for one retry queue entry.
type ValidationQueueModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	DocumentID  string    `gorm:"type:varchar(64);not null;index"`
	Payload     string    `gorm:"type:jsonb;not null"`
	Priority    int       `gorm:"not null;default:0"`
	Attempts    int       `gorm:"not null;default:0"`
	Status      string    `gorm:"type:varchar(16);not null;index:idx_validation_queue_due,priority:1"`
	NextRetryAt time.Time `gorm:"not null;index:idx_validation_queue_due,priority:2"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ValidationQueueModel) TableName() string {
	return "validation_queue"
}

// ToDomain converts the persistence model to a domain queue item
func (m *ValidationQueueModel) ToDomain() *validation.RetryQueueItem {
	return &validation.RetryQueueItem{
		ID:          m.ID,
		DocumentID:  m.DocumentID,
		Payload:     json.RawMessage(m.Payload),
		Priority:    m.Priority,
		Attempts:    m.Attempts,
		Status:      validation.QueueStatus(m.Status),
		NextRetryAt: m.NextRetryAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain queue item
func (m *ValidationQueueModel) FromDomain(item *validation.RetryQueueItem) {
	m.ID = item.ID
	m.DocumentID = item.DocumentID
	m.Payload = string(item.Payload)
	m.Priority = item.Priority
	m.Attempts = item.Attempts
	m.Status = string(item.Status)
	m.NextRetryAt = item.NextRetryAt
	m.CreatedAt = item.CreatedAt
	m.UpdatedAt = item.UpdatedAt
}
