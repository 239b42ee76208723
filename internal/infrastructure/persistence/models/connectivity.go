package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/facturasegura/backend/internal/domain/validation"
)

// ConnectivityLogModel is the persistence model for one probe outcome
// against a fiscal service endpoint.
type ConnectivityLogModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	ServiceName    string    `gorm:"type:varchar(64);not null;index:idx_connectivity_service_checked,priority:1"`
	Status         string    `gorm:"type:varchar(16);not null"`
	ResponseTimeMs *int64    `gorm:""`
	ErrorMessage   string    `gorm:"type:text"`
	CheckedAt      time.Time `gorm:"not null;index:idx_connectivity_service_checked,priority:2,sort:desc"`
	CreatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ConnectivityLogModel) TableName() string {
	return "connectivity_log"
}

// ToDomain converts the persistence model to a domain connectivity record
func (m *ConnectivityLogModel) ToDomain() *validation.ConnectivityRecord {
	return &validation.ConnectivityRecord{
		ServiceName:    m.ServiceName,
		Status:         validation.ConnectivityStatus(m.Status),
		ResponseTimeMs: m.ResponseTimeMs,
		ErrorMessage:   m.ErrorMessage,
		CheckedAt:      m.CheckedAt,
	}
}

// FromDomain populates the persistence model from a domain connectivity record
func (m *ConnectivityLogModel) FromDomain(rec *validation.ConnectivityRecord) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.ServiceName = rec.ServiceName
	m.Status = string(rec.Status)
	m.ResponseTimeMs = rec.ResponseTimeMs
	m.ErrorMessage = rec.ErrorMessage
	m.CheckedAt = rec.CheckedAt
	m.CreatedAt = time.Now()
}
