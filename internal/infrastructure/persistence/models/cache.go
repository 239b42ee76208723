package models

import (
	"time"

	"github.com/google/uuid"
)

// CacheEntryModel is the persistence model for the database-backed
// validation cache tier.
type CacheEntryModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CacheKey  string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	CacheType string    `gorm:"type:varchar(32);not null;index"`
	Value     string    `gorm:"type:jsonb;not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CacheEntryModel) TableName() string {
	return "validation_cache"
}
