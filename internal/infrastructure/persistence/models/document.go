package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/facturasegura/backend/internal/domain/validation"
)

// DocumentModel is the read model for processed documents. The duplicate
// check queries it for completed documents sharing invoice number, CUIT and
// calendar date.
type DocumentModel struct {
	ID            string           `gorm:"type:varchar(64);primary_key"`
	DocumentType  string           `gorm:"type:varchar(32);not null"`
	CUIT          string           `gorm:"column:cuit;type:varchar(16);index:idx_documents_dup,priority:2"`
	CAE           string           `gorm:"column:cae;type:varchar(16)"`
	InvoiceNumber string           `gorm:"type:varchar(32);index:idx_documents_dup,priority:1"`
	InvoiceType   string           `gorm:"type:varchar(8)"`
	IssueDate     *time.Time       `gorm:"index:idx_documents_dup,priority:3"`
	TotalAmount   *decimal.Decimal `gorm:"type:numeric(18,2)"`
	Subtotal      *decimal.Decimal `gorm:"type:numeric(18,2)"`
	IVAAmount     *decimal.Decimal `gorm:"column:iva_amount;type:numeric(18,2)"`
	Status        string           `gorm:"type:varchar(16);not null;index"`
	CreatedAt     time.Time        `gorm:"not null"`
	UpdatedAt     time.Time        `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DocumentModel) TableName() string {
	return "documents"
}

// ToDomain converts the persistence model to domain document data
func (m *DocumentModel) ToDomain() *validation.DocumentData {
	return &validation.DocumentData{
		ID:            m.ID,
		DocumentType:  m.DocumentType,
		CUIT:          m.CUIT,
		CAE:           m.CAE,
		InvoiceNumber: m.InvoiceNumber,
		InvoiceType:   m.InvoiceType,
		Date:          m.IssueDate,
		TotalAmount:   m.TotalAmount,
		Subtotal:      m.Subtotal,
		IVA:           m.IVAAmount,
	}
}

// FromDomain populates the persistence model from domain document data
func (m *DocumentModel) FromDomain(doc *validation.DocumentData, status string) {
	m.ID = doc.ID
	m.DocumentType = doc.DocumentType
	m.CUIT = doc.CUIT
	m.CAE = doc.CAE
	m.InvoiceNumber = doc.InvoiceNumber
	m.InvoiceType = doc.InvoiceType
	m.IssueDate = doc.Date
	m.TotalAmount = doc.TotalAmount
	m.Subtotal = doc.Subtotal
	m.IVAAmount = doc.IVA
	m.Status = status
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
}
