package validation

import (
	"time"

	"github.com/shopspring/decimal"
)

// Document lifecycle states in the read model. Only completed documents
// participate in the duplicate check.
const (
	DocumentStatusProcessing = "processing"
	DocumentStatusCompleted  = "completed"
)

// DocumentData is the structured invoice data handed over by the extraction
// pipeline. The validation subsystem only reads it and never owns its
// lifecycle.
type DocumentData struct {
	ID            string           `json:"id"`
	DocumentType  string           `json:"document_type"`
	CUIT          string           `json:"cuit,omitempty"`
	CAE           string           `json:"cae,omitempty"`
	InvoiceNumber string           `json:"invoice_number,omitempty"`
	InvoiceType   string           `json:"invoice_type,omitempty"`
	Date          *time.Time       `json:"date,omitempty"`
	TotalAmount   *decimal.Decimal `json:"total_amount,omitempty"`
	Subtotal      *decimal.Decimal `json:"subtotal,omitempty"`
	IVA           *decimal.Decimal `json:"iva,omitempty"`
}

// HasInvoiceContext reports whether the document carries enough identifying
// data to look the invoice up against the fiscal authority.
func (d *DocumentData) HasInvoiceContext() bool {
	return d.InvoiceType != "" && d.InvoiceNumber != "" && d.CUIT != ""
}

// HasAmounts reports whether all three amounts needed for the tax
// consistency check are present.
func (d *DocumentData) HasAmounts() bool {
	return d.Subtotal != nil && d.IVA != nil && d.TotalAmount != nil
}
