package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/facturasegura/backend/internal/domain/validation"
)

// ValidateDocumentRequest carries the structured document data handed over
// by the extraction pipeline. The document ID comes from the URL. Extracted
// identifiers are accepted as-is: a malformed CUIT or CAE is a sub-check
// outcome inside the verdict, not a request error.
type ValidateDocumentRequest struct {
	DocumentType  string           `json:"document_type" binding:"required"`
	CUIT          string           `json:"cuit"`
	CAE           string           `json:"cae"`
	InvoiceNumber string           `json:"invoice_number"`
	InvoiceType   string           `json:"invoice_type"`
	Date          *time.Time       `json:"date"`
	TotalAmount   *decimal.Decimal `json:"total_amount"`
	Subtotal      *decimal.Decimal `json:"subtotal"`
	IVA           *decimal.Decimal `json:"iva"`
}

// ToDomain converts the request into the read-only domain input
func (r *ValidateDocumentRequest) ToDomain(documentID string) *validation.DocumentData {
	return &validation.DocumentData{
		ID:            documentID,
		DocumentType:  r.DocumentType,
		CUIT:          r.CUIT,
		CAE:           r.CAE,
		InvoiceNumber: r.InvoiceNumber,
		InvoiceType:   r.InvoiceType,
		Date:          r.Date,
		TotalAmount:   r.TotalAmount,
		Subtotal:      r.Subtotal,
		IVA:           r.IVA,
	}
}

// ValidateCUITRequest is the single taxpayer identifier check input
type ValidateCUITRequest struct {
	CUIT string `json:"cuit" binding:"required,cuit"`
}

// ValidateCAERequest is the single authorization code check input
type ValidateCAERequest struct {
	CAE         string                   `json:"cae" binding:"required,cae"`
	InvoiceData *ValidateDocumentRequest `json:"invoice_data"`
}

// ValidateDocumentResponse wraps the aggregate verdict for one document
type ValidateDocumentResponse struct {
	DocumentID        string                      `json:"document_id"`
	ValidationResults *validation.AggregateResult `json:"validation_results"`
}

// SingleCheckResponse wraps one standalone sub-check result
type SingleCheckResponse struct {
	Subject          string             `json:"subject"`
	ValidationResult *validation.Result `json:"validation_result"`
}

// ConnectivityStatusResponse is the advisory health summary
type ConnectivityStatusResponse struct {
	Status   string                          `json:"status"`
	Services []validation.ConnectivityRecord `json:"services"`
}

// StatsResponse reports aggregated outcomes per validation type
type StatsResponse struct {
	Since time.Time              `json:"since"`
	Stats []validation.TypeStats `json:"stats"`
}

// RetryQueueResponse reports the outcome of a forced queue drain
type RetryQueueResponse struct {
	Processed int    `json:"processed"`
	Message   string `json:"message"`
}
