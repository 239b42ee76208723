package validation

import "github.com/facturasegura/backend/internal/domain/shared"

// Event types emitted by the orchestrator for external subscribers
// (dashboard relays, alerting). The relay is never coupled into validation
// logic; it subscribes on the event bus.
const (
	EventValidationStarted   = "validation.started"
	EventValidationCompleted = "validation.completed"
	EventValidationError     = "validation.error"
)

const aggregateTypeValidation = "validation_run"

// StartedEvent signals that a validation run began for a document
type StartedEvent struct {
	shared.BaseDomainEvent
	DocumentID string `json:"document_id"`
}

// NewStartedEvent creates a StartedEvent
func NewStartedEvent(documentID string) *StartedEvent {
	return &StartedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventValidationStarted, aggregateTypeValidation, documentID),
		DocumentID:      documentID,
	}
}

// CompletedEvent signals that a run finished with a verdict
type CompletedEvent struct {
	shared.BaseDomainEvent
	DocumentID       string        `json:"document_id"`
	Overall          OverallStatus `json:"overall"`
	ProcessingTimeMs int64         `json:"processing_time_ms"`
}

// NewCompletedEvent creates a CompletedEvent
func NewCompletedEvent(documentID string, overall OverallStatus, processingTimeMs int64) *CompletedEvent {
	return &CompletedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventValidationCompleted, aggregateTypeValidation, documentID),
		DocumentID:       documentID,
		Overall:          overall,
		ProcessingTimeMs: processingTimeMs,
	}
}

// ErrorEvent signals that a run failed before producing a verdict
type ErrorEvent struct {
	shared.BaseDomainEvent
	DocumentID string `json:"document_id"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
}

// NewErrorEvent creates an ErrorEvent
func NewErrorEvent(documentID, message string, retryable bool) *ErrorEvent {
	return &ErrorEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventValidationError, aggregateTypeValidation, documentID),
		DocumentID:      documentID,
		Message:         message,
		Retryable:       retryable,
	}
}
