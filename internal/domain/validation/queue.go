package validation

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QueueStatus is the lifecycle state of a retry queue item
type QueueStatus string

const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusCompleted  QueueStatus = "completed"
	QueueStatusFailed     QueueStatus = "failed"
)

// IsValid returns true for known queue statuses
func (s QueueStatus) IsValid() bool {
	switch s {
	case QueueStatusPending, QueueStatusProcessing, QueueStatusCompleted, QueueStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the status ends the item's lifecycle
func (s QueueStatus) IsTerminal() bool {
	return s == QueueStatusCompleted || s == QueueStatusFailed
}

// Retry policy defaults
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 30 * time.Second
)

// RetryQueueItem is one queued validation attempt awaiting replay
type RetryQueueItem struct {
	ID          uuid.UUID       `json:"id"`
	DocumentID  string          `json:"document_id"`
	Payload     json.RawMessage `json:"payload"`
	Priority    int             `json:"priority"`
	Attempts    int             `json:"attempts"`
	Status      QueueStatus     `json:"status"`
	NextRetryAt time.Time       `json:"next_retry_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewRetryQueueItem queues a document for replay after baseDelay
func NewRetryQueueItem(documentID string, payload json.RawMessage, priority int, baseDelay time.Duration) *RetryQueueItem {
	now := time.Now()
	return &RetryQueueItem{
		ID:          uuid.New(),
		DocumentID:  documentID,
		Payload:     payload,
		Priority:    priority,
		Attempts:    0,
		Status:      QueueStatusPending,
		NextRetryAt: now.Add(baseDelay),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NextRetryDelay computes the deterministic exponential backoff delay
// min(baseDelay * 2^attempts, maxDelay). No jitter: acceptable for a
// single-instance deployment.
func NextRetryDelay(attempts int, baseDelay, maxDelay time.Duration) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	// Shifting past 62 bits would overflow long before reaching any sane cap.
	if attempts > 30 {
		return maxDelay
	}
	d := baseDelay << uint(attempts)
	if d > maxDelay || d <= 0 {
		return maxDelay
	}
	return d
}
