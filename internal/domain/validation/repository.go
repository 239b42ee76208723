package validation

import (
	"context"
	"encoding/json"
	"time"
)

// CacheType selects the TTL class of a cache entry
type CacheType string

const (
	CacheTypeCUIT      CacheType = "cuit"
	CacheTypeCAE       CacheType = "cae"
	CacheTypeTaxpayer  CacheType = "taxpayer"
	CacheTypeParameter CacheType = "parameter"
)

// CacheStore is the multi-tier validation cache. Implementations check the
// fast tier first and backfill it from the persistent tier; expiry is lazy
// at read time. Failures surface as KindCache errors and callers fall
// through to live lookups.
type CacheStore interface {
	// Get returns the cached value for key, or found=false on miss/expiry
	Get(ctx context.Context, key string, ctype CacheType) (value json.RawMessage, found bool, err error)
	// Set stores value under key with the TTL of ctype
	Set(ctx context.Context, key string, value json.RawMessage, ctype CacheType) error
	// Clear removes entries whose keys match pattern ("" clears everything)
	Clear(ctx context.Context, pattern string) error
}

// TypeStats aggregates persisted results for one validation type
type TypeStats struct {
	ValidationType    Type    `json:"validation_type"`
	Total             int64   `json:"total"`
	ValidCount        int64   `json:"valid_count"`
	SuccessRate       float64 `json:"success_rate"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
}

// ResultRepository persists validation runs and their per-type children
type ResultRepository interface {
	// SaveRun persists the aggregate and its four children in one
	// transaction; partial writes are never observable
	SaveRun(ctx context.Context, run *AggregateResult) error
	// FindLatestByDocumentID returns the most recent persisted run
	FindLatestByDocumentID(ctx context.Context, documentID string) (*AggregateResult, error)
	// StatsSince aggregates per-type counts and response times
	StatsSince(ctx context.Context, since time.Time) ([]TypeStats, error)
}

// QueueRepository persists retry queue items
type QueueRepository interface {
	Insert(ctx context.Context, item *RetryQueueItem) error
	Update(ctx context.Context, item *RetryQueueItem) error
	// DueItems returns up to limit pending items whose NextRetryAt has
	// elapsed, ordered by priority desc then insertion order
	DueItems(ctx context.Context, now time.Time, limit int) ([]RetryQueueItem, error)
	FindByStatus(ctx context.Context, status QueueStatus, limit int) ([]RetryQueueItem, error)
	CountByStatus(ctx context.Context) (map[QueueStatus]int64, error)
	// ReleaseStale reverts processing items older than cutoff to pending
	ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// ConnectivityRepository appends and reads the probe log
type ConnectivityRepository interface {
	Append(ctx context.Context, record *ConnectivityRecord) error
	Latest(ctx context.Context, serviceName string) (*ConnectivityRecord, error)
	// LatestAll returns the newest record per tracked service
	LatestAll(ctx context.Context) ([]ConnectivityRecord, error)
}

// DocumentRepository maintains the document read model the duplicate check
// queries
type DocumentRepository interface {
	// CountDuplicates counts completed documents sharing invoice number,
	// CUIT and calendar date, excluding the document being validated
	CountDuplicates(ctx context.Context, invoiceNumber, cuit string, date time.Time, excludeDocumentID string) (int64, error)
	// Upsert stores or refreshes a document under the given status
	Upsert(ctx context.Context, doc *DocumentData, status string) error
	// MarkCompleted flags a document as completed so later runs over other
	// documents count it as a potential duplicate
	MarkCompleted(ctx context.Context, documentID string) error
}
