package validation

import (
	"time"

	"github.com/google/uuid"
)

// Severity classifies how serious a validation finding is
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// IsValid returns true for known severities
func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError:
		return true
	}
	return false
}

// Type identifies one of the four sub-validations
type Type string

const (
	TypeCUIT           Type = "cuit"
	TypeCAE            Type = "cae"
	TypeDuplicate      Type = "duplicate"
	TypeTaxConsistency Type = "tax_consistency"
)

// OverallStatus is the aggregated verdict of a validation run
type OverallStatus string

const (
	OverallPending           OverallStatus = "pending"
	OverallValid             OverallStatus = "valid"
	OverallValidWithWarnings OverallStatus = "valid_with_warnings"
	OverallInvalid           OverallStatus = "invalid"
)

// String returns the string representation
func (s OverallStatus) String() string {
	return string(s)
}

// Result is the outcome of one sub-validation for one document
type Result struct {
	Valid     bool      `json:"valid"`
	Error     string    `json:"error,omitempty"`
	Severity  Severity  `json:"severity"`
	FromCache bool      `json:"from_cache"`
	// EstimatedValidation marks a CAE result derived from the heuristic
	// date-window fallback. It is NOT verified against the fiscal authority
	// and must never be treated as an authoritative rejection or approval.
	EstimatedValidation bool      `json:"estimated_validation,omitempty"`
	Note                string    `json:"note,omitempty"`
	ResponseTimeMs      int64     `json:"response_time_ms"`
	ValidatedAt         time.Time `json:"validated_at"`
}

// DuplicateCheck is the outcome of the duplicate-invoice detection
type DuplicateCheck struct {
	IsDuplicate    bool     `json:"is_duplicate"`
	DuplicateCount int64    `json:"duplicate_count"`
	Severity       Severity `json:"severity"`
	ResponseTimeMs int64    `json:"response_time_ms"`
}

// TaxConsistency is the outcome of the arithmetic consistency checks
type TaxConsistency struct {
	Valid          bool       `json:"valid"`
	Issues         []TaxIssue `json:"issues"`
	ResponseTimeMs int64      `json:"response_time_ms"`
}

// Issue is a captured sub-validation failure, represented as data so one
// failing check never aborts its siblings
type Issue struct {
	Type     Type     `json:"type"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// AggregateResult is the full outcome of one validation run over a document
type AggregateResult struct {
	ValidationID     uuid.UUID       `json:"validation_id"`
	DocumentID       string          `json:"document_id"`
	CUITValidation   *Result         `json:"cuit_validation,omitempty"`
	CAEValidation    *Result         `json:"cae_validation,omitempty"`
	DuplicateCheck   *DuplicateCheck `json:"duplicate_check,omitempty"`
	TaxConsistency   *TaxConsistency `json:"tax_consistency,omitempty"`
	Errors           []Issue         `json:"errors"`
	Overall          OverallStatus   `json:"overall"`
	StartedAt        time.Time       `json:"started_at"`
	CompletedAt      time.Time       `json:"completed_at"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
}

// authoritativeRejection reports whether a remote check result is an
// authoritative rejection. A cached rejection is the same registry answer
// replayed, so it counts exactly like a live one; estimated CAE results are
// heuristic and never count.
func authoritativeRejection(r *Result) bool {
	return r != nil && !r.Valid && !r.EstimatedValidation &&
		r.Severity == SeverityError
}

// hasWarning reports whether a sub-result should surface as a warning in
// the aggregate verdict. Any non-valid result that was not an authoritative
// rejection is at least warning-level.
func hasWarning(r *Result) bool {
	if r == nil {
		return false
	}
	if !r.Valid {
		return true
	}
	return r.Severity == SeverityWarning
}

// Aggregate derives the overall verdict from the four children and the
// captured errors. It is a pure, order-independent function: re-deriving it
// from the same children always yields the same value.
//
// Precedence, first match wins:
//  1. an authoritative CUIT or CAE rejection, live or cached -> invalid
//  2. any captured error with severity "error"         -> invalid
//  3. any warning-level finding, duplicate, or tax issue -> valid_with_warnings
//  4. otherwise                                        -> valid
func (r *AggregateResult) Aggregate() OverallStatus {
	if authoritativeRejection(r.CUITValidation) || authoritativeRejection(r.CAEValidation) {
		return OverallInvalid
	}
	for _, e := range r.Errors {
		if e.Severity == SeverityError {
			return OverallInvalid
		}
	}
	warn := hasWarning(r.CUITValidation) || hasWarning(r.CAEValidation)
	if r.DuplicateCheck != nil && r.DuplicateCheck.IsDuplicate {
		warn = true
	}
	if r.TaxConsistency != nil && len(r.TaxConsistency.Issues) > 0 {
		warn = true
	}
	for _, e := range r.Errors {
		if e.Severity == SeverityWarning {
			warn = true
		}
	}
	if warn {
		return OverallValidWithWarnings
	}
	return OverallValid
}
