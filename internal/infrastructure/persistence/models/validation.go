package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/facturasegura/backend/internal/domain/validation"
)

// logger for model conversion errors (silent failures are logged for debugging)
var modelLogger = zap.L().Named("validation.models")

// ValidationRunModel is the persistence model for one aggregate validation
// run over a document. The four child results live in validation_results.
type ValidationRunModel struct {
	ID               uuid.UUID  `gorm:"type:uuid;primary_key"`
	DocumentID       string     `gorm:"type:varchar(64);not null;index"`
	Overall          string     `gorm:"type:varchar(32);not null;index"`
	ErrorsJSON       string     `gorm:"column:errors;type:jsonb;default:'[]'"`
	StartedAt        time.Time  `gorm:"not null"`
	CompletedAt      *time.Time `gorm:""`
	ProcessingTimeMs int64      `gorm:"not null;default:0"`
	CreatedAt        time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ValidationRunModel) TableName() string {
	return "validation_runs"
}

// ValidationResultModel is the persistence model for one sub-validation
// outcome inside a run.
type ValidationResultModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	RunID          uuid.UUID `gorm:"type:uuid;not null;index"`
	DocumentID     string    `gorm:"type:varchar(64);not null;index"`
	ValidationType string    `gorm:"type:varchar(32);not null;index"`
	Valid          bool      `gorm:"not null"`
	Severity       string    `gorm:"type:varchar(16);not null"`
	FromCache      bool      `gorm:"not null;default:false"`
	Estimated      bool      `gorm:"not null;default:false"`
	ErrorMessage   string    `gorm:"type:text"`
	Note           string    `gorm:"type:text"`
	DetailsJSON    string    `gorm:"column:details;type:jsonb;default:'{}'"`
	ResponseTimeMs int64     `gorm:"not null;default:0"`
	ValidatedAt    time.Time `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ValidationResultModel) TableName() string {
	return "validation_results"
}

// duplicateDetails and taxDetails carry the child-specific payloads that do
// not fit the common result columns.
type duplicateDetails struct {
	DuplicateCount int64 `json:"duplicate_count"`
}

type taxDetails struct {
	Issues []validation.TaxIssue `json:"issues"`
}

// FromAggregate converts a domain aggregate into its run row plus one row
// per completed sub-validation.
func FromAggregate(run *validation.AggregateResult) (*ValidationRunModel, []ValidationResultModel) {
	now := time.Now()
	completed := run.CompletedAt
	runModel := &ValidationRunModel{
		ID:               run.ValidationID,
		DocumentID:       run.DocumentID,
		Overall:          string(run.Overall),
		ErrorsJSON:       marshalOrDefault(run.Errors, "[]"),
		StartedAt:        run.StartedAt,
		CompletedAt:      &completed,
		ProcessingTimeMs: run.ProcessingTimeMs,
		CreatedAt:        now,
	}

	var results []ValidationResultModel
	appendResult := func(vtype validation.Type, r *validation.Result) {
		if r == nil {
			return
		}
		results = append(results, ValidationResultModel{
			ID:             uuid.New(),
			RunID:          run.ValidationID,
			DocumentID:     run.DocumentID,
			ValidationType: string(vtype),
			Valid:          r.Valid,
			Severity:       string(r.Severity),
			FromCache:      r.FromCache,
			Estimated:      r.EstimatedValidation,
			ErrorMessage:   r.Error,
			Note:           r.Note,
			DetailsJSON:    "{}",
			ResponseTimeMs: r.ResponseTimeMs,
			ValidatedAt:    r.ValidatedAt,
			CreatedAt:      now,
		})
	}
	appendResult(validation.TypeCUIT, run.CUITValidation)
	appendResult(validation.TypeCAE, run.CAEValidation)

	if d := run.DuplicateCheck; d != nil {
		results = append(results, ValidationResultModel{
			ID:             uuid.New(),
			RunID:          run.ValidationID,
			DocumentID:     run.DocumentID,
			ValidationType: string(validation.TypeDuplicate),
			Valid:          !d.IsDuplicate,
			Severity:       string(d.Severity),
			DetailsJSON:    marshalOrDefault(duplicateDetails{DuplicateCount: d.DuplicateCount}, "{}"),
			ResponseTimeMs: d.ResponseTimeMs,
			ValidatedAt:    run.CompletedAt,
			CreatedAt:      now,
		})
	}
	if tc := run.TaxConsistency; tc != nil {
		severity := validation.SeverityInfo
		if len(tc.Issues) > 0 {
			severity = validation.SeverityWarning
		}
		results = append(results, ValidationResultModel{
			ID:             uuid.New(),
			RunID:          run.ValidationID,
			DocumentID:     run.DocumentID,
			ValidationType: string(validation.TypeTaxConsistency),
			Valid:          tc.Valid,
			Severity:       string(severity),
			DetailsJSON:    marshalOrDefault(taxDetails{Issues: tc.Issues}, "{}"),
			ResponseTimeMs: tc.ResponseTimeMs,
			ValidatedAt:    run.CompletedAt,
			CreatedAt:      now,
		})
	}

	return runModel, results
}

// ToAggregate rebuilds a domain aggregate from its run row and child rows.
func ToAggregate(runModel *ValidationRunModel, results []ValidationResultModel) *validation.AggregateResult {
	run := &validation.AggregateResult{
		ValidationID:     runModel.ID,
		DocumentID:       runModel.DocumentID,
		Overall:          validation.OverallStatus(runModel.Overall),
		StartedAt:        runModel.StartedAt,
		ProcessingTimeMs: runModel.ProcessingTimeMs,
		Errors:           []validation.Issue{},
	}
	if runModel.CompletedAt != nil {
		run.CompletedAt = *runModel.CompletedAt
	}
	if runModel.ErrorsJSON != "" && runModel.ErrorsJSON != "[]" {
		if err := json.Unmarshal([]byte(runModel.ErrorsJSON), &run.Errors); err != nil {
			modelLogger.Warn("failed to parse run errors JSON",
				zap.String("run_id", runModel.ID.String()),
				zap.Error(err))
		}
	}

	for _, m := range results {
		switch validation.Type(m.ValidationType) {
		case validation.TypeCUIT:
			run.CUITValidation = m.toResult()
		case validation.TypeCAE:
			run.CAEValidation = m.toResult()
		case validation.TypeDuplicate:
			var details duplicateDetails
			unmarshalDetails(m, &details)
			run.DuplicateCheck = &validation.DuplicateCheck{
				IsDuplicate:    !m.Valid,
				DuplicateCount: details.DuplicateCount,
				Severity:       validation.Severity(m.Severity),
				ResponseTimeMs: m.ResponseTimeMs,
			}
		case validation.TypeTaxConsistency:
			var details taxDetails
			unmarshalDetails(m, &details)
			run.TaxConsistency = &validation.TaxConsistency{
				Valid:          m.Valid,
				Issues:         details.Issues,
				ResponseTimeMs: m.ResponseTimeMs,
			}
		}
	}

	return run
}

func (m *ValidationResultModel) toResult() *validation.Result {
	return &validation.Result{
		Valid:               m.Valid,
		Error:               m.ErrorMessage,
		Severity:            validation.Severity(m.Severity),
		FromCache:           m.FromCache,
		EstimatedValidation: m.Estimated,
		Note:                m.Note,
		ResponseTimeMs:      m.ResponseTimeMs,
		ValidatedAt:         m.ValidatedAt,
	}
}

func unmarshalDetails(m ValidationResultModel, out any) {
	if m.DetailsJSON == "" || m.DetailsJSON == "{}" {
		return
	}
	if err := json.Unmarshal([]byte(m.DetailsJSON), out); err != nil {
		modelLogger.Warn("failed to parse result details JSON",
			zap.String("result_id", m.ID.String()),
			zap.String("validation_type", m.ValidationType),
			zap.Error(err))
	}
}

func marshalOrDefault(v any, fallback string) string {
	raw, err := json.Marshal(v)
	if err != nil {
		modelLogger.Warn("failed to marshal model payload", zap.Error(err))
		return fallback
	}
	return string(raw)
}
