package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appvalidation "github.com/facturasegura/backend/internal/application/validation"
	"github.com/facturasegura/backend/internal/domain/shared"
	"github.com/facturasegura/backend/internal/domain/validation"
	"github.com/facturasegura/backend/internal/interfaces/http/dto"
)

// DocumentValidator runs validations on behalf of the HTTP surface
type DocumentValidator interface {
	ValidateDocument(ctx context.Context, doc *validation.DocumentData) (*validation.AggregateResult, error)
	ValidateCUIT(ctx context.Context, cuit string) (*validation.Result, error)
	ValidateCAE(ctx context.Context, cae string, doc *validation.DocumentData) (*validation.Result, error)
}

// QueueDrainer exposes the retry queue to the HTTP surface
type QueueDrainer interface {
	ProcessQueue(ctx context.Context) (int, error)
	Summary(ctx context.Context, status validation.QueueStatus, limit int) (*appvalidation.QueueSummary, error)
}

// StatsProvider reports aggregated validation outcomes
type StatsProvider interface {
	Stats(ctx context.Context, period string) ([]validation.TypeStats, time.Time, error)
}

// HealthReporter derives the advisory service health
type HealthReporter interface {
	Status() string
}

// ValidationHandler serves the validation endpoints
type ValidationHandler struct {
	BaseHandler
	validator    DocumentValidator
	results      validation.ResultRepository
	queue        QueueDrainer
	stats        StatsProvider
	health       HealthReporter
	connectivity validation.ConnectivityRepository
	logger       *zap.Logger
}

// NewValidationHandler creates the validation endpoint handler
func NewValidationHandler(
	validator DocumentValidator,
	results validation.ResultRepository,
	queue QueueDrainer,
	stats StatsProvider,
	health HealthReporter,
	connectivity validation.ConnectivityRepository,
	logger *zap.Logger,
) *ValidationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ValidationHandler{
		validator:    validator,
		results:      results,
		queue:        queue,
		stats:        stats,
		health:       health,
		connectivity: connectivity,
		logger:       logger,
	}
}

// RegisterRoutes registers the validation routes
func (h *ValidationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/validate/cuit", h.ValidateCUIT)
	rg.POST("/validate/cae", h.ValidateCAE)
	rg.POST("/validate/:documentId", h.ValidateDocument)
	rg.GET("/validate/:documentId", h.GetResult)
	rg.GET("/status", h.Status)
	rg.POST("/retry-queue", h.DrainQueue)
	rg.GET("/validations/stats", h.Stats)
	rg.GET("/validations/queue", h.Queue)
}

// ValidateDocument runs a full validation over the posted document data
func (h *ValidationHandler) ValidateDocument(c *gin.Context) {
	documentID := c.Param("documentId")
	var req dto.ValidateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	run, err := h.validator.ValidateDocument(c.Request.Context(), req.ToDomain(documentID))
	if err != nil {
		h.logger.Error("validation run failed",
			zap.String("document_id", documentID),
			zap.Error(err))
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ValidateDocumentResponse{
		DocumentID:        documentID,
		ValidationResults: run,
	})
}

// GetResult returns the last persisted validation run for a document
func (h *ValidationHandler) GetResult(c *gin.Context) {
	documentID := c.Param("documentId")
	run, err := h.results.FindLatestByDocumentID(c.Request.Context(), documentID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.NotFound(c, "no validation result for document "+documentID)
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ValidateDocumentResponse{
		DocumentID:        documentID,
		ValidationResults: run,
	})
}

// ValidateCUIT runs a standalone taxpayer identifier check
func (h *ValidationHandler) ValidateCUIT(c *gin.Context) {
	var req dto.ValidateCUITRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	result, err := h.validator.ValidateCUIT(c.Request.Context(), req.CUIT)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.SingleCheckResponse{Subject: req.CUIT, ValidationResult: result})
}

// ValidateCAE runs a standalone authorization code check
func (h *ValidationHandler) ValidateCAE(c *gin.Context) {
	var req dto.ValidateCAERequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	var doc *validation.DocumentData
	if req.InvoiceData != nil {
		doc = req.InvoiceData.ToDomain("")
	}
	result, err := h.validator.ValidateCAE(c.Request.Context(), req.CAE, doc)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.SingleCheckResponse{Subject: req.CAE, ValidationResult: result})
}

// Status returns the advisory connectivity summary
func (h *ValidationHandler) Status(c *gin.Context) {
	records, err := h.connectivity.LatestAll(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ConnectivityStatusResponse{
		Status:   h.health.Status(),
		Services: records,
	})
}

// DrainQueue forces an immediate retry queue scan
func (h *ValidationHandler) DrainQueue(c *gin.Context) {
	processed, err := h.queue.ProcessQueue(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.RetryQueueResponse{
		Processed: processed,
		Message:   "retry queue processed",
	})
}

// Stats reports per-type aggregates over the requested period
func (h *ValidationHandler) Stats(c *gin.Context) {
	period := c.Query("period")
	if _, err := appvalidation.ParsePeriod(period); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	stats, since, err := h.stats.Stats(c.Request.Context(), period)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.StatsResponse{Since: since, Stats: stats})
}

// Queue returns the retry queue summary and items in one status
func (h *ValidationHandler) Queue(c *gin.Context) {
	status := validation.QueueStatus(c.Query("status"))
	if status != "" && !status.IsValid() {
		h.BadRequest(c, "unknown queue status "+string(status))
		return
	}
	summary, err := h.queue.Summary(c.Request.Context(), status, 50)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}
