// Package handler implements the HTTP endpoints of the validation service.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/facturasegura/backend/internal/domain/shared"
	"github.com/facturasegura/backend/internal/domain/validation"
	"github.com/facturasegura/backend/internal/interfaces/http/dto"
	"github.com/facturasegura/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Error sends an error response with the given status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	requestID := middleware.GetRequestID(c)
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, requestID))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// ValidationError sends a 400 response with field-level details
func (h *BaseHandler) ValidationError(c *gin.Context, err error) {
	requestID := middleware.GetRequestID(c)
	c.JSON(http.StatusBadRequest, middleware.FormatValidationErrors(err, requestID))
}

// HandleError maps typed validation errors and domain errors to responses.
// A computed "invalid" verdict never reaches this path; it is a successful
// business response. Only execution failures do.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var verr *validation.Error
	if errors.As(err, &verr) {
		switch verr.Kind {
		case validation.KindFormat:
			h.Error(c, http.StatusBadRequest, dto.ErrCodeValidationFormat, verr.Message)
		case validation.KindConnectivity:
			h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUpstreamUnavailable, verr.Message)
		case validation.KindBusiness:
			h.Error(c, http.StatusUnprocessableEntity, dto.ErrCodeBusinessRejection, verr.Message)
		default:
			h.InternalError(c, verr.Message)
		}
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		h.Error(c, dto.GetHTTPStatus(code), code, domainErr.Message)
		return
	}

	h.InternalError(c, "An unexpected error occurred")
}
