package middleware

import (
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/facturasegura/backend/internal/domain/validation"
	"github.com/facturasegura/backend/internal/interfaces/http/dto"
)

// SetupValidator registers the fiscal-domain binding rules and makes error
// messages use JSON field names. Call once at startup.
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("cuit", func(fl validator.FieldLevel) bool {
		return validation.ValidCUITFormat(validation.NormalizeCUIT(fl.Field().String()))
	})
	_ = v.RegisterValidation("cae", func(fl validator.FieldLevel) bool {
		return validation.ValidCAEFormat(fl.Field().String())
	})
}

// FormatValidationErrors converts binding failures into field-level details
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			details = append(details, dto.ValidationDetail{
				Field:   e.Field(),
				Message: validationMessage(e),
			})
		}
	}
	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "cuit":
		return "Must be an 11-digit taxpayer identifier"
	case "cae":
		return "Must be a 14-digit authorization code"
	default:
		return "Invalid value"
	}
}
