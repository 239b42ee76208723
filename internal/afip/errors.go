package afip

import (
	"fmt"

	"github.com/facturasegura/backend/internal/domain/validation"
)

// Error is the typed error this package returns. Business rejections carry
// the service's numeric code; transport failures wrap the underlying cause.
type Error = validation.Error

func connectivityErr(op string, err error) error {
	return validation.WrapError(validation.KindConnectivity, op, err)
}

func formatErr(op string, err error) error {
	return validation.WrapError(validation.KindFormat, op, err)
}

func businessErr(errs []Err) error {
	if len(errs) == 0 {
		return nil
	}
	first := errs[0]
	msg := first.Msg
	if len(errs) > 1 {
		msg = fmt.Sprintf("%s (and %d more)", first.Msg, len(errs)-1)
	}
	return validation.NewError(validation.KindBusiness, fmt.Sprintf("%d", first.Code), msg)
}
