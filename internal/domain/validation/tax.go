package validation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// taxTolerance is the maximum accepted rounding difference (one cent)
// between subtotal + IVA and the invoice total.
var taxTolerance = decimal.New(1, -2)

// TaxIssue describes one arithmetic inconsistency found on a document
type TaxIssue struct {
	Type     string   `json:"type"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// CheckTaxConsistency verifies that subtotal + IVA equals the total within a
// one-cent tolerance. A mismatch yields a single iva_consistency warning.
func CheckTaxConsistency(subtotal, iva, total decimal.Decimal) []TaxIssue {
	diff := subtotal.Add(iva).Sub(total).Abs()
	if diff.LessThan(taxTolerance) {
		return nil
	}
	return []TaxIssue{{
		Type: "iva_consistency",
		Message: fmt.Sprintf("subtotal %s + IVA %s does not match total %s (difference %s)",
			subtotal.StringFixed(2), iva.StringFixed(2), total.StringFixed(2), diff.StringFixed(2)),
		Severity: SeverityWarning,
	}}
}
