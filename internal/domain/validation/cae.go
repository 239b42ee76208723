package validation

import (
	"fmt"
	"time"
)

// estimatedCAEValidity is the assumed validity window for the heuristic
// CAE estimate. It is not a published rule of the fiscal authority.
const estimatedCAEValidity = 60 * 24 * time.Hour

// ValidCAEFormat reports whether an electronic authorization code is
// exactly 14 digits.
func ValidCAEFormat(cae string) bool {
	if len(cae) != 14 {
		return false
	}
	for _, r := range cae {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// EstimatedCAEValidUntil decodes the leading YYYYMMDD digits of a CAE as an
// issue date and returns the end of the assumed 60-day validity window.
//
// This is a heuristic for documents lacking the invoice context needed for a
// real lookup. The decoding is NOT part of any encoding rule published by
// the fiscal authority; results produced from it must always be flagged as
// estimated.
func EstimatedCAEValidUntil(cae string) (time.Time, error) {
	if !ValidCAEFormat(cae) {
		return time.Time{}, fmt.Errorf("cae %q is not a 14-digit code", cae)
	}
	issued, err := time.Parse("20060102", cae[:8])
	if err != nil {
		return time.Time{}, fmt.Errorf("cae %q has no decodable issue date: %w", cae, err)
	}
	return issued.Add(estimatedCAEValidity), nil
}
