package validation

import "strings"

// cuitMultipliers are the weights of the mod-11 check digit algorithm
// published by the fiscal authority, applied to the first ten digits.
var cuitMultipliers = [10]int{5, 4, 3, 2, 7, 6, 5, 4, 3, 2}

// NormalizeCUIT strips every non-digit character (dashes, spaces) from a
// taxpayer identifier.
func NormalizeCUIT(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidCUITFormat reports whether a normalized CUIT is exactly 11 digits.
func ValidCUITFormat(cuit string) bool {
	if len(cuit) != 11 {
		return false
	}
	for _, r := range cuit {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ValidateCUITChecksum verifies the 11th digit against the weighted mod-11
// checksum of the first ten. The input must already be format-valid.
func ValidateCUITChecksum(cuit string) bool {
	if !ValidCUITFormat(cuit) {
		return false
	}
	sum := 0
	for i, m := range cuitMultipliers {
		sum += int(cuit[i]-'0') * m
	}
	remainder := sum % 11
	check := remainder
	if remainder >= 2 {
		check = 11 - remainder
	}
	return int(cuit[10]-'0') == check
}
