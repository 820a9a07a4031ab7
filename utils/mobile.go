// Package utils provides utility functions for the application.
package utils

import (
	"strings"
)

// NormalizeMobile reduces a raw token to a canonical 10-digit local mobile
// number. Accepted shapes: exactly 10 digits starting with 6-9, or 12 digits
// carrying the country prefix (stripped). Returns false for anything else,
// including the extraction-service sentinels.
func NormalizeMobile(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if IsUnusableMobile(trimmed) {
		return "", false
	}

	var digits strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	d := digits.String()
	switch {
	case len(d) == 10 && isLocalLead(d[0]):
		return d, true
	case len(d) == 12 && strings.HasPrefix(d, CountryPrefix) && isLocalLead(d[2]):
		return d[2:], true
	default:
		return "", false
	}
}

// IsUnusableMobile reports whether the value is one of the sentinel strings
// that mean "no usable number for this contact".
func IsUnusableMobile(v string) bool {
	switch strings.TrimSpace(v) {
	case "", MobileMissing, MobileUnclear, MobileNaN:
		return true
	}
	return false
}

func isLocalLead(b byte) bool {
	return b >= '6' && b <= '9'
}
