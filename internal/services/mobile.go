// internal/services/mobile.go
package services

import (
	"strings"
)

const localMobileDigits = 9

// MobileNormalizer turns user-entered phone numbers into the 9-digit local
// form the gateway expects.
type MobileNormalizer struct {
	countryCode string
	prefixes    map[string]string
}

// NewMobileNormalizer takes the country calling code and a map from operator
// brand keyword (lower case) to the leading digit its numbers use.
func NewMobileNormalizer(countryCode string, prefixes map[string]string) *MobileNormalizer {
	normalized := make(map[string]string, len(prefixes))
	for brand, digit := range prefixes {
		normalized[strings.ToLower(brand)] = digit
	}
	return &MobileNormalizer{
		countryCode: strings.TrimPrefix(countryCode, "+"),
		prefixes:    normalized,
	}
}

// Normalize strips separators, a country-code prefix or a single trunk zero
// and requires exactly nine digits.
func (m *MobileNormalizer) Normalize(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.', '\t':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	hadPlus := strings.HasPrefix(cleaned, "+")
	cleaned = strings.TrimPrefix(cleaned, "+")
	if hadPlus && m.countryCode != "" && !strings.HasPrefix(cleaned, m.countryCode) {
		return "", newValidationError("mobile", "only +"+m.countryCode+" numbers are supported")
	}

	switch {
	case m.countryCode != "" && strings.HasPrefix(cleaned, m.countryCode) &&
		(hadPlus || len(cleaned) > localMobileDigits):
		cleaned = strings.TrimPrefix(cleaned, m.countryCode)
	case strings.HasPrefix(cleaned, "0"):
		cleaned = cleaned[1:]
	}

	if cleaned == "" {
		return "", newValidationError("mobile", "mobile number is required")
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", newValidationError("mobile", "mobile number may only contain digits")
		}
	}
	if len(cleaned) != localMobileDigits {
		return "", newValidationError("mobile", "mobile number must have 9 digits after removing the country code or leading zero")
	}

	return cleaned, nil
}

// CheckOperator verifies the number's leading digit against the operator's
// numbering prefix. Operators without a configured prefix are not checked.
func (m *MobileNormalizer) CheckOperator(mobile, operatorName string) error {
	name := strings.ToLower(operatorName)
	for brand, digit := range m.prefixes {
		if brand == "" || digit == "" || !strings.Contains(name, brand) {
			continue
		}
		if !strings.HasPrefix(mobile, digit) {
			return newValidationError("mobile", "number "+mobile+" does not belong to "+operatorName+" (expected it to start with "+digit+")")
		}
		return nil
	}
	return nil
}
