package utils

import (
	"strings"

	"github.com/juju/errors"
)

// MinPhoneDigits is the shortest number the provider will accept.
const MinPhoneDigits = 8

// NormalizePhone strips everything but digits and rewrites a leading trunk
// "0" to countryCode, e.g. "0812-3456 789" -> "628123456789".
func NormalizePhone(raw, countryCode string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return "", errors.NotValidf("phone number %q (no digits)", raw)
	}
	if strings.HasPrefix(digits, "0") {
		digits = countryCode + digits[1:]
	}
	if len(digits) < MinPhoneDigits {
		return "", errors.NotValidf("phone number %q (too short)", raw)
	}
	return digits, nil
}

// SamePhone compares two numbers after normalization. Unparseable input never matches.
func SamePhone(a, b, countryCode string) bool {
	na, err := NormalizePhone(a, countryCode)
	if err != nil {
		return false
	}
	nb, err := NormalizePhone(b, countryCode)
	if err != nil {
		return false
	}
	return na == nb
}
