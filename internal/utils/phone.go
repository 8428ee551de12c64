package utils

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidPhone is returned when a phone string cannot be canonicalized.
var ErrInvalidPhone = errors.New("invalid phone number")

var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// NormalizePhone canonicalizes an arbitrary phone string to E.164 form.
// Every phone must pass through here before it is compared, stored, or handed
// to the carrier. Rules, in order:
//   - input starting with "+" must already be valid E.164
//   - 11 digits starting with 1 get a "+" prefix
//   - exactly 10 digits get a "+1" prefix (domestic default)
//   - anything else is prefixed with "+" and re-validated
//
// Fewer than 8 digits is never a reachable number.
func NormalizePhone(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidPhone
	}

	hasPlus := strings.HasPrefix(trimmed, "+")

	var digits strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) < 8 {
		return "", ErrInvalidPhone
	}

	if hasPlus {
		candidate := "+" + d
		if !e164Pattern.MatchString(candidate) {
			return "", ErrInvalidPhone
		}
		return candidate, nil
	}

	switch {
	case len(d) == 11 && d[0] == '1':
		return "+" + d, nil
	case len(d) == 10:
		return "+1" + d, nil
	}

	candidate := "+" + d
	if !e164Pattern.MatchString(candidate) {
		return "", ErrInvalidPhone
	}
	return candidate, nil
}
