package transform

import (
	"strings"

	"relay/internal/constants"
)

// NormalizePhone canonicalizes a phone number to digits-only international
// form: strip non-digits, drop a single leading zero, prepend the country
// prefix unless already present. Empty input stays empty. The function is
// total and idempotent on its own output.
func NormalizePhone(raw string) string {
	if raw == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}

	if digits[0] == '0' {
		digits = digits[1:]
	}

	if !strings.HasPrefix(digits, constants.PhoneCountryPrefix) {
		digits = constants.PhoneCountryPrefix + digits
	}

	return digits
}
