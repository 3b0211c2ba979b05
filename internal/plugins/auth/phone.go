package auth

import "strings"

// NormalizePhone canonicalizes a WhatsApp phone number for dispatch.
// Brazilian local numbers (11 digits: area code + 9-digit mobile) get the
// +55 country prefix; 13-digit numbers already carrying 55 get a plus sign;
// anything already in +E.164 form passes through with separators removed.
// Returns empty string for input that cannot be a phone number.
func NormalizePhone(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	hadPlus := strings.HasPrefix(trimmed, "+")

	var digits strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()

	switch {
	case hadPlus && len(d) >= 10:
		return "+" + d
	case len(d) == 11:
		// Local mobile number: DDD + 9 digits.
		return "+55" + d
	case len(d) == 13 && strings.HasPrefix(d, "55"):
		return "+" + d
	case len(d) >= 10 && len(d) <= 15:
		return "+" + d
	default:
		return ""
	}
}
