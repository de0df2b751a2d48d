package normalizers

import "strings"

const (
	defaultCallingCode = "1"
	minE164Digits      = 8
	maxE164Digits      = 15
)

// callingCodes is a prefix-free set of country calling codes we recognise.
var callingCodes = toSet(
	"1", "7",
	"20", "27", "30", "31", "32", "33", "34", "36", "39", "40", "41", "43", "44", "45", "46", "47", "48", "49",
	"51", "52", "53", "54", "55", "56", "57", "58", "60", "61", "62", "63", "64", "65", "66",
	"81", "82", "84", "86", "90", "91", "92", "93", "94", "95", "98",
	"351", "352", "353", "358", "852", "971", "972",
)

// NormalizePhone converts a phone number to E.164 ("+14155550100") when a
// country can be inferred. Anything else is reduced to its digits, which is
// never a valid E.164 value.
func NormalizePhone(s string) string {
	s = stripExtension(strings.TrimSpace(s))
	digits := DigitsOnly(s)
	if digits == "" {
		return ""
	}

	intl := digits
	international := strings.HasPrefix(s, "+")
	if !international && strings.HasPrefix(strings.TrimLeft(s, " ("), "00") {
		intl = strings.TrimPrefix(digits, "00")
		international = true
	}

	if international {
		if e164, ok := withCallingCode(intl); ok {
			return e164
		}
	}

	switch {
	case len(digits) == 11 && digits[0] == '1':
		return "+" + digits
	case len(digits) == 10:
		return "+" + defaultCallingCode + digits
	}

	if len(digits) > 10 {
		if e164, ok := withCallingCode(digits); ok {
			return e164
		}
	}
	return digits
}

// IsE164 reports whether s is a normalized E.164 number.
func IsE164(s string) bool {
	if len(s) < minE164Digits+1 || len(s) > maxE164Digits+1 || s[0] != '+' {
		return false
	}
	return DigitsOnly(s[1:]) == s[1:]
}

func withCallingCode(digits string) (string, bool) {
	if len(digits) < minE164Digits || len(digits) > maxE164Digits {
		return "", false
	}
	for n := 1; n <= 3; n++ {
		if _, ok := callingCodes[digits[:n]]; ok {
			return "+" + digits, true
		}
	}
	return "", false
}

func stripExtension(s string) string {
	lower := strings.ToLower(s)
	for _, marker := range []string{"ext", "x", "#"} {
		if i := strings.Index(lower, marker); i > 0 {
			return s[:i]
		}
	}
	return s
}
