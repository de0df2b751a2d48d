package normalizers

import "strings"

// NormalizeEmail normalizes an email address (lowercase, trim)
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SplitEmail splits a normalized email at its last "@". Both parts are empty
// when there is no "@" or either side of it is empty.
func SplitEmail(email string) (local, domain string) {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", ""
	}
	return email[:at], email[at+1:]
}
