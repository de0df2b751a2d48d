package normalizers

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

var (
	companyPrefixes = toSet("the")
	companySuffixes = toSet(
		"inc", "incorporated", "llc", "llp", "lp", "ltd", "limited", "corp", "corporation",
		"co", "company", "gmbh", "plc", "sa", "ag", "bv", "pty", "srl",
	)
)

// NormalizeCompany lower-cases a company name, strips punctuation and drops
// a leading "the" and trailing legal-form suffixes ("Acme, Inc." -> "acme").
func NormalizeCompany(s string) string {
	return strings.Join(trimTokens(tokenize(s), companyPrefixes, companySuffixes), " ")
}

// NormalizeWebsite reduces a URL or host to its registrable domain,
// "https://www.shop.example.co.uk/about" -> "example.co.uk".
func NormalizeWebsite(s string) string {
	host := strings.ToLower(strings.TrimSpace(s))
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if i := strings.LastIndex(host, "@"); i >= 0 {
		host = host[i+1:]
	}
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "www."), ".")

	if host == "" || strings.ContainsAny(host, " \t") {
		return ""
	}
	if !strings.Contains(host, ".") {
		return host
	}

	root, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil || root == "" {
		return host
	}
	return root
}
