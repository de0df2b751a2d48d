// Package normalizers turns raw contact fields into canonical comparable forms.
package normalizers

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	Register("lowercase", Lowercase)
	Register("trim", Trim)
	Register("fold", FoldDiacritics)
	Register("digits_only", DigitsOnly)
	Register("alphanumeric", Alphanumeric)
	Register("nname", NormalizeName)
	Register("nemail", NormalizeEmail)
	Register("nphone", NormalizePhone)
	Register("ncompany", NormalizeCompany)
	Register("nwebsite", NormalizeWebsite)
	Register("naddress", NormalizeAddress)
	Register("nzip", NormalizeZip)
}

// Register adds a normalizer to the registry. It is not safe to call
// concurrently with Get or Apply.
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value. Unknown names leave the value unchanged.
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

func Lowercase(s string) string {
	return strings.ToLower(s)
}

func Trim(s string) string {
	return strings.TrimSpace(s)
}

// FoldDiacritics removes combining marks, so "Zoë Núñez" becomes "Zoe Nunez".
func FoldDiacritics(s string) string {
	// transformers carry state, so each call builds its own chain
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}

// DigitsOnly keeps only ASCII digits
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// Alphanumeric keeps only letters and digits
func Alphanumeric(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// tokenize folds, lower-cases and splits s into words. Apostrophes are dropped
// so "O'Brien" stays one word; every other non-alphanumeric rune separates words.
func tokenize(s string) []string {
	s = strings.ToLower(FoldDiacritics(s))

	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '\'' || r == '’' || r == '`':
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// trimTokens drops leading tokens in prefixes and trailing tokens in suffixes
// until neither applies, always keeping at least one token.
func trimTokens(tokens []string, prefixes, suffixes map[string]struct{}) []string {
	for len(tokens) > 1 {
		if _, ok := prefixes[tokens[0]]; ok {
			tokens = tokens[1:]
			continue
		}
		if _, ok := suffixes[tokens[len(tokens)-1]]; ok {
			tokens = tokens[:len(tokens)-1]
			continue
		}
		break
	}
	return tokens
}

// dedupe removes blanks, repeats and anything in exclude, keeping first-seen order.
func dedupe(values []string, exclude ...string) []string {
	seen := toSet(exclude...)
	seen[""] = struct{}{}

	result := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
