package normalizers

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const phoneticKeyLength = 4

// PhoneticEncoder computes phonetic keys for a normalized last name. Encoders
// must be deterministic and return "" for empty input.
type PhoneticEncoder interface {
	Soundex(s string) string
	Metaphone(s string) string
}

// MatchrEncoder encodes with antzucaro/matchr.
type MatchrEncoder struct{}

func (MatchrEncoder) Soundex(s string) string {
	s = asciiLetters(s)
	if s == "" {
		return ""
	}
	return truncate(matchr.Soundex(s), phoneticKeyLength)
}

// Metaphone returns the primary Double Metaphone code, at most 4 characters.
func (MatchrEncoder) Metaphone(s string) string {
	s = asciiLetters(s)
	if s == "" {
		return ""
	}
	primary, _ := matchr.DoubleMetaphone(s)
	return truncate(primary, phoneticKeyLength)
}

func asciiLetters(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
