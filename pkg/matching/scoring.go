package matching

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/antzucaro/matchr"
)

// Scorer provides string comparison algorithms. Every method orders its
// arguments first, so Method(a, b) == Method(b, a) exactly.
type Scorer struct{}

// NewScorer creates a new Scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

func ordered(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

// ExactMatch returns 1.0 when both values are non-empty and equal.
func (s *Scorer) ExactMatch(a, b string) float64 {
	if a == "" || b == "" || a != b {
		return 0.0
	}
	return 1.0
}

// JaroWinkler returns the Jaro-Winkler similarity in [0,1], 0 if either value is empty.
func (s *Scorer) JaroWinkler(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}
	if a == b {
		return 1.0
	}
	a, b = ordered(a, b)
	return clampUnit(matchr.JaroWinkler(a, b, false))
}

// Levenshtein returns 1 - distance/maxLen in [0,1], 0 if either value is empty.
func (s *Scorer) Levenshtein(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}
	if a == b {
		return 1.0
	}
	a, b = ordered(a, b)
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	return clampUnit(1.0 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen))
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0 || v != v:
		return 0
	case v > 1:
		return 1
	}
	return v
}
