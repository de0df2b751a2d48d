package normalizers

import "strings"

var (
	namePrefixes = toSet("mr", "mrs", "ms", "miss", "mx", "dr", "prof", "sir")
	nameSuffixes = toSet("jr", "sr", "ii", "iii", "iv", "v", "phd", "md", "dds", "esq", "cpa")
)

// NameParts is a normalized person name.
type NameParts struct {
	First string
	Last  string
	Full  string
}

// SplitName normalizes a full name and splits it on whitespace. Last is empty
// for single-word names.
func SplitName(s string) NameParts {
	tokens := trimTokens(tokenize(s), namePrefixes, nameSuffixes)
	if len(tokens) == 0 {
		return NameParts{}
	}

	parts := NameParts{
		First: tokens[0],
		Full:  strings.Join(tokens, " "),
	}
	if len(tokens) > 1 {
		parts.Last = tokens[len(tokens)-1]
	}
	return parts
}

// NormalizeName normalizes a person's name for matching
func NormalizeName(s string) string {
	return SplitName(s).Full
}
