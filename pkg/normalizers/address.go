package normalizers

import (
	"regexp"
	"strings"
)

var addressAbbreviations = map[string]string{
	"street":    "st",
	"avenue":    "ave",
	"boulevard": "blvd",
	"drive":     "dr",
	"road":      "rd",
	"lane":      "ln",
	"court":     "ct",
	"circle":    "cir",
	"place":     "pl",
	"highway":   "hwy",
	"parkway":   "pkwy",
	"terrace":   "ter",
	"square":    "sq",
	"apartment": "apt",
	"suite":     "ste",
	"floor":     "fl",
	"north":     "n",
	"south":     "s",
	"east":      "e",
	"west":      "w",
}

var (
	usZipRe      = regexp.MustCompile(`^\d{5}$`)
	usZipPlus4Re = regexp.MustCompile(`^\d{4}$`)
	usZip9Re     = regexp.MustCompile(`^\d{9}$`)
	caOutwardRe  = regexp.MustCompile(`^[a-z]\d[a-z]$`)
	caInwardRe   = regexp.MustCompile(`^\d[a-z]\d$`)
	caPostalRe   = regexp.MustCompile(`^[a-z]\d[a-z]\d[a-z]\d$`)
	ukOutwardRe  = regexp.MustCompile(`^[a-z]{1,2}\d[a-z\d]?$`)
	ukInwardRe   = regexp.MustCompile(`^\d[a-z]{2}$`)
	ukPostcodeRe = regexp.MustCompile(`^[a-z]{1,2}\d[a-z\d]?\d[a-z]{2}$`)
	genericZipRe = regexp.MustCompile(`^\d{4,6}$`)
)

// NormalizeAddress lower-cases an address, turns punctuation into spaces and
// abbreviates common street words. The postal code stays in the result.
func NormalizeAddress(s string) string {
	tokens := tokenize(s)
	for i, t := range tokens {
		if abbr, ok := addressAbbreviations[t]; ok {
			tokens[i] = abbr
		}
	}
	return strings.Join(tokens, " ")
}

// ExtractZip finds a trailing postal code in a normalized address. US ZIP+4
// codes are reduced to the 5-digit ZIP; Canadian and UK codes are returned
// without the separating space.
func ExtractZip(address string) string {
	tokens := strings.Fields(address)
	n := len(tokens)
	if n == 0 {
		return ""
	}
	last := tokens[n-1]

	if n >= 2 {
		prev := tokens[n-2]
		switch {
		case usZipRe.MatchString(prev) && usZipPlus4Re.MatchString(last):
			return prev
		case caOutwardRe.MatchString(prev) && caInwardRe.MatchString(last):
			return prev + last
		case ukOutwardRe.MatchString(prev) && ukInwardRe.MatchString(last):
			return prev + last
		}
	}

	switch {
	case usZipRe.MatchString(last):
		return last
	case usZip9Re.MatchString(last):
		return last[:5]
	case caPostalRe.MatchString(last), ukPostcodeRe.MatchString(last):
		return last
	case genericZipRe.MatchString(last):
		return last
	}
	return ""
}

// NormalizeZip extracts the postal code from a raw address or postal code.
func NormalizeZip(s string) string {
	return ExtractZip(NormalizeAddress(s))
}
