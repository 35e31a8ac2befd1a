// Package harmonize matches geographic unit names from tabular datasets
// against boundary feature names. Dataset names and boundary names rarely
// agree byte for byte: casing, accents, and administrative designators
// ("Kabul Province" vs "kabul") all get in the way, so both sides are
// normalized before exact and fuzzy comparison.
package harmonize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// adminDesignators are trailing tokens that describe the administrative
// level rather than the place, and never help matching.
var adminDesignators = map[string]bool{
	"province":     true,
	"district":     true,
	"region":       true,
	"state":        true,
	"governorate":  true,
	"prefecture":   true,
	"county":       true,
	"department":   true,
	"division":     true,
	"municipality": true,
	"territory":    true,
	"oblast":       true,
	"wilaya":       true,
	"zone":         true,
}

var unaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize reduces a geographic name to its comparison form: accents
// stripped, lowercased, punctuation removed, whitespace collapsed, and
// trailing administrative designators dropped. A single remaining token is
// never stripped, so a name that is only a designator survives.
func Normalize(name string) string {
	s, _, err := transform.String(unaccent, name)
	if err != nil {
		s = name
	}

	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return r
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '/':
			return ' '
		default:
			return -1
		}
	}, s)

	fields := strings.Fields(s)
	for len(fields) > 1 && adminDesignators[fields[len(fields)-1]] {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}
