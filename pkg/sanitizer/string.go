package sanitizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CollapseWhitespace trims s and turns every run of whitespace into a single
// space. Invisible format characters pasted from chat apps (zero-width
// spaces, joiners, BOMs) are dropped, and the result is NFC so "João" typed
// on two keyboards compares equal.
func CollapseWhitespace(s string) string {
	visible := strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, s)
	return norm.NFC.String(strings.Join(strings.Fields(visible), " "))
}

// NormalizeName cleans a person or resource name. Case is kept: names such as
// "McAllister" or "da Silva" have no safe automatic casing.
func NormalizeName(name string) string {
	return CollapseWhitespace(name)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeTaxID strips punctuation from a CPF, "123.456.789-09" becoming
// "12345678909".
func NormalizeTaxID(taxID string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, taxID)
}
