// Package textutil holds the text primitives shared by the registry and the
// question pipeline: diacritic folding, word tokenization, whole-word matching
// and cell formatting.
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold removes diacritics and upper-cases s, so "Région de l'Agnéby" becomes
// "REGION DE L'AGNEBY".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToUpper(folded)
}

// IsWordRune reports whether r belongs inside a word. Hyphens count, so
// "PDCI-RDA" is a single word and never matches the word "PDCI".
func IsWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-'
}

// Words splits s into maximal runs of word runes.
func Words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return !IsWordRune(r) })
}

// LetterWords splits s into maximal runs of letters, dropping digits and punctuation.
func LetterWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
}
