// Package textpipeline turns raw page text into the ordered (position, stem)
// pairs that the index store and the retrieval engine both key on.
package textpipeline

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeForSearch folds a word into the canonical form used throughout
// the index: NFKD to pull diacritics off their base letters, drop everything
// that isn't alphanumeric, NFKC to re-merge what's left, then lowercase.
func NormalizeForSearch(word string) string {
	word = norm.NFKD.String(word)

	var b strings.Builder
	b.Grow(len(word))
	for _, r := range word {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	word = b.String()

	word = norm.NFKC.String(word)
	return strings.ToLower(word)
}
