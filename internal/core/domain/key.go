package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// keyFolder decomposes, strips combining marks (diacritics), then
// recomposes. Applied identically by every caller so the index, the lock
// manager, and the coordinator all derive the same key for the same
// logical resource.
var keyFolder = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFKC)

// ResourceKey derives the canonical identifier for a (name, unit) pair.
// Pure and total: on any input, including malformed UTF-8, it returns a
// usable key rather than an error.
func ResourceKey(name, unit string) string {
	return FoldKey(name) + "|" + FoldKey(unit)
}

// FoldKey case-folds, strips diacritics, and collapses whitespace in a
// single string. Exposed because the resolver applies the same folding to
// queries and keywords.
func FoldKey(s string) string {
	folded, _, err := transform.String(keyFolder, s)
	if err != nil {
		// The chain only fails on short destination buffers for exotic
		// inputs; fall back to the unfolded string so the key stays total.
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
