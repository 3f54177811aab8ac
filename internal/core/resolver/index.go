package resolver

import (
	"strings"

	"github.com/rapeepat/shopflow/internal/core/domain"
)

// ngramSize is the character n-gram length used for keyword extraction.
// Bigrams keep the index useful for scripts without whitespace word
// boundaries, where token splitting alone finds nothing.
const ngramSize = 2

// minTokenLen drops one-character tokens, which match almost everything.
const minTokenLen = 2

// index is an inverted keyword map over a catalog snapshot. It is built
// once per catalog version and shared read-only between searches.
type index struct {
	entries []indexed
	// keyword -> positions into entries. Lookup is a union over the
	// query's keywords, avoiding a full catalog scan per search.
	keywords map[string][]int
}

// indexed is a catalog entry with its precomputed folded forms.
type indexed struct {
	entry      domain.CatalogEntry
	foldedName string
	foldedUnit string
	keywords   map[string]struct{}
}

func buildIndex(entries []domain.CatalogEntry, synonyms map[string][]string) *index {
	idx := &index{
		entries:  make([]indexed, 0, len(entries)),
		keywords: make(map[string][]int),
	}
	for _, e := range entries {
		in := indexed{
			entry:      e,
			foldedName: domain.FoldKey(e.Name),
			foldedUnit: domain.FoldKey(e.Unit),
			keywords:   extractKeywords(e.Name, synonyms),
		}
		pos := len(idx.entries)
		idx.entries = append(idx.entries, in)
		for kw := range in.keywords {
			idx.keywords[kw] = append(idx.keywords[kw], pos)
		}
	}
	return idx
}

// candidates returns the positions of every entry sharing at least one
// keyword with the query's keyword set.
func (idx *index) candidates(queryKeywords map[string]struct{}) []int {
	seen := make(map[int]struct{})
	var out []int
	for kw := range queryKeywords {
		for _, pos := range idx.keywords[kw] {
			if _, dup := seen[pos]; !dup {
				seen[pos] = struct{}{}
				out = append(out, pos)
			}
		}
	}
	return out
}

// extractKeywords produces the keyword set for a name: the full folded
// string, whitespace tokens, character n-grams, and synonym expansions.
// The same function runs over catalog names at build time and over query
// text at search time so both sides speak the same vocabulary.
func extractKeywords(name string, synonyms map[string][]string) map[string]struct{} {
	folded := domain.FoldKey(name)
	kws := make(map[string]struct{})
	if folded == "" {
		return kws
	}
	kws[folded] = struct{}{}

	tokens := strings.Fields(folded)
	for _, tok := range tokens {
		if len([]rune(tok)) >= minTokenLen {
			kws[tok] = struct{}{}
		}
		for _, g := range ngrams(tok, ngramSize) {
			kws[g] = struct{}{}
		}
	}

	for _, key := range append(tokens, folded) {
		for _, alt := range synonyms[key] {
			af := domain.FoldKey(alt)
			kws[af] = struct{}{}
			// Multi-word synonyms also contribute their tokens, so
			// "fish sauce" still reaches "Fish Sauce Premium".
			for _, tok := range strings.Fields(af) {
				if len([]rune(tok)) >= minTokenLen {
					kws[tok] = struct{}{}
				}
			}
		}
	}
	return kws
}

func ngrams(s string, n int) []string {
	runes := []rune(s)
	if len(runes) < n {
		return nil
	}
	out := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		out = append(out, string(runes[i:i+n]))
	}
	return out
}

// defaultSynonyms maps a folded token to alternate spellings and
// transliterations of common items. Callers extend it per deployment.
var defaultSynonyms = map[string][]string{
	"coke":   {"cola", "coca cola"},
	"cola":   {"coke"},
	"pepsi":  {"pepsi cola"},
	"water":  {"drinking water"},
	"ice":    {"crushed ice", "ice cube"},
	"sprite": {"lemon soda"},
}
