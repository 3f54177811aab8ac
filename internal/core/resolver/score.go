package resolver

import (
	"math"
	"strings"
)

// Scoring weights. An exact name match sets a dominant base; everything
// else is additive. Tuned so a single strong signal (containment)
// outweighs a pile of weak keyword overlaps.
const (
	scoreExact         = 10000
	scoreContains      = 2000
	scorePrefixExtra   = 500
	scorePerKeyword    = 300
	scorePerLCSRune    = 50
	scorePriceExact    = 800
	scorePriceNear     = 300
	scoreUnitMatch     = 400
	scoreInStock       = 100
	lenPenaltyPerRune  = 10
	lenPenaltyCap      = 500
	priceBand          = 0.15
	lcsMaxLenRatio     = 3
	ambiguityThreshold = 100
)

// score ranks one candidate against the folded query plus hints. Both
// strings are already folded by the caller. An exact name match takes a
// dominant base score that skips the string-similarity signals; hint
// bonuses still apply on top so same-named entries stay separable.
func score(query string, queryKeywords map[string]struct{}, priceHint float64, foldedUnitHint string, cand indexed) int {
	name := cand.foldedName
	s := 0
	if query == name {
		s = scoreExact
	} else {
		if contains(query, name) || contains(name, query) {
			s += scoreContains
			if hasPrefix(query, name) || hasPrefix(name, query) {
				s += scorePrefixExtra
			}
		}

		overlap := 0
		for kw := range queryKeywords {
			if _, ok := cand.keywords[kw]; ok {
				overlap++
			}
		}
		s += overlap * scorePerKeyword

		qLen, nLen := len([]rune(query)), len([]rune(name))
		if qLen > 0 && nLen > 0 && qLen <= nLen*lcsMaxLenRatio && nLen <= qLen*lcsMaxLenRatio {
			s += longestCommonSubstring(query, name) * scorePerLCSRune
		}

		penalty := lenPenaltyPerRune * abs(qLen-nLen)
		if penalty > lenPenaltyCap {
			penalty = lenPenaltyCap
		}
		s -= penalty
	}

	if priceHint > 0 {
		switch {
		case math.Abs(cand.entry.Price-priceHint) < 1e-9:
			s += scorePriceExact
		case math.Abs(cand.entry.Price-priceHint) <= priceHint*priceBand:
			s += scorePriceNear
		}
	}

	if foldedUnitHint != "" && foldedUnitHint == cand.foldedUnit {
		s += scoreUnitMatch
	}

	if cand.entry.Stock > 0 {
		s += scoreInStock
	}

	return s
}

func contains(haystack, needle string) bool {
	return needle != "" && haystack != "" && strings.Contains(haystack, needle)
}

func hasPrefix(s, prefix string) bool {
	return prefix != "" && strings.HasPrefix(s, prefix)
}

// longestCommonSubstring returns the length in runes of the longest
// contiguous run shared by a and b. Two-row dynamic program; callers
// bound the input lengths so the quadratic cost stays small.
func longestCommonSubstring(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	best := 0
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > best {
					best = cur[j]
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return best
}

// LCSRatio is the similarity measure shared with the predictor's customer
// matching: LCS length relative to the longer string.
func LCSRatio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longer := la
	if lb > longer {
		longer = lb
	}
	if longer == 0 {
		return 0
	}
	return float64(longestCommonSubstring(a, b)) / float64(longer)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
