// Package similarity scores how alike two short text fragments are.
//
// The score blends vocabulary overlap (Jaccard over lower-cased word sets)
// with surface-form closeness (normalized Levenshtein distance), so that short
// structured phrases such as "Create schema" and "Create migration" are kept
// apart while reordered phrasings still score well.
package similarity

import (
	"strings"
	"unicode/utf8"
)

const (
	// JaccardWeight is the share of the token overlap sub-score.
	JaccardWeight = 0.6

	// LevenshteinWeight is the share of the edit distance sub-score.
	LevenshteinWeight = 0.4
)

// Score returns a similarity in [0, 1] between a and b.
//
// Score is symmetric, Score(x, x) == 1 for any non-empty x, and
// Score("", y) == 0 for every y.
func Score(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}

	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la == lb {
		return 1.0
	}

	score := JaccardWeight*Jaccard(la, lb) + LevenshteinWeight*NormalizedLevenshtein(la, lb)
	return clamp(score)
}

// Jaccard computes |A ∩ B| / |A ∪ B| over lower-cased whitespace tokens.
// Returns 0 when either side has no tokens.
func Jaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// NormalizedLevenshtein returns 1 - distance/maxLen over lower-cased runes.
// Returns 0 when either input is empty.
func NormalizedLevenshtein(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}

	a, b = strings.ToLower(a), strings.ToLower(b)
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	distance := Levenshtein(a, b)
	return clamp(1.0 - float64(distance)/float64(maxLen))
}

// Levenshtein computes the rune-level edit distance between two strings.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// Two rolling rows instead of the full matrix.
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
