// Package dedupe implements C7: duplicate detection for memory points,
// grounded on the teacher's pkg/intelligence/dedup.go threshold-based
// matching, generalized with a text-only Jaccard fallback for when no
// vector score is available.
package dedupe

import "strings"

// DefaultThreshold is the vector-score cutoff above which a candidate is
// considered a duplicate (spec §4.6).
const DefaultThreshold = 0.95

// Candidate is a possible duplicate of a new memory: its id and its
// vector similarity score against the new text's embedding.
type Candidate struct {
	ID    string
	Score float64
	Text  string
}

// FindDuplicate returns the id of the first candidate whose score is
// >= threshold, or "" if none qualifies. Candidates are checked in the
// order given (the caller is expected to have sorted by score
// descending, matching a nearest-neighbour search result).
func FindDuplicate(candidates []Candidate, threshold float64) string {
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	for _, c := range candidates {
		if c.Score >= threshold {
			return c.ID
		}
	}
	return ""
}

// NormalizeText lowercases and collapses whitespace, the canonical form
// used before a text-only similarity comparison.
func NormalizeText(text string) string {
	fields := strings.Fields(strings.ToLower(text))
	return strings.Join(fields, " ")
}

// JaccardSimilarity returns the Jaccard similarity of a and b's
// word sets: |intersection| / |union|. Used as a text-only fallback
// when no vector score is available (e.g. the embedder degraded to its
// hash fallback and scores aren't semantically meaningful).
func JaccardSimilarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(text string) map[string]bool {
	words := strings.Fields(NormalizeText(text))
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
