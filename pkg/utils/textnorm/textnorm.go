// Package textnorm holds the text normalization and lexical scoring shared by
// knowledge retrieval, ticket deduplication, and the keyword intent rules.
// Every call site must use the same normalization; divergence between them is a
// correctness bug.
package textnorm

import (
	"regexp"
	"strings"
)

var (
	nonAlnum   = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Scoring weights. These constants are part of the retrieval contract and are
// pinned by tests.
const (
	overlapWeight = 0.6
	seqWeight     = 0.3
	intentBoost   = 0.15
)

// Normalize lower-cases the input, replaces every character outside
// [a-z0-9\s] with a space, collapses whitespace runs, and trims. It is pure
// and idempotent; empty input yields an empty string.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)
	s = nonAlnum.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Tokens splits an already-normalized string into its token set.
func Tokens(norm string) map[string]struct{} {
	tokens := map[string]struct{}{}
	if norm == "" {
		return tokens
	}
	for _, t := range strings.Fields(norm) {
		tokens[t] = struct{}{}
	}
	return tokens
}

// Score computes a similarity in [0, 1] between a normalized document and a
// normalized query. Token overlap is measured against the shorter side so a
// short, precise query against a long document is not penalized. A small boost
// is added when any query token appears verbatim in the document. Either input
// empty scores 0.
func Score(docNorm, queryNorm string) float64 {
	if docNorm == "" || queryNorm == "" {
		return 0.0
	}

	qTokens := Tokens(queryNorm)
	dTokens := Tokens(docNorm)

	common := 0
	for t := range qTokens {
		if _, ok := dTokens[t]; ok {
			common++
		}
	}
	shorter := min(len(qTokens), len(dTokens))
	overlap := float64(common) / float64(max(1, shorter))

	seq := sequenceSimilarity(docNorm, queryNorm)

	boost := 0.0
	for t := range qTokens {
		if strings.Contains(docNorm, t) {
			boost = intentBoost
			break
		}
	}

	return min(1.0, overlapWeight*overlap+seqWeight*seq+boost)
}

// sequenceSimilarity is a longest-common-subsequence ratio over the raw
// normalized strings: 2*LCS / (len(a)+len(b)), in [0, 1].
func sequenceSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	ra := []rune(a)
	rb := []rune(b)

	// Single-row DP keeps memory at O(len(b)).
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[len(rb)]

	return 2.0 * float64(lcs) / float64(len(ra)+len(rb))
}
