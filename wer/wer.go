// Package wer computes word and character error rates.
package wer

import "strings"

// WordBoundary separates words in character-level label sequences.
const WordBoundary = "_"

// Distance computes the Levenshtein edit distance between two sequences.
func Distance[T comparable](a, b []T) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	// Use two rows to save memory.
	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		cur[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[lb]
}

// Words splits a transcript on whitespace and word-boundary markers.
func Words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '_'
	})
}

// Chars returns the characters of a transcript with word boundaries removed.
func Chars(s string) []rune {
	return []rune(strings.Join(Words(s), ""))
}

// Counter accumulates edit distances over a corpus.
type Counter struct {
	Errors int
	RefLen int
}

// Add records the edit distance and reference length of one utterance.
func (c *Counter) Add(dist, refLen int) {
	c.Errors += dist
	c.RefLen += refLen
}

// Rate returns the error rate in percent. An empty reference yields 0.
func (c Counter) Rate() float64 {
	if c.RefLen == 0 {
		return 0
	}
	return float64(c.Errors) / float64(c.RefLen) * 100
}
