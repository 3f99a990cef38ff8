package diagnostic

import (
	"sort"
	"strings"
)

// editDistance is a direct adaptation of the teacher's levenshteinDistance
// (pkg/errors/suggestions.go): classic dynamic-programming edit distance
// over two rows, used for typo hypotheses against visible symbol names.
func editDistance(a, b string) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = min3(del, ins, sub)
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// similarityScore mirrors the teacher's calculateSimilarityScore: a base
// score normalized by the longer string's length, with bonuses for shared
// prefix, shared suffix, substring containment, and case-insensitive
// equality, capped at 1.0.
func similarityScore(target, candidate string, distance int) float64 {
	maxLen := len(target)
	if len(candidate) > maxLen {
		maxLen = len(candidate)
	}
	if maxLen == 0 {
		return 1.0
	}

	score := 1.0 - float64(distance)/float64(maxLen)

	if commonPrefixLen(target, candidate) >= 2 {
		score += 0.1
	}
	if commonSuffixLen(target, candidate) >= 2 {
		score += 0.1
	}
	if strings.Contains(candidate, target) || strings.Contains(target, candidate) {
		score += 0.15
	}
	if strings.EqualFold(target, candidate) {
		score += 0.2
	}

	if score > 1.0 {
		score = 1.0
	}
	if score < 0 {
		score = 0
	}
	return score
}

func commonPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

func commonSuffixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[len(a)-1-n] == b[len(b)-1-n] {
		n++
	}
	return n
}

// SuggestConfig mirrors the teacher's SuggestionConfig thresholds.
type SuggestConfig struct {
	MaxDistance        int
	MinSimilarityScore float64
	MaxSuggestions     int
}

// DefaultSuggestConfig matches the teacher's DefaultSuggestionConfig
// shape, tuned for identifier-length symbol names rather than keywords.
func DefaultSuggestConfig() SuggestConfig {
	return SuggestConfig{
		MaxDistance:        3,
		MinSimilarityScore: 0.5,
		MaxSuggestions:     5,
	}
}

// NameSuggestion is one ranked candidate name, analogous to the teacher's
// SuggestionResult.
type NameSuggestion struct {
	Name     string
	Distance int
	Score    float64
}

// SuggestNames ranks candidates against target by edit distance and
// similarity score, used for typo and wrong_import hypotheses against the
// set of visible function names in scope.
func SuggestNames(target string, candidates []string, cfg SuggestConfig) []NameSuggestion {
	if cfg.MaxSuggestions == 0 {
		cfg = DefaultSuggestConfig()
	}

	var results []NameSuggestion
	for _, c := range candidates {
		if c == target {
			continue
		}
		d := editDistance(target, c)
		s := similarityScore(target, c, d)
		if d <= cfg.MaxDistance && s >= cfg.MinSimilarityScore {
			results = append(results, NameSuggestion{Name: c, Distance: d, Score: s})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Distance < results[j].Distance
	})

	if len(results) > cfg.MaxSuggestions {
		results = results[:cfg.MaxSuggestions]
	}
	return results
}
