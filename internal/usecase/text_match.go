package usecase

import "strings"

// isNumeric checks if a string contains only digits
func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// countWords counts whitespace-separated tokens
func countWords(s string) int {
	return len(strings.Fields(s))
}

// fuzzyTokenMatch checks if two tokens are similar within the edit distance threshold
func fuzzyTokenMatch(token1, token2 string, threshold int) bool {
	if token1 == token2 {
		return true
	}

	// Only apply fuzzy matching to tokens of 4+ runes to avoid false positives
	r1, r2 := []rune(token1), []rune(token2)
	if len(r1) < 4 || len(r2) < 4 {
		return false
	}

	// Quick length check - if lengths differ by more than threshold, can't match
	lenDiff := len(r1) - len(r2)
	if lenDiff < 0 {
		lenDiff = -lenDiff
	}
	if lenDiff > threshold {
		return false
	}

	return levenshteinDistance(token1, token2) <= threshold
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)
	if m == 0 {
		return n
	}
	if n == 0 {
		return m
	}

	// Two rows instead of the full matrix
	prev := make([]int, n+1)
	curr := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}

// sameColorName compares two colour names case-insensitively, tolerating one
// edit for spelling variants such as Gray/Grey
func sameColorName(a, b string) bool {
	ka, kb := foldKey(a), foldKey(b)
	if ka == "" || kb == "" {
		return false
	}
	return fuzzyTokenMatch(ka, kb, 1)
}

// truncateAtWord cuts s to at most limit runes, preferring a word boundary
func truncateAtWord(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	cut := string(r[:limit])
	if lastSpace := strings.LastIndex(cut, " "); lastSpace > len(cut)/2 {
		cut = cut[:lastSpace]
	}
	return strings.TrimSpace(cut)
}
