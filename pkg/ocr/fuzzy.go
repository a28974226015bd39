package ocr

import (
	"golang.org/x/text/cases"
)

// MaxEditDistance is the largest edit distance FuzzyMatch accepts.
const MaxEditDistance = 2

// Levenshtein returns the edit distance between a and b where insertion,
// deletion and substitution each cost 1. Runes, not bytes, are compared.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	dp := make([][]int, len(ra)+1)
	for i := range dp {
		dp[i] = make([]int, len(rb)+1)
		dp[i][0] = i
	}
	for j := 0; j <= len(rb); j++ {
		dp[0][j] = j
	}
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				dp[i][j] = dp[i-1][j-1]
				continue
			}
			dp[i][j] = 1 + min(dp[i-1][j-1], dp[i][j-1], dp[i-1][j])
		}
	}
	return dp[len(ra)][len(rb)]
}

// FuzzyMatch returns the allowed label closest to candidate, ignoring case.
// The match is rejected when the best distance exceeds MaxEditDistance.
// Equal distances resolve to the label that comes first in allowed.
func FuzzyMatch(candidate string, allowed []string) (string, bool) {
	c := foldCase(candidate)
	best, bestDist := "", -1
	for _, a := range allowed {
		d := Levenshtein(c, foldCase(a))
		if bestDist == -1 || d < bestDist {
			best, bestDist = a, d
		}
	}
	if bestDist == -1 || bestDist > MaxEditDistance {
		return "", false
	}
	return best, true
}

// foldCase applies Unicode case folding. A Caser keeps state, so one is made per call.
func foldCase(s string) string {
	return cases.Fold().String(s)
}
