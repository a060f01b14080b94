package quiz

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// WrittenThreshold is the minimum similarity for a written answer to count as correct.
const WrittenThreshold = 0.80

// tolerance absorbs float rounding at the exact threshold (e.g. 1 - 1/5).
const tolerance = 1e-9

// Normalize lower-cases and trims an answer before comparison.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Similarity returns 1 - levenshtein(a, b) / max(len(a), len(b)) over the
// normalized strings, measured in runes. Identical strings score 1.
func Similarity(a, b string) float64 {
	a, b = Normalize(a), Normalize(b)
	if a == b {
		return 1
	}
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1 - float64(distance)/float64(maxLen)
}

// AcceptWritten reports whether a written response is close enough to the expected answer.
func AcceptWritten(response, expected string) bool {
	return Similarity(response, expected)+tolerance >= WrittenThreshold
}
