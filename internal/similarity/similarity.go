// Package similarity provides the string metrics behind fuzzy location matching.
package similarity

// Weights of the combined fuzzy score.
const (
	JaroWeight        = 0.5
	LevenshteinWeight = 0.3
	LCSWeight         = 0.2
)

// FuzzyThreshold is the combined score a pair must exceed to count as a fuzzy match.
const FuzzyThreshold = 0.6

// Jaro returns the Jaro similarity of two strings in [0, 1].
// Characters match when equal and no further apart than
// floor(max(len)/2) - 1; a negative window yields 0.
func Jaro(s1, s2 string) float64 {
	r1 := []rune(s1)
	r2 := []rune(s2)
	len1, len2 := len(r1), len(r2)

	if len1 == 0 && len2 == 0 {
		return 1
	}
	if len1 == 0 || len2 == 0 {
		return 0
	}

	window := max(len1, len2)/2 - 1
	if window < 0 {
		return 0
	}

	matched1 := make([]bool, len1)
	matched2 := make([]bool, len2)

	matches := 0
	for i := 0; i < len1; i++ {
		lo := max(0, i-window)
		hi := min(i+window+1, len2)
		for j := lo; j < hi; j++ {
			if matched2[j] || r1[i] != r2[j] {
				continue
			}
			matched1[i] = true
			matched2[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0
	}

	// Count transpositions between the matched sequences
	transpositions := 0
	k := 0
	for i := 0; i < len1; i++ {
		if !matched1[i] {
			continue
		}
		for !matched2[k] {
			k++
		}
		if r1[i] != r2[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	return (m/float64(len1) + m/float64(len2) + (m-float64(transpositions)/2)/m) / 3
}

// LevenshteinDistance calculates the edit distance between two strings.
// This is an optimized implementation using only two rows of the matrix.
func LevenshteinDistance(s1, s2 string) int {
	if s1 == s2 {
		return 0
	}

	r1 := []rune(s1)
	r2 := []rune(s2)

	len1 := len(r1)
	len2 := len(r2)

	if len1 == 0 {
		return len2
	}
	if len2 == 0 {
		return len1
	}

	// Ensure s1 is the shorter string for space optimization
	if len1 > len2 {
		r1, r2 = r2, r1
		len1, len2 = len2, len1
	}

	prev := make([]int, len1+1)
	curr := make([]int, len1+1)

	for i := 0; i <= len1; i++ {
		prev[i] = i
	}

	for j := 1; j <= len2; j++ {
		curr[0] = j

		for i := 1; i <= len1; i++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}

			curr[i] = min(
				prev[i]+1,      // deletion
				curr[i-1]+1,    // insertion
				prev[i-1]+cost, // substitution
			)
		}

		prev, curr = curr, prev
	}

	return prev[len1]
}

// LevenshteinSimilarity returns (maxLen - distance) / maxLen, or 1 for two empty strings.
func LevenshteinSimilarity(s1, s2 string) float64 {
	maxLen := max(len([]rune(s1)), len([]rune(s2)))
	if maxLen == 0 {
		return 1
	}
	return float64(maxLen-LevenshteinDistance(s1, s2)) / float64(maxLen)
}

// LCSLength returns the length of the longest common subsequence.
func LCSLength(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)
	if len(r1) == 0 || len(r2) == 0 {
		return 0
	}

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)

	for i := 1; i <= len(r1); i++ {
		for j := 1; j <= len(r2); j++ {
			if r1[i-1] == r2[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}

	return prev[len(r2)]
}

// LCSRatio returns LCSLength / max(len), or 1 for two empty strings.
func LCSRatio(s1, s2 string) float64 {
	maxLen := max(len([]rune(s1)), len([]rune(s2)))
	if maxLen == 0 {
		return 1
	}
	return float64(LCSLength(s1, s2)) / float64(maxLen)
}

// Scores holds each metric for one pair alongside the combined score.
type Scores struct {
	Jaro        float64 `json:"jaro"`
	Levenshtein float64 `json:"levenshtein"`
	LCS         float64 `json:"lcs"`
	Combined    float64 `json:"combined"`
}

// Compare computes every metric for a pair.
func Compare(s1, s2 string) Scores {
	s := Scores{
		Jaro:        Jaro(s1, s2),
		Levenshtein: LevenshteinSimilarity(s1, s2),
		LCS:         LCSRatio(s1, s2),
	}
	s.Combined = JaroWeight*s.Jaro + LevenshteinWeight*s.Levenshtein + LCSWeight*s.LCS
	return s
}

// Combined returns 0.5*Jaro + 0.3*Levenshtein + 0.2*LCS ratio.
func Combined(s1, s2 string) float64 {
	return Compare(s1, s2).Combined
}

// IsFuzzyMatch reports whether the combined score exceeds FuzzyThreshold.
func IsFuzzyMatch(s1, s2 string) bool {
	return Combined(s1, s2) > FuzzyThreshold
}
