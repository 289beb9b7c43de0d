// Package utils holds small string-matching helpers shared by the CLI.
package utils

import "strings"

// ComputeDistance computes the Levenshtein distance between two strings.
// It is case-insensitive.
func ComputeDistance(s1, s2 string) int {
	s1 = strings.ToLower(s1)
	s2 = strings.ToLower(s2)

	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	matrix := make([][]int, len(s1)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(s2)+1)
	}
	for i := 0; i <= len(s1); i++ {
		matrix[i][0] = i
	}
	for j := 0; j <= len(s2); j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len(s1); i++ {
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			min := matrix[i-1][j] + 1
			if ins := matrix[i][j-1] + 1; ins < min {
				min = ins
			}
			if sub := matrix[i-1][j-1] + cost; sub < min {
				min = sub
			}
			matrix[i][j] = min
		}
	}

	return matrix[len(s1)][len(s2)]
}

// FuzzyMatch checks if source is a fuzzy match of target.
// Characters in source must appear in target in the same order.
// Case-insensitive.
func FuzzyMatch(source, target string) bool {
	source = strings.ToLower(source)
	target = strings.ToLower(target)

	sourceRunes := []rune(source)
	targetRunes := []rune(target)

	sourceIdx := 0
	targetIdx := 0

	for sourceIdx < len(sourceRunes) && targetIdx < len(targetRunes) {
		if sourceRunes[sourceIdx] == targetRunes[targetIdx] {
			sourceIdx++
		}
		targetIdx++
	}

	return sourceIdx == len(sourceRunes)
}

// suggestMaxDistance bounds how far a typo may be from a candidate
// before the suggestion is more confusing than helpful.
const suggestMaxDistance = 2

// Suggest returns the candidate most plausibly meant by input, or ""
// when nothing is close. Prefix matches win first, then small edit
// distance, then in-order subsequence matches ("prog" for
// "progress-tracking"). Shorter candidates win ties.
func Suggest(input string, candidates []string) string {
	if input == "" {
		return ""
	}
	lower := strings.ToLower(input)

	best := ""
	for _, c := range candidates {
		if strings.HasPrefix(strings.ToLower(c), lower) {
			if best == "" || len(c) < len(best) {
				best = c
			}
		}
	}
	if best != "" {
		return best
	}

	bestDist := suggestMaxDistance + 1
	for _, c := range candidates {
		if d := ComputeDistance(input, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	if best != "" {
		return best
	}

	for _, c := range candidates {
		if FuzzyMatch(input, c) {
			if best == "" || len(c) < len(best) {
				best = c
			}
		}
	}
	return best
}
