package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// utils.go - Small helpers shared by the planner and the plan loader.

// AlignUp rounds v up to the next multiple of align. align must be a
// power of two; AlignUp(v, 0) and AlignUp(v, 1) return v unchanged.
func AlignUp(v, align uint64) uint64 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

// IsPowerOfTwo reports whether v is a power of two. Zero is not.
func IsPowerOfTwo(v uint64) bool {
	return v != 0 && v&(v-1) == 0
}

// ParseAddr parses an address or size written either as decimal, as
// 0x-prefixed hex, or with a K/M/G suffix (binary units, the way linker
// scripts write them: "1M", "32K").
func ParseAddr(s string) (uint64, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, fmt.Errorf("empty address")
	}
	mult := uint64(1)
	switch t[len(t)-1] {
	case 'K', 'k':
		mult = 1 << 10
		t = t[:len(t)-1]
	case 'M', 'm':
		mult = 1 << 20
		t = t[:len(t)-1]
	case 'G', 'g':
		mult = 1 << 30
		t = t[:len(t)-1]
	}
	base := 10
	if strings.HasPrefix(t, "0x") || strings.HasPrefix(t, "0X") {
		base = 16
		t = t[2:]
	}
	v, err := strconv.ParseUint(t, base, 64)
	if err != nil {
		return 0, fmt.Errorf("bad address %q: %v", s, err)
	}
	return v * mult, nil
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
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
			matrix[i][j] = min(
				matrix[i-1][j]+1,
				min(matrix[i][j-1]+1,
					matrix[i-1][j-1]+cost))
		}
	}

	return matrix[len(s1)][len(s2)]
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Suggest returns the candidate names closest to name by edit distance,
// closest first, for "did you mean" diagnostics. Candidates further than
// three edits away are not suggested.
func Suggest(name string, candidates []string, maxSuggestions int) []string {
	type suggestion struct {
		name     string
		distance int
	}

	var suggestions []suggestion
	const threshold = 3

	for _, c := range candidates {
		dist := levenshteinDistance(name, c)
		if dist <= threshold && dist > 0 {
			suggestions = append(suggestions, suggestion{c, dist})
		}
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].distance == suggestions[j].distance {
			return suggestions[i].name < suggestions[j].name
		}
		return suggestions[i].distance < suggestions[j].distance
	})

	result := make([]string, 0, maxSuggestions)
	for i := 0; i < len(suggestions) && i < maxSuggestions; i++ {
		result = append(result, suggestions[i].name)
	}
	return result
}
