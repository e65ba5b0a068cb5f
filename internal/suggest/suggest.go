// Package suggest provides fuzzy matching for CLI flag and config key suggestions
// using Levenshtein distance.
package suggest

import (
	"sort"
	"strings"
)

// levenshtein calculates the edit distance between two strings
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(a)][len(b)]
}

// Closest returns up to three names from valid that are near unknown,
// best first. Leading dashes are ignored on both sides.
func Closest(unknown string, valid []string) []string {
	unknown = strings.ToLower(strings.TrimLeft(unknown, "-"))

	type scored struct {
		name  string
		score int
	}
	var candidates []scored

	for _, v := range valid {
		normalized := strings.ToLower(strings.TrimLeft(v, "-"))
		dist := levenshtein(unknown, normalized)

		// Only suggest if reasonably close (within 3 edits or 50% of length)
		maxDist := max(3, len(unknown)/2)
		if dist <= maxDist {
			candidates = append(candidates, scored{v, dist})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score < candidates[j].score
	})

	var result []string
	for i := 0; i < len(candidates) && i < 3; i++ {
		result = append(result, candidates[i].name)
	}
	return result
}

// CommonFlagAliases maps commonly attempted flags to their correct names
var CommonFlagAliases = map[string]string{
	"name":  "--title",
	"label": "--title",

	"cost":   "--price",
	"amount": "--price",

	"desc":    "--description, -d",
	"note":    "--description, -d",
	"notes":   "--description, -d",
	"summary": "--description, -d",

	"url":   "--image",
	"cover": "--image",
	"img":   "--image",

	"quantity": "--qty, -n",
	"count":    "--qty, -n",

	"local":   "--offline",
	"network": "--online",

	"host":     "--server",
	"endpoint": "--server",

	"version": "use: shelf version",
	"v":       "use: shelf version",
}

// GetFlagHint returns a hint for a commonly misused flag
func GetFlagHint(flag string) string {
	flag = strings.TrimLeft(flag, "-")
	flag = strings.ToLower(flag)

	if hint, ok := CommonFlagAliases[flag]; ok {
		return hint
	}
	return ""
}
