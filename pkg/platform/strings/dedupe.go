// Package strings provides the small string helpers used when accumulating
// issue lists and normalising lookup keys.
package strings

import (
	"strings"
)

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// AppendIssues appends issues not already present, keeping first-seen order.
// Issue lists are user-facing, so the same finding is reported once.
func AppendIssues(issues []string, more ...string) []string {
	return DedupeAndTrim(append(append([]string(nil), issues...), more...))
}

// NormalizeKey lowercases and trims a lookup key such as a city or asset type.
func NormalizeKey(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// NormalizeKeys applies NormalizeKey to each element, dropping empties and
// duplicates.
func NormalizeKeys(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, NormalizeKey(v))
	}
	return DedupeAndTrim(out)
}
