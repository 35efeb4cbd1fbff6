// Package strings holds small helpers for list-valued configuration.
package strings

import "strings"

// DedupeAndTrim trims every element, drops empty ones and keeps the first
// occurrence of each value.
func DedupeAndTrim(values []string) []string {
	if values == nil {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
