// Package strings holds small helpers for cleaning client-supplied strings.
package strings

import (
	"slices"
	"strings"
)

// DedupeAndTrimLower trims and lowercases each value, drops blanks, and keeps
// the first occurrence of each remaining value in input order.
func DedupeAndTrimLower(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}
