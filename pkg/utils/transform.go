package utils

import (
	"strings"
)

// Dedup trims entries and drops blanks and repeats, keeping first-seen order.
func Dedup(in []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, e := range in {
		e = strings.TrimSpace(e)
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

// StringSet builds a membership set; nil when the input is empty so callers can
// treat "no filter" and "empty filter" the same way.
func StringSet(in []string) map[string]struct{} {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(in))
	for _, e := range in {
		out[e] = struct{}{}
	}
	return out
}
