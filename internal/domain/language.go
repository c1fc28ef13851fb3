package domain

import "strings"

// NormalizeLanguages returns supported with host first and duplicates removed
// (case-insensitive). The host language is always present in the result.
func NormalizeLanguages(host string, supported []string) []string {
	host = strings.TrimSpace(host)
	out := make([]string, 0, len(supported)+1)
	seen := make(map[string]struct{}, len(supported)+1)
	add := func(l string) {
		l = strings.TrimSpace(l)
		if l == "" {
			return
		}
		k := strings.ToLower(l)
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, l)
	}
	add(host)
	for _, l := range supported {
		add(l)
	}
	return out
}
