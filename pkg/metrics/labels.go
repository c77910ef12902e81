package metrics

import "strings"

// normalizeLabel keeps label cardinality predictable: trimmed, lower case,
// and "unknown" instead of an empty value.
func normalizeLabel(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "unknown"
	}
	return v
}
