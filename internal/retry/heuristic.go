package retry

import "strings"

// SpecUnclear judges whether an exhausted attempt budget points at the
// specification rather than the implementation. Two independent signals,
// plain OR: the trimmed spec is shorter than minLength, or the failure text
// contains any of the keywords (case-insensitive). Downstream agents key
// off this exact behavior, so it must not get cleverer.
func SpecUnclear(spec, failure string, minLength int, keywords []string) bool {
	if len(strings.TrimSpace(spec)) < minLength {
		return true
	}
	lower := strings.ToLower(failure)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
