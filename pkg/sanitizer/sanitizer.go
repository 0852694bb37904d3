// Package sanitizer normalizes client-supplied strings before validation and
// query building. Anything interpolated into a store regex goes through
// EscapeRegex so metacharacters are matched literally.
package sanitizer

import (
	"regexp"
	"strings"
	"unicode"
)

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

func NormalizeCity(city string) string {
	return TrimAndNormalize(city)
}

// NormalizeAmenities trims, lowercases and de-duplicates amenity tags,
// preserving first-seen order. Empty entries are dropped.
func NormalizeAmenities(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	normalized := make([]string, 0, len(tags))

	for _, tag := range tags {
		t := strings.ToLower(TrimAndNormalize(tag))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		normalized = append(normalized, t)
	}

	return normalized
}

// EscapeRegex quotes regex metacharacters so user input used in a
// case-insensitive substring filter cannot inject operators or trigger
// catastrophic backtracking in the store's regex engine.
func EscapeRegex(s string) string {
	return regexp.QuoteMeta(s)
}
