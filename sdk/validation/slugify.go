package validation

import (
	"regexp"
	"strings"
)

var (
	separators      = regexp.MustCompile(`[\s\-_]+`)
	nonAlphaNumeric = regexp.MustCompile(`[^a-z0-9\-]`)
	multipleHyphens = regexp.MustCompile(`-+`)
)

var accentMap = map[rune]rune{
	'à': 'a', 'á': 'a', 'â': 'a', 'ã': 'a', 'ä': 'a', 'å': 'a',
	'è': 'e', 'é': 'e', 'ê': 'e', 'ë': 'e',
	'ì': 'i', 'í': 'i', 'î': 'i', 'ï': 'i',
	'ò': 'o', 'ó': 'o', 'ô': 'o', 'õ': 'o', 'ö': 'o',
	'ù': 'u', 'ú': 'u', 'û': 'u', 'ü': 'u',
	'ý': 'y', 'ÿ': 'y',
	'ñ': 'n', 'ç': 'c',
	'ß': 's',
}

// Slugify converts a display name into a lowercase, hyphenated identifier.
// Imported habits and templates without an explicit id get one this way.
func Slugify(s string) string {
	s = strings.ToLower(s)
	s = removeAccents(s)
	s = separators.ReplaceAllString(s, "-")
	s = nonAlphaNumeric.ReplaceAllString(s, "")
	s = multipleHyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func removeAccents(s string) string {
	var result strings.Builder
	for _, r := range s {
		if replacement, ok := accentMap[r]; ok {
			result.WriteRune(replacement)
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
