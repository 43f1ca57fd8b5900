package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString trims, drops control characters and truncates to maxRunes
// without splitting a UTF-8 sequence. maxRunes <= 0 disables truncation.
func SanitizeString(input string, maxRunes int) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(input))
	if maxRunes <= 0 || utf8.RuneCountInString(cleaned) <= maxRunes {
		return cleaned
	}
	runes := []rune(cleaned)
	return strings.TrimSpace(string(runes[:maxRunes]))
}
