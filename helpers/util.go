package helpers

import (
	"strings"
	"unicode/utf8"
)

// CleanText trims s and collapses internal runs of whitespace to single spaces
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TruncateRunes cuts s to at most max runes
func TruncateRunes(s string, max int) string {
	if max < 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
