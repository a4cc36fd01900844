package game

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxLineLength caps a single terminal line in bytes.
const maxLineLength = 512

// sanitizeInput drops control and formatting runes from player input and
// folds every other kind of whitespace to a plain space.
func sanitizeInput(s string) string {
	out := strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return r
		case r == '\r':
			return -1
		case unicode.IsSpace(r):
			return ' '
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r), !unicode.IsPrint(r):
			return -1
		}
		return r
	}, s)
	if len(out) > maxLineLength {
		out = out[:maxLineLength]
		for len(out) > 0 && !utf8.ValidString(out) {
			out = out[:len(out)-1]
		}
	}
	return out
}
