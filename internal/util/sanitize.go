package util

import (
	"strings"
	"unicode"
)

// StripInvisible removes control characters (except newlines and tabs) and
// invisible Unicode from user-supplied text, then trims surrounding space.
func StripInvisible(value string) string {
	builder := strings.Builder{}
	builder.Grow(len(value))

	for _, char := range value {
		if char == '\n' || char == '\t' {
			builder.WriteRune(char)
			continue
		}
		if unicode.IsControl(char) || isInvisibleUnicode(char) {
			continue
		}

		builder.WriteRune(char)
	}

	return strings.TrimSpace(builder.String())
}

// isInvisibleUnicode reports format characters (zero-width spaces, bidi
// overrides, BOM) and the letter-class fillers that render as blank and are
// used to fake empty display names.
func isInvisibleUnicode(r rune) bool {
	switch r {
	case '\u115F', '\u1160', '\u3164', '\uFFA0', '\u2800':
		return true
	}

	return unicode.Is(unicode.Cf, r)
}
