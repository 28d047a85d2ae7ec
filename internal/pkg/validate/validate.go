package validate

import (
	"strings"
	"unicode"
)

const maxIdentifierLen = 200

func Required(value string) bool {
	return strings.TrimSpace(value) != ""
}

// Identifier reports whether value is a usable opaque id from a request:
// non-empty after trimming, bounded, with no inner whitespace or control
// characters.
func Identifier(value string) bool {
	value = strings.TrimSpace(value)
	if !Required(value) || len(value) > maxIdentifierLen {
		return false
	}
	for _, r := range value {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}
