package validators

import (
	"strings"
	"unicode"
)

// CleanText normalizes free-form shopper input such as names, addresses and notes.
// Control characters are dropped, whitespace runs collapse to one space, and the result
// is cut to maxRunes runes so multi-byte names are never split mid-character.
// maxRunes <= 0 disables the cut.
func CleanText(input string, maxRunes int) string {
	var b strings.Builder
	b.Grow(len(input))
	count := 0
	space := false
	for _, r := range input {
		if unicode.IsSpace(r) {
			space = count > 0
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		width := 1
		if space {
			width = 2
		}
		if maxRunes > 0 && count+width > maxRunes {
			break
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
		count += width
	}
	return b.String()
}

// CleanOptionalText is CleanText for optional fields; blank input becomes nil.
func CleanOptionalText(input *string, maxRunes int) *string {
	if input == nil {
		return nil
	}
	cleaned := CleanText(*input, maxRunes)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}
