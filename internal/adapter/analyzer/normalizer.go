package analyzer

import (
	"regexp"
	"strings"
	"unicode"
)

// Bengali block.
const (
	scriptLo = 'ঀ'
	scriptHi = '৿'
)

var markupRe = regexp.MustCompile(`<[^>]+>`)

// Normalize canonicalizes text for embedding. Markup spans are removed,
// characters outside word characters, whitespace and the Bengali block become
// spaces, and whitespace runs collapse to a single space with no leading or
// trailing space. Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	text = markupRe.ReplaceAllString(text, "")
	text = strings.Map(func(r rune) rune {
		if isKeptRune(r) {
			return r
		}
		return ' '
	}, text)
	return strings.Join(strings.Fields(text), " ")
}

// NormalizePtr normalizes an optional value; nil yields "".
func NormalizePtr(text *string) string {
	if text == nil {
		return ""
	}
	return Normalize(*text)
}

func isKeptRune(r rune) bool {
	return isWordRune(r) || unicode.IsSpace(r)
}

func isWordRune(r rune) bool {
	if r >= scriptLo && r <= scriptHi {
		return true
	}
	return unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_'
}
