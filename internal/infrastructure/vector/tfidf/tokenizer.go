package tfidf

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var lowerCaser = cases.Lower(language.Und)

// tokenize lowercases s and splits it into runs of letters, digits, marks
// and underscores.
func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	lowered := lowerCaser.String(s)
	out := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range lowered {
		if isWordRune(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}
