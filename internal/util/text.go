package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	reNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)
	reSpaces   = regexp.MustCompile(`\s+`)
)

func StripDiacritics(input string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, input)
	if err != nil {
		return input
	}
	return out
}

// NormalizeHeader folds a header or alias to lowercase ASCII words separated by single spaces.
func NormalizeHeader(input string) string {
	s := strings.ToLower(StripDiacritics(strings.TrimSpace(input)))
	s = reNonAlnum.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func CollapseSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

func Digits(input string) string {
	out := strings.Builder{}
	for _, r := range input {
		if r >= '0' && r <= '9' {
			out.WriteRune(r)
		}
	}
	return out.String()
}

func IsAllUpper(input string) bool {
	hasLetter := false
	for _, r := range input {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func TitleCase(input string) string {
	words := strings.Fields(strings.ToLower(input))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		for j := 1; j < len(r); j++ {
			if r[j-1] == '-' || r[j-1] == '\'' {
				r[j] = unicode.ToUpper(r[j])
			}
		}
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func StringPtr(v string) *string {
	return &v
}

func FloatPtr(v float64) *float64 {
	return &v
}
