package search

import (
	"unicode"

	"locsearch/internal/normalizer"
	"locsearch/internal/schema"
)

// Highlight locates the normalized query inside a display name, ignoring
// case and diacritics. An occurrence at the start of a word is preferred over an earlier
// one inside a word. It returns nil when the name does not contain the
// query, for example when the match came from an alias.
func Highlight(name, query string) *schema.Highlight {
	q := []rune(normalizer.Normalize(query))
	if len(q) == 0 {
		return nil
	}

	runes := []rune(name)
	lower := make([]rune, len(runes))
	for i, r := range runes {
		lower[i] = foldRune(r)
	}

	first := -1
	for i := 0; i+len(q) <= len(lower); i++ {
		if !equalAt(lower, q, i) {
			continue
		}
		if i == 0 || !isWordChar(lower[i-1]) {
			first = i
			break
		}
		if first < 0 {
			first = i
		}
	}
	if first < 0 {
		return nil
	}

	end := first + len(q)
	return &schema.Highlight{
		Before: string(runes[:first]),
		Match:  string(runes[first:end]),
		After:  string(runes[end:]),
	}
}

// foldRune folds r to lowercase ASCII when it folds to a single rune,
// keeping rune offsets into the name valid.
func foldRune(r rune) rune {
	if folded := []rune(normalizer.FoldChar(r)); len(folded) == 1 {
		return folded[0]
	}
	return unicode.ToLower(r)
}

func equalAt(s, sub []rune, at int) bool {
	for j, r := range sub {
		if s[at+j] != r {
			return false
		}
	}
	return true
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
