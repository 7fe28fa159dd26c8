// Package normalizer canonicalizes location names into comparable search tokens.
package normalizer

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// charMap maps non-ASCII characters to ASCII equivalents.
var charMap = map[rune]string{
	// Devanagari-adjacent romanizations
	'ā': "a", 'Ā': "a",
	'ī': "i", 'Ī': "i",
	'ū': "u", 'Ū': "u",
	'ṛ': "r", 'ṝ': "r",
	'ṃ': "m", 'ṁ': "m",
	'ṅ': "n", 'ñ': "n", 'ṇ': "n",
	'ṭ': "t", 'ḍ': "d",
	'ś': "s", 'ṣ': "s",
	'ḥ': "h",
	// Western European
	'ä': "a", 'ö': "o", 'ü': "u",
	'ß': "ss",
	'æ': "ae", 'œ': "oe",
	'ø': "o", 'Ø': "o",
	'å': "a", 'Å': "a",
	'ł': "l",
}

const minTermLength = 3

const phoneticKeyLength = 4

// FoldChar folds a single character to lowercase ASCII.
func FoldChar(r rune) string {
	if ascii, ok := charMap[r]; ok {
		return ascii
	}

	lower := unicode.ToLower(r)
	if ascii, ok := charMap[lower]; ok {
		return ascii
	}

	// Fall back to Unicode decomposition
	decomposed := norm.NFD.String(string(r))
	var result strings.Builder
	for _, c := range decomposed {
		if !unicode.Is(unicode.Mn, c) && c < 128 {
			result.WriteRune(unicode.ToLower(c))
		}
	}
	if result.Len() > 0 {
		return result.String()
	}

	return string(lower)
}

// Fold folds text to lowercase ASCII where a mapping exists.
func Fold(text string) string {
	var result strings.Builder
	result.Grow(len(text))

	for _, r := range text {
		result.WriteString(FoldChar(r))
	}

	return result.String()
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
}

// Normalize lowercases text, strips non-word characters and collapses whitespace.
func Normalize(text string) string {
	folded := Fold(text)

	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		switch {
		case isWordRune(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			pendingSpace = true
		}
	}
	return b.String()
}

// Slug derives an identifier from a display name: "Birta Mod" -> "birta-mod".
func Slug(text string) string {
	return strings.ReplaceAll(Normalize(text), " ", "-")
}

// PhoneticKey returns a crude consonant skeleton: vowels and non-letters
// removed, truncated to four characters. It is a grouping key, not a
// phonetic algorithm.
func PhoneticKey(text string) string {
	normalized := Normalize(text)

	var b strings.Builder
	for _, r := range normalized {
		if r < 'a' || r > 'z' {
			continue
		}
		switch r {
		case 'a', 'e', 'i', 'o', 'u':
			continue
		}
		b.WriteRune(r)
		if b.Len() == phoneticKeyLength {
			break
		}
	}
	return b.String()
}

// SearchTerms returns the normalized full name, each word of at least three
// characters and any alias-table entries for either. The result is sorted
// and free of duplicates.
func SearchTerms(text string, aliases *AliasTable) []string {
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}

	set := map[string]bool{normalized: true}
	for _, alias := range aliases.Expand(normalized) {
		set[alias] = true
	}

	for _, word := range strings.Fields(normalized) {
		if len(word) < minTermLength {
			continue
		}
		set[word] = true
		for _, alias := range aliases.Expand(word) {
			set[alias] = true
		}
	}

	return sortedSet(set)
}

// Keywords splits text on whitespace, hyphens and underscores and returns
// every word plus each of its prefixes of at least three characters.
func Keywords(text string) []string {
	pieces := strings.FieldsFunc(Fold(text), func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_'
	})

	set := make(map[string]bool)
	for _, piece := range pieces {
		word := strings.ReplaceAll(Normalize(piece), " ", "")
		if word == "" {
			continue
		}
		set[word] = true
		for i := minTermLength; i < len(word); i++ {
			set[word[:i]] = true
		}
	}

	return sortedSet(set)
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
