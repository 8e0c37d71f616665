// Package lang classifies characters and words by keyboard language.
package lang

import "unicode"

// Language is the keyboard language a character or word belongs to
type Language string

const (
	English Language = "english"
	Russian Language = "russian"
	Mixed   Language = "mixed"
	Other   Language = "other"
)

// OfChar returns English for Latin letters, Russian for Cyrillic letters
// (including ё and Ё) and Other for everything else.
func OfChar(r rune) Language {
	if r == 'ё' || r == 'Ё' {
		return Russian
	}
	lower := unicode.ToLower(r)
	switch {
	case lower >= 'a' && lower <= 'z':
		return English
	case lower >= 'а' && lower <= 'я':
		return Russian
	}
	return Other
}

// OfWord returns the language of a word. A word that contains both
// English and Russian letters is Mixed; a word with no letters is Other.
func OfWord(word string) Language {
	seen := Other
	for _, r := range word {
		l := OfChar(r)
		if l == Other {
			continue
		}
		if seen != Other && seen != l {
			return Mixed
		}
		seen = l
	}
	return seen
}
