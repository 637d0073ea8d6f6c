// Package tokenizer splits mixed Latin/Japanese text into boundary-tagged
// bigram features. Latin runs are kept as whole words; adjacent Japanese
// characters are paired into overlapping bigrams whose boundary bits record
// whether the pair starts and/or ends a run.
package tokenizer

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/width"
)

// Class is the character class used to drive segmentation.
type Class uint8

const (
	Transparent Class = 0
	Latin       Class = 1
	Hiragana    Class = 8
	Katakana    Class = 9
	Kanji       Class = 10

	// CJK is the bit shared by the three Japanese classes.
	CJK Class = 8
)

// IsCJK reports whether the class is one of the Japanese classes.
func (c Class) IsCJK() bool {
	return c&CJK != 0
}

// Boundary bits of a Term.
const (
	RightAnchored uint8 = 1
	LeftAnchored  uint8 = 2
	Anchored      uint8 = LeftAnchored | RightAnchored
)

// Term is one index or query feature: a word or bigram and its 2-bit
// boundary code.
type Term struct {
	Boundary uint8
	Text     string
}

// String renders the term the way it is shown in dumps, e.g. "|あい-".
func (t Term) String() string {
	var b strings.Builder
	b.Grow(len(t.Text) + 2)
	b.WriteByte("-|"[t.Boundary>>1&1])
	b.WriteString(t.Text)
	b.WriteByte("-|"[t.Boundary&1])
	return b.String()
}

// Char is one segmentation unit: a Latin run or a single character.
type Char struct {
	Text  string
	Class Class
}

// ClassOf returns the class of a single rune.
func ClassOf(r rune) Class {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
		return Latin
	case r >= 'A' && r <= 'Z':
		return Latin
	case r >= 0xc0 && r <= 0xff:
		return Latin
	case r >= 0x3041 && r <= 0x309e:
		return Hiragana
	case r >= 0x30a1 && r <= 0x30f4, r == 0x30fc, r >= 0xff66 && r <= 0xff9f:
		return Katakana
	case r >= 0x4e00 && r <= 0x9fff:
		return Kanji
	case r == 0x3005 || r == 0x3006 || r == 0x30f5 || r == 0x30f6:
		// 々 〆 ヵ ヶ
		return Kanji
	}
	return Transparent
}

// SplitChars lowercases and trims s, then yields Latin runs as single units
// and every other character on its own.
func SplitChars(s string) []Char {
	s = strings.ToLower(strings.TrimSpace(s))
	chars := make([]Char, 0, len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		c := ClassOf(r)
		if c != Latin {
			chars = append(chars, Char{Text: s[i : i+size], Class: c})
			i += size
			continue
		}
		j := i + size
		for j < len(s) {
			r2, size2 := utf8.DecodeRuneInString(s[j:])
			if ClassOf(r2) != Latin {
				break
			}
			j += size2
		}
		chars = append(chars, Char{Text: s[i:j], Class: Latin})
		i = j
	}
	return chars
}

// Normalize folds fullwidth alphanumerics to their narrow forms and collapses
// runs of whitespace into a single space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(width.Fold.String(s)), " ")
}
