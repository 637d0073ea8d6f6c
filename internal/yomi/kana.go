// Package yomi matches Japanese text by its reading. Readings are katakana
// strings encoded one byte per character (the low byte of the code point
// in the U+30xx block); index keys are bigrams of that encoding.
package yomi

import (
	"strings"
	"unicode/utf8"
)

const (
	kanaBase = 0x3000

	longVowel byte = 0xfc // ー
	vowelA    byte = 0xa2 // ア
	vowelI    byte = 0xa4 // イ
	vowelU    byte = 0xa6 // ウ
	vowelE    byte = 0xa8 // エ
	vowelO    byte = 0xaa // オ
)

// Encode converts a katakana string into its byte encoding. It reports
// false when s holds a rune outside U+3000..U+30FF.
func Encode(s string) ([]byte, bool) {
	b := make([]byte, 0, utf8.RuneCountInString(s))
	for _, r := range s {
		if r < kanaBase || r > kanaBase+0xff {
			return nil, false
		}
		b = append(b, byte(r-kanaBase))
	}
	return b, true
}

// Decode is the inverse of Encode.
func Decode(y []byte) string {
	var sb strings.Builder
	for _, c := range y {
		sb.WriteRune(kanaBase + rune(c))
	}
	return sb.String()
}

// ToKatakana converts hiragana to katakana and leaves everything else.
func ToKatakana(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 0x3041 && r <= 0x3096 {
			return r + 0x60
		}
		return r
	}, s)
}

// canonicalByte folds characters that share a reading: ヂ to ジ, ヅ to ズ.
func canonicalByte(c byte) byte {
	switch c {
	case 0xc2:
		return 0xb8
	case 0xc5:
		return 0xba
	}
	return c
}

// Canonicalize applies canonicalByte to every character of y.
func Canonicalize(y []byte) []byte {
	out := make([]byte, len(y))
	for i, c := range y {
		out[i] = canonicalByte(c)
	}
	return out
}

type charType uint8

const (
	typeOther charType = iota
	typeKana
	typeKanji
	typeTransparent
)

const transparentChars = "\r\n\t ,.-=()\"'　・、−＝「」『』“”（）"

// typeOf classifies a katakana-converted rune. ハ and ヘ are looked up in
// the dictionary like kanji because as particles they read ワ and エ.
func typeOf(r rune) charType {
	switch {
	case r == 'ハ' || r == 'ヘ':
		return typeKanji
	case r == 'ー' || (r >= 0x30a1 && r <= 0x30f4):
		return typeKana
	case r >= 0x4e00 && r <= 0x9fff, r == '々', r == '〆', r == 'ヵ', r == 'ヶ':
		return typeKanji
	case strings.ContainsRune(transparentChars, r):
		return typeTransparent
	}
	return typeOther
}
