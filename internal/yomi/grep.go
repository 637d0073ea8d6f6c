package yomi

import (
	"slices"
	"unicode/utf8"
)

type partial struct {
	start   int
	matched int
}

// Grep returns the rune spans [start, end) of sent whose reading is yomi.
func Grep(yomi []byte, sent string, d *Dictionary) [][2]int {
	if len(yomi) == 0 {
		return nil
	}
	yomi = Canonicalize(yomi)
	runes := []rune(ToKatakana(sent))
	n := len(runes)
	match := make([][]partial, n+1)
	for i := range match {
		match[i] = []partial{{start: i}}
	}

	var prev byte
	hasPrev := false
	for pos, r := range runes {
		switch typeOf(r) {
		case typeKana:
			cur := canonicalByte(byte(r - kanaBase))
			for _, p := range match[pos] {
				if p.matched >= len(yomi) {
					continue
				}
				y := yomi[p.matched]
				if y == cur || (hasPrev && sameSound(prev, cur, y)) {
					match[pos+1] = append(match[pos+1], partial{p.start, p.matched + 1})
				}
			}
			prev, hasPrev = cur, true
		case typeKanji:
			from := match[pos]
			d.lookup(runes, pos, func(last int, readings [][]byte) {
				for _, w := range readings {
					cw := CanonicalizeEuph(w)
					for _, p := range from {
						end := p.matched + len(w)
						if end > len(yomi) {
							continue
						}
						if string(CanonicalizeEuph(yomi[p.matched:end])) == string(cw) {
							match[last+1] = append(match[last+1], partial{p.start, end})
						}
					}
				}
			})
			hasPrev = false
		case typeTransparent:
			for _, p := range match[pos] {
				if p.matched > 0 {
					match[pos+1] = append(match[pos+1], p)
				}
			}
			hasPrev = false
		default:
			hasPrev = false
		}
	}

	var spans [][2]int
	for end, ps := range match {
		for _, p := range ps {
			if p.matched == len(yomi) {
				spans = append(spans, [2]int{p.start, end})
			}
		}
	}
	slices.SortFunc(spans, func(a, b [2]int) int {
		if a[0] != b[0] {
			return a[0] - b[0]
		}
		return a[1] - b[1]
	})
	return slices.Compact(spans)
}

// sameSound reports whether y, read after prev, may be written cur.
func sameSound(prev, cur, y byte) bool {
	if containsByte(euphs[[2]byte{prev, cur}], y) {
		return true
	}
	return cur == longVowel && containsByte(euphs[[2]byte{prev, y}], longVowel)
}

// Pattern matches text by reading. Its methods mirror the subset of
// *regexp.Regexp used for verification and highlighting.
type Pattern struct {
	yomi []byte
	dict *Dictionary
}

func NewPattern(yomi []byte, d *Dictionary) *Pattern {
	return &Pattern{yomi: Canonicalize(yomi), dict: d}
}

// Yomi returns the canonical reading matched by p.
func (p *Pattern) Yomi() []byte {
	return p.yomi
}

func (p *Pattern) String() string {
	return "yomi:" + Decode(p.yomi)
}

func (p *Pattern) MatchString(s string) bool {
	return len(Grep(p.yomi, s, p.dict)) > 0
}

// FindAllStringIndex returns up to n byte-offset spans of s (all when
// n < 0).
func (p *Pattern) FindAllStringIndex(s string, n int) [][]int {
	spans := Grep(p.yomi, s, p.dict)
	if len(spans) == 0 {
		return nil
	}
	offsets := runeOffsets(s)
	out := make([][]int, 0, len(spans))
	for _, sp := range spans {
		if n >= 0 && len(out) >= n {
			break
		}
		out = append(out, []int{offsets[sp[0]], offsets[sp[1]]})
	}
	return out
}

// runeOffsets maps rune indexes of s to byte offsets, with one extra
// entry for len(s).
func runeOffsets(s string) []int {
	offsets := make([]int, 0, utf8.RuneCountInString(s)+1)
	for i := range s {
		offsets = append(offsets, i)
	}
	return append(offsets, len(s))
}
