package yomi

import (
	"slices"
	"sort"
)

// byteSet is a tiny ordered set of encoded kana.
type byteSet []byte

func (s *byteSet) add(c byte) {
	if !containsByte(*s, c) {
		*s = append(*s, c)
	}
}

// Bigrams returns the distinct reading bigrams of sent, each a two-byte
// string. Kana contribute their own reading, words found in d every
// reading d knows, and euphonic pairs every way they may be spelled.
func Bigrams(sent string, d *Dictionary) []string {
	runes := []rune(ToKatakana(sent))
	ctx := make([]byteSet, len(runes))
	seen := make(map[string]struct{})
	emit := func(a, b byte) {
		seen[string([]byte{a, b})] = struct{}{}
	}
	// follow pairs every character of prevs with cur and returns the
	// characters cur may stand for.
	follow := func(prevs byteSet, cur byte) byteSet {
		next := byteSet{cur}
		for _, p := range prevs {
			emit(p, cur)
			for _, x := range variants(p, cur) {
				emit(p, x)
				next.add(x)
			}
		}
		return next
	}

	for i, r := range runes {
		var prevs byteSet
		if i > 0 {
			prevs = ctx[i-1]
		}
		switch typeOf(r) {
		case typeKana:
			for _, c := range follow(prevs, canonicalByte(byte(r-kanaBase))) {
				ctx[i].add(c)
			}
		case typeKanji:
			d.lookup(runes, i, func(last int, readings [][]byte) {
				for _, w := range readings {
					cur := prevs
					for _, c := range w {
						cur = follow(cur, c)
					}
					for _, c := range cur {
						ctx[last].add(c)
					}
				}
			})
		case typeTransparent:
			ctx[i] = slices.Clone(prevs)
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
