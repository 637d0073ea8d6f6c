package yomi

// euphs maps a kana pair to the second characters it may be pronounced
// as: カア as カー, ケイ as ケエ or ケー, コウ as コオ or コー.
var euphs = buildEuphs()

// longForms maps a kana to the vowels that a following ー may stand for.
var longForms = buildLongForms()

func mustEncode(s string) []byte {
	b, ok := Encode(s)
	if !ok {
		panic("yomi: bad kana literal " + s)
	}
	return b
}

func buildEuphs() map[[2]byte][]byte {
	m := make(map[[2]byte][]byte)
	for _, c := range mustEncode("アカガサザタダナハバパマヤラワャァ") {
		m[[2]byte{c, vowelA}] = []byte{longVowel}
	}
	for _, c := range mustEncode("イキギシジチヂニヒビピミリィ") {
		m[[2]byte{c, vowelI}] = []byte{longVowel}
	}
	for _, c := range mustEncode("ウクグスズツヅヌフブプムユルュ") {
		m[[2]byte{c, vowelU}] = []byte{longVowel}
	}
	for _, c := range mustEncode("エケゲセゼテデネヘベペメレェ") {
		m[[2]byte{c, vowelI}] = []byte{vowelE, longVowel}
		m[[2]byte{c, vowelE}] = []byte{vowelI, longVowel}
	}
	for _, c := range mustEncode("オコゴソゾトドノホボポモヨロョォ") {
		m[[2]byte{c, vowelU}] = []byte{vowelO, longVowel}
		m[[2]byte{c, vowelO}] = []byte{vowelU, longVowel}
	}
	return m
}

func buildLongForms() map[byte][]byte {
	m := make(map[byte][]byte)
	for _, v := range []byte{vowelA, vowelI, vowelU, vowelE, vowelO} {
		for pair, alts := range euphs {
			if pair[1] == v && containsByte(alts, longVowel) {
				m[pair[0]] = append(m[pair[0]], v)
			}
		}
	}
	return m
}

func containsByte(b []byte, c byte) bool {
	for _, x := range b {
		if x == c {
			return true
		}
	}
	return false
}

// variants returns the alternative second characters of the pair
// (prev, cur), including the vowels a prolonged sound mark may spell.
func variants(prev, cur byte) []byte {
	if cur == longVowel {
		return longForms[prev]
	}
	return euphs[[2]byte{prev, cur}]
}

// CanonicalizeEuph rewrites every euphonic pair into its prolonged form,
// so トウキョウ and トーキョー compare equal.
func CanonicalizeEuph(y []byte) []byte {
	out := make([]byte, 0, len(y))
	for i := 0; i < len(y); i++ {
		if i+1 < len(y) {
			if _, ok := euphs[[2]byte{y[i], y[i+1]}]; ok {
				out = append(out, y[i], longVowel)
				i++
				continue
			}
		}
		out = append(out, y[i])
	}
	return out
}
