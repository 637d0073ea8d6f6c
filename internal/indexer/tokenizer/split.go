package tokenizer

// IndexSplit returns every feature of one sentence for indexing.
//
// Each adjacent pair that involves a Japanese character is emitted as a bigram
// once per boundary code it can legitimately carry, so that a query anchored
// at either end of a word finds it. A single character is emitted when it is
// isolated by boundaries on both sides or when it is a kanji. Latin runs are
// emitted as whole words, anchored on both sides. Duplicate features are
// possible; callers dedupe per sentence.
func IndexSplit(s string) []Term {
	var (
		t3, t2, t1    Class
		c2, c1        string
		s32, s21, s10 uint8 = 0, 0, 1
		n             int
	)
	terms := make([]Term, 0, len(s))
	emit := func(b uint8, w string) {
		terms = append(terms, Term{Boundary: b, Text: w})
	}
	for _, ch := range SplitChars(s) {
		c0, t0 := ch.Text, ch.Class
		if t0 == Transparent {
			s10 = 1
			continue
		}
		// (c2,t2)-s21-(c1,t1)-s10-(c0,t0)
		if c1 != "" {
			if t1 != t0 || !t0.IsCJK() {
				s10 = 1
			}
			if (s21 != 0 && s10 != 0) || (t1 == Kanji && (s21 != 0 || s10 != 0)) {
				emit(Anchored, c1)
			}
		}
		if n >= 2 {
			k := c2 + c1
			if (t2 | t1).IsCJK() {
				emit(s32<<1|s10, k)
			}
			if (t2 & t1).IsCJK() {
				if s32 != 0 && t3 == t2 {
					emit(s10, k)
				}
				if s10 != 0 && t1 == t0 {
					emit(s32<<1, k)
				}
				if s32 != 0 && s10 != 0 && t3 == t2 && t1 == t0 {
					emit(0, k)
				}
			}
		}
		c2, c1 = c1, c0
		t3, t2, t1 = t2, t1, t0
		s32, s21, s10 = s21, s10, 0
		n++
	}
	if c1 != "" && (s21 != 0 || t1 == Kanji) {
		emit(Anchored, c1)
	}
	if n >= 2 {
		k := c2 + c1
		if (t2 | t1).IsCJK() {
			emit(s32<<1|1, k)
		}
		if t2.IsCJK() && s32 != 0 && t3 == t2 {
			emit(1, k)
		}
	}
	return terms
}
