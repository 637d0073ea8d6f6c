package tokenizer

// Split is the narrowing plan of one query term.
//
// Every Middle group must match (intersection across groups); within a group
// any alternative may match. Head and Tail hold the boundary variants of the
// first and last bigram; they are unioned in to confirm a candidate, never
// intersected, because the indexed text may anchor them differently.
type Split struct {
	Head   []Term
	Middle [][]Term
	Tail   []Term
}

// Empty reports whether the split carries no feature at all.
func (s Split) Empty() bool {
	return len(s.Head) == 0 && len(s.Middle) == 0 && len(s.Tail) == 0
}

// QuerySplit splits a query term into head, middle and tail groups.
//
// A query of one or two characters yields a single Middle group holding all
// boundary variants of that token or bigram.
func QuerySplit(s string) Split {
	var (
		t2, t1        Class
		c2, c1        string
		s32, s21, s10 uint8
		n             int
		head, tail    []Term
		middle        [][]Term
	)
	single := func(b uint8, w string) {
		middle = append(middle, []Term{{Boundary: b, Text: w}})
	}
	for _, ch := range SplitChars(s) {
		c0, t0 := ch.Text, ch.Class
		if t0 == Transparent {
			s10 = 1
			continue
		}
		if (n > 0 && t1 != t0) || !t0.IsCJK() {
			s10 = 1
		}
		if n >= 2 {
			if (t2 | t1).IsCJK() {
				k := c2 + c1
				if n == 2 && t2.IsCJK() {
					// The first pair sits on the query's left edge.
					head = append(head, Term{Boundary: LeftAnchored | s10, Text: k})
					if s32 == 0 {
						head = append(head, Term{Boundary: s10, Text: k})
					}
				} else {
					single(s32<<1|s10, k)
				}
			} else {
				single(Anchored, c2)
			}
		}
		c2, c1 = c1, c0
		t2, t1 = t1, t0
		s32, s21, s10 = s21, s10, 0
		n++
	}

	switch {
	case n == 1:
		single(Anchored, c1)
	case n == 2 && (t2|t1).IsCJK():
		k := c2 + c1
		group := []Term{{Boundary: Anchored, Text: k}}
		if s32 == 0 && t2.IsCJK() {
			group = append(group, Term{Boundary: RightAnchored, Text: k})
		}
		if t1.IsCJK() && s10 == 0 {
			group = append(group, Term{Boundary: LeftAnchored, Text: k})
		}
		if (t2&t1).IsCJK() && s32 == 0 && s10 == 0 {
			group = append(group, Term{Boundary: 0, Text: k})
		}
		middle = append(middle, group)
	case n >= 2:
		k := c2 + c1
		switch {
		case t1.IsCJK():
			tail = append(tail, Term{Boundary: s32<<1 | 1, Text: k})
			if s10 == 0 {
				tail = append(tail, Term{Boundary: s32 << 1, Text: k})
			}
		case t2.IsCJK():
			single(s32<<1|1, k)
		default:
			single(Anchored, c2)
			single(Anchored, c1)
		}
	}

	if len(head) == 1 {
		middle = append(middle, head)
		head = nil
	}
	if len(tail) == 1 {
		middle = append(middle, tail)
		tail = nil
	}
	return Split{Head: head, Middle: middle, Tail: tail}
}
