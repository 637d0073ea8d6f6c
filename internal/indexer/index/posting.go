// Package index holds the posting-list algebra used to narrow queries and the
// in-memory term table the indexer accumulates before a flush.
package index

import (
	"container/heap"
	"slices"
)

// Pair is one occurrence of a feature: the document within a segment and
// the sentence the feature was seen in.
type Pair struct {
	DocID int32
	Pos   int32
}

// Compare orders pairs by DocID, then Pos.
func (p Pair) Compare(q Pair) int {
	switch {
	case p.DocID < q.DocID:
		return -1
	case p.DocID > q.DocID:
		return 1
	case p.Pos < q.Pos:
		return -1
	case p.Pos > q.Pos:
		return 1
	}
	return 0
}

// List is a posting list sorted in descending order, newest document first.
type List []Pair

// SortDesc sorts the list in place into posting order.
func (l List) SortDesc() {
	slices.SortFunc(l, func(a, b Pair) int { return b.Compare(a) })
}

// DocIDs returns the distinct documents of the list in list order.
func (l List) DocIDs() []int32 {
	ids := make([]int32, 0, len(l))
	for i, p := range l {
		if i > 0 && l[i-1].DocID == p.DocID {
			continue
		}
		ids = append(ids, p.DocID)
	}
	return ids
}

// Filter returns the pairs for which keep returns true.
func (l List) Filter(keep func(Pair) bool) List {
	out := make(List, 0, len(l))
	for _, p := range l {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// cursor walks a descending list forward with galloping seeks.
type cursor struct {
	list List
	pos  int
}

// seek advances past every pair greater than k and reports whether k is
// present at the new position.
func (c *cursor) seek(k Pair) bool {
	rest := c.list[c.pos:]
	i, found := slices.BinarySearchFunc(rest, k, func(e, t Pair) int { return t.Compare(e) })
	c.pos += i
	if found {
		c.pos++
	}
	return found
}

// Intersect returns the pairs present in every list. The shortest list drives
// the walk and the others are searched forward from their last position.
func Intersect(lists ...List) List {
	if len(lists) == 0 {
		return nil
	}
	sorted := slices.Clone(lists)
	slices.SortStableFunc(sorted, func(a, b List) int { return len(a) - len(b) })
	driver := sorted[0]
	others := make([]cursor, len(sorted)-1)
	for i, l := range sorted[1:] {
		others[i] = cursor{list: l}
	}
	out := make(List, 0, len(driver))
	for _, k := range driver {
		all := true
		for i := range others {
			if !others[i].seek(k) {
				all = false
				break
			}
		}
		if all {
			out = append(out, k)
		}
	}
	return out
}

// Union keeps the pairs of ref that are confirmed by every group, where a
// group confirms a pair when any of its lists contains it. A group without
// lists confirms nothing.
func Union(ref List, groups ...[]List) List {
	type groupCursor []cursor
	gs := make([]groupCursor, len(groups))
	for i, g := range groups {
		gc := make(groupCursor, len(g))
		for j, l := range g {
			gc[j] = cursor{list: l}
		}
		gs[i] = gc
	}
	slices.SortStableFunc(gs, func(a, b groupCursor) int { return len(a) - len(b) })
	out := make(List, 0, len(ref))
	for _, k := range ref {
		confirmed := true
		for _, g := range gs {
			hit := false
			for j := range g {
				if g[j].seek(k) {
					hit = true
					break
				}
			}
			if !hit {
				confirmed = false
				break
			}
		}
		if confirmed {
			out = append(out, k)
		}
	}
	return out
}

// Merge combines lists into one descending list without duplicates.
func Merge(lists ...List) List {
	h := make(mergeHeap, 0, len(lists))
	total := 0
	for _, l := range lists {
		if len(l) > 0 {
			h = append(h, cursor{list: l})
			total += len(l)
		}
	}
	heap.Init(&h)
	out := make(List, 0, total)
	for h.Len() > 0 {
		top := &h[0]
		v := top.list[top.pos]
		if len(out) == 0 || out[len(out)-1] != v {
			out = append(out, v)
		}
		top.pos++
		if top.pos < len(top.list) {
			heap.Fix(&h, 0)
		} else {
			heap.Pop(&h)
		}
	}
	return out
}

type mergeHeap []cursor

func (h mergeHeap) Len() int { return len(h) }

func (h mergeHeap) Less(i, j int) bool {
	return h[i].list[h[i].pos].Compare(h[j].list[h[j].pos]) > 0
}

func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x interface{}) {
	*h = append(*h, x.(cursor))
}

func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
