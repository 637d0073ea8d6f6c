package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// flat builds a list from alternating DocID, Pos values.
func flat(v ...int32) List {
	l := make(List, 0, len(v)/2)
	for i := 0; i+1 < len(v); i += 2 {
		l = append(l, Pair{DocID: v[i], Pos: v[i+1]})
	}
	return l
}

func TestIntersect(t *testing.T) {
	tests := []struct {
		name  string
		lists []List
		want  List
	}{
		{"single", []List{flat(1, 2)}, flat(1, 2)},
		{"equal", []List{flat(3, 4), flat(3, 4)}, flat(3, 4)},
		{"disjoint", []List{flat(3, 5, 1, 2), flat(3, 4)}, flat()},
		{"prefix", []List{flat(3, 4, 1, 2), flat(3, 4)}, flat(3, 4)},
		{"subset", []List{flat(3, 4, 1, 2), flat(5, 6, 3, 4, 1, 2)}, flat(3, 4, 1, 2)},
		{"short first", []List{flat(3, 4), flat(3, 4, 1, 2)}, flat(3, 4)},
		{"overlap", []List{flat(3, 4, 1, 2), flat(5, 6, 3, 4)}, flat(3, 4)},
		{"gap", []List{flat(5, 6, 3, 4, 1, 2), flat(5, 6, 1, 2)}, flat(5, 6, 1, 2)},
		{"three", []List{flat(5, 6, 3, 4, 1, 2), flat(5, 6, 1, 2), flat(5, 6)}, flat(5, 6)},
		{"three disjoint", []List{flat(7, 8, 5, 6, 3, 4, 1, 2), flat(7, 8), flat(1, 2)}, flat()},
		{"three overlap", []List{flat(7, 8, 5, 6, 3, 4, 1, 2), flat(7, 8, 5, 6), flat(7, 8, 5, 6, 1, 2)}, flat(7, 8, 5, 6)},
		{"same doc", []List{flat(1, 1357), flat(1, 1357, 1, 691, 1, 537, 1, 167)}, flat(1, 1357)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Intersect(tt.lists...))
		})
	}
	assert.Nil(t, Intersect())
}

func TestUnion(t *testing.T) {
	tests := []struct {
		name  string
		ref   List
		group []List
		want  List
	}{
		{"empty group", flat(1, 2), nil, flat()},
		{"one of two", flat(3, 4), []List{flat(), flat(7, 8, 5, 6, 3, 4)}, flat(3, 4)},
		{"miss", flat(3, 5, 1, 2), []List{flat(3, 4)}, flat()},
		{"prefix", flat(3, 4, 1, 2), []List{flat(3, 4)}, flat(3, 4)},
		{"all", flat(5, 6, 3, 4, 1, 2), []List{flat(3, 4, 1, 2), flat(5, 6, 3, 4, 1, 2)}, flat(5, 6, 3, 4, 1, 2)},
		{"split", flat(5, 6, 3, 4), []List{flat(3, 4, 1, 2), flat(5, 6)}, flat(5, 6, 3, 4)},
		{"split tail", flat(3, 4, 1, 2), []List{flat(5, 6, 3, 4, 1, 2), flat(1, 2)}, flat(3, 4, 1, 2)},
		{"gap", flat(5, 6, 3, 4, 1, 2), []List{flat(5, 6, 1, 2)}, flat(5, 6, 1, 2)},
		{"gap two", flat(5, 6, 3, 4, 1, 2), []List{flat(5, 6, 1, 2), flat(5, 6)}, flat(5, 6, 1, 2)},
		{"ends", flat(7, 8, 5, 6, 3, 4, 1, 2), []List{flat(7, 8), flat(1, 2)}, flat(7, 8, 1, 2)},
		{"ends overlap", flat(7, 8, 5, 6, 3, 4, 1, 2), []List{flat(7, 8, 5, 6), flat(7, 8, 5, 6, 1, 2)}, flat(7, 8, 5, 6, 1, 2)},
		{"same doc", flat(2, 1), []List{flat(), flat(2, 1289, 2, 954, 2, 502, 2, 1)}, flat(2, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Union(tt.ref, tt.group))
		})
	}
}

func TestUnionEveryGroupMustConfirm(t *testing.T) {
	ref := flat(5, 1, 4, 1, 3, 1)
	head := []List{flat(5, 1, 4, 1)}
	tail := []List{flat(4, 1, 3, 1)}
	assert.Equal(t, flat(4, 1), Union(ref, head, tail))
	assert.Equal(t, ref, Union(ref))
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name  string
		lists []List
		want  List
	}{
		{"none", nil, flat()},
		{"one", []List{flat(0, 1)}, flat(0, 1)},
		{"dup", []List{flat(1, 3), flat(1, 3)}, flat(1, 3)},
		{"two", []List{flat(1, 1), flat(2, 2)}, flat(2, 2, 1, 1)},
		{"contained", []List{flat(2, 2, 1, 1), flat(1, 1)}, flat(2, 2, 1, 1)},
		{"same doc", []List{flat(2, 2, 1, 1), flat(3, 1, 1, 1)}, flat(3, 1, 2, 2, 1, 1)},
		{"interleave", []List{flat(4, 4, 2, 2, 1, 1), flat(5, 5, 3, 3)}, flat(5, 5, 4, 4, 3, 3, 2, 2, 1, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Merge(tt.lists...))
		})
	}
}

func TestListHelpers(t *testing.T) {
	l := flat(1, 2, 3, 0, 3, 5, 2, 1)
	l.SortDesc()
	assert.Equal(t, flat(3, 5, 3, 0, 2, 1, 1, 2), l)
	assert.Equal(t, []int32{3, 2, 1}, l.DocIDs())
	assert.Equal(t, flat(3, 0), l.Filter(func(p Pair) bool { return p.Pos == 0 }))
}

func TestMemoryIndex(t *testing.T) {
	m := NewMemoryIndex()
	d1 := m.AddDocument("a.txt", 100)
	d2 := m.AddDocument("b.txt", 200)
	assert.Equal(t, int32(1), d1)
	assert.Equal(t, int32(2), d2)

	m.AddFeatures(d1, 0, []string{"x", "y", "x"})
	m.AddFeatures(d2, 1, []string{"x"})
	m.AddFeatures(d2, 0, []string{"x"})
	assert.Equal(t, 2, m.DocCount())
	assert.Equal(t, 2, m.TermCount())
	assert.Equal(t, 4, m.RefCount())

	snap := m.Snapshot()
	assert.Equal(t, []TermEntry{
		{Key: "x", Postings: flat(2, 1, 2, 0, 1, 0)},
		{Key: "y", Postings: flat(1, 0)},
	}, snap)
	assert.Equal(t, "b.txt", m.Docs()[1].Location)

	m.Reset()
	assert.Zero(t, m.DocCount())
	assert.Zero(t, m.TermCount())
	assert.Equal(t, int32(1), m.AddDocument("c.txt", 0))
}

func TestMemoryIndexReplacesPendingLocation(t *testing.T) {
	m := NewMemoryIndex()
	a := m.AddDocument("a.txt", 100)
	m.AddFeatures(a, 0, []string{"old", "shared"})
	m.AddSentence(a, 0, "old text")
	b := m.AddDocument("b.txt", 150)
	m.AddFeatures(b, 0, []string{"shared"})
	m.AddSentence(b, 0, "b text")

	a2 := m.AddDocument("a.txt", 200)
	assert.Equal(t, int32(2), a2)
	m.AddFeatures(a2, 0, []string{"new", "shared"})
	m.AddSentence(a2, 0, "new text")

	assert.Equal(t, 2, m.DocCount())
	assert.Equal(t, 3, m.RefCount())
	assert.Equal(t, []DocEntry{
		{DocID: 1, Location: "b.txt", ModTime: 150},
		{DocID: 2, Location: "a.txt", ModTime: 200},
	}, m.Docs())
	assert.Equal(t, []SentenceEntry{
		{DocID: 1, Pos: 0, Text: "b text"},
		{DocID: 2, Pos: 0, Text: "new text"},
	}, m.Sentences())
	assert.Equal(t, []TermEntry{
		{Key: "new", Postings: flat(2, 0)},
		{Key: "shared", Postings: flat(2, 0, 1, 0)},
	}, m.Snapshot())

	mtime, ok := m.Pending("a.txt")
	assert.True(t, ok)
	assert.Equal(t, int64(200), mtime)
	_, ok = m.Pending("c.txt")
	assert.False(t, ok)

	m.Reset()
	_, ok = m.Pending("a.txt")
	assert.False(t, ok)
}
