package index

import (
	"slices"
	"sort"
)

// DocEntry records the identity of one document in the segment being built.
type DocEntry struct {
	DocID    int32
	Location string
	ModTime  int64
}

// SentenceEntry is the stored text of one sentence.
type SentenceEntry struct {
	DocID int32
	Pos   int32
	Text  string
}

// TermEntry is one feature key and its occurrences, ready to be written.
type TermEntry struct {
	Key      string
	Postings List
}

// MemoryIndex accumulates the features of the segment being built. DocIDs
// are local to the segment and start at 1.
type MemoryIndex struct {
	terms map[string]List
	docs  []DocEntry
	sents []SentenceEntry
	locs  map[string]int32
	refs  int
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		terms: make(map[string]List),
		locs:  make(map[string]int32),
	}
}

// AddDocument registers a document and returns its DocID. A pending
// revision of the same location is removed first, so a location is written
// once per segment and its newest revision holds the highest DocID.
func (m *MemoryIndex) AddDocument(location string, modTime int64) int32 {
	if old, ok := m.locs[location]; ok {
		m.remove(old)
	}
	docID := int32(len(m.docs) + 1)
	m.docs = append(m.docs, DocEntry{DocID: docID, Location: location, ModTime: modTime})
	m.locs[location] = docID
	return docID
}

// Pending returns the modification time of the pending revision of location.
func (m *MemoryIndex) Pending(location string) (int64, bool) {
	docID, ok := m.locs[location]
	if !ok {
		return 0, false
	}
	return m.docs[docID-1].ModTime, true
}

// remove drops every record of docID and renumbers the later documents so
// DocIDs stay dense.
func (m *MemoryIndex) remove(docID int32) {
	shift := func(id int32) int32 {
		if id > docID {
			return id - 1
		}
		return id
	}
	docs := m.docs[:0]
	for _, d := range m.docs {
		if d.DocID == docID {
			delete(m.locs, d.Location)
			continue
		}
		d.DocID = shift(d.DocID)
		m.locs[d.Location] = d.DocID
		docs = append(docs, d)
	}
	m.docs = docs

	sents := m.sents[:0]
	for _, s := range m.sents {
		if s.DocID == docID {
			continue
		}
		s.DocID = shift(s.DocID)
		sents = append(sents, s)
	}
	m.sents = sents

	for k, list := range m.terms {
		kept := list[:0]
		for _, p := range list {
			if p.DocID == docID {
				m.refs--
				continue
			}
			p.DocID = shift(p.DocID)
			kept = append(kept, p)
		}
		if len(kept) == 0 {
			delete(m.terms, k)
		} else {
			m.terms[k] = kept
		}
	}
}

// AddFeatures posts every distinct key once at (docID, pos).
func (m *MemoryIndex) AddFeatures(docID, pos int32, keys []string) {
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		m.terms[k] = append(m.terms[k], Pair{DocID: docID, Pos: pos})
		m.refs++
	}
}

// AddSentence stores the text of sentence pos of docID.
func (m *MemoryIndex) AddSentence(docID, pos int32, text string) {
	m.sents = append(m.sents, SentenceEntry{DocID: docID, Pos: pos, Text: text})
}

func (m *MemoryIndex) DocCount() int {
	return len(m.docs)
}

func (m *MemoryIndex) TermCount() int {
	return len(m.terms)
}

// RefCount returns the number of (key, pair) occurrences accumulated.
func (m *MemoryIndex) RefCount() int {
	return m.refs
}

// Snapshot returns the terms sorted by key with descending postings.
func (m *MemoryIndex) Snapshot() []TermEntry {
	keys := make([]string, 0, len(m.terms))
	for k := range m.terms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]TermEntry, 0, len(keys))
	for _, k := range keys {
		postings := slices.Clone(m.terms[k])
		postings.SortDesc()
		entries = append(entries, TermEntry{Key: k, Postings: postings})
	}
	return entries
}

// Docs returns the registered documents in DocID order.
func (m *MemoryIndex) Docs() []DocEntry {
	return slices.Clone(m.docs)
}

// Sentences returns the stored sentences in (DocID, Pos) order.
func (m *MemoryIndex) Sentences() []SentenceEntry {
	sents := slices.Clone(m.sents)
	slices.SortFunc(sents, func(a, b SentenceEntry) int {
		return Pair{a.DocID, a.Pos}.Compare(Pair{b.DocID, b.Pos})
	})
	return sents
}

// Reset drops all accumulated state.
func (m *MemoryIndex) Reset() {
	m.terms = make(map[string]List)
	m.docs = nil
	m.sents = nil
	m.locs = make(map[string]int32)
	m.refs = 0
}
