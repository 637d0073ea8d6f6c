package segment

import (
	"errors"
	"testing"

	"github.com/hack-pad/hackpadfs"
	"github.com/hack-pad/hackpadfs/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
)

func newFS(t *testing.T) hackpadfs.FS {
	t.Helper()
	fsys, err := mem.NewFS()
	require.NoError(t, err)
	return fsys
}

func pairs(n int) index.List {
	l := make(index.List, 0, n)
	for i := n; i > 0; i-- {
		l = append(l, index.Pair{DocID: int32(i), Pos: int32(i * 3 % 7)})
	}
	return l
}

func TestPostingRoundTrip(t *testing.T) {
	for n := 0; n <= 12; n++ {
		want := pairs(n)
		v, err := EncodePosting(want)
		require.NoError(t, err)
		assert.Equal(t, n >= CompressThreshold, IsCompressed(v), "n=%d", n)
		if n < CompressThreshold {
			assert.Len(t, v, 4+8*n)
		}
		got, err := DecodePosting(v)
		require.NoError(t, err)
		assert.Equal(t, want, got, "n=%d", n)
	}
}

func TestPostingSortsDescending(t *testing.T) {
	v, err := EncodePosting(index.List{{DocID: 1, Pos: 2}, {DocID: 3, Pos: 1}, {DocID: 1, Pos: 5}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 3, 0, 0, 0, 3, 0, 0, 0, 1}, v[:12])
	got, err := DecodePosting(v)
	require.NoError(t, err)
	assert.Equal(t, index.List{{DocID: 3, Pos: 1}, {DocID: 1, Pos: 5}, {DocID: 1, Pos: 2}}, got)
}

func TestDecodePostingRejectsGarbage(t *testing.T) {
	_, err := DecodePosting([]byte{0, 0})
	assert.ErrorIs(t, err, apperrors.ErrSegmentCorrupted)
	_, err = DecodePosting([]byte{0, 0, 0, 2, 1, 2, 3})
	assert.ErrorIs(t, err, apperrors.ErrSegmentCorrupted)
	_, err = DecodePosting([]byte{0, 0, 0, 9, 'n', 'o', 'p', 'e'})
	assert.ErrorIs(t, err, apperrors.ErrSegmentCorrupted)
}

func TestKeys(t *testing.T) {
	k := WordKey(3, "ab")
	assert.Equal(t, "\x13ab", k)
	assert.True(t, IsWordKey(k))
	assert.False(t, IsWordKey(LabelKey("x")))
	assert.Equal(t, []byte{0xf1, 'x'}, []byte(LabelKey("x")))
	assert.Equal(t, []byte{0x80, 'i'}, []byte(MessageIDKey("i")))
	assert.Equal(t, []byte{0x81, 'i'}, []byte(ReferenceKey("i")))
	assert.Equal(t, []byte{0xfe, 'l'}, []byte(LocationKey("l")))
	assert.Equal(t, []byte{0xff}, []byte(InfoKey()))

	tag, payload, err := DecodeFeatureKey(YomiKey([]byte{0xab, 0xcd}))
	require.NoError(t, err)
	assert.Equal(t, TagYomi, tag)
	assert.Equal(t, []byte{0xab, 0xcd}, payload)
	_, _, err = DecodeFeatureKey("")
	assert.ErrorIs(t, err, apperrors.ErrSegmentCorrupted)

	assert.Equal(t, []byte{0xf0, 0x07, 0xd9}, []byte(DateKey(2009, 0, 0)))
	assert.Equal(t, []byte{0xf0, 0x07, 0xd9, 3}, []byte(DateKey(2009, 3, 0)))
	assert.Equal(t, []byte{0xf0, 0x07, 0xd9, 3, 14}, []byte(DateKey(2009, 3, 14)))
	y, m, d, err := DecodeDateKey(DateKey(2009, 3, 14))
	require.NoError(t, err)
	assert.Equal(t, []int{2009, 3, 14}, []int{y, m, d})

	doc, sent, err := DecodeSentenceKey(SentenceKey(258, 7))
	require.NoError(t, err)
	assert.Equal(t, int32(258), doc)
	assert.Equal(t, int32(7), sent)
	assert.Equal(t, []byte{0, 0, 0, 1, 2, 0, 0, 0, 7}, []byte(SentenceKey(258, 7)))

	id, err := DecodeDocInfoKey(DocInfoKey(42))
	require.NoError(t, err)
	assert.Equal(t, int32(42), id)

	mtime, loc, err := DecodeDocValue(EncodeDocValue(1234567, "a/b.txt"))
	require.NoError(t, err)
	assert.Equal(t, int64(1234567), mtime)
	assert.Equal(t, "a/b.txt", loc)

	info, err := DecodeInfo(EncodeInfo(Info{Docs: 3, Terms: 99}))
	require.NoError(t, err)
	assert.Equal(t, Info{Docs: 3, Terms: 99}, info)
}

func TestDecodeKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{SentenceKey(3, 0), "sent(3,0)"},
		{WordKey(2, "あい"), "term:|あい-"},
		{WordKey(3, "abc"), "term:|abc|"},
		{YomiKey([]byte{0xa2, 0xe1}), "yomi:アメ"},
		{DateKey(2024, 5, 0), "date:2024/05"},
		{DateKey(2024, 5, 9), "date:2024/05/09"},
		{LabelKey("inbox"), `label:"inbox"`},
		{MessageIDKey("<a@b>"), `message-id:"<a@b>"`},
		{DocInfoKey(7), "docid:7"},
		{LocationKey("x/y"), `loc:"x/y"`},
		{InfoKey(), "info"},
	}
	for _, tt := range tests {
		got, err := DecodeKey(tt.key)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
	_, err := DecodeKey("")
	assert.ErrorIs(t, err, apperrors.ErrSegmentCorrupted)
}

func writeSample(t *testing.T, fsys hackpadfs.FS, name string) {
	t.Helper()
	w, err := Create(fsys, name)
	require.NoError(t, err)
	require.NoError(t, w.AddPosting(WordKey(3, "zz"), index.List{{DocID: 1, Pos: 1}}))
	require.NoError(t, w.AddSentence(2, 1, "second doc"))
	require.NoError(t, w.AddSentence(1, 0, "title"))
	require.NoError(t, w.AddSentence(1, 1, "body"))
	require.NoError(t, w.AddPosting(WordKey(3, "aa"), pairs(6)))
	require.NoError(t, w.AddDoc(1, 100, "one.txt"))
	require.NoError(t, w.AddDoc(2, 200, "two.txt"))
	require.NoError(t, w.SetInfo(Info{Docs: 2, Terms: 2}))
	require.NoError(t, w.Commit())
}

func TestWriterReader(t *testing.T) {
	fsys := newFS(t)
	writeSample(t, fsys, "idx00000.seg")

	entries, err := hackpadfs.ReadDir(fsys, ".")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "idx00000.seg", entries[0].Name())

	r, err := Open(fsys, "idx00000.seg")
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 10, r.Len())
	for i := 1; i < r.Len(); i++ {
		assert.Less(t, r.Key(i-1), r.Key(i))
	}

	got, err := r.Postings(WordKey(3, "aa"))
	require.NoError(t, err)
	assert.Equal(t, pairs(6), got)
	missing, err := r.Postings(WordKey(3, "qq"))
	require.NoError(t, err)
	assert.Nil(t, missing)

	s, ok := r.Sentence(1, 0)
	assert.True(t, ok)
	assert.Equal(t, "title", s)
	var texts []string
	require.NoError(t, r.Sentences(1, func(_ int32, text string) bool {
		texts = append(texts, text)
		return true
	}))
	assert.Equal(t, []string{"title", "body"}, texts)

	mtime, loc, ok, err := r.Doc(2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(200), mtime)
	assert.Equal(t, "two.txt", loc)

	id, ok, err := r.DocID("one.txt")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(1), id)
	_, ok, err = r.DocID("three.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	info, err := r.Info()
	require.NoError(t, err)
	assert.Equal(t, Info{Docs: 2, Terms: 2}, info)

	var words []string
	r.Scan(string([]byte{TagWord | 3}), func(key string, _ []byte) bool {
		words = append(words, key[1:])
		return true
	})
	assert.Equal(t, []string{"aa", "zz"}, words)
}

func TestWriterRejectsDuplicateKey(t *testing.T) {
	fsys := newFS(t)
	w, err := Create(fsys, "dup.seg")
	require.NoError(t, err)
	defer w.Abort()
	require.NoError(t, w.Add("k", []byte("1")))
	err = w.Add("k", []byte("2"))
	assert.ErrorIs(t, err, apperrors.ErrDuplicateKey)
}

func TestUnpublishedSegmentIsInvisible(t *testing.T) {
	fsys := newFS(t)
	w, err := Create(fsys, "idx00001.seg")
	require.NoError(t, err)
	require.NoError(t, w.SetInfo(Info{}))
	require.NoError(t, w.Close())

	_, err = Open(fsys, "idx00001.seg")
	assert.True(t, errors.Is(err, hackpadfs.ErrNotExist))

	require.NoError(t, w.Publish())
	_, err = Open(fsys, "idx00001.seg")
	assert.NoError(t, err)
}

func TestAbortRemovesTempFile(t *testing.T) {
	fsys := newFS(t)
	w, err := Create(fsys, "idx00002.seg")
	require.NoError(t, err)
	require.NoError(t, w.Add("k", []byte("v")))
	w.Abort()

	entries, err := hackpadfs.ReadDir(fsys, ".")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Error(t, w.Publish())
}

func TestCorruptSegmentIsRejected(t *testing.T) {
	fsys := newFS(t)
	writeSample(t, fsys, "good.seg")
	data, err := hackpadfs.ReadFile(fsys, "good.seg")
	require.NoError(t, err)

	mutate := map[string]func([]byte) []byte{
		"truncated": func(b []byte) []byte { return b[:len(b)-7] },
		"bad magic": func(b []byte) []byte { b[0] ^= 0xff; return b },
		"directory byte": func(b []byte) []byte {
			b[len(b)-FooterSize-1] ^= 0x01
			return b
		},
		"too short": func(b []byte) []byte { return b[:10] },
	}
	for name, fn := range mutate {
		t.Run(name, func(t *testing.T) {
			bad := fn(append([]byte(nil), data...))
			require.NoError(t, hackpadfs.WriteFullFile(fsys, "bad.seg", bad, 0o644))
			_, err := Open(fsys, "bad.seg")
			assert.ErrorIs(t, err, apperrors.ErrSegmentCorrupted)
		})
	}
}
