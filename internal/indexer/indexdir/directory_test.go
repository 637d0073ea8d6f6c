package indexdir

import (
	"testing"

	"github.com/hack-pad/hackpadfs"
	"github.com/hack-pad/hackpadfs/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
)

func newDir(t *testing.T) *Directory {
	t.Helper()
	fsys, err := mem.NewFS()
	require.NoError(t, err)
	d, err := Open(fsys, "")
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func publish(t *testing.T, d *Directory, id int, locs ...string) {
	t.Helper()
	w, err := d.NewSegmentWriter(id)
	require.NoError(t, err)
	for i, loc := range locs {
		require.NoError(t, w.AddDoc(int32(i+1), int64(100+i), loc))
	}
	require.NoError(t, w.SetInfo(segment.Info{Docs: len(locs)}))
	require.NoError(t, w.Commit())
}

func TestOpenRejectsBadPrefix(t *testing.T) {
	fsys, err := mem.NewFS()
	require.NoError(t, err)
	_, err = Open(fsys, "IDX1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestSegmentNames(t *testing.T) {
	d := newDir(t)
	assert.Equal(t, "idx00042.seg", d.SegmentName(42))
	id, ok := d.SegmentID("idx00042.seg")
	assert.True(t, ok)
	assert.Equal(t, 42, id)
	_, ok = d.SegmentID("abc00042.seg")
	assert.False(t, ok)
	_, ok = d.SegmentID("idx00042.seg.bak")
	assert.False(t, ok)
}

func TestRefreshListsNewestFirst(t *testing.T) {
	d := newDir(t)
	assert.Equal(t, 0, d.NextSegmentID())

	publish(t, d, 0, "a", "b")
	publish(t, d, 1, "c")
	assert.Equal(t, 0, d.Len(), "published segments stay hidden until refresh")

	require.NoError(t, d.Refresh())
	assert.Equal(t, []string{"idx00001.seg", "idx00000.seg"}, d.Segments())
	assert.Equal(t, 2, d.NextSegmentID())

	total, err := d.TotalDocs()
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	last, ok, err := d.LastLocation()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "c", last)
}

func TestLocationIndexedPrefersNewest(t *testing.T) {
	d := newDir(t)
	publish(t, d, 0, "a", "b")
	publish(t, d, 1, "x", "b")
	require.NoError(t, d.Refresh())

	seg, id, ok, err := d.LocationIndexed("b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, seg)
	assert.Equal(t, int32(2), id)

	seg, id, ok, err = d.LocationIndexed("a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, seg)
	assert.Equal(t, int32(1), id)

	_, _, ok, err = d.LocationIndexed("zzz")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPoolSharesReaders(t *testing.T) {
	d := newDir(t)
	publish(t, d, 0, "a")
	require.NoError(t, d.Refresh())

	r1, err := d.Segment(0)
	require.NoError(t, err)
	r2, err := d.SegmentByName("idx00000.seg")
	require.NoError(t, err)
	assert.Same(t, r1, r2)

	d.Evict("idx00000.seg")
	r3, err := d.Segment(0)
	require.NoError(t, err)
	assert.NotSame(t, r1, r3)

	_, err = d.Segment(5)
	assert.ErrorIs(t, err, apperrors.ErrSegmentNotFound)
	_, err = d.SegmentByName("idx00099.seg")
	assert.ErrorIs(t, err, apperrors.ErrSegmentNotFound)
}

func TestBackupAndCleanup(t *testing.T) {
	d := newDir(t)
	publish(t, d, 0, "a")
	publish(t, d, 1, "b")
	require.NoError(t, d.Backup("idx00000.seg"))
	require.NoError(t, d.Refresh())
	assert.Equal(t, []string{"idx00001.seg"}, d.Segments())

	require.NoError(t, d.Cleanup())
	entries, err := hackpadfs.ReadDir(d.FS(), ".")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "idx00001.seg", entries[0].Name())
}

func TestEmptyDirectory(t *testing.T) {
	d := newDir(t)
	_, ok, err := d.LastLocation()
	require.NoError(t, err)
	assert.False(t, ok)
	mt, err := d.ModTime()
	require.NoError(t, err)
	assert.True(t, mt.IsZero())
}
