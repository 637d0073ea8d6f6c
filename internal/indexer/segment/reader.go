package segment

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hack-pad/hackpadfs"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
)

// Reader serves lookups from a sealed segment held in memory.
type Reader struct {
	name      string
	createdAt time.Time
	data      []byte
	dir       []dirEntry
}

// Open loads and validates the segment called name.
func Open(fsys hackpadfs.FS, name string) (*Reader, error) {
	data, err := hackpadfs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r, err := parse(name, data)
	if err != nil {
		return nil, fmt.Errorf("opening segment %s: %w", name, err)
	}
	return r, nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrSegmentCorrupted, fmt.Sprintf(format, args...))
}

func parse(name string, data []byte) (*Reader, error) {
	if len(data) < HeaderSize+FooterSize {
		return nil, corrupt("file too short (%d bytes)", len(data))
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != MagicBytes {
		return nil, corrupt("bad magic bytes %x", magic)
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != FormatVersion {
		return nil, corrupt("unsupported version %d", v)
	}
	createdAt := time.Unix(int64(binary.LittleEndian.Uint64(data[8:16])), 0)

	footer := data[len(data)-FooterSize:]
	if magic := binary.LittleEndian.Uint32(footer[0:4]); magic != MagicBytes {
		return nil, corrupt("bad footer magic %x", magic)
	}
	if v := binary.LittleEndian.Uint32(footer[4:8]); v != FormatVersion {
		return nil, corrupt("footer version %d", v)
	}
	count := binary.LittleEndian.Uint64(footer[8:16])
	dirOffset := binary.LittleEndian.Uint64(footer[16:24])
	dirSize := binary.LittleEndian.Uint64(footer[24:32])
	checksum := binary.LittleEndian.Uint64(footer[32:40])
	dirEnd := uint64(len(data) - FooterSize)
	if dirOffset < uint64(HeaderSize) || dirOffset > dirEnd || dirEnd-dirOffset != dirSize {
		return nil, corrupt("directory bounds %d+%d", dirOffset, dirSize)
	}
	raw := data[dirOffset:dirEnd]
	if xxhash.Sum64(raw) != checksum {
		return nil, corrupt("directory checksum mismatch")
	}
	if count > uint64(len(raw)) {
		return nil, corrupt("directory count %d", count)
	}

	dir := make([]dirEntry, 0, count)
	for len(raw) > 0 {
		keyLen, n := binary.Uvarint(raw)
		if n <= 0 || keyLen > uint64(len(raw)) || uint64(len(raw)-n) < keyLen+12 {
			return nil, corrupt("truncated directory entry %d", len(dir))
		}
		raw = raw[n:]
		e := dirEntry{
			key:    string(raw[:keyLen]),
			offset: binary.LittleEndian.Uint64(raw[keyLen : keyLen+8]),
			length: binary.LittleEndian.Uint32(raw[keyLen+8 : keyLen+12]),
		}
		raw = raw[keyLen+12:]
		if e.offset < uint64(HeaderSize) || e.offset > dirOffset || e.offset+uint64(e.length) > dirOffset {
			return nil, corrupt("value of %q out of bounds", e.key)
		}
		if len(dir) > 0 && dir[len(dir)-1].key >= e.key {
			return nil, corrupt("directory not sorted at %q", e.key)
		}
		dir = append(dir, e)
	}
	if uint64(len(dir)) != count {
		return nil, corrupt("directory holds %d entries, footer says %d", len(dir), count)
	}
	return &Reader{name: name, createdAt: createdAt, data: data, dir: dir}, nil
}

func (r *Reader) Name() string {
	return r.name
}

func (r *Reader) CreatedAt() time.Time {
	return r.createdAt
}

// Len returns the number of records.
func (r *Reader) Len() int {
	return len(r.dir)
}

// Key returns the i-th key in sorted order.
func (r *Reader) Key(i int) string {
	return r.dir[i].key
}

// Value returns the value of the i-th key. The slice must not be modified.
func (r *Reader) Value(i int) []byte {
	e := r.dir[i]
	return r.data[e.offset : e.offset+uint64(e.length)]
}

// Seek returns the position of the first key not less than key.
func (r *Reader) Seek(key string) int {
	return sort.Search(len(r.dir), func(i int) bool {
		return r.dir[i].key >= key
	})
}

// Get returns the value stored under key.
func (r *Reader) Get(key string) ([]byte, bool) {
	i := r.Seek(key)
	if i >= len(r.dir) || r.dir[i].key != key {
		return nil, false
	}
	return r.Value(i), true
}

// Scan calls fn for every key with the given prefix, in order, until fn
// returns false.
func (r *Reader) Scan(prefix string, fn func(key string, value []byte) bool) {
	for i := r.Seek(prefix); i < len(r.dir); i++ {
		if !strings.HasPrefix(r.dir[i].key, prefix) {
			return
		}
		if !fn(r.dir[i].key, r.Value(i)) {
			return
		}
	}
}

// Postings returns the posting list stored under key, or nil when the key
// is absent.
func (r *Reader) Postings(key string) (index.List, error) {
	v, ok := r.Get(key)
	if !ok {
		return nil, nil
	}
	pairs, err := DecodePosting(v)
	if err != nil {
		return nil, fmt.Errorf("%s: key %q: %w", r.name, key, err)
	}
	return pairs, nil
}

// Sentence returns the stored text of one sentence.
func (r *Reader) Sentence(docID, sentID int32) (string, bool) {
	v, ok := r.Get(SentenceKey(docID, sentID))
	if !ok {
		return "", false
	}
	return string(v), true
}

// Sentences calls fn for every stored sentence of docID in order.
func (r *Reader) Sentences(docID int32, fn func(sentID int32, text string) bool) error {
	prefix := SentenceKey(docID, 0)[:5]
	var err error
	r.Scan(prefix, func(key string, value []byte) bool {
		_, sentID, derr := DecodeSentenceKey(key)
		if derr != nil {
			err = derr
			return false
		}
		return fn(sentID, string(value))
	})
	return err
}

// Doc returns the modification time and location of docID.
func (r *Reader) Doc(docID int32) (modTime int64, loc string, ok bool, err error) {
	v, found := r.Get(DocInfoKey(docID))
	if !found {
		return 0, "", false, nil
	}
	modTime, loc, err = DecodeDocValue(v)
	if err != nil {
		return 0, "", false, fmt.Errorf("%s: doc %d: %w", r.name, docID, err)
	}
	return modTime, loc, true, nil
}

// DocID returns the document stored for loc.
func (r *Reader) DocID(loc string) (int32, bool, error) {
	v, found := r.Get(LocationKey(loc))
	if !found {
		return 0, false, nil
	}
	id, err := DecodeDocID(v)
	if err != nil {
		return 0, false, fmt.Errorf("%s: location %q: %w", r.name, loc, err)
	}
	return id, true, nil
}

// Info returns the segment summary.
func (r *Reader) Info() (Info, error) {
	v, ok := r.Get(InfoKey())
	if !ok {
		return Info{}, fmt.Errorf("%s: %w: missing info record", r.name, apperrors.ErrSegmentCorrupted)
	}
	info, err := DecodeInfo(v)
	if err != nil {
		return Info{}, fmt.Errorf("%s: %w", r.name, err)
	}
	return info, nil
}

// Close releases the segment data.
func (r *Reader) Close() error {
	r.data = nil
	r.dir = nil
	return nil
}
