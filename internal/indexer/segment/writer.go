package segment

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/hack-pad/hackpadfs"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/storage"
)

// File layout, all framing integers little endian:
//
//	header  magic u32 | version u32 | createdAt i64
//	records (uvarint keyLen | uvarint valLen | key | value)*
//	dir     (uvarint keyLen | key | offset u64 | length u32)* sorted by key
//	footer  magic u32 | version u32 | count u64 | dirOffset u64 | dirSize u64 | xxhash64(dir) u64
const (
	MagicBytes    uint32 = 0x42475347
	FormatVersion uint32 = 1
	HeaderSize    int    = 16
	FooterSize    int    = 40
)

type dirEntry struct {
	key    string
	offset uint64
	length uint32
}

// fileWriter adapts a hackpadfs file to io.Writer.
type fileWriter struct {
	file hackpadfs.File
}

func (w fileWriter) Write(p []byte) (int, error) {
	return hackpadfs.WriteFile(w.file, p)
}

// Writer builds one segment. Records are streamed to a temporary file in
// any order; Close sorts the directory and seals the file, and Publish
// moves it to its final name.
type Writer struct {
	fsys    hackpadfs.FS
	name    string
	tmpName string
	file    hackpadfs.File
	buf     *bufio.Writer
	offset  uint64
	dir     []dirEntry
	keys    map[string]struct{}
	closed  bool
	aborted bool
	logger  *slog.Logger
}

// Create starts a segment that will be published as name inside fsys.
func Create(fsys hackpadfs.FS, name string) (*Writer, error) {
	tmpName := fmt.Sprintf("%s.%s.tmp", name, uuid.NewString())
	f, err := hackpadfs.OpenFile(fsys, tmpName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating temp segment file: %w", err)
	}
	w := &Writer{
		fsys:    fsys,
		name:    name,
		tmpName: tmpName,
		file:    f,
		buf:     bufio.NewWriterSize(fileWriter{file: f}, 64*1024),
		keys:    make(map[string]struct{}),
		logger:  slog.Default().With("component", "segment-writer", "segment", name),
	}
	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(header[4:8], FormatVersion)
	binary.LittleEndian.PutUint64(header[8:16], uint64(time.Now().Unix()))
	if err := w.write(header); err != nil {
		w.Abort()
		return nil, fmt.Errorf("writing header: %w", err)
	}
	return w, nil
}

// Name returns the final name of the segment.
func (w *Writer) Name() string {
	return w.name
}

// Len returns the number of records added so far.
func (w *Writer) Len() int {
	return len(w.dir)
}

func (w *Writer) write(p []byte) error {
	n, err := w.buf.Write(p)
	w.offset += uint64(n)
	return err
}

// Add stores value under key. Each key may be added once.
func (w *Writer) Add(key string, value []byte) error {
	if w.closed {
		return fmt.Errorf("adding to closed segment %s", w.name)
	}
	if _, dup := w.keys[key]; dup {
		return fmt.Errorf("adding %q to %s: %w", key, w.name, apperrors.ErrDuplicateKey)
	}
	w.keys[key] = struct{}{}
	var lens [2 * binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lens[:], uint64(len(key)))
	n += binary.PutUvarint(lens[n:], uint64(len(value)))
	if err := w.write(lens[:n]); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	if err := w.write([]byte(key)); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	valueOffset := w.offset
	if err := w.write(value); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	w.dir = append(w.dir, dirEntry{key: key, offset: valueOffset, length: uint32(len(value))})
	return nil
}

// AddPosting encodes and stores a posting list.
func (w *Writer) AddPosting(key string, pairs index.List) error {
	v, err := EncodePosting(pairs)
	if err != nil {
		return err
	}
	return w.Add(key, v)
}

// AddSentence stores the text of one sentence.
func (w *Writer) AddSentence(docID, sentID int32, text string) error {
	return w.Add(SentenceKey(docID, sentID), []byte(text))
}

// AddDoc stores the document record of docID and its location reverse
// mapping.
func (w *Writer) AddDoc(docID int32, modTime int64, loc string) error {
	if err := w.Add(DocInfoKey(docID), EncodeDocValue(modTime, loc)); err != nil {
		return err
	}
	return w.Add(LocationKey(loc), EncodeDocID(docID))
}

// SetInfo stores the segment summary.
func (w *Writer) SetInfo(info Info) error {
	return w.Add(InfoKey(), EncodeInfo(info))
}

// Close writes the sorted directory and footer and syncs the temporary file.
// The segment stays invisible until Publish.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	slices.SortFunc(w.dir, func(a, b dirEntry) int { return strings.Compare(a.key, b.key) })

	dirOffset := w.offset
	hasher := xxhash.New()
	var scratch [binary.MaxVarintLen64 + 12]byte
	for _, e := range w.dir {
		n := binary.PutUvarint(scratch[:], uint64(len(e.key)))
		if err := w.write(scratch[:n]); err != nil {
			return w.fail("writing directory", err)
		}
		hasher.Write(scratch[:n])
		if err := w.write([]byte(e.key)); err != nil {
			return w.fail("writing directory", err)
		}
		hasher.WriteString(e.key)
		binary.LittleEndian.PutUint64(scratch[0:8], e.offset)
		binary.LittleEndian.PutUint32(scratch[8:12], e.length)
		if err := w.write(scratch[:12]); err != nil {
			return w.fail("writing directory", err)
		}
		hasher.Write(scratch[:12])
	}
	dirSize := w.offset - dirOffset

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(footer[4:8], FormatVersion)
	binary.LittleEndian.PutUint64(footer[8:16], uint64(len(w.dir)))
	binary.LittleEndian.PutUint64(footer[16:24], dirOffset)
	binary.LittleEndian.PutUint64(footer[24:32], dirSize)
	binary.LittleEndian.PutUint64(footer[32:40], hasher.Sum64())
	if err := w.write(footer); err != nil {
		return w.fail("writing footer", err)
	}
	if err := w.buf.Flush(); err != nil {
		return w.fail("flushing segment", err)
	}
	if err := storage.Sync(w.file); err != nil {
		return w.fail("syncing segment file", err)
	}
	if err := w.file.Close(); err != nil {
		return w.fail("closing segment file", err)
	}
	w.file = nil
	w.logger.Debug("segment sealed", "records", len(w.dir), "bytes", w.offset)
	return nil
}

func (w *Writer) fail(op string, err error) error {
	w.Abort()
	return fmt.Errorf("%s: %w", op, err)
}

// Publish renames the sealed segment to its final name, replacing any file
// already there.
func (w *Writer) Publish() error {
	if !w.closed || w.aborted || w.file != nil {
		return fmt.Errorf("publishing unsealed segment %s", w.name)
	}
	if err := hackpadfs.Rename(w.fsys, w.tmpName, w.name); err != nil {
		return fmt.Errorf("renaming segment file: %w", err)
	}
	w.logger.Info("segment published", "records", len(w.dir))
	return nil
}

// Commit seals and publishes the segment.
func (w *Writer) Commit() error {
	if err := w.Close(); err != nil {
		return err
	}
	return w.Publish()
}

// Abort discards the segment and its temporary file.
func (w *Writer) Abort() {
	w.closed = true
	w.aborted = true
	if w.file != nil {
		w.file.Close()
		w.file = nil
	}
	if err := hackpadfs.Remove(w.fsys, w.tmpName); err != nil {
		w.logger.Debug("removing temp segment", "error", err)
	}
}
