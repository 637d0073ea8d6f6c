// Package indexdir manages the set of segments that make up one index: it
// lists them newest first, pools open readers and answers questions that
// span segments, such as where a location was last indexed.
package indexdir

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hack-pad/hackpadfs"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/storage"
)

const (
	// Ext is the file extension of published segments.
	Ext = ".seg"
	// BackupExt marks segments replaced by a merge and awaiting cleanup.
	BackupExt = ".bak"
	// DefaultPrefix names segments when no prefix is configured.
	DefaultPrefix = "idx"
)

var prefixPattern = regexp.MustCompile(`^[a-z]{3}$`)

type pooled struct {
	reader  *segment.Reader
	size    int64
	modTime time.Time
}

// Directory is an index stored as numbered segment files in one directory.
// It is safe for concurrent use.
type Directory struct {
	fsys    hackpadfs.FS
	prefix  string
	pattern *regexp.Regexp

	mu       sync.RWMutex
	segments []string
	pool     map[string]*pooled
	logger   *slog.Logger
}

// Open lists the segments of the index with the given three-letter prefix.
func Open(fsys hackpadfs.FS, prefix string) (*Directory, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !prefixPattern.MatchString(prefix) {
		return nil, fmt.Errorf("index prefix %q: %w: want three lowercase letters", prefix, apperrors.ErrInvalidInput)
	}
	d := &Directory{
		fsys:    fsys,
		prefix:  prefix,
		pattern: regexp.MustCompile(`^` + prefix + `\d{5}` + regexp.QuoteMeta(Ext) + `$`),
		pool:    make(map[string]*pooled),
		logger:  slog.Default().With("component", "index-directory", "prefix", prefix),
	}
	if err := d.Refresh(); err != nil {
		return nil, err
	}
	return d, nil
}

// OpenPath opens the index kept in the host directory dir, creating the
// directory when create is set.
func OpenPath(dir, prefix string, create bool) (*Directory, error) {
	fsys, err := storage.OS(dir, create)
	if err != nil {
		return nil, err
	}
	return Open(fsys, prefix)
}

// FS returns the filesystem holding the index.
func (d *Directory) FS() hackpadfs.FS {
	return d.fsys
}

func (d *Directory) Prefix() string {
	return d.prefix
}

// SegmentName returns the file name of segment id.
func (d *Directory) SegmentName(id int) string {
	return fmt.Sprintf("%s%05d%s", d.prefix, id, Ext)
}

// SegmentID parses the numeric id out of a segment file name.
func (d *Directory) SegmentID(name string) (int, bool) {
	if !d.pattern.MatchString(name) {
		return 0, false
	}
	id, err := strconv.Atoi(name[len(d.prefix) : len(d.prefix)+5])
	if err != nil {
		return 0, false
	}
	return id, true
}

// Refresh rescans the directory. Pooled readers whose files disappeared or
// changed are dropped from the pool; searches still holding them finish on
// the old data.
func (d *Directory) Refresh() error {
	entries, err := hackpadfs.ReadDir(d.fsys, ".")
	if err != nil {
		return fmt.Errorf("listing index directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	stats := make(map[string]hackpadfs.FileInfo, len(entries))
	for _, e := range entries {
		if e.IsDir() || !d.pattern.MatchString(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, hackpadfs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		names = append(names, e.Name())
		stats[e.Name()] = info
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	d.mu.Lock()
	defer d.mu.Unlock()
	for name, p := range d.pool {
		info, ok := stats[name]
		if ok && info.Size() == p.size && info.ModTime().Equal(p.modTime) {
			continue
		}
		delete(d.pool, name)
	}
	d.segments = names
	d.logger.Debug("index directory refreshed", "segments", len(names))
	return nil
}

// Segments returns the segment names, newest first.
func (d *Directory) Segments() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.segments...)
}

// Len returns the number of segments.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.segments)
}

// NextSegmentID returns the id a newly flushed segment should take.
func (d *Directory) NextSegmentID() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	next := 0
	for _, name := range d.segments {
		if id, ok := d.SegmentID(name); ok && id >= next {
			next = id + 1
		}
	}
	return next
}

// Segment returns the reader for the i-th segment, newest first.
func (d *Directory) Segment(i int) (*segment.Reader, error) {
	d.mu.RLock()
	if i < 0 || i >= len(d.segments) {
		d.mu.RUnlock()
		return nil, fmt.Errorf("segment %d: %w", i, apperrors.ErrSegmentNotFound)
	}
	name := d.segments[i]
	if p, ok := d.pool[name]; ok {
		d.mu.RUnlock()
		return p.reader, nil
	}
	d.mu.RUnlock()
	return d.open(name)
}

// SegmentByName returns the reader for the named segment.
func (d *Directory) SegmentByName(name string) (*segment.Reader, error) {
	d.mu.RLock()
	if p, ok := d.pool[name]; ok {
		d.mu.RUnlock()
		return p.reader, nil
	}
	d.mu.RUnlock()
	return d.open(name)
}

func (d *Directory) open(name string) (*segment.Reader, error) {
	info, err := hackpadfs.Stat(d.fsys, name)
	if err != nil {
		if errors.Is(err, hackpadfs.ErrNotExist) {
			return nil, fmt.Errorf("segment %s: %w", name, apperrors.ErrSegmentNotFound)
		}
		return nil, fmt.Errorf("stat segment %s: %w", name, err)
	}
	r, err := segment.Open(d.fsys, name)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pool[name]; ok {
		r.Close()
		return p.reader, nil
	}
	d.pool[name] = &pooled{reader: r, size: info.Size(), modTime: info.ModTime()}
	return r, nil
}

// Evict drops the pooled readers of the named segments so the next access
// reopens them.
func (d *Directory) Evict(names ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, name := range names {
		delete(d.pool, name)
	}
}

// NewSegmentWriter starts segment id. It becomes visible after the writer
// is committed and the directory refreshed.
func (d *Directory) NewSegmentWriter(id int) (*segment.Writer, error) {
	return segment.Create(d.fsys, d.SegmentName(id))
}

// TotalDocs sums the document counts of all segments.
func (d *Directory) TotalDocs() (int, error) {
	total := 0
	for i := range d.Len() {
		r, err := d.Segment(i)
		if err != nil {
			return 0, err
		}
		info, err := r.Info()
		if err != nil {
			return 0, err
		}
		total += info.Docs
	}
	return total, nil
}

// LocationIndexed returns the newest segment holding loc and its DocID
// there.
func (d *Directory) LocationIndexed(loc string) (seg int, docID int32, found bool, err error) {
	for i := range d.Len() {
		r, err := d.Segment(i)
		if err != nil {
			return 0, 0, false, err
		}
		id, ok, err := r.DocID(loc)
		if err != nil {
			return 0, 0, false, err
		}
		if ok {
			return i, id, true, nil
		}
	}
	return 0, 0, false, nil
}

// LastLocation returns the location of the most recently indexed document.
func (d *Directory) LastLocation() (string, bool, error) {
	if d.Len() == 0 {
		return "", false, nil
	}
	r, err := d.Segment(0)
	if err != nil {
		return "", false, err
	}
	info, err := r.Info()
	if err != nil {
		return "", false, err
	}
	_, loc, ok, err := r.Doc(int32(info.Docs))
	if err != nil || !ok {
		return "", false, err
	}
	return loc, true, nil
}

// ModTime returns the modification time of the newest segment, or the zero
// time for an empty index.
func (d *Directory) ModTime() (time.Time, error) {
	segs := d.Segments()
	if len(segs) == 0 {
		return time.Time{}, nil
	}
	info, err := hackpadfs.Stat(d.fsys, segs[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("stat %s: %w", segs[0], err)
	}
	return info.ModTime(), nil
}

// Backup renames a segment out of the listing ahead of its replacement.
func (d *Directory) Backup(name string) error {
	if err := hackpadfs.Rename(d.fsys, name, name+BackupExt); err != nil {
		return fmt.Errorf("backing up %s: %w", name, err)
	}
	d.Evict(name)
	return nil
}

// Rename moves a published segment to a new name.
func (d *Directory) Rename(oldName, newName string) error {
	if err := hackpadfs.Rename(d.fsys, oldName, newName); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", oldName, newName, err)
	}
	d.Evict(oldName, newName)
	return nil
}

// Cleanup removes segments left behind by merges.
func (d *Directory) Cleanup() error {
	entries, err := hackpadfs.ReadDir(d.fsys, ".")
	if err != nil {
		return fmt.Errorf("listing index directory: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, d.prefix) || !strings.HasSuffix(name, Ext+BackupExt) {
			continue
		}
		if err := hackpadfs.Remove(d.fsys, name); err != nil {
			return fmt.Errorf("removing %s: %w", name, err)
		}
		d.logger.Info("removed merged segment", "file", name)
	}
	return nil
}

// Close releases every pooled reader.
func (d *Directory) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for name, p := range d.pool {
		p.reader.Close()
		delete(d.pool, name)
	}
	d.segments = nil
	return nil
}
