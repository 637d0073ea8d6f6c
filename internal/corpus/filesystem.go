package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/hack-pad/hackpadfs"

	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/storage"
)

// FilesystemCorpus reads documents from files. A Location is the slash
// separated path of the file relative to the corpus root.
type FilesystemCorpus struct {
	fsys         hackpadfs.FS
	docType      DocType
	encoding     string
	defaultTitle bool
}

// NewFilesystem serves documents from fsys. With defaultTitle set, a file's
// base name is used as its title.
func NewFilesystem(fsys hackpadfs.FS, docType DocType, encoding string, defaultTitle bool) *FilesystemCorpus {
	if docType == nil {
		docType = NewPlainText
	}
	return &FilesystemCorpus{fsys: fsys, docType: docType, encoding: encoding, defaultTitle: defaultTitle}
}

func cleanLocation(loc string) (string, error) {
	p := path.Clean(strings.TrimPrefix(loc, "/"))
	if !fs.ValidPath(p) || p == "." {
		return "", fmt.Errorf("location %q: %w", loc, apperrors.ErrInvalidInput)
	}
	return p, nil
}

func notFound(loc string, err error) error {
	if errors.Is(err, hackpadfs.ErrNotExist) {
		return fmt.Errorf("%s: %w", loc, apperrors.ErrLocationNotFound)
	}
	return fmt.Errorf("%s: %w", loc, err)
}

func (c *FilesystemCorpus) source(_ context.Context, loc string) (Source, error) {
	p, err := cleanLocation(loc)
	if err != nil {
		return Source{}, err
	}
	info, err := hackpadfs.Stat(c.fsys, p)
	if err != nil {
		return Source{}, notFound(loc, err)
	}
	data, err := hackpadfs.ReadFile(c.fsys, p)
	if err != nil {
		return Source{}, notFound(loc, err)
	}
	src := Source{Location: loc, ModTime: info.ModTime().Unix(), Encoding: c.encoding, Data: data}
	if c.defaultTitle {
		src.Title = path.Base(p)
	}
	return src, nil
}

func (c *FilesystemCorpus) Document(ctx context.Context, loc string) (Document, error) {
	return load(ctx, c, c.docType, loc)
}

func (c *FilesystemCorpus) Exists(_ context.Context, loc string) (bool, error) {
	p, err := cleanLocation(loc)
	if err != nil {
		return false, err
	}
	return storage.Exists(c.fsys, p)
}

func (c *FilesystemCorpus) ModifiedTime(_ context.Context, loc string) (int64, error) {
	p, err := cleanLocation(loc)
	if err != nil {
		return 0, err
	}
	info, err := hackpadfs.Stat(c.fsys, p)
	if err != nil {
		return 0, notFound(loc, err)
	}
	return info.ModTime().Unix(), nil
}

func (c *FilesystemCorpus) Labels(context.Context, string) ([]string, error) {
	return nil, nil
}

// Locations lists every file below the root, skipping dot files,
// in lexical order.
func (c *FilesystemCorpus) Locations(ctx context.Context) ([]string, error) {
	var locs []string
	var walk func(dir string) error
	walk = func(dir string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		entries, err := hackpadfs.ReadDir(c.fsys, dir)
		if err != nil {
			return fmt.Errorf("listing %s: %w", dir, err)
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".") {
				continue
			}
			p := path.Join(dir, e.Name())
			if e.IsDir() {
				if err := walk(p); err != nil {
					return err
				}
				continue
			}
			locs = append(locs, p)
		}
		return nil
	}
	if err := walk("."); err != nil {
		return nil, err
	}
	sort.Strings(locs)
	return locs, nil
}
