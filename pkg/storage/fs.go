// Package storage opens the hackpadfs filesystems that back index
// directories and filesystem corpora.
package storage

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/hack-pad/hackpadfs"
	osfs "github.com/hack-pad/hackpadfs/os"
)

// OS returns a filesystem rooted at dir on the host. When create is set the
// directory is created if missing.
func OS(dir string, create bool) (hackpadfs.FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}
	root := osfs.NewFS()
	p, err := root.FromOSPath(abs)
	if err != nil {
		return nil, fmt.Errorf("converting %s: %w", abs, err)
	}
	if create {
		if err := hackpadfs.MkdirAll(root, p, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", abs, err)
		}
	}
	info, err := hackpadfs.Stat(root, p)
	if err != nil {
		return nil, fmt.Errorf("opening directory %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("opening directory %s: not a directory", abs)
	}
	sub, err := root.Sub(p)
	if err != nil {
		return nil, fmt.Errorf("rooting filesystem at %s: %w", abs, err)
	}
	return sub, nil
}

// Sync flushes file to stable storage. Filesystems without a sync
// primitive, such as the in-memory one, are treated as already durable.
func Sync(file hackpadfs.File) error {
	err := hackpadfs.SyncFile(file)
	if err != nil && errors.Is(err, hackpadfs.ErrNotImplemented) {
		return nil
	}
	return err
}

// Exists reports whether name exists in fsys.
func Exists(fsys hackpadfs.FS, name string) (bool, error) {
	_, err := hackpadfs.Stat(fsys, name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, hackpadfs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
