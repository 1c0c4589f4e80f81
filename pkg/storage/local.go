package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// tempPrefix marks in-flight writes; List skips them.
const tempPrefix = ".put-"

// Local keeps objects as files below a root directory.
type Local struct {
	dir string
}

// NewLocal opens a Local store at dir, creating it if needed.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, opError("open", dir, err)
	}
	return &Local{dir: abs}, nil
}

// Dir is the absolute root of the store.
func (l *Local) Dir() string { return l.dir }

func (l *Local) file(key string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	return filepath.Join(l.dir, filepath.FromSlash(key)), nil
}

func (l *Local) Get(_ context.Context, key string) ([]byte, error) {
	name, err := l.file(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(name)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, opError("get", key, ErrNotFound)
	case err != nil:
		return nil, opError("get", key, err)
	}
	return data, nil
}

// Put writes through a temporary sibling file and a rename, so a
// concurrent Get sees the old object or the new one.
func (l *Local) Put(_ context.Context, key string, data []byte) error {
	name, err := l.file(key)
	if err != nil {
		return err
	}
	if err := writeAtomic(name, data); err != nil {
		return opError("put", key, err)
	}
	return nil
}

func writeAtomic(name string, data []byte) error {
	dir := filepath.Dir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	_, werr := f.Write(data)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return werr
	}
	return os.Rename(f.Name(), name)
}

func (l *Local) Delete(_ context.Context, key string) error {
	name, err := l.file(key)
	if err != nil {
		return err
	}
	if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return opError("delete", key, err)
	}
	return nil
}

func (l *Local) Exists(_ context.Context, key string) (bool, error) {
	name, err := l.file(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(name)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, opError("stat", key, err)
	}
	return info.Mode().IsRegular(), nil
}

func (l *Local) List(ctx context.Context, prefix string) ([]string, error) {
	if err := validPrefix(prefix); err != nil {
		return nil, err
	}
	// Walk only the directory the prefix points into.
	start := l.dir
	if i := strings.LastIndexByte(prefix, '/'); i > 0 {
		start = filepath.Join(l.dir, filepath.FromSlash(prefix[:i]))
	}
	var keys []string
	err := filepath.WalkDir(start, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && name == start {
				return fs.SkipDir
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		rel, err := filepath.Rel(l.dir, name)
		if err != nil {
			return err
		}
		if key := filepath.ToSlash(rel); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, opError("list", prefix, err)
	}
	slices.Sort(keys)
	return keys, nil
}

var _ BlobStore = (*Local)(nil)
