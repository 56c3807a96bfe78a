// Package vfs provides the in-memory virtual filesystem shared by all
// SFTP sessions of one fixture instance.
//
// The filesystem is backed by an afero MemMapFs and has an explicit
// lifecycle: once Close is called, every further operation fails. SFTP
// sessions never receive the filesystem directly; they get a non-closing
// view (see NonClosing) because the session teardown closes whatever
// filesystem handle it was given.
package vfs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

// ErrClosed is returned by every operation on a closed filesystem.
var ErrClosed = errors.New("virtual filesystem is closed")

const (
	dirPerm  = os.FileMode(0o755)
	filePerm = os.FileMode(0o644)
)

// FS is the capability set an SFTP session needs from the filesystem.
// Both FileSystem and the non-closing view implement it.
type FS interface {
	Open(name string) (afero.File, error)
	OpenFile(name string, flag int, perm os.FileMode) (afero.File, error)
	MkdirAll(name string, perm os.FileMode) error
	Stat(name string) (os.FileInfo, error)
	ReadDir(name string) ([]os.FileInfo, error)
	Remove(name string) error
	Rename(oldname, newname string) error
	Chmod(name string, mode os.FileMode) error
	Chtimes(name string, atime, mtime time.Time) error
	Close() error
}

// FileSystem is an in-memory, path-addressed tree of files and
// directories. It is safe for concurrent use; the backing MemMapFs
// serializes its own mutations.
type FileSystem struct {
	mu      sync.RWMutex
	backend afero.Fs
	closed  bool
}

// New creates an empty in-memory filesystem whose root "/" always exists.
func New() *FileSystem {
	return &FileSystem{backend: afero.NewMemMapFs()}
}

// Close releases the filesystem. All subsequent operations fail with
// ErrClosed. Close is idempotent.
func (f *FileSystem) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// use returns the backing filesystem, or ErrClosed after Close.
func (f *FileSystem) use() (afero.Fs, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, ErrClosed
	}
	return f.backend, nil
}

// Normalize converts p into a clean, absolute, slash-separated path.
func Normalize(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	return path.Clean(p)
}

// Open opens the named file for reading.
func (f *FileSystem) Open(name string) (afero.File, error) {
	backend, err := f.use()
	if err != nil {
		return nil, err
	}
	return backend.Open(Normalize(name))
}

// OpenFile opens the named file with the given flags.
func (f *FileSystem) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	backend, err := f.use()
	if err != nil {
		return nil, err
	}
	return backend.OpenFile(Normalize(name), flag, perm)
}

// MkdirAll creates the named directory and any missing ancestors.
// It is a no-op if the directory already exists.
func (f *FileSystem) MkdirAll(name string, perm os.FileMode) error {
	backend, err := f.use()
	if err != nil {
		return err
	}
	return backend.MkdirAll(Normalize(name), perm)
}

// Stat returns file information for the named path.
func (f *FileSystem) Stat(name string) (os.FileInfo, error) {
	backend, err := f.use()
	if err != nil {
		return nil, err
	}
	return backend.Stat(Normalize(name))
}

// ReadDir returns a sorted snapshot of the immediate children of the
// named directory.
func (f *FileSystem) ReadDir(name string) ([]os.FileInfo, error) {
	backend, err := f.use()
	if err != nil {
		return nil, err
	}
	return afero.ReadDir(backend, Normalize(name))
}

// Remove removes the named file or empty directory.
func (f *FileSystem) Remove(name string) error {
	backend, err := f.use()
	if err != nil {
		return err
	}
	return backend.Remove(Normalize(name))
}

// Rename renames oldname to newname.
func (f *FileSystem) Rename(oldname, newname string) error {
	backend, err := f.use()
	if err != nil {
		return err
	}
	return backend.Rename(Normalize(oldname), Normalize(newname))
}

// Chmod changes the mode of the named file.
func (f *FileSystem) Chmod(name string, mode os.FileMode) error {
	backend, err := f.use()
	if err != nil {
		return err
	}
	return backend.Chmod(Normalize(name), mode)
}

// Chtimes changes the access and modification times of the named file.
func (f *FileSystem) Chtimes(name string, atime, mtime time.Time) error {
	backend, err := f.use()
	if err != nil {
		return err
	}
	return backend.Chtimes(Normalize(name), atime, mtime)
}

// EnsureParent creates the ancestor directories of the named path.
// If the parent is the root no directory is created; the root always
// exists.
func (f *FileSystem) EnsureParent(name string) error {
	parent := path.Dir(Normalize(name))
	if parent == "/" {
		return nil
	}
	return f.MkdirAll(parent, dirPerm)
}

// WriteFile writes data as the full content of the named file, creating
// missing ancestor directories first and overwriting any existing file.
func (f *FileSystem) WriteFile(name string, data []byte) error {
	backend, err := f.use()
	if err != nil {
		return err
	}
	if err := f.EnsureParent(name); err != nil {
		return fmt.Errorf("create parent directories: %w", err)
	}
	return afero.WriteFile(backend, Normalize(name), data, filePerm)
}

// WriteReader copies r into the named file until the reader is
// exhausted, creating missing ancestor directories first.
func (f *FileSystem) WriteReader(name string, r io.Reader) error {
	backend, err := f.use()
	if err != nil {
		return err
	}
	if err := f.EnsureParent(name); err != nil {
		return fmt.Errorf("create parent directories: %w", err)
	}
	file, err := backend.Create(Normalize(name))
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(file, r); err != nil {
		file.Close()
		return fmt.Errorf("copy content: %w", err)
	}
	return file.Close()
}

// ReadFile reads the entire content of the named file.
func (f *FileSystem) ReadFile(name string) ([]byte, error) {
	backend, err := f.use()
	if err != nil {
		return nil, err
	}
	return afero.ReadFile(backend, Normalize(name))
}

// IsFile reports whether a regular file exists at the named path.
// A directory at the same path reports false.
func (f *FileSystem) IsFile(name string) (bool, error) {
	info, err := f.Stat(name)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

// RemoveAllChildren deletes every file and directory below the root,
// leaving the root itself intact and empty. Files are removed on visit,
// directories only after all their children are gone.
func (f *FileSystem) RemoveAllChildren() error {
	if _, err := f.use(); err != nil {
		return err
	}
	return f.removeTree("/")
}

// removeTree removes the subtree rooted at dir post-order. The root
// directory "/" is visited but never removed.
func (f *FileSystem) removeTree(dir string) error {
	entries, err := f.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		child := path.Join(dir, entry.Name())
		if entry.IsDir() {
			if err := f.removeTree(child); err != nil {
				return err
			}
			if err := f.Remove(child); err != nil {
				return err
			}
		} else if err := f.Remove(child); err != nil {
			return err
		}
	}
	return nil
}

// Glob returns the sorted paths of all regular files whose path matches
// the doublestar pattern, for example "/logs/**/*.txt".
func (f *FileSystem) Glob(pattern string) ([]string, error) {
	backend, err := f.use()
	if err != nil {
		return nil, err
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}
	pattern = Normalize(pattern)
	var matches []string
	err = afero.Walk(backend, "/", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ok, err := doublestar.Match(pattern, p)
		if err != nil {
			return err
		}
		if ok {
			matches = append(matches, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}
