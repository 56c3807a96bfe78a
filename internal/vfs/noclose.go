package vfs

import (
	"os"
	"time"

	"github.com/spf13/afero"
)

// nonClosing forwards every filesystem operation to the shared
// FileSystem except Close, which does nothing. The SFTP session layer
// closes the filesystem handle it was given at session end; handing it
// this view keeps the shared filesystem alive across sessions.
type nonClosing struct {
	fs *FileSystem
}

// NonClosing returns a view of fs whose Close is a no-op. Every other
// operation behaves exactly like the wrapped filesystem, including
// failing with ErrClosed once the real filesystem has been closed.
func NonClosing(fs *FileSystem) FS {
	return &nonClosing{fs: fs}
}

func (n *nonClosing) Open(name string) (afero.File, error) {
	return n.fs.Open(name)
}

func (n *nonClosing) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	return n.fs.OpenFile(name, flag, perm)
}

func (n *nonClosing) MkdirAll(name string, perm os.FileMode) error {
	return n.fs.MkdirAll(name, perm)
}

func (n *nonClosing) Stat(name string) (os.FileInfo, error) {
	return n.fs.Stat(name)
}

func (n *nonClosing) ReadDir(name string) ([]os.FileInfo, error) {
	return n.fs.ReadDir(name)
}

func (n *nonClosing) Remove(name string) error {
	return n.fs.Remove(name)
}

func (n *nonClosing) Rename(oldname, newname string) error {
	return n.fs.Rename(oldname, newname)
}

func (n *nonClosing) Chmod(name string, mode os.FileMode) error {
	return n.fs.Chmod(name, mode)
}

func (n *nonClosing) Chtimes(name string, atime, mtime time.Time) error {
	return n.fs.Chtimes(name, atime, mtime)
}

// Close does nothing. The shared filesystem is released by the fixture
// teardown, not by individual sessions.
func (n *nonClosing) Close() error {
	return nil
}
