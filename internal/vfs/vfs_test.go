package vfs

import (
	"bytes"
	"errors"
	"io/fs"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"/a/b", "/a/b"},
		{"a/b", "/a/b"},
		{"/a//b/", "/a/b"},
		{"/a/./b", "/a/b"},
		{"/a/../b", "/b"},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q): got %q, want %q", c.in, got, c.want)
		}
	}
}

func TestWriteFileCreatesParents(t *testing.T) {
	filesystem := New()
	defer filesystem.Close()

	if err := filesystem.WriteFile("/a/b/c/file.txt", []byte("content")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	info, err := filesystem.Stat("/a/b/c")
	if err != nil {
		t.Fatalf("Stat parent: %v", err)
	}
	if !info.IsDir() {
		t.Error("parent: got file, want directory")
	}

	content, err := filesystem.ReadFile("/a/b/c/file.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(content) != "content" {
		t.Errorf("content: got %q, want %q", content, "content")
	}
}

func TestWriteFileInRoot(t *testing.T) {
	filesystem := New()
	defer filesystem.Close()

	// Parent is the root; no directory creation must be attempted.
	if err := filesystem.WriteFile("/file.txt", []byte("x")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	content, err := filesystem.ReadFile("/file.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(content) != "x" {
		t.Errorf("content: got %q, want %q", content, "x")
	}
}

func TestWriteFileOverwrites(t *testing.T) {
	filesystem := New()
	defer filesystem.Close()

	if err := filesystem.WriteFile("/file.txt", []byte("first")); err != nil {
		t.Fatalf("first WriteFile: %v", err)
	}
	if err := filesystem.WriteFile("/file.txt", []byte("second")); err != nil {
		t.Fatalf("second WriteFile: %v", err)
	}
	content, err := filesystem.ReadFile("/file.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(content) != "second" {
		t.Errorf("content: got %q, want %q", content, "second")
	}
}

func TestWriteReader(t *testing.T) {
	filesystem := New()
	defer filesystem.Close()

	if err := filesystem.WriteReader("/dir/file.bin", bytes.NewReader([]byte{1, 2, 3})); err != nil {
		t.Fatalf("WriteReader: %v", err)
	}
	content, err := filesystem.ReadFile("/dir/file.bin")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(content, []byte{1, 2, 3}) {
		t.Errorf("content: got %v, want %v", content, []byte{1, 2, 3})
	}
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestWriteReaderPropagatesReadError(t *testing.T) {
	filesystem := New()
	defer filesystem.Close()

	readErr := errors.New("broken stream")
	err := filesystem.WriteReader("/file.bin", failingReader{err: readErr})
	if !errors.Is(err, readErr) {
		t.Errorf("WriteReader error: got %v, want wrapped %v", err, readErr)
	}
}

func TestReadFileNotFound(t *testing.T) {
	filesystem := New()
	defer filesystem.Close()

	_, err := filesystem.ReadFile("/missing.txt")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile error: got %v, want fs.ErrNotExist", err)
	}
}

func TestIsFile(t *testing.T) {
	filesystem := New()
	defer filesystem.Close()

	if err := filesystem.WriteFile("/dir/file.txt", []byte("x")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cases := []struct {
		path string
		want bool
	}{
		{"/dir/file.txt", true},
		{"/dir", false},
		{"/missing", false},
		{"/", false},
	}
	for _, c := range cases {
		got, err := filesystem.IsFile(c.path)
		if err != nil {
			t.Fatalf("IsFile(%q): %v", c.path, err)
		}
		if got != c.want {
			t.Errorf("IsFile(%q): got %v, want %v", c.path, got, c.want)
		}
	}
}

func TestRemoveAllChildren(t *testing.T) {
	filesystem := New()
	defer filesystem.Close()

	paths := []string{"/a/b/c/deep.txt", "/a/top.txt", "/d/file.txt", "/root.txt"}
	for _, p := range paths {
		if err := filesystem.WriteFile(p, []byte("x")); err != nil {
			t.Fatalf("WriteFile(%q): %v", p, err)
		}
	}
	if err := filesystem.MkdirAll("/empty/dir", 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	if err := filesystem.RemoveAllChildren(); err != nil {
		t.Fatalf("RemoveAllChildren: %v", err)
	}

	// The root survives and is empty.
	entries, err := filesystem.ReadDir("/")
	if err != nil {
		t.Fatalf("ReadDir root after delete: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("root entries after delete: got %d, want 0", len(entries))
	}

	// The filesystem stays usable.
	if err := filesystem.WriteFile("/again.txt", []byte("y")); err != nil {
		t.Errorf("WriteFile after delete: %v", err)
	}
}

func TestClosedFilesystemFails(t *testing.T) {
	filesystem := New()
	if err := filesystem.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Close is idempotent.
	if err := filesystem.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if err := filesystem.WriteFile("/file.txt", []byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("WriteFile after Close: got %v, want ErrClosed", err)
	}
	if _, err := filesystem.ReadFile("/file.txt"); !errors.Is(err, ErrClosed) {
		t.Errorf("ReadFile after Close: got %v, want ErrClosed", err)
	}
	if _, err := filesystem.ReadDir("/"); !errors.Is(err, ErrClosed) {
		t.Errorf("ReadDir after Close: got %v, want ErrClosed", err)
	}
	if err := filesystem.RemoveAllChildren(); !errors.Is(err, ErrClosed) {
		t.Errorf("RemoveAllChildren after Close: got %v, want ErrClosed", err)
	}
}

func TestNonClosingView(t *testing.T) {
	filesystem := New()
	defer filesystem.Close()

	view := NonClosing(filesystem)

	if err := view.MkdirAll("/dir", 0o755); err != nil {
		t.Fatalf("view MkdirAll: %v", err)
	}
	if err := view.Close(); err != nil {
		t.Fatalf("view Close: %v", err)
	}

	// Closing the view must not close the shared filesystem.
	if err := filesystem.WriteFile("/dir/file.txt", []byte("alive")); err != nil {
		t.Fatalf("WriteFile after view close: %v", err)
	}
	info, err := view.Stat("/dir/file.txt")
	if err != nil {
		t.Fatalf("view Stat after view close: %v", err)
	}
	if info.IsDir() {
		t.Error("Stat: got directory, want file")
	}

	// But the view does follow the real filesystem's closure.
	filesystem.Close()
	if _, err := view.Stat("/dir/file.txt"); !errors.Is(err, ErrClosed) {
		t.Errorf("view Stat after filesystem close: got %v, want ErrClosed", err)
	}
}

func TestGlob(t *testing.T) {
	filesystem := New()
	defer filesystem.Close()

	for _, p := range []string{"/logs/a/one.txt", "/logs/b/two.txt", "/logs/b/three.log", "/other/four.txt"} {
		if err := filesystem.WriteFile(p, []byte("x")); err != nil {
			t.Fatalf("WriteFile(%q): %v", p, err)
		}
	}

	matches, err := filesystem.Glob("/logs/**/*.txt")
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	want := []string{"/logs/a/one.txt", "/logs/b/two.txt"}
	if len(matches) != len(want) {
		t.Fatalf("matches: got %v, want %v", matches, want)
	}
	for i := range want {
		if matches[i] != want[i] {
			t.Errorf("matches[%d]: got %q, want %q", i, matches[i], want[i])
		}
	}

	if _, err := filesystem.Glob("/logs/["); err == nil {
		t.Error("Glob with invalid pattern: got nil error")
	}
}

func TestListSnapshotIsDetached(t *testing.T) {
	filesystem := New()
	defer filesystem.Close()

	if err := filesystem.WriteFile("/dir/one.txt", []byte("1")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	entries, err := filesystem.ReadDir("/dir")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if err := filesystem.WriteFile("/dir/two.txt", []byte("2")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("snapshot length after later write: got %d, want 1", len(entries))
	}
	if !strings.HasSuffix(entries[0].Name(), "one.txt") {
		t.Errorf("snapshot entry: got %q, want one.txt", entries[0].Name())
	}
}
