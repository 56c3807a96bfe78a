package sftpfixture

import (
	"fmt"
	"io"
	"path"
	"sort"

	"golang.org/x/text/encoding"

	"github.com/acolita/sftpfixture/internal/vfs"
)

// PutFile writes content as the full content of the file at the given
// absolute path, overwriting any existing file. Missing ancestor
// directories are created first.
func (s *Server) PutFile(filePath string, content []byte) error {
	if err := s.guard("upload file"); err != nil {
		return err
	}
	if err := s.fs.WriteFile(filePath, content); err != nil {
		return fmt.Errorf("upload file %s: %w", filePath, err)
	}
	return nil
}

// PutFileString encodes content with enc and writes it to the file at
// the given path. A nil encoding means UTF-8, Go's native string
// encoding.
func (s *Server) PutFileString(filePath, content string, enc encoding.Encoding) error {
	raw, err := encodeString(content, enc)
	if err != nil {
		return fmt.Errorf("encode content for %s: %w", filePath, err)
	}
	return s.PutFile(filePath, raw)
}

// PutFileReader copies r into the file at the given path until the
// reader is exhausted. Missing ancestor directories are created first.
func (s *Server) PutFileReader(filePath string, r io.Reader) error {
	if err := s.guard("upload file"); err != nil {
		return err
	}
	if err := s.fs.WriteReader(filePath, r); err != nil {
		return fmt.Errorf("upload file %s: %w", filePath, err)
	}
	return nil
}

// CreateDirectory creates the directory at the given path together
// with any missing ancestors. It is not an error if the directory
// already exists.
func (s *Server) CreateDirectory(dirPath string) error {
	if err := s.guard("create directory"); err != nil {
		return err
	}
	if err := s.fs.MkdirAll(dirPath, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dirPath, err)
	}
	return nil
}

// CreateDirectories creates each directory in order. The first failure
// aborts the remaining ones.
func (s *Server) CreateDirectories(dirPaths ...string) error {
	for _, dirPath := range dirPaths {
		if err := s.CreateDirectory(dirPath); err != nil {
			return err
		}
	}
	return nil
}

// FileContent returns the full content of the file at the given path.
// If no such file exists the error satisfies errors.Is with
// fs.ErrNotExist.
func (s *Server) FileContent(filePath string) ([]byte, error) {
	if err := s.guard("download file"); err != nil {
		return nil, err
	}
	content, err := s.fs.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("download file %s: %w", filePath, err)
	}
	return content, nil
}

// FileContentString reads the file at the given path and decodes it
// with enc. A nil encoding means UTF-8.
func (s *Server) FileContentString(filePath string, enc encoding.Encoding) (string, error) {
	raw, err := s.FileContent(filePath)
	if err != nil {
		return "", err
	}
	text, err := decodeBytes(raw, enc)
	if err != nil {
		return "", fmt.Errorf("decode content of %s: %w", filePath, err)
	}
	return text, nil
}

// ExistsFile reports whether a regular file exists at the given path.
// A directory at the same path reports false.
func (s *Server) ExistsFile(filePath string) (bool, error) {
	if err := s.guard("check existence of file"); err != nil {
		return false, err
	}
	exists, err := s.fs.IsFile(filePath)
	if err != nil {
		return false, fmt.Errorf("check existence of file %s: %w", filePath, err)
	}
	return exists, nil
}

// ListFilesAndDirectories returns the absolute paths of the immediate
// children of the directory at the given path, sorted by name. The
// result is a point-in-time snapshot, not a live view. If the
// directory does not exist the error satisfies errors.Is with
// fs.ErrNotExist.
func (s *Server) ListFilesAndDirectories(dirPath string) ([]string, error) {
	if err := s.guard("list files"); err != nil {
		return nil, err
	}
	infos, err := s.fs.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("list files in %s: %w", dirPath, err)
	}
	children := make([]string, 0, len(infos))
	for _, info := range infos {
		children = append(children, path.Join(vfs.Normalize(dirPath), info.Name()))
	}
	sort.Strings(children)
	return children, nil
}

// DeleteAllFilesAndDirectories removes every file and directory from
// the virtual filesystem, leaving an empty tree with an intact root.
func (s *Server) DeleteAllFilesAndDirectories() error {
	if err := s.guard("delete all files and directories"); err != nil {
		return err
	}
	if err := s.fs.RemoveAllChildren(); err != nil {
		return fmt.Errorf("delete all files and directories: %w", err)
	}
	return nil
}

// FindFiles returns the sorted paths of all files matching the glob
// pattern, which supports doublestar syntax, e.g. "/logs/**/*.txt".
func (s *Server) FindFiles(pattern string) ([]string, error) {
	if err := s.guard("find files"); err != nil {
		return nil, err
	}
	matches, err := s.fs.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("find files matching %s: %w", pattern, err)
	}
	return matches, nil
}

// encodeString converts text to bytes in the given encoding. A nil
// encoding is treated as UTF-8.
func encodeString(text string, enc encoding.Encoding) ([]byte, error) {
	if enc == nil {
		return []byte(text), nil
	}
	encoded, err := enc.NewEncoder().String(text)
	if err != nil {
		return nil, err
	}
	return []byte(encoded), nil
}

// decodeBytes converts raw bytes in the given encoding to a string.
// A nil encoding is treated as UTF-8.
func decodeBytes(raw []byte, enc encoding.Encoding) (string, error) {
	if enc == nil {
		return string(raw), nil
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
