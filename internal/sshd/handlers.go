package sshd

import (
	"io"
	"os"
	"path"

	"github.com/pkg/sftp"

	"github.com/acolita/sftpfixture/internal/vfs"
)

// requestHandlers maps SFTP requests onto a virtual filesystem view.
// One instance serves one client session.
type requestHandlers struct {
	fs vfs.FS
}

// newHandlers builds the sftp.Handlers set for one session.
func newHandlers(fs vfs.FS) sftp.Handlers {
	h := &requestHandlers{fs: fs}
	return sftp.Handlers{
		FileGet:  h,
		FilePut:  h,
		FileCmd:  h,
		FileList: h,
	}
}

// Fileread opens a file for reading.
func (h *requestHandlers) Fileread(r *sftp.Request) (io.ReaderAt, error) {
	return h.fs.Open(r.Filepath)
}

// Filewrite opens a file for writing, creating missing parent
// directories when the client asked for file creation.
func (h *requestHandlers) Filewrite(r *sftp.Request) (io.WriterAt, error) {
	pf := r.Pflags()
	flags := 0
	switch {
	case pf.Read && pf.Write:
		flags |= os.O_RDWR
	case pf.Write:
		flags |= os.O_WRONLY
	default:
		flags |= os.O_RDONLY
	}
	if pf.Creat {
		flags |= os.O_CREATE
		if err := h.fs.MkdirAll(parentDir(r.Filepath), 0o755); err != nil {
			return nil, err
		}
	}
	if pf.Trunc {
		flags |= os.O_TRUNC
	}
	if pf.Excl {
		flags |= os.O_EXCL
	}

	// O_APPEND must not be combined with WriterAt semantics.
	return h.fs.OpenFile(r.Filepath, flags, 0o644)
}

// Filecmd handles filesystem mutations: setstat, rename, mkdir and
// removal. Links are unsupported, the in-memory filesystem has none.
func (h *requestHandlers) Filecmd(r *sftp.Request) error {
	switch r.Method {
	case "Setstat":
		attrs := r.Attributes()
		flags := r.AttrFlags()
		if flags.Permissions {
			if err := h.fs.Chmod(r.Filepath, attrs.FileMode()); err != nil {
				return err
			}
		}
		if flags.Acmodtime {
			if err := h.fs.Chtimes(r.Filepath, attrs.AccessTime(), attrs.ModTime()); err != nil {
				return err
			}
		}
		return nil
	case "Rename":
		return h.fs.Rename(r.Filepath, r.Target)
	case "Mkdir":
		return h.fs.MkdirAll(r.Filepath, 0o755)
	case "Rmdir", "Remove":
		return h.fs.Remove(r.Filepath)
	case "Link", "Symlink":
		return sftp.ErrSSHFxOpUnsupported
	default:
		return sftp.ErrSSHFxOpUnsupported
	}
}

// Filelist serves directory listings and stat requests.
func (h *requestHandlers) Filelist(r *sftp.Request) (sftp.ListerAt, error) {
	switch r.Method {
	case "List":
		infos, err := h.fs.ReadDir(r.Filepath)
		if err != nil {
			return nil, err
		}
		return listerAt(infos), nil
	case "Stat", "Lstat":
		info, err := h.fs.Stat(r.Filepath)
		if err != nil {
			return nil, err
		}
		return listerAt{info}, nil
	default:
		return nil, sftp.ErrSSHFxOpUnsupported
	}
}

// parentDir returns the directory containing p.
func parentDir(p string) string {
	return path.Dir(vfs.Normalize(p))
}

// listerAt wraps a snapshot of FileInfo values for paginated listing.
type listerAt []os.FileInfo

// ListAt satisfies sftp.ListerAt with slice-based pagination.
func (l listerAt) ListAt(dst []os.FileInfo, offset int64) (int, error) {
	if offset >= int64(len(l)) {
		return 0, io.EOF
	}
	n := copy(dst, l[offset:])
	if int64(n)+offset >= int64(len(l)) {
		return n, io.EOF
	}
	return n, nil
}
