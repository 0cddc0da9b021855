package workspace

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	pkgerrors "assesy/pkg/errors"

	"github.com/klauspost/compress/zip"
)

// Entry describes one member of a submission archive.
type Entry struct {
	Name        string `json:"name"`
	IsDirectory bool   `json:"isDirectory"`
	Size        int64  `json:"size"`
}

const (
	DefaultMaxEntryBytes int64 = 64 << 20
	DefaultMaxTotalBytes int64 = 512 << 20
)

// Limits bounds how much a submission archive may expand to.
type Limits struct {
	// MaxEntryBytes caps the uncompressed size of a single member.
	MaxEntryBytes int64
	// MaxTotalBytes caps the uncompressed size of a whole extraction.
	MaxTotalBytes int64
}

func (l Limits) withDefaults() Limits {
	if l.MaxEntryBytes <= 0 {
		l.MaxEntryBytes = DefaultMaxEntryBytes
	}
	if l.MaxTotalBytes <= 0 {
		l.MaxTotalBytes = DefaultMaxTotalBytes
	}
	return l
}

func errEntryTooLarge(name string, limit int64) error {
	return pkgerrors.Newf(pkgerrors.SubmissionInvalid, "archive entry %q exceeds %d bytes", name, limit)
}

// readCapped reads at most limit bytes from r. Reading more is an error even
// when the member header claimed a smaller size.
func readCapped(r io.Reader, name string, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.SubmissionInvalid, "read archive entry failed")
	}
	if int64(len(data)) > limit {
		return nil, errEntryTooLarge(name, limit)
	}
	return data, nil
}

func openArchive(r io.ReaderAt, size int64) (*zip.Reader, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.SubmissionInvalid, "submission archive is not a valid zip")
	}
	return zr, nil
}

// ListEntries returns every member of the archive in stored order.
func ListEntries(r io.ReaderAt, size int64) ([]Entry, error) {
	zr, err := openArchive(r, size)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(zr.File))
	for _, f := range zr.File {
		entries = append(entries, Entry{
			Name:        f.Name,
			IsDirectory: f.FileInfo().IsDir(),
			Size:        int64(f.UncompressedSize64),
		})
	}
	return entries, nil
}

// ReadEntry returns the contents of one file member.
func ReadEntry(r io.ReaderAt, size int64, name string, limits Limits) ([]byte, error) {
	limits = limits.withDefaults()
	zr, err := openArchive(r, size)
	if err != nil {
		return nil, err
	}
	want := strings.TrimPrefix(path.Clean("/"+name), "/")
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.TrimPrefix(path.Clean("/"+f.Name), "/") != want {
			continue
		}
		if f.UncompressedSize64 > uint64(limits.MaxEntryBytes) {
			return nil, errEntryTooLarge(f.Name, limits.MaxEntryBytes)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, pkgerrors.Wrapf(err, pkgerrors.SubmissionInvalid, "open archive entry failed")
		}
		defer rc.Close()
		return readCapped(rc, f.Name, limits.MaxEntryBytes)
	}
	return nil, pkgerrors.Newf(pkgerrors.ArchiveEntryNotFound, "File %s not found in submission", name)
}

// ExtractArchive unpacks the archive under dstDir. Members whose path would
// land outside dstDir, or that break limits, reject the whole archive.
func ExtractArchive(ctx context.Context, r io.ReaderAt, size int64, dstDir string, limits Limits) error {
	limits = limits.withDefaults()
	zr, err := openArchive(r, size)
	if err != nil {
		return err
	}
	root := filepath.Clean(dstDir)
	remaining := limits.MaxTotalBytes
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f.Name == "" {
			continue
		}
		cleanName := filepath.Clean(filepath.FromSlash(f.Name))
		if cleanName == ".." || strings.HasPrefix(cleanName, ".."+string(filepath.Separator)) || filepath.IsAbs(cleanName) {
			return pkgerrors.Newf(pkgerrors.SubmissionInvalid, "invalid archive entry path %q", f.Name)
		}
		target := filepath.Join(root, cleanName)
		if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
			return pkgerrors.Newf(pkgerrors.SubmissionInvalid, "archive entry escapes workspace: %q", f.Name)
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return pkgerrors.Wrapf(err, pkgerrors.WorkspaceFailed, "create dir failed")
			}
		case mode.IsRegular():
			limit := min(limits.MaxEntryBytes, remaining)
			if f.UncompressedSize64 > uint64(limit) {
				return errEntryTooLarge(f.Name, limit)
			}
			written, err := extractFile(f, target, limit)
			if err != nil {
				return err
			}
			remaining -= written
		default:
			// skip links and special files
		}
	}
	return nil
}

func extractFile(f *zip.File, target string, limit int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, pkgerrors.Wrapf(err, pkgerrors.WorkspaceFailed, "create parent dir failed")
	}
	rc, err := f.Open()
	if err != nil {
		return 0, pkgerrors.Wrapf(err, pkgerrors.SubmissionInvalid, "open archive entry failed")
	}
	defer rc.Close()

	perm := f.Mode().Perm()
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, pkgerrors.WorkspaceFailed, "create file failed")
	}
	written, err := io.Copy(out, io.LimitReader(rc, limit+1))
	if err != nil {
		_ = out.Close()
		return written, pkgerrors.Wrapf(err, pkgerrors.WorkspaceFailed, "write file failed")
	}
	if written > limit {
		_ = out.Close()
		_ = os.Remove(target)
		return written, errEntryTooLarge(f.Name, limit)
	}
	if err := out.Close(); err != nil {
		return written, pkgerrors.Wrapf(err, pkgerrors.WorkspaceFailed, "close file failed")
	}
	return written, nil
}
