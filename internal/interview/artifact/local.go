package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	pkgerrors "assesy/pkg/errors"
)

// LocalStore keeps artifacts as files in one directory.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("submissions dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create submissions dir failed: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// CodePath is the on-disk location of a token's code archive.
func (s *LocalStore) CodePath(token string) string {
	return filepath.Join(s.dir, codeKey(token))
}

func (s *LocalStore) detailsPath(token string) string {
	return filepath.Join(s.dir, detailsKey(token))
}

func (s *LocalStore) SaveDetails(_ context.Context, token string, details json.RawMessage) error {
	data, err := prettyDetails(details)
	if err != nil {
		return err
	}
	if err := writeAtomic(s.detailsPath(token), func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}); err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.StorageError, "save submission details failed")
	}
	return nil
}

func (s *LocalStore) SaveCode(_ context.Context, token string, r io.Reader, _ int64) error {
	if err := writeAtomic(s.CodePath(token), func(w io.Writer) error {
		_, err := io.Copy(w, r)
		return err
	}); err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.StorageError, "save submission code failed")
	}
	return nil
}

func (s *LocalStore) ReadDetails(_ context.Context, token string) (json.RawMessage, error) {
	data, err := os.ReadFile(s.detailsPath(token))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, submissionNotFound(token)
		}
		return nil, pkgerrors.Wrapf(err, pkgerrors.StorageError, "read submission details failed")
	}
	return json.RawMessage(data), nil
}

func (s *LocalStore) OpenCode(_ context.Context, token string) (Archive, error) {
	f, err := os.Open(s.CodePath(token))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, submissionNotFound(token)
		}
		return nil, pkgerrors.Wrapf(err, pkgerrors.StorageError, "open submission code failed")
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, pkgerrors.Wrapf(err, pkgerrors.StorageError, "stat submission code failed")
	}
	return &fileArchive{File: f, size: info.Size()}, nil
}

func (s *LocalStore) HasCode(_ context.Context, token string) (bool, error) {
	_, err := os.Stat(s.CodePath(token))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, pkgerrors.Wrapf(err, pkgerrors.StorageError, "stat submission code failed")
}

type fileArchive struct {
	*os.File
	size int64
}

func (a *fileArchive) Size() int64 { return a.size }

// writeAtomic writes through a temp file in the target directory and renames
// it into place, so readers never see a partial artifact.
func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}
	if err := write(tmp); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

var _ Store = (*LocalStore)(nil)
