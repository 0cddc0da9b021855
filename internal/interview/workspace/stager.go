package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	pkgerrors "assesy/pkg/errors"
	"assesy/pkg/utils/logger"

	"go.uber.org/zap"
)

// Config controls where assessments live and who owns staged workspaces.
type Config struct {
	// AssessmentRoot holds one directory per assessment id.
	AssessmentRoot string
	// UID and GID are applied recursively to every staged workspace so the
	// editor process inside the container can write to it.
	UID int
	GID int
	// Limits bounds archive extraction.
	Limits Limits
}

// Stager materializes workspaces on the host for containers to mount.
type Stager struct {
	cfg Config
}

func NewStager(cfg Config) (*Stager, error) {
	if cfg.AssessmentRoot == "" {
		return nil, fmt.Errorf("assessment root is required")
	}
	return &Stager{cfg: cfg}, nil
}

// AssessmentDir returns the directory holding the files of an assessment.
func (s *Stager) AssessmentDir(assessmentID int64) string {
	return filepath.Join(s.cfg.AssessmentRoot, strconv.FormatInt(assessmentID, 10))
}

// StageAssessment copies every file of the assessment into dest and hands
// ownership of the tree to the workspace user. Existing files in dest are
// overwritten.
func (s *Stager) StageAssessment(ctx context.Context, assessmentID int64, dest string) error {
	src := s.AssessmentDir(assessmentID)
	entries, err := os.ReadDir(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return pkgerrors.Newf(pkgerrors.AssessmentNotFound, "Assessment files for %d not found", assessmentID)
		}
		return pkgerrors.Wrapf(err, pkgerrors.WorkspaceFailed, "read assessment directory failed")
	}
	if len(entries) == 0 {
		return pkgerrors.Newf(pkgerrors.AssessmentEmpty, "Assessment %d has no files", assessmentID)
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.WorkspaceFailed, "create workspace failed")
	}
	if err := copyTree(ctx, src, dest); err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.WorkspaceFailed, "copy assessment files failed")
	}
	s.fixOwnership(ctx, dest)
	return nil
}

// StageArchive replaces dest with the contents of a zip archive.
func (s *Stager) StageArchive(ctx context.Context, archive io.ReaderAt, size int64, dest string) error {
	if err := os.RemoveAll(dest); err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.WorkspaceFailed, "clear workspace failed")
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.WorkspaceFailed, "create workspace failed")
	}
	if err := ExtractArchive(ctx, archive, size, dest, s.cfg.Limits); err != nil {
		return err
	}
	s.fixOwnership(ctx, dest)
	return nil
}

// fixOwnership is best-effort: a workspace the editor cannot write to is
// still better than no workspace.
func (s *Stager) fixOwnership(ctx context.Context, dir string) {
	if err := chownTree(dir, s.cfg.UID, s.cfg.GID); err != nil {
		logger.Warn(ctx, "workspace ownership fix-up failed",
			zap.String("path", dir),
			zap.Int("uid", s.cfg.UID),
			zap.Int("gid", s.cfg.GID),
			zap.Error(err),
		)
	}
}

func copyTree(ctx context.Context, src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return err
			}
			return copyFile(path, target, info.Mode().Perm())
		default:
			// symlinks and devices are not part of an assessment
			return nil
		}
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
