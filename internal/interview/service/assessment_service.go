package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"assesy/internal/common/db"
	"assesy/internal/interview/model"
	"assesy/internal/interview/repository"
	"assesy/internal/interview/workspace"
	pkgerrors "assesy/pkg/errors"
	"assesy/pkg/utils/logger"

	"go.uber.org/zap"
)

// FileUpload is one uploaded assessment file.
type FileUpload struct {
	Name    string
	Content io.Reader
}

// AssessmentService manages assessments and their starter files.
type AssessmentService struct {
	database    db.Database
	assessments repository.AssessmentRepository
	stager      *workspace.Stager
}

func NewAssessmentService(database db.Database, assessments repository.AssessmentRepository, stager *workspace.Stager) *AssessmentService {
	return &AssessmentService{database: database, assessments: assessments, stager: stager}
}

// Create stores a new assessment with its files. The row is rolled back when
// the files cannot be written.
func (s *AssessmentService) Create(ctx context.Context, title string, files []FileUpload) (model.Assessment, error) {
	title = strings.TrimSpace(title)
	if title == "" || len(files) == 0 {
		return model.Assessment{}, pkgerrors.New(pkgerrors.InvalidParams).WithMessage("Title and at least one file are required.")
	}
	for _, f := range files {
		if err := validateFileName(f.Name); err != nil {
			return model.Assessment{}, err
		}
	}

	var created model.Assessment
	err := s.database.Transaction(ctx, func(tx db.Transaction) error {
		a, err := s.assessments.Create(ctx, tx, title)
		if err != nil {
			return pkgerrors.Wrap(fmt.Errorf("create assessment failed: %w", err), pkgerrors.DatabaseError)
		}
		dir := s.stager.AssessmentDir(a.ID)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return pkgerrors.Wrapf(err, pkgerrors.StorageError, "create assessment dir failed")
		}
		for _, f := range files {
			if err := writeFile(filepath.Join(dir, f.Name), f.Content); err != nil {
				_ = os.RemoveAll(dir)
				return pkgerrors.Wrapf(err, pkgerrors.StorageError, "write assessment file failed")
			}
		}
		created = a
		return nil
	})
	if err != nil {
		return model.Assessment{}, pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}
	logger.Info(ctx, "assessment created", zap.Int64("assessment_id", created.ID), zap.Int("files", len(files)))
	return created, nil
}

// List returns every assessment ordered by title.
func (s *AssessmentService) List(ctx context.Context) ([]model.Assessment, error) {
	out, err := s.assessments.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(fmt.Errorf("list assessments failed: %w", err), pkgerrors.DatabaseError)
	}
	return out, nil
}

// ListFiles returns the file names of an assessment.
func (s *AssessmentService) ListFiles(_ context.Context, id int64) ([]string, error) {
	entries, err := os.ReadDir(s.stager.AssessmentDir(id))
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, pkgerrors.Newf(pkgerrors.AssessmentNotFound, "Assessment %d not found", id)
		}
		return nil, pkgerrors.Wrapf(err, pkgerrors.StorageError, "read assessment dir failed")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ReadFile returns the content of one assessment file.
func (s *AssessmentService) ReadFile(_ context.Context, id int64, name string) ([]byte, error) {
	path, err := s.existingFile(id, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.StorageError, "read assessment file failed")
	}
	return data, nil
}

// UpdateFile replaces the content of an existing file.
func (s *AssessmentService) UpdateFile(_ context.Context, id int64, name string, content io.Reader) error {
	path, err := s.existingFile(id, name)
	if err != nil {
		return err
	}
	if err := writeFile(path, content); err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.StorageError, "update assessment file failed")
	}
	return nil
}

// DeleteFile removes one file from an assessment.
func (s *AssessmentService) DeleteFile(_ context.Context, id int64, name string) error {
	path, err := s.existingFile(id, name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.StorageError, "delete assessment file failed")
	}
	return nil
}

// AddFile writes a new file into an existing assessment, replacing any file
// with the same name.
func (s *AssessmentService) AddFile(_ context.Context, id int64, file FileUpload) error {
	if err := validateFileName(file.Name); err != nil {
		return err
	}
	dir := s.stager.AssessmentDir(id)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return pkgerrors.Newf(pkgerrors.AssessmentNotFound, "Assessment %d not found", id)
	}
	if err := writeFile(filepath.Join(dir, file.Name), file.Content); err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.StorageError, "add assessment file failed")
	}
	return nil
}

func (s *AssessmentService) existingFile(id int64, name string) (string, error) {
	if err := validateFileName(name); err != nil {
		return "", err
	}
	path := filepath.Join(s.stager.AssessmentDir(id), name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", pkgerrors.Newf(pkgerrors.AssessmentFileNotFound, "File %s not found", name)
	}
	return path, nil
}

// validateFileName accepts a single path element only.
func validateFileName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return pkgerrors.Newf(pkgerrors.InvalidParams, "invalid file name %q", name)
	}
	return nil
}

func writeFile(path string, content io.Reader) error {
	if content == nil {
		content = strings.NewReader("")
	}
	out, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, content); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
