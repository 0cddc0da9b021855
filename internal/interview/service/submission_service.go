package service

import (
	"context"
	"encoding/json"

	"assesy/internal/interview/artifact"
	"assesy/internal/interview/model"
	"assesy/internal/interview/workspace"
	pkgerrors "assesy/pkg/errors"
)

// SubmissionService serves read access to submitted artifacts.
type SubmissionService struct {
	artifacts artifact.Store
	limits    workspace.Limits
}

func NewSubmissionService(artifacts artifact.Store, limits workspace.Limits) *SubmissionService {
	return &SubmissionService{artifacts: artifacts, limits: limits}
}

// Details returns the stored details record as submitted.
func (s *SubmissionService) Details(ctx context.Context, token string) (json.RawMessage, error) {
	if !model.ValidToken(token) {
		return nil, pkgerrors.New(pkgerrors.SubmissionNotFound)
	}
	return s.artifacts.ReadDetails(ctx, token)
}

// ListFiles returns every entry of the submitted archive.
func (s *SubmissionService) ListFiles(ctx context.Context, token string) ([]workspace.Entry, error) {
	archive, err := s.Open(ctx, token)
	if err != nil {
		return nil, err
	}
	defer archive.Close()
	return workspace.ListEntries(archive, archive.Size())
}

// ReadFile returns one file of the submitted archive.
func (s *SubmissionService) ReadFile(ctx context.Context, token, name string) ([]byte, error) {
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.InvalidParams).WithMessage("file path is required")
	}
	archive, err := s.Open(ctx, token)
	if err != nil {
		return nil, err
	}
	defer archive.Close()
	return workspace.ReadEntry(archive, archive.Size(), name, s.limits)
}

// Open returns the submitted archive. Caller must close it.
func (s *SubmissionService) Open(ctx context.Context, token string) (artifact.Archive, error) {
	if !model.ValidToken(token) {
		return nil, pkgerrors.New(pkgerrors.SubmissionNotFound)
	}
	return s.artifacts.OpenCode(ctx, token)
}
