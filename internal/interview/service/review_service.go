package service

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"assesy/internal/interview/artifact"
	"assesy/internal/interview/lock"
	"assesy/internal/interview/model"
	"assesy/internal/interview/runtime"
	"assesy/internal/interview/workspace"
	pkgerrors "assesy/pkg/errors"
	"assesy/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultReviewTimeout = 30 * time.Minute
	reviewLockPrefix     = "review-"
)

// ReviewServiceConfig holds configuration for ReviewService.
type ReviewServiceConfig struct {
	StagingRoot string
	// Timeout is counted from start and not extended by use.
	Timeout time.Duration
}

// ReviewResult is the outcome of starting a review environment.
type ReviewResult struct {
	ReviewURL     string
	AlreadyExists bool
	// Expiry is the scheduled teardown; nil when nothing was started.
	Expiry *Task
}

// ReviewService runs read-only evaluator environments over submissions.
type ReviewService struct {
	artifacts   artifact.Store
	stager      *workspace.Stager
	provisioner *runtime.Provisioner
	locker      lock.Locker
	tasks       *TaskGroup
	config      ReviewServiceConfig

	// Each started environment gets a fresh generation; an expiry only
	// tears down the environment it was scheduled for.
	mu             sync.Mutex
	lastGeneration uint64
	generations    map[string]uint64
}

// NewReviewService creates a new ReviewService.
func NewReviewService(
	artifacts artifact.Store,
	stager *workspace.Stager,
	provisioner *runtime.Provisioner,
	locker lock.Locker,
	tasks *TaskGroup,
	cfg ReviewServiceConfig,
) *ReviewService {
	if cfg.StagingRoot == "" {
		cfg.StagingRoot = defaultStagingRoot
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultReviewTimeout
	}
	return &ReviewService{
		artifacts:   artifacts,
		stager:      stager,
		provisioner: provisioner,
		locker:      locker,
		tasks:       tasks,
		config:      cfg,
		generations: make(map[string]uint64),
	}
}

// Status reports the review container of a submission.
func (s *ReviewService) Status(ctx context.Context, token string) (runtime.Status, error) {
	if !model.ValidToken(token) {
		return runtime.Status{}, pkgerrors.New(pkgerrors.SubmissionNotFound)
	}
	return s.provisioner.Status(ctx, runtime.ReviewContainerName(token))
}

// Start brings up the review environment, reusing a running one.
func (s *ReviewService) Start(ctx context.Context, token string) (ReviewResult, error) {
	if !model.ValidToken(token) {
		return ReviewResult{}, pkgerrors.New(pkgerrors.SubmissionNotFound)
	}
	ctx = logger.WithSessionToken(ctx, token)
	name := runtime.ReviewContainerName(token)
	url := s.provisioner.URL(s.provisioner.ReviewHost(token))

	key := reviewLockPrefix + token
	acquired, err := s.locker.TryAcquire(ctx, key)
	if err != nil {
		return ReviewResult{}, err
	}
	if !acquired {
		return ReviewResult{}, pkgerrors.New(pkgerrors.LockFailed).WithMessage("review environment is already being started")
	}
	defer func() {
		if err := s.locker.Release(ctx, key); err != nil {
			logger.Warn(ctx, "release review lock failed", zap.Error(err))
		}
	}()

	status, err := s.provisioner.Status(ctx, name)
	if err != nil {
		return ReviewResult{}, err
	}
	if status.Running {
		return ReviewResult{ReviewURL: url, AlreadyExists: true}, nil
	}
	if status.Exists {
		logger.Info(ctx, "removing stopped review container", zap.String("state", status.State))
		if err := s.provisioner.Remove(ctx, name); err != nil {
			return ReviewResult{}, err
		}
	}

	archive, err := s.artifacts.OpenCode(ctx, token)
	if err != nil {
		return ReviewResult{}, err
	}
	defer archive.Close()

	ws := filepath.Join(s.config.StagingRoot, name)
	if err := s.stager.StageArchive(ctx, archive, archive.Size(), ws); err != nil {
		return ReviewResult{}, err
	}
	if _, err := s.provisioner.Provision(ctx, runtime.ProvisionRequest{
		Name:          name,
		WorkspacePath: ws,
		Mode:          runtime.MountReadOnly,
		RoutingHost:   s.provisioner.ReviewHost(token),
		AutoRemove:    false,
		SessionID:     name,
	}); err != nil {
		return ReviewResult{}, err
	}

	gen := s.nextGeneration(token)
	expiry := s.tasks.Go(ctx, "review-expiry", func(ctx context.Context) error {
		if !s.tasks.Sleep(s.config.Timeout) {
			return nil
		}
		if !s.claimExpiry(token, gen) {
			return nil
		}
		if err := s.provisioner.StopAndRemove(ctx, name); err != nil {
			logger.Warn(ctx, "review expiry teardown failed", zap.Error(err))
			return nil
		}
		logger.Info(ctx, "review environment expired", zap.Duration("after", s.config.Timeout))
		return nil
	})
	logger.Info(ctx, "review environment started", zap.String("url", url))
	return ReviewResult{ReviewURL: url, Expiry: expiry}, nil
}

// Stop tears down the review environment. Stopping a missing one succeeds.
func (s *ReviewService) Stop(ctx context.Context, token string) error {
	if !model.ValidToken(token) {
		return pkgerrors.New(pkgerrors.SubmissionNotFound)
	}
	s.forget(token)
	return s.provisioner.StopAndRemove(ctx, runtime.ReviewContainerName(token))
}

func (s *ReviewService) nextGeneration(token string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastGeneration++
	s.generations[token] = s.lastGeneration
	return s.lastGeneration
}

// claimExpiry reports whether gen is still current for token and, if so,
// drops the token so a later Start begins clean.
func (s *ReviewService) claimExpiry(token string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[token] != gen {
		return false
	}
	delete(s.generations, token)
	return true
}

// forget orphans any pending expiry of token.
func (s *ReviewService) forget(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.generations, token)
}
