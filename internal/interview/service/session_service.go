package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"assesy/internal/interview/artifact"
	"assesy/internal/interview/lock"
	"assesy/internal/interview/model"
	"assesy/internal/interview/repository"
	"assesy/internal/interview/runtime"
	"assesy/internal/interview/workspace"
	pkgerrors "assesy/pkg/errors"
	"assesy/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultStagingRoot   = "/tmp/interview-sessions"
	defaultTeardownDelay = time.Second
	createTokenAttempts  = 3
	submitLockPrefix     = "submit-"
)

// SessionServiceConfig holds configuration for SessionService.
type SessionServiceConfig struct {
	// StagingRoot holds one workspace directory per session token.
	StagingRoot string
	// PublicBaseURL prefixes shareable links, e.g. https://interviews.example.com.
	PublicBaseURL string
	// TeardownDelay is the grace period between a submission and stopping
	// the candidate's container.
	TeardownDelay time.Duration
}

// EntryView tells the caller what to render for a candidate visit.
type EntryView int

const (
	ViewPreparing EntryView = iota
	ViewRedirect
	ViewClosed
)

// EntryResult is the outcome of a candidate visiting their session link.
type EntryResult struct {
	View        EntryView
	RedirectURL string
	// Task is set when this visit started provisioning.
	Task *Task
}

// CreateSessionInput represents input for creating a session.
type CreateSessionInput struct {
	CandidateName string
	Position      string
	AssessmentID  int64
}

// CreateSessionResult is a freshly created session.
type CreateSessionResult struct {
	Token         string
	ShareableLink string
}

// SubmitInput is a candidate's final submission.
type SubmitInput struct {
	Details  json.RawMessage
	Code     io.Reader
	CodeSize int64
}

// SubmitResult carries the scheduled teardown.
type SubmitResult struct {
	Teardown *Task
}

// SessionService drives the candidate session lifecycle.
type SessionService struct {
	sessions    repository.SessionRepository
	assessments repository.AssessmentRepository
	stager      *workspace.Stager
	provisioner *runtime.Provisioner
	locker      lock.Locker
	artifacts   artifact.Store
	tasks       *TaskGroup
	events      *StatusEventPublisher
	config      SessionServiceConfig
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	sessions repository.SessionRepository,
	assessments repository.AssessmentRepository,
	stager *workspace.Stager,
	provisioner *runtime.Provisioner,
	locker lock.Locker,
	artifacts artifact.Store,
	tasks *TaskGroup,
	events *StatusEventPublisher,
	cfg SessionServiceConfig,
) *SessionService {
	if cfg.StagingRoot == "" {
		cfg.StagingRoot = defaultStagingRoot
	}
	if cfg.TeardownDelay == 0 {
		cfg.TeardownDelay = defaultTeardownDelay
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	events.start(tasks)
	return &SessionService{
		sessions:    sessions,
		assessments: assessments,
		stager:      stager,
		provisioner: provisioner,
		locker:      locker,
		artifacts:   artifacts,
		tasks:       tasks,
		events:      events,
		config:      cfg,
	}
}

// CreateSession registers a new candidate session for an assessment.
func (s *SessionService) CreateSession(ctx context.Context, input CreateSessionInput) (CreateSessionResult, error) {
	candidate := strings.TrimSpace(input.CandidateName)
	position := strings.TrimSpace(input.Position)
	if candidate == "" || position == "" || input.AssessmentID <= 0 {
		return CreateSessionResult{}, pkgerrors.New(pkgerrors.InvalidParams).
			WithMessage("Candidate name, position, and assessment ID are required")
	}

	if _, err := s.assessments.Get(ctx, nil, input.AssessmentID); err != nil {
		if stderrors.Is(err, repository.ErrAssessmentNotFound) {
			return CreateSessionResult{}, pkgerrors.Newf(pkgerrors.AssessmentNotFound, "Assessment %d not found", input.AssessmentID)
		}
		return CreateSessionResult{}, pkgerrors.Wrap(fmt.Errorf("get assessment failed: %w", err), pkgerrors.DatabaseError)
	}

	for attempt := 0; attempt < createTokenAttempts; attempt++ {
		token, err := model.NewSessionToken()
		if err != nil {
			return CreateSessionResult{}, pkgerrors.Wrap(err, pkgerrors.TokenGenerationFailed)
		}
		session := &model.Session{
			Token:         token,
			Status:        model.StatusCreated,
			CandidateName: candidate,
			Position:      position,
			AssessmentID:  input.AssessmentID,
		}
		err = s.sessions.Create(ctx, session)
		if stderrors.Is(err, repository.ErrDuplicateToken) {
			continue
		}
		if err != nil {
			return CreateSessionResult{}, pkgerrors.Wrap(fmt.Errorf("create session failed: %w", err), pkgerrors.DatabaseError)
		}
		logger.Info(logger.WithSessionToken(ctx, token), "session created",
			zap.Int64("assessment_id", input.AssessmentID),
			zap.String("position", position),
		)
		return CreateSessionResult{Token: token, ShareableLink: s.config.PublicBaseURL + "/session/" + token}, nil
	}
	return CreateSessionResult{}, pkgerrors.New(pkgerrors.RecordAlreadyExists).WithMessage("could not allocate a unique session token")
}

// Enter handles a candidate opening their session link.
func (s *SessionService) Enter(ctx context.Context, token string) (EntryResult, error) {
	session, err := s.getSession(ctx, token)
	if err != nil {
		return EntryResult{}, err
	}
	ctx = logger.WithSessionToken(ctx, token)

	switch session.Status {
	case model.StatusCreated, model.StatusFailed:
		return s.beginProvisioning(ctx, session)
	case model.StatusProvisioning:
		return EntryResult{View: ViewPreparing}, nil
	case model.StatusActive:
		return EntryResult{View: ViewRedirect, RedirectURL: s.provisioner.URL(s.provisioner.SessionHost(token))}, nil
	case model.StatusCompleted:
		return EntryResult{View: ViewClosed}, nil
	default:
		return EntryResult{}, pkgerrors.Newf(pkgerrors.InvalidSessionState, "Invalid session state: %s", session.Status)
	}
}

func (s *SessionService) beginProvisioning(ctx context.Context, session model.Session) (EntryResult, error) {
	token := session.Token
	acquired, err := s.locker.TryAcquire(ctx, token)
	if err != nil {
		return EntryResult{}, err
	}
	if !acquired {
		return EntryResult{View: ViewPreparing}, nil
	}

	moved, err := s.transition(ctx, token, session.Status, model.StatusProvisioning, time.Now())
	if err != nil || !moved {
		s.release(ctx, token)
		if err != nil {
			return EntryResult{}, err
		}
		// Another process got there first.
		return EntryResult{View: ViewPreparing}, nil
	}

	task := s.tasks.Go(ctx, "provision-session", func(ctx context.Context) error {
		defer s.release(ctx, token)
		return s.provision(ctx, session)
	})
	return EntryResult{View: ViewPreparing, Task: task}, nil
}

func (s *SessionService) provision(ctx context.Context, session model.Session) error {
	token := session.Token
	logger.Info(ctx, "provisioning session", zap.Int64("assessment_id", session.AssessmentID))

	ws := s.workspacePath(token)
	if err := s.stager.StageAssessment(ctx, session.AssessmentID, ws); err != nil {
		s.fail(ctx, token, err)
		return err
	}
	name := runtime.SessionContainerName(token)
	if _, err := s.provisioner.Provision(ctx, runtime.ProvisionRequest{
		Name:          name,
		WorkspacePath: ws,
		Mode:          runtime.MountReadWrite,
		RoutingHost:   s.provisioner.SessionHost(token),
		AutoRemove:    true,
		SessionID:     token,
	}); err != nil {
		s.fail(ctx, token, err)
		return err
	}

	moved, err := s.transition(ctx, token, model.StatusProvisioning, model.StatusActive, time.Now())
	if err != nil {
		s.fail(ctx, token, err)
		return err
	}
	if !moved {
		// Completed while we were starting the container; nobody will use it.
		logger.Info(ctx, "session moved on during provisioning, tearing down container")
		if err := s.provisioner.Stop(ctx, name); err != nil {
			logger.Warn(ctx, "teardown of orphaned container failed", zap.Error(err))
		}
		return nil
	}
	logger.Info(ctx, "session active", zap.String("host", s.provisioner.SessionHost(token)))
	return nil
}

func (s *SessionService) fail(ctx context.Context, token string, cause error) {
	logger.Error(ctx, "provisioning failed", zap.Error(cause))
	if _, err := s.transition(ctx, token, model.StatusProvisioning, model.StatusFailed, time.Now()); err != nil {
		logger.Error(ctx, "mark session failed", zap.Error(err))
	}
}

// Submit stores a candidate's work and closes the session.
func (s *SessionService) Submit(ctx context.Context, token string, input SubmitInput) (SubmitResult, error) {
	if err := validateDetails(input.Details); err != nil {
		return SubmitResult{}, err
	}
	if input.Code == nil || input.CodeSize == 0 {
		return SubmitResult{}, pkgerrors.New(pkgerrors.InvalidParams).WithMessage("code archive is required")
	}

	session, err := s.getSession(ctx, token)
	if err != nil {
		return SubmitResult{}, err
	}
	ctx = logger.WithSessionToken(ctx, token)

	key := submitLockPrefix + token
	acquired, err := s.locker.TryAcquire(ctx, key)
	if err != nil {
		return SubmitResult{}, err
	}
	if !acquired {
		return SubmitResult{}, pkgerrors.New(pkgerrors.LockFailed).WithMessage("a submission for this session is already in progress")
	}
	defer s.release(ctx, key)

	// Re-read under the lock so a finished concurrent submission is seen.
	if session, err = s.getSession(ctx, token); err != nil {
		return SubmitResult{}, err
	}
	if err := checkSubmittable(session.Status); err != nil {
		return SubmitResult{}, err
	}

	if err := s.artifacts.SaveCode(ctx, token, input.Code, input.CodeSize); err != nil {
		return SubmitResult{}, err
	}
	if err := s.artifacts.SaveDetails(ctx, token, input.Details); err != nil {
		return SubmitResult{}, err
	}

	moved, err := s.transition(ctx, token, session.Status, model.StatusCompleted, time.Now())
	if err != nil {
		return SubmitResult{}, err
	}
	if !moved {
		current, err := s.getSession(ctx, token)
		if err != nil {
			return SubmitResult{}, err
		}
		if err := checkSubmittable(current.Status); err != nil {
			return SubmitResult{}, err
		}
		return SubmitResult{}, pkgerrors.New(pkgerrors.InvalidSessionState).WithMessage("session changed state during submission")
	}
	logger.Info(ctx, "session completed")

	name := runtime.SessionContainerName(token)
	task := s.tasks.Go(ctx, "teardown-session", func(ctx context.Context) error {
		s.tasks.Sleep(s.config.TeardownDelay)
		if err := s.provisioner.Stop(ctx, name); err != nil {
			logger.Warn(ctx, "teardown after submission failed", zap.Error(err))
			return nil
		}
		logger.Info(ctx, "session container stopped")
		return nil
	})
	return SubmitResult{Teardown: task}, nil
}

func checkSubmittable(status model.SessionStatus) error {
	switch status {
	case model.StatusActive, model.StatusProvisioning:
		return nil
	case model.StatusCompleted:
		return pkgerrors.New(pkgerrors.SessionClosed)
	default:
		return pkgerrors.Newf(pkgerrors.InvalidSessionState, "Session in state %s cannot accept a submission", status)
	}
}

func validateDetails(details json.RawMessage) error {
	if len(details) == 0 {
		return pkgerrors.New(pkgerrors.InvalidParams).WithMessage("details are required")
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(details, &obj); err != nil || obj == nil {
		return pkgerrors.New(pkgerrors.InvalidParams).WithMessage("details must be a JSON object")
	}
	return nil
}

// ListSessions returns every session, newest first.
func (s *SessionService) ListSessions(ctx context.Context) ([]model.SessionSummary, error) {
	out, err := s.sessions.ListSummaries(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(fmt.Errorf("list sessions failed: %w", err), pkgerrors.DatabaseError)
	}
	return out, nil
}

// ListSubmissions returns completed sessions, most recently completed first.
func (s *SessionService) ListSubmissions(ctx context.Context) ([]model.SessionSummary, error) {
	out, err := s.sessions.ListCompleted(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(fmt.Errorf("list submissions failed: %w", err), pkgerrors.DatabaseError)
	}
	return out, nil
}

func (s *SessionService) getSession(ctx context.Context, token string) (model.Session, error) {
	if !model.ValidToken(token) {
		return model.Session{}, pkgerrors.New(pkgerrors.SessionNotFound)
	}
	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if stderrors.Is(err, repository.ErrSessionNotFound) {
			return model.Session{}, pkgerrors.New(pkgerrors.SessionNotFound)
		}
		return model.Session{}, pkgerrors.Wrap(fmt.Errorf("get session failed: %w", err), pkgerrors.DatabaseError)
	}
	return session, nil
}

func (s *SessionService) transition(ctx context.Context, token string, from, to model.SessionStatus, at time.Time) (bool, error) {
	moved, err := s.sessions.Transition(ctx, token, to, at)
	if err != nil {
		return false, pkgerrors.Wrap(fmt.Errorf("transition session to %s failed: %w", to, err), pkgerrors.DatabaseError)
	}
	if moved {
		s.events.Publish(ctx, token, from, to, at)
	}
	return moved, nil
}

func (s *SessionService) release(ctx context.Context, key string) {
	if err := s.locker.Release(ctx, key); err != nil {
		logger.Warn(ctx, "release lock failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *SessionService) workspacePath(token string) string {
	return filepath.Join(s.config.StagingRoot, token)
}
