package service_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"assesy/internal/common/db"
	"assesy/internal/interview/artifact"
	"assesy/internal/interview/lock"
	"assesy/internal/interview/model"
	"assesy/internal/interview/repository"
	"assesy/internal/interview/runtime"
	"assesy/internal/interview/runtime/runtimetest"
	"assesy/internal/interview/service"
	"assesy/internal/interview/workspace"

	"github.com/klauspost/compress/zip"
)

type testEnv struct {
	db             db.Database
	sessions       repository.SessionRepository
	assessments    repository.AssessmentRepository
	runtime        *runtimetest.Runtime
	provisioner    *runtime.Provisioner
	stager         *workspace.Stager
	locker         *lock.Registry
	artifacts      *artifact.LocalStore
	tasks          *service.TaskGroup
	stagingRoot    string
	assessmentRoot string

	sessionSvc    *service.SessionService
	reviewSvc     *service.ReviewService
	assessmentSvc *service.AssessmentService
	submissionSvc *service.SubmissionService
}

type envOption func(*envConfig)

type envConfig struct {
	reviewTimeout time.Duration
	events        *service.StatusEventPublisher
}

func withReviewTimeout(d time.Duration) envOption {
	return func(c *envConfig) { c.reviewTimeout = d }
}

func withEvents(p *service.StatusEventPublisher) envOption {
	return func(c *envConfig) { c.events = p }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	cfg := envConfig{reviewTimeout: time.Hour}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := context.Background()
	root := t.TempDir()
	dsn := "file:" + filepath.Join(root, "assesy.db") + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	database, err := db.Open(ctx, db.Config{Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	if err := repository.EnsureSchema(ctx, database); err != nil {
		t.Fatalf("ensure schema failed: %v", err)
	}

	env := &testEnv{
		db:             database,
		sessions:       repository.NewSessionRepository(database),
		assessments:    repository.NewAssessmentRepository(database),
		runtime:        runtimetest.New(),
		locker:         lock.NewRegistry(),
		tasks:          service.NewTaskGroup(),
		stagingRoot:    filepath.Join(root, "sessions"),
		assessmentRoot: filepath.Join(root, "assessment_files"),
	}
	t.Cleanup(func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = env.tasks.Close(closeCtx)
	})

	env.provisioner, err = runtime.NewProvisioner(env.runtime, runtime.Config{})
	if err != nil {
		t.Fatalf("new provisioner failed: %v", err)
	}
	env.stager, err = workspace.NewStager(workspace.Config{AssessmentRoot: env.assessmentRoot, UID: os.Getuid(), GID: os.Getgid()})
	if err != nil {
		t.Fatalf("new stager failed: %v", err)
	}
	env.artifacts, err = artifact.NewLocalStore(filepath.Join(root, "submissions"))
	if err != nil {
		t.Fatalf("new artifact store failed: %v", err)
	}

	env.sessionSvc = service.NewSessionService(env.sessions, env.assessments, env.stager, env.provisioner,
		env.locker, env.artifacts, env.tasks, cfg.events, service.SessionServiceConfig{
			StagingRoot:   env.stagingRoot,
			PublicBaseURL: "http://api.interview.localhost/",
			TeardownDelay: 10 * time.Millisecond,
		})
	env.reviewSvc = service.NewReviewService(env.artifacts, env.stager, env.provisioner, env.locker, env.tasks,
		service.ReviewServiceConfig{StagingRoot: env.stagingRoot, Timeout: cfg.reviewTimeout})
	env.assessmentSvc = service.NewAssessmentService(database, env.assessments, env.stager)
	env.submissionSvc = service.NewSubmissionService(env.artifacts, workspace.Limits{})
	return env
}

// createAssessment stores an assessment through the service with the given files.
func (e *testEnv) createAssessment(t *testing.T, title string, files map[string]string) model.Assessment {
	t.Helper()
	uploads := make([]service.FileUpload, 0, len(files))
	for name, content := range files {
		uploads = append(uploads, service.FileUpload{Name: name, Content: bytes.NewBufferString(content)})
	}
	a, err := e.assessmentSvc.Create(context.Background(), title, uploads)
	if err != nil {
		t.Fatalf("create assessment failed: %v", err)
	}
	return a
}

// createSession makes an assessment with one file and a session for it.
func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	a := e.createAssessment(t, "Algo Test", map[string]string{"main.py": "print('hello')\n"})
	result, err := e.sessionSvc.CreateSession(context.Background(), service.CreateSessionInput{
		CandidateName: "Ada Lovelace",
		Position:      "Backend Engineer",
		AssessmentID:  a.ID,
	})
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	return result.Token
}

func (e *testEnv) status(t *testing.T, token string) model.SessionStatus {
	t.Helper()
	s, err := e.sessions.GetByToken(context.Background(), token)
	if err != nil {
		t.Fatalf("get session failed: %v", err)
	}
	return s.Status
}

// activate drives a session to ACTIVE through Enter.
func (e *testEnv) activate(t *testing.T, token string) {
	t.Helper()
	res, err := e.sessionSvc.Enter(context.Background(), token)
	if err != nil {
		t.Fatalf("enter failed: %v", err)
	}
	if res.Task == nil {
		t.Fatalf("expected provisioning task")
	}
	if err := res.Task.Wait(); err != nil {
		t.Fatalf("provisioning failed: %v", err)
	}
	if got := e.status(t, token); got != model.StatusActive {
		t.Fatalf("expected ACTIVE, got %s", got)
	}
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create failed: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write failed: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close failed: %v", err)
	}
	return buf.Bytes()
}

func submitInput(t *testing.T, details string, files map[string]string) service.SubmitInput {
	t.Helper()
	code := buildZip(t, files)
	return service.SubmitInput{Details: []byte(details), Code: bytes.NewReader(code), CodeSize: int64(len(code))}
}
