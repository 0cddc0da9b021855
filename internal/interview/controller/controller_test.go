package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"assesy/internal/common/db"
	"assesy/internal/interview/artifact"
	"assesy/internal/interview/controller"
	"assesy/internal/interview/lock"
	"assesy/internal/interview/repository"
	"assesy/internal/interview/runtime"
	"assesy/internal/interview/runtime/runtimetest"
	"assesy/internal/interview/service"
	"assesy/internal/interview/workspace"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/zip"
)

const (
	adminUser     = "admin"
	adminPassword = "s3cret-pass"
)

type apiEnv struct {
	router  *gin.Engine
	runtime *runtimetest.Runtime
	token   string
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
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

	rt := runtimetest.New()
	provisioner, err := runtime.NewProvisioner(rt, runtime.Config{})
	if err != nil {
		t.Fatalf("new provisioner failed: %v", err)
	}
	stager, err := workspace.NewStager(workspace.Config{
		AssessmentRoot: filepath.Join(root, "assessment_files"),
		UID:            os.Getuid(),
		GID:            os.Getgid(),
	})
	if err != nil {
		t.Fatalf("new stager failed: %v", err)
	}
	artifacts, err := artifact.NewLocalStore(filepath.Join(root, "submissions"))
	if err != nil {
		t.Fatalf("new artifact store failed: %v", err)
	}
	tasks := service.NewTaskGroup()
	t.Cleanup(func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tasks.Close(closeCtx)
	})
	locker := lock.NewRegistry()
	sessions := repository.NewSessionRepository(database)
	assessments := repository.NewAssessmentRepository(database)
	staging := filepath.Join(root, "sessions")

	auth, err := service.NewAuthService(service.AuthServiceConfig{
		JWTSecret: []byte("controller-test-secret"),
		Username:  adminUser,
		Password:  adminPassword,
	})
	if err != nil {
		t.Fatalf("new auth service failed: %v", err)
	}

	router := controller.NewRouter(controller.Services{
		Sessions: service.NewSessionService(sessions, assessments, stager, provisioner, locker, artifacts, tasks, nil,
			service.SessionServiceConfig{
				StagingRoot:   staging,
				PublicBaseURL: "http://api.interview.localhost",
				TeardownDelay: 10 * time.Millisecond,
			}),
		Submissions: service.NewSubmissionService(artifacts, workspace.Limits{}),
		Reviews: service.NewReviewService(artifacts, stager, provisioner, locker, tasks,
			service.ReviewServiceConfig{StagingRoot: staging, Timeout: time.Hour}),
		Assessments: service.NewAssessmentService(database, assessments, stager),
		Auth:        auth,
	}, controller.RouterConfig{})

	env := &apiEnv{router: router, runtime: rt}
	env.token = env.login(t)
	return env
}

func (e *apiEnv) do(req *http.Request, authed bool) *httptest.ResponseRecorder {
	if authed {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *apiEnv) doJSON(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return e.do(req, true)
}

func (e *apiEnv) login(t *testing.T) string {
	t.Helper()
	raw, _ := json.Marshal(map[string]string{"username": adminUser, "password": adminPassword})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := e.do(req, false)
	if w.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", w.Code, w.Body.String())
	}
	var resp controller.LoginResponse
	decodeData(t, w, &resp)
	if resp.Token == "" {
		t.Fatalf("expected token in login response")
	}
	return resp.Token
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope failed: %v (%s)", err, w.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("decode data failed: %v (%s)", err, env.Data)
		}
	}
	return env
}

type formFile struct {
	field, name, content string
}

func multipartBody(t *testing.T, fields map[string]string, files []formFile) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field failed: %v", err)
		}
	}
	for _, f := range files {
		w, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("create form file failed: %v", err)
		}
		if _, err := io.WriteString(w, f.content); err != nil {
			t.Fatalf("write form file failed: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart failed: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func zipOf(t *testing.T, files map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create failed: %v", err)
		}
		if _, err := io.WriteString(w, content); err != nil {
			t.Fatalf("zip write failed: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close failed: %v", err)
	}
	return buf.String()
}

func (e *apiEnv) createAssessment(t *testing.T, title string, files map[string]string) int64 {
	t.Helper()
	var parts []formFile
	for name, content := range files {
		parts = append(parts, formFile{field: "assessmentFiles", name: name, content: content})
	}
	body, contentType := multipartBody(t, map[string]string{"title": title}, parts)
	req := httptest.NewRequest(http.MethodPost, "/assessments", body)
	req.Header.Set("Content-Type", contentType)
	w := e.do(req, true)
	if w.Code != http.StatusCreated {
		t.Fatalf("create assessment failed: %d %s", w.Code, w.Body.String())
	}
	var resp controller.CreateAssessmentResponse
	decodeData(t, w, &resp)
	if resp.Message != "Assessment created successfully" || resp.ID <= 0 {
		t.Fatalf("unexpected create response: %+v", resp)
	}
	return resp.ID
}

// createSession returns the session token parsed from the shareable link.
func (e *apiEnv) createSession(t *testing.T, assessmentID int64) string {
	t.Helper()
	w := e.doJSON(t, http.MethodPost, "/sessions", map[string]interface{}{
		"candidateName": "Ada Lovelace",
		"position":      "Backend Engineer",
		"assessmentId":  assessmentID,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create session failed: %d %s", w.Code, w.Body.String())
	}
	var resp controller.CreateSessionResponse
	decodeData(t, w, &resp)
	const prefix = "http://api.interview.localhost/session/"
	if !strings.HasPrefix(resp.ShareableLink, prefix) {
		t.Fatalf("unexpected shareable link %q", resp.ShareableLink)
	}
	return strings.TrimPrefix(resp.ShareableLink, prefix)
}

func (e *apiEnv) visit(token string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, "/session/"+token, nil), false)
}

// waitForRedirect polls the candidate link until provisioning finishes.
func (e *apiEnv) waitForRedirect(t *testing.T, token string) string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		w := e.visit(token)
		if w.Code == http.StatusFound {
			return w.Header().Get("Location")
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session %s never became active", token)
	return ""
}

func (e *apiEnv) submit(t *testing.T, token string, fields map[string]string, files []formFile) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, fields, files)
	req := httptest.NewRequest(http.MethodPost, "/session/"+token+"/submit", body)
	req.Header.Set("Content-Type", contentType)
	return e.do(req, false)
}
