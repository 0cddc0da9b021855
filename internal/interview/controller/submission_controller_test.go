package controller_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"assesy/internal/interview/controller"
	"assesy/internal/interview/runtime"
	"assesy/internal/interview/workspace"

	"github.com/klauspost/compress/zip"
)

func submittedSession(t *testing.T, env *apiEnv) string {
	t.Helper()
	id := env.createAssessment(t, "Algo Test", map[string]string{"main.py": "print('hello')\n"})
	token := env.createSession(t, id)
	env.waitForRedirect(t, token)
	code := zipOf(t, map[string]string{"main.py": "print(42)\n", "pkg/util.py": "x = 1\n"})
	w := env.submit(t, token, map[string]string{"details": `{"candidate":"Ada"}`},
		[]formFile{{field: "code", name: "code.zip", content: code}})
	if w.Code != http.StatusOK {
		t.Fatalf("submit failed: %d %s", w.Code, w.Body.String())
	}
	return token
}

func TestSubmissionInspection(t *testing.T) {
	env := newAPIEnv(t)
	token := submittedSession(t, env)
	base := "/admin/submissions/" + token

	var details map[string]string
	decodeData(t, env.doJSON(t, http.MethodGet, base+"/details", nil), &details)
	if details["candidate"] != "Ada" {
		t.Fatalf("unexpected details: %+v", details)
	}

	var files controller.FileListResponse
	decodeData(t, env.doJSON(t, http.MethodGet, base+"/files", nil), &files)
	byName := map[string]workspace.Entry{}
	for _, f := range files.Files {
		byName[f.Name] = f
	}
	if e, ok := byName["pkg/util.py"]; !ok || e.Size != int64(len("x = 1\n")) {
		t.Fatalf("unexpected file listing: %+v", files.Files)
	}

	var file controller.FileContentResponse
	decodeData(t, env.doJSON(t, http.MethodGet, base+"/file/pkg/util.py", nil), &file)
	if file.Content != "x = 1\n" || file.Filename != "util.py" {
		t.Fatalf("unexpected file content: %+v", file)
	}
	if w := env.doJSON(t, http.MethodGet, base+"/file/missing.py", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing entry, got %d", w.Code)
	}

	w := env.doJSON(t, http.MethodGet, base+"/download", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("download failed: %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, token+"_code.zip") {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	data := w.Body.Bytes()
	zr, err := zip.NewReader(strings.NewReader(string(data)), int64(len(data)))
	if err != nil {
		t.Fatalf("downloaded archive unreadable: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("expected 2 archive members, got %d", len(zr.File))
	}
}

func TestSubmissionNotFound(t *testing.T) {
	env := newAPIEnv(t)
	missing := strings.Repeat("b", 48)
	for _, path := range []string{"/details", "/files", "/download", "/file/main.py"} {
		w := env.doJSON(t, http.MethodGet, "/admin/submissions/"+missing+path, nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, w.Code)
		}
	}
	if w := env.doJSON(t, http.MethodPost, "/admin/submissions/"+missing+"/review", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 starting review without submission, got %d", w.Code)
	}
}

func TestReviewLifecycle(t *testing.T) {
	env := newAPIEnv(t)
	token := submittedSession(t, env)
	base := "/admin/submissions/" + token + "/review"

	var status controller.ReviewStatusResponse
	decodeData(t, env.doJSON(t, http.MethodGet, base+"/status", nil), &status)
	if status.Exists {
		t.Fatalf("expected no review container yet: %+v", status)
	}

	w := env.doJSON(t, http.MethodPost, base, nil)
	var started controller.StartReviewResponse
	resp := decodeData(t, w, &started)
	if w.Code != http.StatusOK || resp.Message != "Review environment ready" {
		t.Fatalf("unexpected start response: %d %+v", w.Code, resp)
	}
	if started.ReviewURL != "http://review-"+token+".interview.localhost" || started.AlreadyExists {
		t.Fatalf("unexpected review: %+v", started)
	}

	decodeData(t, env.doJSON(t, http.MethodPost, base, nil), &started)
	if !started.AlreadyExists {
		t.Fatalf("expected second start to reuse the container")
	}
	creates, _, _, _ := env.runtime.Counts()
	// one session container plus one review container
	if creates != 2 {
		t.Fatalf("expected 2 creates, got %d", creates)
	}

	decodeData(t, env.doJSON(t, http.MethodGet, base+"/status", nil), &status)
	if !status.Exists || !status.Running {
		t.Fatalf("expected running review container: %+v", status)
	}

	w = env.doJSON(t, http.MethodDelete, base, nil)
	if resp := decodeData(t, w, nil); w.Code != http.StatusOK || resp.Message != "Review environment stopped" {
		t.Fatalf("unexpected stop response: %d %+v", w.Code, resp)
	}
	if _, ok := env.runtime.Get(runtime.ReviewContainerName(token)); ok {
		t.Fatalf("expected review container to be removed")
	}
	if w := env.doJSON(t, http.MethodDelete, base, nil); w.Code != http.StatusOK {
		t.Fatalf("expected idempotent stop, got %d", w.Code)
	}
}

func TestDownloadBodyMatchesUpload(t *testing.T) {
	env := newAPIEnv(t)
	id := env.createAssessment(t, "Algo Test", map[string]string{"main.py": "print('hello')\n"})
	token := env.createSession(t, id)
	env.waitForRedirect(t, token)
	code := zipOf(t, map[string]string{"solution.go": "package main\n"})
	if w := env.submit(t, token, map[string]string{"details": `{}`},
		[]formFile{{field: "code", name: "code.zip", content: code}}); w.Code != http.StatusOK {
		t.Fatalf("submit failed: %d %s", w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/submissions/"+token+"/download", nil)
	w := env.do(req, true)
	body, _ := io.ReadAll(w.Body)
	if string(body) != code {
		t.Fatalf("downloaded archive differs from upload")
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("unexpected content type %q", ct)
	}
}
