package controller_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"assesy/internal/interview/controller"
)

func TestAssessmentFileRoundTrip(t *testing.T) {
	env := newAPIEnv(t)
	id := env.createAssessment(t, "Algo Test", map[string]string{"main.py": "print('hello')\n", "README.md": "# task\n"})
	base := fmt.Sprintf("/assessments/%d", id)

	var files controller.AssessmentFilesResponse
	decodeData(t, env.doJSON(t, http.MethodGet, base, nil), &files)
	if len(files.Files) != 2 || files.Files[0] != "README.md" || files.Files[1] != "main.py" {
		t.Fatalf("unexpected files: %+v", files.Files)
	}

	content := "line one\n\tline two ünïcode\n"
	body, contentType := multipartBody(t, nil, []formFile{{field: "file", name: "extra.txt", content: content}})
	req := httptest.NewRequest(http.MethodPost, base+"/file", body)
	req.Header.Set("Content-Type", contentType)
	w := env.do(req, true)
	var added controller.AddFileResponse
	decodeData(t, w, &added)
	if w.Code != http.StatusOK || added.Filename != "extra.txt" {
		t.Fatalf("add file failed: %d %+v", w.Code, added)
	}

	var file controller.FileContentResponse
	decodeData(t, env.doJSON(t, http.MethodGet, base+"/file/extra.txt", nil), &file)
	if file.Content != content || file.Filename != "extra.txt" {
		t.Fatalf("round trip mismatch: %+v", file)
	}

	if w := env.doJSON(t, http.MethodPut, base+"/file/main.py", map[string]string{"content": "print('v2')\n"}); w.Code != http.StatusOK {
		t.Fatalf("update failed: %d %s", w.Code, w.Body.String())
	}
	decodeData(t, env.doJSON(t, http.MethodGet, base+"/file/main.py", nil), &file)
	if file.Content != "print('v2')\n" {
		t.Fatalf("update not applied: %+v", file)
	}

	if w := env.doJSON(t, http.MethodDelete, base+"/file/README.md", nil); w.Code != http.StatusOK {
		t.Fatalf("delete failed: %d", w.Code)
	}
	if w := env.doJSON(t, http.MethodGet, base+"/file/README.md", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
	if w := env.doJSON(t, http.MethodPut, base+"/file/missing.txt", map[string]string{"content": "x"}); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 updating missing file, got %d", w.Code)
	}
}

func TestAssessmentRequestValidation(t *testing.T) {
	env := newAPIEnv(t)
	cases := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{name: "non numeric id", method: http.MethodGet, path: "/assessments/abc", want: http.StatusBadRequest},
		{name: "unknown assessment", method: http.MethodGet, path: "/assessments/42", want: http.StatusNotFound},
		{name: "dotdot file name", method: http.MethodGet, path: "/assessments/1/file/..", want: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := env.doJSON(t, tc.method, tc.path, nil); w.Code != tc.want {
				t.Fatalf("expected %d, got %d %s", tc.want, w.Code, w.Body.String())
			}
		})
	}

	body, contentType := multipartBody(t, map[string]string{"title": "No files"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/assessments", body)
	req.Header.Set("Content-Type", contentType)
	if w := env.do(req, true); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without files, got %d", w.Code)
	}
}

func TestAssessmentList(t *testing.T) {
	env := newAPIEnv(t)
	env.createAssessment(t, "Zeta", map[string]string{"a.txt": "a"})
	env.createAssessment(t, "Alpha", map[string]string{"b.txt": "b"})

	var list []controller.AssessmentView
	decodeData(t, env.doJSON(t, http.MethodGet, "/assessments", nil), &list)
	if len(list) != 2 || list[0].Title != "Alpha" || list[1].Title != "Zeta" {
		t.Fatalf("unexpected listing: %+v", list)
	}
}
