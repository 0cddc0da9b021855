package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	commonmw "assesy/internal/common/http/middleware"

	"github.com/gin-gonic/gin"
)

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(commonmw.CORSMiddleware(commonmw.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"http://admin.interview.localhost"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	router.GET("/assessments", func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{name: "allowed preflight", method: http.MethodOptions, origin: "http://admin.interview.localhost", wantStatus: http.StatusNoContent, wantAllow: "http://admin.interview.localhost"},
		{name: "rejected preflight", method: http.MethodOptions, origin: "http://evil.example", wantStatus: http.StatusForbidden},
		{name: "allowed request", method: http.MethodGet, origin: "http://admin.interview.localhost", wantStatus: http.StatusOK, wantAllow: "http://admin.interview.localhost"},
		{name: "no origin", method: http.MethodGet, wantStatus: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/assessments", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.wantAllow {
				t.Fatalf("expected allow origin %q, got %q", tc.wantAllow, got)
			}
		})
	}
}
