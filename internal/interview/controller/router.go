package controller

import (
	commonmw "assesy/internal/common/http/middleware"
	"assesy/internal/interview/middleware"
	"assesy/internal/interview/service"
	"assesy/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

const defaultMaxUploadBytes = 64 << 20

// Services are the handlers' dependencies.
type Services struct {
	Sessions    *service.SessionService
	Submissions *service.SubmissionService
	Reviews     *service.ReviewService
	Assessments *service.AssessmentService
	Auth        *service.AuthService
}

// RouterConfig tunes the HTTP surface.
type RouterConfig struct {
	CORS commonmw.CORSConfig
	// MaxUploadBytes caps multipart memory; larger parts spill to disk.
	MaxUploadBytes int64
}

// NewRouter builds the HTTP surface. Candidate routes and login are public;
// everything else requires an operator token.
func NewRouter(svc Services, cfg RouterConfig) *gin.Engine {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}

	router := gin.New()
	router.MaxMultipartMemory = cfg.MaxUploadBytes
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(commonmw.RequestLogger())
	router.Use(commonmw.CORSMiddleware(cfg.CORS))

	router.GET("/healthz", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok"})
	})

	authController := NewAuthController(svc.Auth)
	router.POST("/auth/login", authController.Login)

	sessionController := NewSessionController(svc.Sessions)
	router.GET("/session/:token", sessionController.Enter)
	router.POST("/session/:token/submit", sessionController.Submit)

	var authenticator middleware.Authenticator
	if svc.Auth != nil {
		authenticator = svc.Auth
	}
	admin := router.Group("")
	admin.Use(middleware.AuthMiddleware(authenticator))

	admin.POST("/sessions", sessionController.Create)
	admin.GET("/admin/sessions", sessionController.ListSessions)
	admin.GET("/admin/submissions", sessionController.ListSubmissions)

	submissionController := NewSubmissionController(svc.Submissions, svc.Reviews)
	submissions := admin.Group("/admin/submissions/:token")
	submissions.GET("/details", submissionController.Details)
	submissions.GET("/files", submissionController.Files)
	submissions.GET("/file/*path", submissionController.File)
	submissions.GET("/download", submissionController.Download)
	submissions.GET("/review/status", submissionController.ReviewStatus)
	submissions.POST("/review", submissionController.StartReview)
	submissions.DELETE("/review", submissionController.StopReview)

	assessmentController := NewAssessmentController(svc.Assessments)
	admin.GET("/assessments", assessmentController.List)
	admin.POST("/assessments", assessmentController.Create)
	admin.GET("/assessments/:id", assessmentController.Files)
	admin.GET("/assessments/:id/file/:filename", assessmentController.ReadFile)
	admin.PUT("/assessments/:id/file/:filename", assessmentController.UpdateFile)
	admin.DELETE("/assessments/:id/file/:filename", assessmentController.DeleteFile)
	admin.POST("/assessments/:id/file", assessmentController.AddFile)

	router.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "route not found")
	})
	return router
}
