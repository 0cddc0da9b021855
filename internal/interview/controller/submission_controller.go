package controller

import (
	"io"
	"net/http"
	"path"
	"strings"

	"assesy/internal/interview/artifact"
	"assesy/internal/interview/service"
	"assesy/internal/interview/workspace"
	"assesy/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// SubmissionController handles evaluator access to submitted work.
type SubmissionController struct {
	submissionService *service.SubmissionService
	reviewService     *service.ReviewService
}

// NewSubmissionController creates a new SubmissionController.
func NewSubmissionController(submissionService *service.SubmissionService, reviewService *service.ReviewService) *SubmissionController {
	return &SubmissionController{submissionService: submissionService, reviewService: reviewService}
}

// Details returns the stored details document as JSON.
func (h *SubmissionController) Details(c *gin.Context) {
	details, err := h.submissionService.Details(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, details)
}

// Files lists the members of the submitted archive.
func (h *SubmissionController) Files(c *gin.Context) {
	entries, err := h.submissionService.ListFiles(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if entries == nil {
		entries = []workspace.Entry{}
	}
	response.Success(c, FileListResponse{Files: entries})
}

// File returns one archive member as text.
func (h *SubmissionController) File(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("path"), "/")
	if name == "" {
		response.BadRequest(c, "File path is required")
		return
	}
	content, err := h.submissionService.ReadFile(c.Request.Context(), c.Param("token"), name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, FileContentResponse{Content: string(content), Filename: path.Base(name)})
}

// Download streams the submitted archive.
func (h *SubmissionController) Download(c *gin.Context) {
	token := c.Param("token")
	archive, err := h.submissionService.Open(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer archive.Close()

	c.DataFromReader(http.StatusOK, archive.Size(), "application/zip",
		io.NewSectionReader(archive, 0, archive.Size()),
		map[string]string{"Content-Disposition": `attachment; filename="` + artifact.CodeFileName(token) + `"`})
}

// ReviewStatus reports the evaluator container of a submission.
func (h *SubmissionController) ReviewStatus(c *gin.Context) {
	status, err := h.reviewService.Status(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, ReviewStatusResponse{Exists: status.Exists, Running: status.Running, State: status.State})
}

// StartReview launches, or reuses, the read-only evaluator environment.
func (h *SubmissionController) StartReview(c *gin.Context) {
	result, err := h.reviewService.Start(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, "Review environment ready", StartReviewResponse{
		ReviewURL:     result.ReviewURL,
		AlreadyExists: result.AlreadyExists,
	})
}

// StopReview stops and removes the evaluator environment.
func (h *SubmissionController) StopReview(c *gin.Context) {
	if err := h.reviewService.Stop(c.Request.Context(), c.Param("token")); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, "Review environment stopped", nil)
}

// FileListResponse lists archive members.
type FileListResponse struct {
	Files []workspace.Entry `json:"files"`
}

// FileContentResponse carries one file as text.
type FileContentResponse struct {
	Content  string `json:"content"`
	Filename string `json:"filename"`
}

// ReviewStatusResponse mirrors the evaluator container state.
type ReviewStatusResponse struct {
	Exists  bool   `json:"exists"`
	Running bool   `json:"running"`
	State   string `json:"state,omitempty"`
}

// StartReviewResponse defines review start response payload.
type StartReviewResponse struct {
	ReviewURL     string `json:"reviewUrl"`
	AlreadyExists bool   `json:"alreadyExists"`
}
