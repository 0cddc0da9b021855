package controller

import (
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"assesy/internal/interview/service"
	"assesy/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// AssessmentController handles assessment and starter file endpoints.
type AssessmentController struct {
	assessmentService *service.AssessmentService
}

// NewAssessmentController creates a new AssessmentController.
func NewAssessmentController(assessmentService *service.AssessmentService) *AssessmentController {
	return &AssessmentController{assessmentService: assessmentService}
}

// List returns every assessment.
func (h *AssessmentController) List(c *gin.Context) {
	assessments, err := h.assessmentService.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	views := make([]AssessmentView, 0, len(assessments))
	for _, a := range assessments {
		views = append(views, AssessmentView{ID: a.ID, Title: a.Title, CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339)})
	}
	response.Success(c, views)
}

// Create stores a new assessment from a multipart form with a title and
// one or more assessmentFiles.
func (h *AssessmentController) Create(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	title := strings.TrimSpace(c.PostForm("title"))
	headers := form.File["assessmentFiles"]
	if title == "" || len(headers) == 0 {
		response.BadRequest(c, "Title and at least one file are required")
		return
	}

	uploads := make([]service.FileUpload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll(uploads)
			response.BadRequest(c, "Uploaded file is unreadable")
			return
		}
		uploads = append(uploads, service.FileUpload{Name: fh.Filename, Content: f})
	}
	defer closeAll(uploads)

	assessment, err := h.assessmentService.Create(c.Request.Context(), title, uploads)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, CreateAssessmentResponse{
		Message: "Assessment created successfully",
		ID:      assessment.ID,
	})
}

func closeAll(uploads []service.FileUpload) {
	for _, u := range uploads {
		if f, ok := u.Content.(multipart.File); ok {
			_ = f.Close()
		}
	}
}

// Files lists the file names of one assessment.
func (h *AssessmentController) Files(c *gin.Context) {
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	files, err := h.assessmentService.ListFiles(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, AssessmentFilesResponse{Files: files})
}

// ReadFile returns one starter file as text.
func (h *AssessmentController) ReadFile(c *gin.Context) {
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	name := c.Param("filename")
	content, err := h.assessmentService.ReadFile(c.Request.Context(), id, name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, FileContentResponse{Content: string(content), Filename: name})
}

// UpdateFile replaces the content of an existing starter file.
func (h *AssessmentController) UpdateFile(c *gin.Context) {
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	var req UpdateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	if err := h.assessmentService.UpdateFile(c.Request.Context(), id, c.Param("filename"), strings.NewReader(req.Content)); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, "File updated successfully", nil)
}

// DeleteFile removes one starter file.
func (h *AssessmentController) DeleteFile(c *gin.Context) {
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	if err := h.assessmentService.DeleteFile(c.Request.Context(), id, c.Param("filename")); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, "File deleted successfully", nil)
}

// AddFile uploads a single starter file under the multipart field "file".
func (h *AssessmentController) AddFile(c *gin.Context) {
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "File is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "Uploaded file is unreadable")
		return
	}
	defer f.Close()

	if err := h.assessmentService.AddFile(c.Request.Context(), id, service.FileUpload{Name: fh.Filename, Content: f}); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, "File added successfully", AddFileResponse{Filename: fh.Filename})
}

func assessmentID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "Invalid assessment id")
		return 0, false
	}
	return id, true
}

// AssessmentView is one row of the assessment listing.
type AssessmentView struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"createdAt"`
}

// CreateAssessmentResponse defines assessment creation response payload.
type CreateAssessmentResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

// AssessmentFilesResponse lists starter file names.
type AssessmentFilesResponse struct {
	Files []string `json:"files"`
}

// UpdateFileRequest defines file update payload. Empty content is allowed.
type UpdateFileRequest struct {
	Content string `json:"content"`
}

// AddFileResponse defines file upload response payload.
type AddFileResponse struct {
	Filename string `json:"filename"`
}
