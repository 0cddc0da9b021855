package controller

import (
	"net/http"
	"strings"
	"time"

	"assesy/internal/interview/model"
	"assesy/internal/interview/service"
	pkgerrors "assesy/pkg/errors"
	"assesy/pkg/utils/logger"
	"assesy/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxDetailsBytes = 1 << 20

// SessionController handles candidate session endpoints and the admin
// session listings.
type SessionController struct {
	sessionService *service.SessionService
}

// NewSessionController creates a new SessionController.
func NewSessionController(sessionService *service.SessionService) *SessionController {
	return &SessionController{sessionService: sessionService}
}

// Create registers a new session and returns the candidate link.
func (h *SessionController) Create(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	result, err := h.sessionService.CreateSession(c.Request.Context(), service.CreateSessionInput{
		CandidateName: req.CandidateName,
		Position:      req.Position,
		AssessmentID:  req.AssessmentID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, CreateSessionResponse{ShareableLink: result.ShareableLink})
}

// Enter serves the candidate's session link. It answers with HTML, never
// with the JSON envelope.
func (h *SessionController) Enter(c *gin.Context) {
	result, err := h.sessionService.Enter(c.Request.Context(), c.Param("token"))
	if err != nil {
		renderEntryError(c, err)
		return
	}

	switch result.View {
	case service.ViewRedirect:
		c.Redirect(http.StatusFound, result.RedirectURL)
	case service.ViewClosed:
		response.HTML(c, http.StatusOK, closedPage)
	default:
		response.HTML(c, http.StatusOK, preparingPage)
	}
}

func renderEntryError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	code := pkgerrors.GetCode(err)
	status := code.HTTPStatus()
	switch code {
	case pkgerrors.SessionNotFound:
		response.HTML(c, status, renderMessage("Not Found", "Session not found."))
	case pkgerrors.InvalidSessionState:
		logger.Warn(ctx, "session in unexpected state", zap.Error(err))
		response.HTML(c, status, renderMessage("Error", "Invalid session state."))
	default:
		logger.Error(ctx, "session entry failed", zap.Error(err))
		response.HTML(c, status, renderMessage("Error", "An error occurred while preparing your session."))
	}
}

// Submit accepts the candidate's final work as multipart form data:
// a details JSON field and a code zip file.
func (h *SessionController) Submit(c *gin.Context) {
	details := strings.TrimSpace(c.PostForm("details"))
	if details == "" {
		response.BadRequest(c, "Submission details are required")
		return
	}
	if len(details) > maxDetailsBytes {
		response.BadRequest(c, "Submission details are too large")
		return
	}
	fileHeader, err := c.FormFile("code")
	if err != nil {
		response.BadRequest(c, "Code archive is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.BadRequest(c, "Code archive is unreadable")
		return
	}
	defer file.Close()

	_, err = h.sessionService.Submit(c.Request.Context(), c.Param("token"), service.SubmitInput{
		Details:  []byte(details),
		Code:     file,
		CodeSize: fileHeader.Size,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, "Submission successful!", nil)
}

// ListSessions lists every session, newest first.
func (h *SessionController) ListSessions(c *gin.Context) {
	sessions, err := h.sessionService.ListSessions(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toSessionViews(sessions))
}

// ListSubmissions lists completed sessions.
func (h *SessionController) ListSubmissions(c *gin.Context) {
	sessions, err := h.sessionService.ListSubmissions(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toSessionViews(sessions))
}

func toSessionViews(sessions []model.SessionSummary) []SessionView {
	views := make([]SessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, SessionView{
			Token:           s.Token,
			Status:          string(s.Status),
			CandidateName:   s.CandidateName,
			Position:        s.Position,
			AssessmentTitle: s.AssessmentTitle,
			CreatedAt:       s.CreatedAt.UTC().Format(time.RFC3339),
			ActiveAt:        formatTime(s.ActiveAt),
			CompletedAt:     formatTime(s.CompletedAt),
		})
	}
	return views
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// CreateSessionRequest defines session creation payload.
type CreateSessionRequest struct {
	CandidateName string `json:"candidateName" binding:"required"`
	Position      string `json:"position" binding:"required"`
	AssessmentID  int64  `json:"assessmentId" binding:"required"`
}

// CreateSessionResponse defines session creation response payload.
type CreateSessionResponse struct {
	ShareableLink string `json:"shareableLink"`
}

// SessionView is one row of the admin session listings.
type SessionView struct {
	Token           string `json:"token"`
	Status          string `json:"status"`
	CandidateName   string `json:"candidateName"`
	Position        string `json:"position"`
	AssessmentTitle string `json:"assessmentTitle"`
	CreatedAt       string `json:"createdAt"`
	ActiveAt        string `json:"activeAt,omitempty"`
	CompletedAt     string `json:"completedAt,omitempty"`
}
