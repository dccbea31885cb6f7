package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quizforge/quizforge-backend/internal/middleware"
	"github.com/quizforge/quizforge-backend/internal/model"
	"github.com/quizforge/quizforge-backend/internal/response"
	"github.com/quizforge/quizforge-backend/internal/service"
	"github.com/quizforge/quizforge-backend/internal/validator"
)

// QuizSessionHandler handles student-facing endpoints (catalogue, exam taking).
type QuizSessionHandler struct {
	sessionService *service.ExamSessionService
	quizService    *service.QuizService
}

// NewQuizSessionHandler creates a new QuizSessionHandler.
func NewQuizSessionHandler(
	sessionService *service.ExamSessionService,
	quizService *service.QuizService,
) *QuizSessionHandler {
	return &QuizSessionHandler{
		sessionService: sessionService,
		quizService:    quizService,
	}
}

// ListQuizzes godoc
// GET /api/v1/student/quizzes?page=&per_page=
// Returns the quizzes that are open for attempts.
func (h *QuizSessionHandler) ListQuizzes(c *gin.Context) {
	var q model.PageQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quizzes, pagination, err := h.quizService.ListActive(c.Request.Context(), q.Page, q.PerPage)
	if err != nil {
		fail(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"quizzes": quizzes}, pagination)
}

// StartSession godoc
// POST /api/v1/student/quizzes/:quiz_id/session
// Starts an attempt, or resumes the one in progress (idempotent).
func (h *QuizSessionHandler) StartSession(c *gin.Context) {
	claims, quizID, ok := sessionParams(c)
	if !ok {
		return
	}

	sess, err := h.sessionService.Start(c.Request.Context(), claims.UserID, quizID)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"session": h.sessionService.View(sess),
		"resumed": sess.Restored(),
	})
}

// GetSession godoc
// GET /api/v1/student/quizzes/:quiz_id/session
// Returns the session after a page reload: answers so far and remaining time.
func (h *QuizSessionHandler) GetSession(c *gin.Context) {
	claims, quizID, ok := sessionParams(c)
	if !ok {
		return
	}

	sess, err := h.sessionService.Get(c.Request.Context(), claims.UserID, quizID)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": h.sessionService.View(sess)})
}

// RecordAnswer godoc
// PUT /api/v1/student/quizzes/:quiz_id/session/answers
// Sets or clears the answer at one sampled position.
func (h *QuizSessionHandler) RecordAnswer(c *gin.Context) {
	claims, quizID, ok := sessionParams(c)
	if !ok {
		return
	}

	var req model.RecordAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.sessionService.Answer(c.Request.Context(), claims.UserID, quizID, *req.Position, *req.Option)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"position":          *req.Position,
		"option":            *req.Option,
		"remaining_seconds": sess.Remaining(),
	})
}

// Submit godoc
// POST /api/v1/student/quizzes/:quiz_id/session/submit
// Grades and stores the attempt. Repeating it returns the same result.
func (h *QuizSessionHandler) Submit(c *gin.Context) {
	claims, quizID, ok := sessionParams(c)
	if !ok {
		return
	}

	result, err := h.sessionService.Submit(c.Request.Context(), claims.UserID, quizID)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// sessionParams reads the caller and the quiz id, writing the error itself.
func sessionParams(c *gin.Context) (*service.Claims, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, uuid.Nil, false
	}

	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, false
	}
	return claims, quizID, true
}
