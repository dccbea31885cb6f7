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
	"github.com/rs/zerolog"
)

// AdminQuizHandler handles quiz maintenance endpoints.
type AdminQuizHandler struct {
	quizService        *service.QuizService
	attemptService     *service.AttemptService
	leaderboardService *service.LeaderboardService
	log                zerolog.Logger
}

// NewAdminQuizHandler creates a new AdminQuizHandler.
func NewAdminQuizHandler(
	quizService *service.QuizService,
	attemptService *service.AttemptService,
	leaderboardService *service.LeaderboardService,
	log zerolog.Logger,
) *AdminQuizHandler {
	return &AdminQuizHandler{
		quizService:        quizService,
		attemptService:     attemptService,
		leaderboardService: leaderboardService,
		log:                log.With().Str("component", "admin_quiz_handler").Logger(),
	}
}

// ListQuizzes godoc
// GET /api/v1/admin/quizzes?page=&per_page=
func (h *AdminQuizHandler) ListQuizzes(c *gin.Context) {
	var q model.PageQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quizzes, pagination, err := h.quizService.List(c.Request.Context(), q.Page, q.PerPage)
	if err != nil {
		fail(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"quizzes": quizzes}, pagination)
}

// CreateQuiz godoc
// POST /api/v1/admin/quizzes
// New quizzes start inactive.
func (h *AdminQuizHandler) CreateQuiz(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.quizService.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"quiz": quiz})
}

// GetQuiz godoc
// GET /api/v1/admin/quizzes/:id
// Includes the answer key.
func (h *AdminQuizHandler) GetQuiz(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	quiz, err := h.quizService.GetForAdmin(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// UpdateQuiz godoc
// PUT /api/v1/admin/quizzes/:id
// Omitting "questions" keeps the current question bank.
func (h *AdminQuizHandler) UpdateQuiz(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req model.UpdateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.quizService.Update(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// DeleteQuiz godoc
// DELETE /api/v1/admin/quizzes/:id
func (h *AdminQuizHandler) DeleteQuiz(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.quizService.Delete(ctx, id); err != nil {
		fail(c, err)
		return
	}
	if err := h.leaderboardService.Drop(ctx, id); err != nil {
		h.log.Warn().Err(err).Str("quiz_id", id.String()).Msg("Dropping leaderboard failed")
	}

	response.Success(c, http.StatusOK, gin.H{"message": "quiz deleted"})
}

// ActivateQuiz godoc
// POST /api/v1/admin/quizzes/:id/activate
// Fails when the quiz has no questions or an incomplete answer key.
func (h *AdminQuizHandler) ActivateQuiz(c *gin.Context) {
	h.setActive(c, true)
}

// DeactivateQuiz godoc
// POST /api/v1/admin/quizzes/:id/deactivate
// Sessions already in progress run to completion.
func (h *AdminQuizHandler) DeactivateQuiz(c *gin.Context) {
	h.setActive(c, false)
}

func (h *AdminQuizHandler) setActive(c *gin.Context, active bool) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.quizService.SetActive(c.Request.Context(), id, active); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"id": id, "is_active": active})
}

// ListAttempts godoc
// GET /api/v1/admin/quizzes/:id/attempts?page=&per_page=
func (h *AdminQuizHandler) ListAttempts(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var q model.PageQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempts, pagination, err := h.attemptService.ListByQuiz(c.Request.Context(), id, q.Page, q.PerPage)
	if err != nil {
		fail(c, err)
		return
	}
	if attempts == nil {
		attempts = []model.AttemptSummary{}
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"attempts": attempts}, pagination)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
