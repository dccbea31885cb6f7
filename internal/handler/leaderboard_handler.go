package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quizforge/quizforge-backend/internal/model"
	"github.com/quizforge/quizforge-backend/internal/response"
	"github.com/quizforge/quizforge-backend/internal/service"
	"github.com/quizforge/quizforge-backend/internal/validator"
)

// LeaderboardHandler ranks users by their best score on a quiz.
type LeaderboardHandler struct {
	leaderboardService *service.LeaderboardService
	quizService        *service.QuizService
	defaultSize        int
}

// NewLeaderboardHandler creates a new LeaderboardHandler.
func NewLeaderboardHandler(leaderboardService *service.LeaderboardService, quizService *service.QuizService, defaultSize int) *LeaderboardHandler {
	return &LeaderboardHandler{
		leaderboardService: leaderboardService,
		quizService:        quizService,
		defaultSize:        defaultSize,
	}
}

// Get godoc
// GET /api/v1/quizzes/:quiz_id/leaderboard?limit=
func (h *LeaderboardHandler) Get(c *gin.Context) {
	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var q model.LeaderboardQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if q.Limit == 0 {
		q.Limit = h.defaultSize
	}

	ctx := c.Request.Context()
	if _, err := h.quizService.GetQuiz(ctx, quizID); err != nil {
		fail(c, err)
		return
	}

	entries, err := h.leaderboardService.Top(ctx, quizID, q.Limit)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quiz_id": quizID, "entries": entries})
}
