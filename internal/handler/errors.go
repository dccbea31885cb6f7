package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quizforge/quizforge-backend/internal/examsession"
	"github.com/quizforge/quizforge-backend/internal/response"
	"github.com/quizforge/quizforge-backend/internal/service"
)

// classify maps a domain error to an HTTP status and error code.
func classify(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrQuizNotFound),
		errors.Is(err, service.ErrAttemptNotFound):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, service.ErrNoSession):
		return http.StatusNotFound, response.ErrNoSession
	case errors.Is(err, service.ErrQuizInactive):
		return http.StatusForbidden, response.ErrQuizNotAvailable
	case errors.Is(err, service.ErrNoQuestions):
		return http.StatusUnprocessableEntity, response.ErrNoQuestions
	case errors.Is(err, service.ErrAnswerKeyIncomplete):
		return http.StatusUnprocessableEntity, response.ErrAnswerKeyIncomplete
	case errors.Is(err, service.ErrInvalidQuestion):
		return http.StatusBadRequest, response.ErrInvalidQuestion
	case errors.Is(err, examsession.ErrInvalidPosition),
		errors.Is(err, examsession.ErrInvalidOption):
		return http.StatusBadRequest, response.ErrInvalidAnswer
	case errors.Is(err, examsession.ErrTimeUp):
		return http.StatusConflict, response.ErrTimeUp
	case errors.Is(err, examsession.ErrSessionClosed):
		return http.StatusConflict, response.ErrSessionClosed
	case errors.Is(err, examsession.ErrSubmitInProgress):
		return http.StatusConflict, response.ErrSubmissionInProgress
	case errors.Is(err, examsession.ErrAttemptRejected):
		return http.StatusGone, response.ErrAttemptRejected
	case errors.Is(err, examsession.ErrPersistFailed):
		return http.StatusServiceUnavailable, response.ErrSubmitFailed
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// fail writes the error response for err, logging anything unexpected.
func fail(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	response.Fail(c, status, code)
}
