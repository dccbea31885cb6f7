package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/quizforge/quizforge-backend/internal/model"
	"github.com/quizforge/quizforge-backend/internal/repository"
	"github.com/quizforge/quizforge-backend/internal/response"
)

// ErrAttemptNotFound is also returned to students asking for someone else's attempt.
var ErrAttemptNotFound = errors.New("attempt not found")

// AttemptReader is the persistence AttemptService needs.
type AttemptReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.QuizAttempt, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.QuizAttempt, error)
	ListByQuiz(ctx context.Context, quizID uuid.UUID, limit, offset int) ([]model.AttemptSummary, int, error)
}

// AttemptService serves finished attempts and their reviews.
type AttemptService struct {
	attempts AttemptReader
	quizzes  QuizSource
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(attempts AttemptReader, quizzes QuizSource) *AttemptService {
	return &AttemptService{attempts: attempts, quizzes: quizzes}
}

// Get returns an attempt with a question-by-question review. Students only
// see their own attempts.
func (s *AttemptService) Get(ctx context.Context, id, viewerID uuid.UUID, viewerRole model.Role) (*model.AttemptDetail, error) {
	a, err := s.attempts.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if viewerRole != model.RoleAdmin && a.UserID != viewerID {
		return nil, ErrAttemptNotFound
	}

	quiz, err := s.quizzes.GetQuiz(ctx, a.QuizID)
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}

	return &model.AttemptDetail{
		Attempt:   *a,
		QuizTitle: quiz.Title,
		Review:    BuildReview(a, quiz.Questions),
	}, nil
}

// BuildReview lines an attempt's answers up with the questions they were
// given for. Questions since removed from the quiz appear without text.
func BuildReview(a *model.QuizAttempt, questions []model.Question) []model.AttemptReviewItem {
	review := make([]model.AttemptReviewItem, 0, len(a.QuestionIndices))
	for i, idx := range a.QuestionIndices {
		chosen := model.NoAnswer
		if i < len(a.Answers) {
			chosen = a.Answers[i]
		}
		item := model.AttemptReviewItem{
			Position:      i,
			QuestionIndex: idx,
			Chosen:        chosen,
			CorrectAnswer: model.NoAnswer,
		}
		if idx >= 0 && idx < len(questions) {
			q := questions[idx]
			item.Text = q.Text
			item.Options = q.Options
			item.CorrectAnswer = q.CorrectAnswer
			item.Explanation = q.Explanation
			item.Correct = chosen != model.NoAnswer && q.HasCorrectAnswer() && chosen == q.CorrectAnswer
		}
		review = append(review, item)
	}
	return review
}

// ListMine returns a user's attempts, newest first.
func (s *AttemptService) ListMine(ctx context.Context, userID uuid.UUID) ([]model.QuizAttempt, error) {
	return s.attempts.ListByUser(ctx, userID)
}

// ListByQuiz returns a quiz's result table.
func (s *AttemptService) ListByQuiz(ctx context.Context, quizID uuid.UUID, page, perPage int) ([]model.AttemptSummary, *response.Pagination, error) {
	page, perPage = response.NormalizePage(page, perPage)
	results, total, err := s.attempts.ListByQuiz(ctx, quizID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	return results, response.NewPagination(page, perPage, total), nil
}
