package worker

import (
	"context"

	"github.com/google/uuid"
	"github.com/quizforge/quizforge-backend/internal/model"
)

type attemptSinkFunc func(ctx context.Context) error

func (f attemptSinkFunc) SaveAttempt(ctx context.Context, _ model.QuizAttemptInput) (uuid.UUID, error) {
	if err := f(ctx); err != nil {
		return uuid.Nil, err
	}
	return uuid.New(), nil
}

func newUserID() uuid.UUID { return uuid.New() }

func quizWithQuestions(n int) *model.Quiz {
	q := &model.Quiz{ID: uuid.New(), Title: "Warmup", IsActive: true}
	for i := range n {
		q.Questions = append(q.Questions, model.Question{
			ID:            uuid.New(),
			QuizID:        q.ID,
			Options:       []string{"yes", "no"},
			CorrectAnswer: 0,
			Position:      i,
		})
	}
	return q
}
