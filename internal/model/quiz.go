package model

import (
	"time"

	"github.com/google/uuid"
)

// Quiz is a bank of questions from which each attempt samples a subset.
type Quiz struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	// TimeLimit is in minutes; 0 means the quiz is untimed.
	TimeLimit int `json:"time_limit"`
	// QuestionCount is how many questions each attempt samples; nil means all.
	QuestionCount *int       `json:"question_count,omitempty"`
	IsActive      bool       `json:"is_active"`
	Questions     []Question `json:"questions,omitempty"`
	CreatedBy     uuid.UUID  `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// QuizSummary is a quiz as listed in the student catalogue.
type QuizSummary struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	TimeLimit      int       `json:"time_limit"`
	QuestionCount  int       `json:"question_count"`
	TotalQuestions int       `json:"total_questions"`
	IsActive       bool      `json:"is_active"`
}

// Summary builds the catalogue view for a quiz holding total questions;
// QuestionCount is the effective sample size.
func (q Quiz) Summary(total int) QuizSummary {
	count := total
	if q.QuestionCount != nil && *q.QuestionCount < total {
		count = max(*q.QuestionCount, 0)
	}
	return QuizSummary{
		ID:             q.ID,
		Title:          q.Title,
		Description:    q.Description,
		TimeLimit:      q.TimeLimit,
		QuestionCount:  count,
		TotalQuestions: total,
		IsActive:       q.IsActive,
	}
}

// CreateQuizRequest is the payload for creating a quiz.
type CreateQuizRequest struct {
	Title         string          `json:"title" binding:"required,notblank,min=3,max=255"`
	Description   string          `json:"description" binding:"omitempty,max=5000"`
	TimeLimit     int             `json:"time_limit" binding:"min=0,max=600"`
	QuestionCount *int            `json:"question_count" binding:"omitempty,min=0"`
	Questions     []QuestionInput `json:"questions" binding:"omitempty,dive"`
}

// UpdateQuizRequest replaces a quiz's fields and, when present, its questions.
type UpdateQuizRequest struct {
	Title         string          `json:"title" binding:"required,notblank,min=3,max=255"`
	Description   string          `json:"description" binding:"omitempty,max=5000"`
	TimeLimit     int             `json:"time_limit" binding:"min=0,max=600"`
	QuestionCount *int            `json:"question_count" binding:"omitempty,min=0"`
	Questions     []QuestionInput `json:"questions" binding:"omitempty,dive"`
}
