package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmitReason records what ended an attempt.
type SubmitReason string

const (
	SubmitReasonManual  SubmitReason = "manual"
	SubmitReasonTimeout SubmitReason = "timeout"
)

// QuizAttempt is a completed, scored pass at a quiz.
type QuizAttempt struct {
	ID              uuid.UUID    `json:"id"`
	UserID          uuid.UUID    `json:"user_id"`
	QuizID          uuid.UUID    `json:"quiz_id"`
	Answers         []int        `json:"answers"`
	QuestionIndices []int        `json:"question_indices"`
	Score           int          `json:"score"`
	CorrectAnswers  int          `json:"correct_answers"`
	TotalQuestions  int          `json:"total_questions"`
	TimeSpent       int          `json:"time_spent"`
	SubmitReason    SubmitReason `json:"submit_reason"`
	CompletedAt     time.Time    `json:"completed_at"`
	QuizTitle       string       `json:"quiz_title,omitempty"`
}

// QuizAttemptInput is what the session manager hands to persistence.
type QuizAttemptInput struct {
	UserID          uuid.UUID
	QuizID          uuid.UUID
	Answers         []int
	QuestionIndices []int
	Score           int
	CorrectAnswers  int
	TotalQuestions  int
	TimeSpent       int
	SubmitReason    SubmitReason
	CompletedAt     time.Time
}

// AttemptReviewItem re-displays one sampled question against the original quiz.
type AttemptReviewItem struct {
	Position      int      `json:"position"`
	QuestionIndex int      `json:"question_index"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	Chosen        int      `json:"chosen"`
	CorrectAnswer int      `json:"correct_answer"`
	Correct       bool     `json:"correct"`
	Explanation   string   `json:"explanation,omitempty"`
}

// AttemptDetail is an attempt together with its review.
type AttemptDetail struct {
	Attempt   QuizAttempt         `json:"attempt"`
	QuizTitle string              `json:"quiz_title"`
	Review    []AttemptReviewItem `json:"review"`
}

// AttemptSummary is a row of a quiz's result table.
type AttemptSummary struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	DisplayName    string    `json:"display_name"`
	Score          int       `json:"score"`
	CorrectAnswers int       `json:"correct_answers"`
	TotalQuestions int       `json:"total_questions"`
	TimeSpent      int       `json:"time_spent"`
	CompletedAt    time.Time `json:"completed_at"`
}
