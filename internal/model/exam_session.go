package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionState enumerates the lifecycle of a live exam session.
type SessionState string

const (
	SessionStateActive     SessionState = "ACTIVE"
	SessionStateSubmitting SessionState = "SUBMITTING"
	SessionStateCompleted  SessionState = "COMPLETED"
	SessionStateFailed     SessionState = "FAILED"
)

// ExamSessionView is what a student sees of their in-progress session.
type ExamSessionView struct {
	QuizID    uuid.UUID            `json:"quiz_id"`
	Title     string               `json:"title"`
	TimeLimit int                  `json:"time_limit"`
	Questions []QuestionForStudent `json:"questions"`
	Answers   []int                `json:"answers"`
	Answered  int                  `json:"answered"`
	StartedAt time.Time            `json:"started_at"`
	Remaining int                  `json:"remaining_seconds"`
	State     SessionState         `json:"state"`
	AttemptID *uuid.UUID           `json:"attempt_id,omitempty"`
}

// RecordAnswerRequest sets (or clears with -1) the answer at a sampled position.
type RecordAnswerRequest struct {
	Position *int `json:"position" binding:"required,min=0"`
	Option   *int `json:"option" binding:"required,min=-1"`
}

// SubmitResult is returned once an attempt has been durably stored.
type SubmitResult struct {
	AttemptID      uuid.UUID    `json:"attempt_id"`
	Score          int          `json:"score"`
	CorrectAnswers int          `json:"correct_answers"`
	TotalQuestions int          `json:"total_questions"`
	TimeSpent      int          `json:"time_spent"`
	Reason         SubmitReason `json:"reason"`
}
