package model

import "github.com/google/uuid"

// NoAnswer marks an unanswered slot, and an unset correct answer on draft questions.
const NoAnswer = -1

// Question is a single multiple-choice question of a quiz.
type Question struct {
	ID            uuid.UUID `json:"id"`
	QuizID        uuid.UUID `json:"quiz_id"`
	Text          string    `json:"text"`
	Options       []string  `json:"options"`
	CorrectAnswer int       `json:"correct_answer"`
	Explanation   string    `json:"explanation,omitempty"`
	Position      int       `json:"position"`
}

// HasCorrectAnswer reports whether the correct answer points at an existing option.
func (q Question) HasCorrectAnswer() bool {
	return q.CorrectAnswer >= 0 && q.CorrectAnswer < len(q.Options)
}

// QuestionForStudent is a question without the correct answer.
type QuestionForStudent struct {
	ID      uuid.UUID `json:"id"`
	Text    string    `json:"text"`
	Options []string  `json:"options"`
}

// ForStudent strips the answer key.
func (q Question) ForStudent() QuestionForStudent {
	return QuestionForStudent{ID: q.ID, Text: q.Text, Options: q.Options}
}

// QuestionInput is one question of a create/update quiz payload.
type QuestionInput struct {
	Text          string   `json:"text" binding:"required,notblank,max=2000"`
	Options       []string `json:"options" binding:"required,min=2,max=10,dive,required,notblank,max=500"`
	CorrectAnswer *int     `json:"correct_answer" binding:"omitempty,min=-1"`
	Explanation   string   `json:"explanation" binding:"omitempty,max=2000"`
}
