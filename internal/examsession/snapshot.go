package examsession

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quizforge/quizforge-backend/internal/model"
)

// Snapshot is the resumable part of a session.
type Snapshot struct {
	QuizID          uuid.UUID `json:"quiz_id"`
	QuestionIndices []int     `json:"question_indices"`
	Answers         []int     `json:"answers"`
	StartTime       time.Time `json:"start_time"`
}

func (s Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// DecodeSnapshot parses a stored snapshot. Structural problems are reported
// as ErrCorruptSnapshot.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	if snap.StartTime.IsZero() {
		return Snapshot{}, fmt.Errorf("%w: missing start time", ErrCorruptSnapshot)
	}
	if len(snap.QuestionIndices) != len(snap.Answers) {
		return Snapshot{}, fmt.Errorf("%w: %d indices but %d answers",
			ErrCorruptSnapshot, len(snap.QuestionIndices), len(snap.Answers))
	}
	return snap, nil
}

// Validate checks the snapshot against the quiz as it exists now. A quiz
// whose question set shrank or whose options changed no longer fits.
func (s Snapshot) Validate(quiz *model.Quiz) error {
	if s.QuizID != quiz.ID {
		return fmt.Errorf("%w: belongs to quiz %s", ErrCorruptSnapshot, s.QuizID)
	}
	if err := validateIndices(s.QuestionIndices, len(quiz.Questions)); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	for i, a := range s.Answers {
		q := quiz.Questions[s.QuestionIndices[i]]
		if a < model.NoAnswer || a >= len(q.Options) {
			return fmt.Errorf("%w: answer %d at position %d", ErrCorruptSnapshot, a, i)
		}
	}
	return nil
}

func validateIndices(indices []int, total int) error {
	if len(indices) > total {
		return fmt.Errorf("%w: %d indices for %d questions", ErrInvalidSample, len(indices), total)
	}
	seen := make(map[int]struct{}, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= total {
			return fmt.Errorf("%w: index %d", ErrInvalidSample, idx)
		}
		if _, dup := seen[idx]; dup {
			return fmt.Errorf("%w: duplicate index %d", ErrInvalidSample, idx)
		}
		seen[idx] = struct{}{}
	}
	return nil
}
