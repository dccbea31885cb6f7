package examsession

import (
	"math"

	"github.com/quizforge/quizforge-backend/internal/model"
)

// Scored is the outcome of grading a set of answers.
type Scored struct {
	Correct    int `json:"correct"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// Score grades answers[i] against questions[questionIndices[i]].
// Unanswered slots, indices outside the bank and questions without a correct
// answer all count as incorrect.
func Score(answers, questionIndices []int, questions []model.Question) Scored {
	correct := 0
	for i, idx := range questionIndices {
		if i >= len(answers) {
			break
		}
		a := answers[i]
		if a == model.NoAnswer || idx < 0 || idx >= len(questions) {
			continue
		}
		if q := questions[idx]; q.HasCorrectAnswer() && a == q.CorrectAnswer {
			correct++
		}
	}

	total := len(questionIndices)
	return Scored{
		Correct:    correct,
		Total:      total,
		Percentage: Percentage(correct, total),
	}
}

// Percentage rounds correct/total to a whole percent; an empty attempt scores 0.
func Percentage(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}
