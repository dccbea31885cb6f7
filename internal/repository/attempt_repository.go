package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizforge/quizforge-backend/internal/examsession"
	"github.com/quizforge/quizforge-backend/internal/model"
)

const foreignKeyViolation = "23503"

// BestScore is a user's highest score on a quiz.
type BestScore struct {
	UserID uuid.UUID
	Score  int
}

// AttemptRepository handles quiz attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// SaveAttempt stores a finished attempt. The quiz row is share-locked so an
// attempt never lands on a quiz deleted mid-submit. A missing quiz or user
// is reported as examsession.ErrAttemptRejected.
func (r *AttemptRepository) SaveAttempt(ctx context.Context, in model.QuizAttemptInput) (uuid.UUID, error) {
	var id uuid.UUID
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var exists int
		err := tx.QueryRow(ctx, `SELECT 1 FROM quizzes WHERE id = $1 FOR SHARE`, in.QuizID).Scan(&exists)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("quiz %s: %w: %w", in.QuizID, examsession.ErrAttemptRejected, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("lock quiz: %w", err)
		}

		return tx.QueryRow(ctx,
			`INSERT INTO quiz_attempts
			   (user_id, quiz_id, answers, question_indices, score, correct_answers,
			    total_questions, time_spent, submit_reason, completed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 RETURNING id`,
			in.UserID, in.QuizID, in.Answers, in.QuestionIndices, in.Score, in.CorrectAnswers,
			in.TotalQuestions, in.TimeSpent, in.SubmitReason, in.CompletedAt,
		).Scan(&id)
	})
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return uuid.Nil, fmt.Errorf("%w: %s", examsession.ErrAttemptRejected, pgErr.ConstraintName)
	}
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

const attemptColumns = `a.id, a.user_id, a.quiz_id, a.answers, a.question_indices, a.score,
	a.correct_answers, a.total_questions, a.time_spent, a.submit_reason, a.completed_at, q.title`

func scanAttempt(row pgx.Row, a *model.QuizAttempt) error {
	return row.Scan(&a.ID, &a.UserID, &a.QuizID, &a.Answers, &a.QuestionIndices, &a.Score,
		&a.CorrectAnswers, &a.TotalQuestions, &a.TimeSpent, &a.SubmitReason, &a.CompletedAt, &a.QuizTitle)
}

// GetByID retrieves a single attempt with its quiz title.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.QuizAttempt, error) {
	a := &model.QuizAttempt{}
	err := scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM quiz_attempts a
		 JOIN quizzes q ON q.id = a.quiz_id
		 WHERE a.id = $1`, id), a)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListByUser retrieves a user's attempts, newest first.
func (r *AttemptRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.QuizAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+`
		 FROM quiz_attempts a
		 JOIN quizzes q ON q.id = a.quiz_id
		 WHERE a.user_id = $1
		 ORDER BY a.completed_at DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := []model.QuizAttempt{}
	for rows.Next() {
		var a model.QuizAttempt
		if err := scanAttempt(rows, &a); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// ListByQuiz retrieves a quiz's result table with pagination, best scores first.
func (r *AttemptRepository) ListByQuiz(ctx context.Context, quizID uuid.UUID, limit, offset int) ([]model.AttemptSummary, int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quiz_attempts WHERE quiz_id = $1`, quizID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.user_id, u.display_name, a.score, a.correct_answers,
		        a.total_questions, a.time_spent, a.completed_at
		 FROM quiz_attempts a
		 JOIN users u ON u.id = a.user_id
		 WHERE a.quiz_id = $1
		 ORDER BY a.score DESC, a.completed_at ASC
		 LIMIT $2 OFFSET $3`, quizID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	results := []model.AttemptSummary{}
	for rows.Next() {
		var s model.AttemptSummary
		if err := rows.Scan(&s.ID, &s.UserID, &s.DisplayName, &s.Score, &s.CorrectAnswers,
			&s.TotalQuestions, &s.TimeSpent, &s.CompletedAt); err != nil {
			return nil, 0, err
		}
		results = append(results, s)
	}
	return results, total, rows.Err()
}

// BestScores returns every user's highest score on a quiz.
func (r *AttemptRepository) BestScores(ctx context.Context, quizID uuid.UUID) ([]BestScore, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, MAX(score)
		 FROM quiz_attempts
		 WHERE quiz_id = $1
		 GROUP BY user_id`, quizID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []BestScore
	for rows.Next() {
		var b BestScore
		if err := rows.Scan(&b.UserID, &b.Score); err != nil {
			return nil, err
		}
		scores = append(scores, b)
	}
	return scores, rows.Err()
}
