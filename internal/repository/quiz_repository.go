package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizforge/quizforge-backend/internal/model"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// QuizListItem is a quiz row together with the size of its question bank.
type QuizListItem struct {
	model.Quiz
	TotalQuestions int
}

// QuizRepository handles quiz and question data access.
type QuizRepository struct {
	pool *pgxpool.Pool
}

// NewQuizRepository creates a new QuizRepository.
func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

const quizColumns = `q.id, q.title, q.description, q.time_limit, q.question_count,
	q.is_active, q.created_by, q.created_at, q.updated_at`

func scanQuiz(row pgx.Row, q *model.Quiz, extra ...any) error {
	dest := []any{&q.ID, &q.Title, &q.Description, &q.TimeLimit, &q.QuestionCount,
		&q.IsActive, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt}
	return row.Scan(append(dest, extra...)...)
}

// GetByID retrieves a quiz and its questions ordered by position.
func (r *QuizRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	q := &model.Quiz{}
	err := scanQuiz(r.pool.QueryRow(ctx, `SELECT `+quizColumns+` FROM quizzes q WHERE q.id = $1`, id), q)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	q.Questions, err = r.listQuestions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return q, nil
}

func (r *QuizRepository) listQuestions(ctx context.Context, quizID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, quiz_id, text, options, correct_answer, explanation, position
		 FROM questions WHERE quiz_id = $1
		 ORDER BY position`, quizID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Text, &q.Options, &q.CorrectAnswer, &q.Explanation, &q.Position); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// List returns quizzes newest first with their question totals.
// activeOnly restricts the result to quizzes open to students.
func (r *QuizRepository) List(ctx context.Context, activeOnly bool, limit, offset int) ([]QuizListItem, int, error) {
	where := ""
	if activeOnly {
		where = ` WHERE q.is_active`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quizzes q`+where).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+quizColumns+`, (SELECT COUNT(*) FROM questions qs WHERE qs.quiz_id = q.id)
		 FROM quizzes q`+where+`
		 ORDER BY q.created_at DESC
		 LIMIT $1 OFFSET $2`, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []QuizListItem{}
	for rows.Next() {
		var it QuizListItem
		if err := scanQuiz(rows, &it.Quiz, &it.TotalQuestions); err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}

// Create inserts a quiz and its questions in one transaction.
func (r *QuizRepository) Create(ctx context.Context, q *model.Quiz) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO quizzes (title, description, time_limit, question_count, is_active, created_by)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id, created_at, updated_at`,
			q.Title, q.Description, q.TimeLimit, q.QuestionCount, q.IsActive, q.CreatedBy,
		).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert quiz: %w", err)
		}
		return insertQuestions(ctx, tx, q)
	})
}

// Update overwrites a quiz's fields. When replaceQuestions is set the
// question bank is swapped for q.Questions in the same transaction.
func (r *QuizRepository) Update(ctx context.Context, q *model.Quiz, replaceQuestions bool) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE quizzes
			 SET title = $1, description = $2, time_limit = $3, question_count = $4, updated_at = NOW()
			 WHERE id = $5
			 RETURNING is_active, created_by, created_at, updated_at`,
			q.Title, q.Description, q.TimeLimit, q.QuestionCount, q.ID,
		).Scan(&q.IsActive, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("update quiz: %w", err)
		}
		if !replaceQuestions {
			return nil
		}

		if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE quiz_id = $1`, q.ID); err != nil {
			return fmt.Errorf("delete questions: %w", err)
		}
		return insertQuestions(ctx, tx, q)
	})
}

func insertQuestions(ctx context.Context, tx pgx.Tx, q *model.Quiz) error {
	if len(q.Questions) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range q.Questions {
		qs := &q.Questions[i]
		qs.QuizID = q.ID
		qs.Position = i
		batch.Queue(
			`INSERT INTO questions (quiz_id, text, options, correct_answer, explanation, position)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			qs.QuizID, qs.Text, qs.Options, qs.CorrectAnswer, qs.Explanation, qs.Position,
		).QueryRow(func(row pgx.Row) error {
			return row.Scan(&qs.ID)
		})
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert questions: %w", err)
	}
	return nil
}

// SetActive opens or closes a quiz to students.
func (r *QuizRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE quizzes SET is_active = $1, updated_at = NOW() WHERE id = $2`,
		active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a quiz; questions and attempts cascade.
func (r *QuizRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM quizzes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
