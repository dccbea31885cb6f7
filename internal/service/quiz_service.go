package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/quizforge/quizforge-backend/internal/config"
	"github.com/quizforge/quizforge-backend/internal/model"
	"github.com/quizforge/quizforge-backend/internal/repository"
	"github.com/quizforge/quizforge-backend/internal/response"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Domain Errors
var (
	ErrQuizNotFound        = errors.New("quiz not found")
	ErrQuizInactive        = errors.New("quiz is not active")
	ErrNoQuestions         = errors.New("quiz has no questions")
	ErrAnswerKeyIncomplete = errors.New("quiz has questions without a correct answer")
	ErrInvalidQuestion     = errors.New("invalid question")
)

// QuizRepository is the persistence QuizService needs.
type QuizRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Quiz, error)
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]repository.QuizListItem, int, error)
	Create(ctx context.Context, q *model.Quiz) error
	Update(ctx context.Context, q *model.Quiz, replaceQuestions bool) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// QuizService handles quiz maintenance and serves full quizzes to the exam
// session manager through a Redis cache.
type QuizService struct {
	repo QuizRepository
	rdb  *redis.Client
	ttl  time.Duration
	sf   singleflight.Group
	log  zerolog.Logger
}

// NewQuizService creates a new QuizService.
func NewQuizService(repo QuizRepository, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *QuizService {
	return &QuizService{
		repo: repo,
		rdb:  rdb,
		ttl:  ttl,
		log:  log.With().Str("component", "quiz_service").Logger(),
	}
}

// GetQuiz returns a quiz with its answer key. Reads go through Redis; a miss
// loads from PostgreSQL once no matter how many callers are waiting.
func (s *QuizService) GetQuiz(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	if q, ok := s.cached(ctx, id); ok {
		return q, nil
	}

	v, err, _ := s.sf.Do(id.String(), func() (interface{}, error) {
		// Shared by every waiter, so one caller going away must not fail the rest.
		ctx := context.WithoutCancel(ctx)
		if q, ok := s.cached(ctx, id); ok {
			return q, nil
		}

		q, err := s.repo.GetByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrQuizNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("get quiz: %w", err)
		}

		if data, err := json.Marshal(q); err == nil {
			if err := s.rdb.Set(ctx, config.CacheKey.QuizFullKey(id.String()), data, s.ttlWithJitter()).Err(); err != nil {
				s.log.Warn().Err(err).Str("quiz_id", id.String()).Msg("Caching quiz failed")
			}
		}
		return q, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Quiz), nil
}

func (s *QuizService) cached(ctx context.Context, id uuid.UUID) (*model.Quiz, bool) {
	data, err := s.rdb.Get(ctx, config.CacheKey.QuizFullKey(id.String())).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Str("quiz_id", id.String()).Msg("Reading quiz cache failed")
		}
		return nil, false
	}

	var q model.Quiz
	if err := json.Unmarshal(data, &q); err != nil {
		s.log.Warn().Err(err).Str("quiz_id", id.String()).Msg("Cached quiz unreadable")
		return nil, false
	}
	return &q, true
}

func (s *QuizService) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	return s.ttl + rand.N(s.ttl/10+1)
}

// InvalidateCache drops the cached copy of a quiz.
func (s *QuizService) InvalidateCache(ctx context.Context, id uuid.UUID) {
	if err := s.rdb.Del(ctx, config.CacheKey.QuizFullKey(id.String())).Err(); err != nil {
		s.log.Warn().Err(err).Str("quiz_id", id.String()).Msg("Invalidating quiz cache failed")
	}
}

// GetForAdmin reads a quiz straight from PostgreSQL.
func (s *QuizService) GetForAdmin(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	q, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrQuizNotFound
	}
	return q, err
}

// List returns every quiz, newest first.
func (s *QuizService) List(ctx context.Context, page, perPage int) ([]model.QuizSummary, *response.Pagination, error) {
	return s.list(ctx, false, page, perPage)
}

// ListActive returns the quizzes students can take.
func (s *QuizService) ListActive(ctx context.Context, page, perPage int) ([]model.QuizSummary, *response.Pagination, error) {
	return s.list(ctx, true, page, perPage)
}

func (s *QuizService) list(ctx context.Context, activeOnly bool, page, perPage int) ([]model.QuizSummary, *response.Pagination, error) {
	page, perPage = response.NormalizePage(page, perPage)

	items, total, err := s.repo.List(ctx, activeOnly, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}

	summaries := make([]model.QuizSummary, 0, len(items))
	for _, it := range items {
		summaries = append(summaries, it.Summary(it.TotalQuestions))
	}
	return summaries, response.NewPagination(page, perPage, total), nil
}

// Create inserts a new, inactive quiz.
func (s *QuizService) Create(ctx context.Context, adminID uuid.UUID, req *model.CreateQuizRequest) (*model.Quiz, error) {
	questions, err := buildQuestions(req.Questions)
	if err != nil {
		return nil, err
	}

	q := &model.Quiz{
		Title:         req.Title,
		Description:   req.Description,
		TimeLimit:     req.TimeLimit,
		QuestionCount: req.QuestionCount,
		Questions:     questions,
		CreatedBy:     adminID,
	}
	if err := s.repo.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("create quiz: %w", err)
	}

	s.log.Info().Str("quiz_id", q.ID.String()).Int("questions", len(questions)).Msg("Quiz created")
	return q, nil
}

// Update replaces a quiz's fields, and its questions when the request
// carries any. An active quiz must stay ready to take.
func (s *QuizService) Update(ctx context.Context, id uuid.UUID, req *model.UpdateQuizRequest) (*model.Quiz, error) {
	existing, err := s.GetForAdmin(ctx, id)
	if err != nil {
		return nil, err
	}

	replace := req.Questions != nil
	questions := existing.Questions
	if replace {
		if questions, err = buildQuestions(req.Questions); err != nil {
			return nil, err
		}
		if existing.IsActive {
			if err := CheckReady(questions); err != nil {
				return nil, err
			}
		}
	}

	q := &model.Quiz{
		ID:            id,
		Title:         req.Title,
		Description:   req.Description,
		TimeLimit:     req.TimeLimit,
		QuestionCount: req.QuestionCount,
		Questions:     questions,
	}
	if err := s.repo.Update(ctx, q, replace); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("update quiz: %w", err)
	}
	s.InvalidateCache(ctx, id)

	s.log.Info().Str("quiz_id", id.String()).Bool("questions_replaced", replace).Msg("Quiz updated")
	return q, nil
}

// SetActive opens or closes a quiz. Opening requires a complete answer key.
func (s *QuizService) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	if active {
		q, err := s.GetForAdmin(ctx, id)
		if err != nil {
			return err
		}
		if err := CheckReady(q.Questions); err != nil {
			return err
		}
	}

	if err := s.repo.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrQuizNotFound
		}
		return fmt.Errorf("set active: %w", err)
	}
	s.InvalidateCache(ctx, id)

	s.log.Info().Str("quiz_id", id.String()).Bool("active", active).Msg("Quiz availability changed")
	return nil
}

// Delete removes a quiz together with its questions and attempts.
func (s *QuizService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrQuizNotFound
		}
		return fmt.Errorf("delete quiz: %w", err)
	}
	s.InvalidateCache(ctx, id)
	return nil
}

// CheckReady reports whether a question bank can be taken: at least one
// question and a correct answer on every question.
func CheckReady(questions []model.Question) error {
	if len(questions) == 0 {
		return ErrNoQuestions
	}
	for i, q := range questions {
		if !q.HasCorrectAnswer() {
			return fmt.Errorf("%w: question %d", ErrAnswerKeyIncomplete, i+1)
		}
	}
	return nil
}

func buildQuestions(inputs []model.QuestionInput) ([]model.Question, error) {
	questions := make([]model.Question, 0, len(inputs))
	for i, in := range inputs {
		if len(in.Options) < 2 {
			return nil, fmt.Errorf("%w: question %d needs at least two options", ErrInvalidQuestion, i+1)
		}
		correct := model.NoAnswer
		if in.CorrectAnswer != nil {
			correct = *in.CorrectAnswer
		}
		if correct < model.NoAnswer || correct >= len(in.Options) {
			return nil, fmt.Errorf("%w: question %d has correct answer %d out of range", ErrInvalidQuestion, i+1, correct)
		}
		questions = append(questions, model.Question{
			Text:          in.Text,
			Options:       in.Options,
			CorrectAnswer: correct,
			Explanation:   in.Explanation,
			Position:      i,
		})
	}
	return questions, nil
}
