package service

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/quizforge/quizforge-backend/internal/model"
	"github.com/quizforge/quizforge-backend/internal/repository"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func intPtr(n int) *int { return &n }

func readyQuiz(n int) *model.Quiz {
	q := &model.Quiz{ID: uuid.New(), Title: "Rivers of Europe", TimeLimit: 10, IsActive: true}
	for i := range n {
		q.Questions = append(q.Questions, model.Question{
			ID:            uuid.New(),
			QuizID:        q.ID,
			Text:          "Which river?",
			Options:       []string{"Danube", "Rhine", "Loire"},
			CorrectAnswer: i % 3,
			Position:      i,
		})
	}
	return q
}

// fakeQuizRepo is an in-memory QuizRepository.
type fakeQuizRepo struct {
	mu      sync.Mutex
	quizzes map[uuid.UUID]*model.Quiz
	gets    int
}

func newFakeQuizRepo(quizzes ...*model.Quiz) *fakeQuizRepo {
	r := &fakeQuizRepo{quizzes: map[uuid.UUID]*model.Quiz{}}
	for _, q := range quizzes {
		r.quizzes[q.ID] = q
	}
	return r
}

func (r *fakeQuizRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	q, ok := r.quizzes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (r *fakeQuizRepo) List(_ context.Context, activeOnly bool, limit, offset int) ([]repository.QuizListItem, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []repository.QuizListItem
	for _, q := range r.quizzes {
		if activeOnly && !q.IsActive {
			continue
		}
		items = append(items, repository.QuizListItem{Quiz: *q, TotalQuestions: len(q.Questions)})
	}
	total := len(items)
	if offset > len(items) {
		offset = len(items)
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items, total, nil
}

func (r *fakeQuizRepo) Create(_ context.Context, q *model.Quiz) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q.ID = uuid.New()
	cp := *q
	r.quizzes[q.ID] = &cp
	return nil
}

func (r *fakeQuizRepo) Update(_ context.Context, q *model.Quiz, replaceQuestions bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.quizzes[q.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cp := *q
	cp.IsActive = existing.IsActive
	if !replaceQuestions {
		cp.Questions = existing.Questions
	}
	r.quizzes[q.ID] = &cp
	return nil
}

func (r *fakeQuizRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quizzes[id]
	if !ok {
		return repository.ErrNotFound
	}
	q.IsActive = active
	return nil
}

func (r *fakeQuizRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.quizzes[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.quizzes, id)
	return nil
}

func (r *fakeQuizRepo) getCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gets
}

// staticQuizzes is a QuizSource over fixed quizzes.
type staticQuizzes map[uuid.UUID]*model.Quiz

func (s staticQuizzes) GetQuiz(_ context.Context, id uuid.UUID) (*model.Quiz, error) {
	q, ok := s[id]
	if !ok {
		return nil, ErrQuizNotFound
	}
	return q, nil
}

type recordingSink struct {
	mu       sync.Mutex
	attempts []model.QuizAttemptInput
	err      error
}

func (r *recordingSink) SaveAttempt(_ context.Context, in model.QuizAttemptInput) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return uuid.Nil, r.err
	}
	r.attempts = append(r.attempts, in)
	return uuid.New(), nil
}

type queuedUpdate struct {
	quizID uuid.UUID
	userID uuid.UUID
	score  int
}

type recordingQueue struct {
	mu      sync.Mutex
	updates []queuedUpdate
}

func (q *recordingQueue) Enqueue(_ context.Context, quizID, userID uuid.UUID, score int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.updates = append(q.updates, queuedUpdate{quizID: quizID, userID: userID, score: score})
	return nil
}

func (q *recordingQueue) all() []queuedUpdate {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queuedUpdate(nil), q.updates...)
}
