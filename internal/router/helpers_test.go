package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/quizforge/quizforge-backend/internal/config"
	"github.com/quizforge/quizforge-backend/internal/examsession"
	"github.com/quizforge/quizforge-backend/internal/handler"
	"github.com/quizforge/quizforge-backend/internal/middleware"
	"github.com/quizforge/quizforge-backend/internal/model"
	"github.com/quizforge/quizforge-backend/internal/repository"
	"github.com/quizforge/quizforge-backend/internal/response"
	"github.com/quizforge/quizforge-backend/internal/service"
	"github.com/quizforge/quizforge-backend/internal/validator"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testSecret = "router-test-secret"

// memQuizzes is an in-memory service.QuizRepository.
type memQuizzes struct {
	mu      sync.Mutex
	quizzes map[uuid.UUID]*model.Quiz
}

func (m *memQuizzes) GetByID(_ context.Context, id uuid.UUID) (*model.Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quizzes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (m *memQuizzes) List(_ context.Context, activeOnly bool, limit, offset int) ([]repository.QuizListItem, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []repository.QuizListItem
	for _, q := range m.quizzes {
		if activeOnly && !q.IsActive {
			continue
		}
		items = append(items, repository.QuizListItem{Quiz: *q, TotalQuestions: len(q.Questions)})
	}
	total := len(items)
	items = items[min(offset, len(items)):]
	return items[:min(limit, len(items))], total, nil
}

func (m *memQuizzes) Create(_ context.Context, q *model.Quiz) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q.ID = uuid.New()
	cp := *q
	m.quizzes[q.ID] = &cp
	return nil
}

func (m *memQuizzes) Update(_ context.Context, q *model.Quiz, replaceQuestions bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.quizzes[q.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cp := *q
	cp.IsActive = existing.IsActive
	if !replaceQuestions {
		cp.Questions = existing.Questions
	}
	m.quizzes[q.ID] = &cp
	return nil
}

func (m *memQuizzes) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quizzes[id]
	if !ok {
		return repository.ErrNotFound
	}
	q.IsActive = active
	return nil
}

func (m *memQuizzes) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quizzes[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.quizzes, id)
	return nil
}

// memAttempts stores attempts and answers every attempt query.
type memAttempts struct {
	mu       sync.Mutex
	attempts []model.QuizAttempt
}

func (m *memAttempts) SaveAttempt(_ context.Context, in model.QuizAttemptInput) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := model.QuizAttempt{
		ID:              uuid.New(),
		UserID:          in.UserID,
		QuizID:          in.QuizID,
		Answers:         in.Answers,
		QuestionIndices: in.QuestionIndices,
		Score:           in.Score,
		CorrectAnswers:  in.CorrectAnswers,
		TotalQuestions:  in.TotalQuestions,
		TimeSpent:       in.TimeSpent,
		SubmitReason:    in.SubmitReason,
		CompletedAt:     in.CompletedAt,
	}
	m.attempts = append(m.attempts, a)
	return a.ID, nil
}

func (m *memAttempts) GetByID(_ context.Context, id uuid.UUID) (*model.QuizAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memAttempts) ListByUser(_ context.Context, userID uuid.UUID) ([]model.QuizAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.QuizAttempt
	for _, a := range m.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAttempts) ListByQuiz(_ context.Context, quizID uuid.UUID, limit, offset int) ([]model.AttemptSummary, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AttemptSummary
	for _, a := range m.attempts {
		if a.QuizID == quizID {
			out = append(out, model.AttemptSummary{ID: a.ID, UserID: a.UserID, Score: a.Score})
		}
	}
	total := len(out)
	out = out[min(offset, len(out)):]
	return out[:min(limit, len(out))], total, nil
}

func (m *memAttempts) BestScores(_ context.Context, quizID uuid.UUID) ([]repository.BestScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	best := map[uuid.UUID]int{}
	for _, a := range m.attempts {
		if a.QuizID == quizID && a.Score >= best[a.UserID] {
			best[a.UserID] = a.Score
		}
	}
	out := make([]repository.BestScore, 0, len(best))
	for id, score := range best {
		out = append(out, repository.BestScore{UserID: id, Score: score})
	}
	return out, nil
}

func (m *memAttempts) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts)
}

type staticNames map[uuid.UUID]string

func (s staticNames) DisplayNames(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(ids))
	for _, id := range ids {
		out[id] = s[id]
	}
	return out, nil
}

type testApp struct {
	engine   *gin.Engine
	quizzes  *memQuizzes
	attempts *memAttempts
	sessions *service.ExamSessionService
	rdb      *redis.Client
	student  uuid.UUID
	admin    uuid.UUID
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	validator.Setup()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := zerolog.Nop()
	app := &testApp{
		quizzes:  &memQuizzes{quizzes: map[uuid.UUID]*model.Quiz{}},
		attempts: &memAttempts{},
		rdb:      rdb,
		student:  uuid.New(),
		admin:    uuid.New(),
	}
	names := staticNames{app.student: "Ada", app.admin: "Grace"}

	quizService := service.NewQuizService(app.quizzes, rdb, time.Minute, log)
	leaderboardService := service.NewLeaderboardService(rdb, app.attempts, names, log)
	store := examsession.NewMemoryStore()
	manager := examsession.NewManager(examsession.Config{Store: store, Sink: app.attempts}, log)
	app.sessions = service.NewExamSessionService(quizService, manager, leaderboardService, log)
	attemptService := service.NewAttemptService(app.attempts, quizService)

	cfg := &config.Config{GinMode: gin.TestMode}
	app.engine = SetupRouter(
		service.NewAuthService(testSecret),
		middleware.NewRateLimiter(1000, time.Minute),
		&Handlers{
			QuizSession: handler.NewQuizSessionHandler(app.sessions, quizService),
			Attempt:     handler.NewAttemptHandler(attemptService),
			Leaderboard: handler.NewLeaderboardHandler(leaderboardService, quizService, 10),
			AdminQuiz:   handler.NewAdminQuizHandler(quizService, attemptService, leaderboardService, log),
			WS:          handler.NewWSHandler(app.sessions, log, nil),
			Metrics:     handler.NewMetricsHandler(rdb, app.sessions, nil, log),
		},
		cfg,
		log,
	)
	return app
}

func (a *testApp) token(t *testing.T, userID uuid.UUID, role model.Role) string {
	t.Helper()
	claims := service.Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		UserID:           userID,
		Role:             role,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

// addQuiz stores an active quiz with n questions; question i's answer is i%3.
func (a *testApp) addQuiz(n int, count *int) *model.Quiz {
	q := &model.Quiz{
		ID:            uuid.New(),
		Title:         "Capitals",
		TimeLimit:     15,
		QuestionCount: count,
		IsActive:      true,
		CreatedBy:     a.admin,
	}
	for i := range n {
		q.Questions = append(q.Questions, model.Question{
			ID:            uuid.New(),
			QuizID:        q.ID,
			Text:          "Which city?",
			Options:       []string{"Paris", "Rome", "Oslo"},
			CorrectAnswer: i % 3,
			Position:      i,
		})
	}
	a.quizzes.mu.Lock()
	a.quizzes.quizzes[q.ID] = q
	a.quizzes.mu.Unlock()
	return q
}

type envelope struct {
	Data       json.RawMessage      `json:"data"`
	Error      *response.ErrorBody  `json:"error"`
	Pagination *response.Pagination `json:"pagination"`
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func intPtr(n int) *int { return &n }

// correctAnswer is the right option for the question at a sampled position.
func correctAnswer(quiz *model.Quiz, view model.ExamSessionView, position int) int {
	id := view.Questions[position].ID
	i := slices.IndexFunc(quiz.Questions, func(q model.Question) bool { return q.ID == id })
	return quiz.Questions[i].CorrectAnswer
}
