package examsession

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quizforge/quizforge-backend/internal/model"
	"github.com/rs/zerolog"
)

var testStart = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// newQuiz builds a quiz of n four-option questions where question i's
// correct answer is i%4.
func newQuiz(n, timeLimit int, count *int) *model.Quiz {
	quizID := uuid.New()
	questions := make([]model.Question, n)
	for i := range questions {
		questions[i] = model.Question{
			ID:            uuid.New(),
			QuizID:        quizID,
			Text:          fmt.Sprintf("Question %d", i),
			Options:       []string{"a", "b", "c", "d"},
			CorrectAnswer: i % 4,
			Position:      i,
		}
	}
	return &model.Quiz{
		ID:            quizID,
		Title:         "Capitals",
		TimeLimit:     timeLimit,
		QuestionCount: count,
		IsActive:      true,
		Questions:     questions,
	}
}

func intPtr(n int) *int { return &n }

// keyedQuiz builds a four-option quiz with the given answer key.
func keyedQuiz(timeLimit int, key ...int) *model.Quiz {
	q := newQuiz(len(key), timeLimit, nil)
	for i, c := range key {
		q.Questions[i].CorrectAnswer = c
	}
	return q
}

type fakeSink struct {
	mu       sync.Mutex
	attempts []model.QuizAttemptInput
	calls    int
	err      error
	entered  chan struct{}
	release  chan struct{}
}

func (f *fakeSink) SaveAttempt(ctx context.Context, in model.QuizAttemptInput) (uuid.UUID, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return uuid.Nil, f.err
	}
	f.attempts = append(f.attempts, in)
	return uuid.New(), nil
}

func (f *fakeSink) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeSink) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSink) saved() []model.QuizAttemptInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.QuizAttemptInput(nil), f.attempts...)
}

type failingStore struct {
	*MemoryStore
}

func (failingStore) Set(context.Context, string, []byte) error {
	return errors.New("disk full")
}

// scriptedRand replays a fixed sequence of draws.
type scriptedRand struct {
	draws []int
	next  int
}

func (r *scriptedRand) IntN(n int) int {
	v := r.draws[r.next]
	r.next++
	if v >= n {
		panic(fmt.Sprintf("scripted draw %d out of range [0,%d)", v, n))
	}
	return v
}

type fixture struct {
	store *MemoryStore
	sink  *fakeSink
	clock *ManualClock
	mgr   *Manager
}

func newFixture() *fixture {
	f := &fixture{
		store: NewMemoryStore(),
		sink:  &fakeSink{},
		clock: NewManualClock(testStart),
	}
	f.mgr = f.manager()
	return f
}

// manager builds a fresh Manager over the fixture's store, as a restarted
// process would.
func (f *fixture) manager() *Manager {
	return NewManager(Config{
		Store: f.store,
		Sink:  f.sink,
		Clock: f.clock,
	}, zerolog.Nop())
}
