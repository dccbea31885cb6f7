package examsession

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quizforge/quizforge-backend/internal/config"
	"github.com/quizforge/quizforge-backend/internal/model"
	"github.com/rs/zerolog"
)

// AttemptSink stores a finished attempt. The write must be atomic: either
// the whole attempt is stored or nothing is.
type AttemptSink interface {
	SaveAttempt(ctx context.Context, in model.QuizAttemptInput) (uuid.UUID, error)
}

const (
	// DefaultRetryDelay spaces out retries of a failed timeout submission.
	DefaultRetryDelay    = 5 * time.Second
	defaultSubmitTimeout = 10 * time.Second
)

// Config wires a Manager to its collaborators. Store and Sink are required.
type Config struct {
	Store     Store
	Autosaver Autosaver
	Sink      AttemptSink
	Clock     Clock
	Rand      Rand

	RetryDelay    time.Duration
	SubmitTimeout time.Duration
}

// Manager opens exam sessions: it draws samples, restores saved progress
// and hands every session the shared collaborators.
type Manager struct {
	store         Store
	autosaver     Autosaver
	sink          AttemptSink
	clock         Clock
	retryDelay    time.Duration
	submitTimeout time.Duration
	log           zerolog.Logger

	rngMu sync.Mutex
	rng   Rand
}

func NewManager(cfg Config, log zerolog.Logger) *Manager {
	m := &Manager{
		store:         cfg.Store,
		autosaver:     cfg.Autosaver,
		sink:          cfg.Sink,
		clock:         cfg.Clock,
		retryDelay:    cfg.RetryDelay,
		submitTimeout: cfg.SubmitTimeout,
		rng:           cfg.Rand,
		log:           log.With().Str("component", "exam_session").Logger(),
	}
	if m.store == nil {
		m.store = NewMemoryStore()
	}
	if m.autosaver == nil {
		m.autosaver = NewStoreAutosaver(m.store, log)
	}
	if m.clock == nil {
		m.clock = RealClock{}
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
	}
	if m.retryDelay <= 0 {
		m.retryDelay = DefaultRetryDelay
	}
	if m.submitTimeout <= 0 {
		m.submitTimeout = defaultSubmitTimeout
	}
	return m
}

// Key is the storage key of a user's saved session for a quiz.
func Key(userID, quizID uuid.UUID) string {
	return config.CacheKey.ExamSessionKey(userID.String(), quizID.String())
}

// OpenParams describes the session to open.
type OpenParams struct {
	Quiz   *model.Quiz
	UserID uuid.UUID
	// Indices replaces the random draw for a fresh session. Each entry must be
	// a distinct index into Quiz.Questions.
	Indices []int
	// RestoreOnly refuses to start a fresh session. An unusable saved
	// session is discarded and Open fails with the restore error.
	RestoreOnly bool
	// OnComplete runs once, after the attempt has been stored.
	OnComplete func(*Session, model.SubmitResult)
	// OnFailed runs once if the sink rejects the attempt for good.
	OnFailed func(*Session, error)
}

// Open restores the user's saved session for the quiz when it is still
// usable, and otherwise starts a fresh one and saves it. With RestoreOnly
// set, a missing saved session yields ErrNotFound, an unusable one
// ErrCorruptSnapshot or ErrSnapshotExpired.
func (m *Manager) Open(ctx context.Context, p OpenParams) (*Session, error) {
	if p.Quiz == nil {
		return nil, errors.New("open session: quiz is nil")
	}
	if p.Indices != nil {
		if err := validateIndices(p.Indices, len(p.Quiz.Questions)); err != nil {
			return nil, fmt.Errorf("open session: %w", err)
		}
	}

	key := Key(p.UserID, p.Quiz.ID)
	s := &Session{
		mgr:        m,
		key:        key,
		quiz:       p.Quiz,
		userID:     p.UserID,
		onComplete: p.OnComplete,
		onFailed:   p.OnFailed,
		log:        m.log.With().Str("user_id", p.UserID.String()).Str("quiz_id", p.Quiz.ID.String()).Logger(),
		state:      model.SessionStateActive,
		done:       make(chan struct{}),
	}

	snap, err := m.restore(ctx, key, p.Quiz, s.log)
	switch {
	case err == nil:
		s.indices = snap.QuestionIndices
		s.answers = snap.Answers
		s.start = snap.StartTime
		s.restored = true
	case p.RestoreOnly:
		if errors.Is(err, ErrCorruptSnapshot) || errors.Is(err, ErrSnapshotExpired) {
			if derr := m.autosaver.Discard(ctx, key); derr != nil {
				s.log.Warn().Err(derr).Msg("Discarding stale session failed")
			}
		}
		return nil, fmt.Errorf("restore session: %w", err)
	default:
		indices := slices.Clone(p.Indices)
		if indices == nil {
			m.rngMu.Lock()
			indices = Sample(len(p.Quiz.Questions), p.Quiz.QuestionCount, m.rng)
			m.rngMu.Unlock()
		}
		s.indices = indices
		s.answers = make([]int, len(indices))
		for i := range s.answers {
			s.answers[i] = model.NoAnswer
		}
		s.start = m.clock.Now()
		m.autosaver.Save(key, s.snapshotLocked())
	}

	s.questions = make([]model.Question, len(s.indices))
	for i, idx := range s.indices {
		s.questions[i] = p.Quiz.Questions[idx]
	}

	if p.Quiz.TimeLimit > 0 {
		s.mu.Lock()
		s.armLocked(max(s.deadline().Sub(m.clock.Now()), 0))
		s.mu.Unlock()
	}

	s.log.Debug().
		Bool("restored", s.restored).
		Int("questions", len(s.indices)).
		Msg("Exam session opened")
	return s, nil
}

func (m *Manager) restore(ctx context.Context, key string, quiz *model.Quiz, log zerolog.Logger) (Snapshot, error) {
	data, err := m.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Msg("Reading saved session failed")
		}
		return Snapshot{}, err
	}

	snap, err := DecodeSnapshot(data)
	if err == nil {
		err = snap.Validate(quiz)
	}
	if err != nil {
		log.Warn().Err(err).Msg("Saved session unusable")
		return Snapshot{}, err
	}

	if quiz.TimeLimit > 0 {
		deadline := snap.StartTime.Add(time.Duration(quiz.TimeLimit) * time.Minute)
		if !m.clock.Now().Before(deadline) {
			log.Info().Time("started_at", snap.StartTime).Msg("Saved session expired")
			return Snapshot{}, ErrSnapshotExpired
		}
	}
	return snap, nil
}

// Session is one student's live attempt at a quiz. All methods are safe for
// concurrent use.
type Session struct {
	mgr        *Manager
	key        string
	quiz       *model.Quiz
	userID     uuid.UUID
	onComplete func(*Session, model.SubmitResult)
	onFailed   func(*Session, error)
	log        zerolog.Logger

	mu        sync.Mutex
	indices   []int
	questions []model.Question
	answers   []int
	start     time.Time
	state     model.SessionState
	result    *model.SubmitResult
	timer     Timer
	restored  bool
	done      chan struct{}
}

func (s *Session) Key() string { return s.key }
func (s *Session) UserID() uuid.UUID { return s.userID }
func (s *Session) Quiz() *model.Quiz { return s.quiz }
func (s *Session) Done() <-chan struct{} { return s.done }

// Restored reports whether the session was resumed from saved progress.
func (s *Session) Restored() bool { return s.restored }

// Questions returns the sampled questions in presentation order.
func (s *Session) Questions() []model.Question {
	return slices.Clone(s.questions)
}

func (s *Session) Answers() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.answers)
}

func (s *Session) QuestionIndices() []int {
	return slices.Clone(s.indices)
}

func (s *Session) StartTime() time.Time {
	return s.start
}

func (s *Session) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the stored result once the session has completed.
func (s *Session) Result() (model.SubmitResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return model.SubmitResult{}, false
	}
	return *s.result, true
}

// Remaining is the whole number of seconds left, never negative. Untimed
// quizzes report -1.
func (s *Session) Remaining() int {
	if s.quiz.TimeLimit <= 0 {
		return -1
	}
	elapsed := max(int(s.mgr.clock.Now().Sub(s.start)/time.Second), 0)
	return max(s.quiz.TimeLimit*60-elapsed, 0)
}

// RecordAnswer sets the chosen option at a sampled position; -1 clears it.
func (s *Session) RecordAnswer(position, option int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != model.SessionStateActive {
		return ErrSessionClosed
	}
	if s.expired(s.mgr.clock.Now()) {
		return ErrTimeUp
	}
	if position < 0 || position >= len(s.answers) {
		return fmt.Errorf("%w: %d", ErrInvalidPosition, position)
	}
	if option < model.NoAnswer || option >= len(s.questions[position].Options) {
		return fmt.Errorf("%w: %d", ErrInvalidOption, option)
	}

	s.answers[position] = option
	s.mgr.autosaver.Save(s.key, s.snapshotLocked())
	return nil
}

// Submit scores the current answers and stores the attempt. Unanswered
// questions do not block submission. A completed session returns its stored
// result again without persisting; a concurrent call while one is in flight
// gets ErrSubmitInProgress.
func (s *Session) Submit(ctx context.Context, reason model.SubmitReason) (model.SubmitResult, error) {
	s.mu.Lock()
	switch s.state {
	case model.SessionStateCompleted:
		res := *s.result
		s.mu.Unlock()
		return res, nil
	case model.SessionStateSubmitting:
		s.mu.Unlock()
		return model.SubmitResult{}, ErrSubmitInProgress
	case model.SessionStateFailed:
		s.mu.Unlock()
		return model.SubmitResult{}, ErrAttemptRejected
	}
	s.state = model.SessionStateSubmitting
	answers := slices.Clone(s.answers)
	s.mu.Unlock()

	now := s.mgr.clock.Now()
	scored := Score(answers, s.indices, s.quiz.Questions)
	timeSpent := max(int(now.Sub(s.start)/time.Second), 0)

	attemptID, err := s.mgr.sink.SaveAttempt(ctx, model.QuizAttemptInput{
		UserID:          s.userID,
		QuizID:          s.quiz.ID,
		Answers:         answers,
		QuestionIndices: slices.Clone(s.indices),
		Score:           scored.Percentage,
		CorrectAnswers:  scored.Correct,
		TotalQuestions:  scored.Total,
		TimeSpent:       timeSpent,
		SubmitReason:    reason,
		CompletedAt:     now,
	})
	if errors.Is(err, ErrAttemptRejected) {
		s.fail(ctx, err)
		return model.SubmitResult{}, fmt.Errorf("store attempt: %w", err)
	}
	if err != nil {
		s.mu.Lock()
		s.state = model.SessionStateActive
		if s.expired(now) {
			s.armLocked(s.mgr.retryDelay)
		}
		s.mu.Unlock()
		s.log.Error().Err(err).Str("reason", string(reason)).Msg("Storing attempt failed")
		return model.SubmitResult{}, fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}

	if err := s.mgr.autosaver.Discard(context.WithoutCancel(ctx), s.key); err != nil {
		s.log.Warn().Err(err).Msg("Discarding saved session failed")
	}

	result := model.SubmitResult{
		AttemptID:      attemptID,
		Score:          scored.Percentage,
		CorrectAnswers: scored.Correct,
		TotalQuestions: scored.Total,
		TimeSpent:      timeSpent,
		Reason:         reason,
	}

	s.mu.Lock()
	s.state = model.SessionStateCompleted
	s.result = &result
	s.stopLocked()
	close(s.done)
	s.mu.Unlock()

	s.log.Info().
		Str("attempt_id", attemptID.String()).
		Int("score", result.Score).
		Str("reason", string(reason)).
		Msg("Attempt submitted")

	if s.onComplete != nil {
		s.onComplete(s, result)
	}
	return result, nil
}

// fail ends a session whose attempt can never be stored. Saved progress is
// dropped since no later submit could succeed either.
func (s *Session) fail(ctx context.Context, cause error) {
	s.mu.Lock()
	s.state = model.SessionStateFailed
	s.stopLocked()
	close(s.done)
	s.mu.Unlock()

	s.log.Error().Err(cause).Msg("Attempt rejected, session failed")
	if err := s.mgr.autosaver.Discard(context.WithoutCancel(ctx), s.key); err != nil {
		s.log.Warn().Err(err).Msg("Discarding saved session failed")
	}
	if s.onFailed != nil {
		s.onFailed(s, cause)
	}
}

// Close stops the deadline timer without submitting. Saved progress stays.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Session) deadline() time.Time {
	return s.start.Add(time.Duration(s.quiz.TimeLimit) * time.Minute)
}

func (s *Session) expired(now time.Time) bool {
	return s.quiz.TimeLimit > 0 && !now.Before(s.deadline())
}

func (s *Session) onDeadline() {
	ctx, cancel := context.WithTimeout(context.Background(), s.mgr.submitTimeout)
	defer cancel()

	_, err := s.Submit(ctx, model.SubmitReasonTimeout)
	if err != nil && !errors.Is(err, ErrSubmitInProgress) && !errors.Is(err, ErrAttemptRejected) {
		s.log.Warn().Err(err).Dur("retry_in", s.mgr.retryDelay).Msg("Timeout submission failed")
	}
}

func (s *Session) armLocked(d time.Duration) {
	s.stopLocked()
	s.timer = s.mgr.clock.AfterFunc(d, s.onDeadline)
}

func (s *Session) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		QuizID:          s.quiz.ID,
		QuestionIndices: slices.Clone(s.indices),
		Answers:         slices.Clone(s.answers),
		StartTime:       s.start,
	}
}
