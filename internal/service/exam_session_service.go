package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quizforge/quizforge-backend/internal/examsession"
	"github.com/quizforge/quizforge-backend/internal/model"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrNoSession is returned when a user has no session for a quiz, live or saved.
var ErrNoSession = errors.New("no exam session in progress")

const (
	// RetainCompleted is how long a finished session stays addressable so a
	// repeated submit still gets its result.
	RetainCompleted = 10 * time.Minute
	// IdleTimeout evicts untimed sessions nobody has touched for this long.
	// Their progress stays saved and Get restores it on the next request.
	IdleTimeout = 30 * time.Minute
)

// QuizSource loads full quizzes including the answer key.
type QuizSource interface {
	GetQuiz(ctx context.Context, id uuid.UUID) (*model.Quiz, error)
}

// LeaderboardQueue receives finished attempts for ranking.
type LeaderboardQueue interface {
	Enqueue(ctx context.Context, quizID, userID uuid.UUID, score int) error
}

type sessionKey struct {
	user uuid.UUID
	quiz uuid.UUID
}

type liveSession struct {
	session     *examsession.Session
	lastSeen    time.Time
	completedAt time.Time
}

// ExamSessionService keeps every in-progress session in memory so REST and
// WebSocket calls from the same student reach the same session.
type ExamSessionService struct {
	quizzes QuizSource
	manager *examsession.Manager
	board   LeaderboardQueue
	log     zerolog.Logger

	sf       singleflight.Group
	mu       sync.Mutex
	sessions map[sessionKey]*liveSession
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	quizzes QuizSource,
	manager *examsession.Manager,
	board LeaderboardQueue,
	log zerolog.Logger,
) *ExamSessionService {
	return &ExamSessionService{
		quizzes:  quizzes,
		manager:  manager,
		board:    board,
		log:      log.With().Str("component", "exam_session_service").Logger(),
		sessions: make(map[sessionKey]*liveSession),
	}
}

// Start returns the user's in-progress session for a quiz, resuming saved
// progress when possible and starting a new attempt otherwise.
func (s *ExamSessionService) Start(ctx context.Context, userID, quizID uuid.UUID) (*examsession.Session, error) {
	if sess := s.live(userID, quizID); sess != nil {
		return sess, nil
	}
	return s.open(ctx, userID, quizID, true)
}

// Get returns the user's session for a quiz: the live one, or one restored
// from saved progress after a restart. It never starts a new attempt; saved
// progress that expired or no longer fits the quiz is discarded.
func (s *ExamSessionService) Get(ctx context.Context, userID, quizID uuid.UUID) (*examsession.Session, error) {
	key := sessionKey{user: userID, quiz: quizID}
	s.mu.Lock()
	entry, ok := s.sessions[key]
	if ok {
		entry.lastSeen = time.Now()
	}
	s.mu.Unlock()
	if ok {
		return entry.session, nil
	}

	sess, err := s.open(ctx, userID, quizID, false)
	switch {
	case errors.Is(err, examsession.ErrNotFound),
		errors.Is(err, examsession.ErrCorruptSnapshot),
		errors.Is(err, examsession.ErrSnapshotExpired):
		return nil, ErrNoSession
	case err != nil:
		return nil, err
	}
	return sess, nil
}

// Answer records an answer on the user's session.
func (s *ExamSessionService) Answer(ctx context.Context, userID, quizID uuid.UUID, position, option int) (*examsession.Session, error) {
	sess, err := s.Get(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}
	if err := sess.RecordAnswer(position, option); err != nil {
		return sess, err
	}
	return sess, nil
}

// Submit finishes the user's session on their request.
func (s *ExamSessionService) Submit(ctx context.Context, userID, quizID uuid.UUID) (model.SubmitResult, error) {
	sess, err := s.Get(ctx, userID, quizID)
	if err != nil {
		return model.SubmitResult{}, err
	}
	return sess.Submit(ctx, model.SubmitReasonManual)
}

// View is the student's picture of a session, without the answer key.
func (s *ExamSessionService) View(sess *examsession.Session) model.ExamSessionView {
	quiz := sess.Quiz()
	questions := sess.Questions()
	answers := sess.Answers()

	view := model.ExamSessionView{
		QuizID:    quiz.ID,
		Title:     quiz.Title,
		TimeLimit: quiz.TimeLimit,
		Questions: make([]model.QuestionForStudent, len(questions)),
		Answers:   answers,
		StartedAt: sess.StartTime(),
		Remaining: sess.Remaining(),
		State:     sess.State(),
	}
	for i, q := range questions {
		view.Questions[i] = q.ForStudent()
	}
	for _, a := range answers {
		if a != model.NoAnswer {
			view.Answered++
		}
	}
	if res, ok := sess.Result(); ok {
		view.AttemptID = &res.AttemptID
	}
	return view
}

func (s *ExamSessionService) live(userID, quizID uuid.UUID) *examsession.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[sessionKey{user: userID, quiz: quizID}]
	if !ok || !inProgress(entry.session) {
		return nil
	}
	entry.lastSeen = time.Now()
	return entry.session
}

func inProgress(sess *examsession.Session) bool {
	st := sess.State()
	return st == model.SessionStateActive || st == model.SessionStateSubmitting
}

// open builds one session per (user, quiz) even under concurrent requests.
// With fresh unset only saved progress is restored.
func (s *ExamSessionService) open(ctx context.Context, userID, quizID uuid.UUID, fresh bool) (*examsession.Session, error) {
	key := sessionKey{user: userID, quiz: quizID}
	mode := "get:"
	if fresh {
		mode = "start:"
	}

	v, err, _ := s.sf.Do(mode+userID.String()+":"+quizID.String(), func() (interface{}, error) {
		if sess := s.live(userID, quizID); sess != nil {
			return sess, nil
		}

		quiz, err := s.quizzes.GetQuiz(ctx, quizID)
		if err != nil {
			return nil, err
		}
		if fresh {
			if !quiz.IsActive {
				return nil, ErrQuizInactive
			}
			if err := CheckReady(quiz.Questions); err != nil {
				return nil, err
			}
		}

		sess, err := s.manager.Open(ctx, examsession.OpenParams{
			Quiz:        quiz,
			UserID:      userID,
			RestoreOnly: !fresh,
			OnComplete:  s.onComplete,
			OnFailed:    s.onFailed,
		})
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if entry, ok := s.sessions[key]; ok && inProgress(entry.session) {
			// A concurrent start or get registered first.
			sess.Close()
			return entry.session, nil
		}
		s.sessions[key] = &liveSession{session: sess, lastSeen: time.Now()}
		return sess, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*examsession.Session), nil
}

func (s *ExamSessionService) onComplete(sess *examsession.Session, res model.SubmitResult) {
	key := sessionKey{user: sess.UserID(), quiz: sess.Quiz().ID}
	s.mu.Lock()
	if entry, ok := s.sessions[key]; ok && entry.session == sess {
		entry.completedAt = time.Now()
	}
	s.mu.Unlock()

	if s.board == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.board.Enqueue(ctx, key.quiz, key.user, res.Score); err != nil {
		s.log.Error().Err(err).
			Str("attempt_id", res.AttemptID.String()).
			Msg("Queueing leaderboard update failed")
	}
}

// onFailed forgets a session whose attempt was rejected for good.
func (s *ExamSessionService) onFailed(sess *examsession.Session, _ error) {
	key := sessionKey{user: sess.UserID(), quiz: sess.Quiz().ID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.sessions[key]; ok && entry.session == sess {
		delete(s.sessions, key)
	}
}

// Sweep forgets sessions that finished more than RetainCompleted ago and
// untimed ones idle for longer than IdleTimeout. Timed sessions are left to
// their deadline.
func (s *ExamSessionService) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, entry := range s.sessions {
		sess := entry.session
		switch {
		case !entry.completedAt.IsZero() && now.Sub(entry.completedAt) > RetainCompleted,
			sess.State() == model.SessionStateFailed:
		case sess.State() == model.SessionStateActive &&
			sess.Quiz().TimeLimit <= 0 &&
			now.Sub(entry.lastSeen) > IdleTimeout:
			sess.Close()
		default:
			continue
		}
		delete(s.sessions, key)
		removed++
	}
	return removed
}

// Run sweeps finished sessions until ctx is cancelled, then stops every
// deadline timer. Saved progress stays so the next process can resume it.
func (s *ExamSessionService) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case now := <-ticker.C:
			if n := s.Sweep(now); n > 0 {
				s.log.Debug().Int("count", n).Msg("Swept finished and idle sessions")
			}
		}
	}
}

func (s *ExamSessionService) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.sessions {
		entry.session.Close()
	}
	s.log.Info().Int("count", len(s.sessions)).Msg("Exam sessions closed")
}

// SessionStats counts the sessions held in memory by state.
type SessionStats struct {
	Active     int `json:"active"`
	Submitting int `json:"submitting"`
	Completed  int `json:"completed"`
}

// Stats reports how many sessions are live right now.
func (s *ExamSessionService) Stats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st SessionStats
	for _, entry := range s.sessions {
		switch entry.session.State() {
		case model.SessionStateActive:
			st.Active++
		case model.SessionStateSubmitting:
			st.Submitting++
		case model.SessionStateCompleted:
			st.Completed++
		}
	}
	return st
}
