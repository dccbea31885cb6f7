package examsession

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quizforge/quizforge-backend/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestOpenFreshSessionIsSavedUnanswered(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	quiz := newQuiz(10, 15, intPtr(4))
	userID := uuid.New()

	s, err := f.mgr.Open(ctx, OpenParams{Quiz: quiz, UserID: userID})
	require.NoError(t, err)
	require.False(t, s.Restored())
	require.Equal(t, model.SessionStateActive, s.State())
	require.Len(t, s.QuestionIndices(), 4)
	require.Equal(t, []int{-1, -1, -1, -1}, s.Answers())
	require.Equal(t, testStart, s.StartTime())
	require.Equal(t, 15*60, s.Remaining())

	for i, q := range s.Questions() {
		require.Equal(t, quiz.Questions[s.QuestionIndices()[i]].ID, q.ID)
	}

	data, err := f.store.Get(ctx, Key(userID, quiz.ID))
	require.NoError(t, err)
	snap, err := DecodeSnapshot(data)
	require.NoError(t, err)
	require.Equal(t, quiz.ID, snap.QuizID)
	require.Equal(t, s.QuestionIndices(), snap.QuestionIndices)
	require.Equal(t, s.Answers(), snap.Answers)
}

func TestSessionKeyFormat(t *testing.T) {
	userID := uuid.MustParse("6f1c1d4e-0000-4000-8000-000000000001")
	quizID := uuid.MustParse("6f1c1d4e-0000-4000-8000-000000000002")
	require.Equal(t,
		"user:6f1c1d4e-0000-4000-8000-000000000001:exam_session_6f1c1d4e-0000-4000-8000-000000000002",
		Key(userID, quizID))
}

func TestOpenRejectsBadForcedSample(t *testing.T) {
	f := newFixture()
	quiz := newQuiz(3, 0, nil)

	_, err := f.mgr.Open(context.Background(), OpenParams{Quiz: quiz, UserID: uuid.New(), Indices: []int{0, 0}})
	require.ErrorIs(t, err, ErrInvalidSample)

	_, err = f.mgr.Open(context.Background(), OpenParams{Quiz: quiz, UserID: uuid.New(), Indices: []int{3}})
	require.ErrorIs(t, err, ErrInvalidSample)
}

func TestRecordAnswerOverwritesAndAutosaves(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	quiz := newQuiz(5, 0, nil)
	userID := uuid.New()

	s, err := f.mgr.Open(ctx, OpenParams{Quiz: quiz, UserID: userID, Indices: []int{4, 1, 2}})
	require.NoError(t, err)

	require.NoError(t, s.RecordAnswer(0, 2))
	require.NoError(t, s.RecordAnswer(0, 3))
	require.NoError(t, s.RecordAnswer(0, 3))
	require.NoError(t, s.RecordAnswer(2, 1))
	require.NoError(t, s.RecordAnswer(2, -1))
	require.Equal(t, []int{3, -1, -1}, s.Answers())

	data, err := f.store.Get(ctx, Key(userID, quiz.ID))
	require.NoError(t, err)
	snap, err := DecodeSnapshot(data)
	require.NoError(t, err)
	require.Equal(t, []int{3, -1, -1}, snap.Answers)
}

func TestRecordAnswerRejectsInvalidInput(t *testing.T) {
	f := newFixture()
	s, err := f.mgr.Open(context.Background(), OpenParams{Quiz: newQuiz(3, 0, nil), UserID: uuid.New()})
	require.NoError(t, err)

	require.ErrorIs(t, s.RecordAnswer(-1, 0), ErrInvalidPosition)
	require.ErrorIs(t, s.RecordAnswer(3, 0), ErrInvalidPosition)
	require.ErrorIs(t, s.RecordAnswer(0, 4), ErrInvalidOption)
	require.ErrorIs(t, s.RecordAnswer(0, -2), ErrInvalidOption)
	require.Equal(t, []int{-1, -1, -1}, s.Answers())
}

func TestRemainingCountsWholeSeconds(t *testing.T) {
	f := newFixture()
	s, err := f.mgr.Open(context.Background(), OpenParams{Quiz: newQuiz(2, 1, nil), UserID: uuid.New()})
	require.NoError(t, err)

	f.clock.Advance(30*time.Second + 600*time.Millisecond)
	require.Equal(t, 30, s.Remaining())

	f.clock.Advance(29 * time.Second)
	require.Equal(t, 1, s.Remaining())
}

func TestRemainingUntimed(t *testing.T) {
	f := newFixture()
	s, err := f.mgr.Open(context.Background(), OpenParams{Quiz: newQuiz(2, 0, nil), UserID: uuid.New()})
	require.NoError(t, err)

	f.clock.Advance(10 * time.Hour)
	require.Equal(t, -1, s.Remaining())
	require.Zero(t, f.clock.Pending())
	require.NoError(t, s.RecordAnswer(0, 1))
}

func TestRestoreResumesSavedProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	quiz := newQuiz(8, 10, intPtr(5))
	userID := uuid.New()

	first, err := f.mgr.Open(ctx, OpenParams{Quiz: quiz, UserID: userID})
	require.NoError(t, err)
	require.NoError(t, first.RecordAnswer(1, 2))
	require.NoError(t, first.RecordAnswer(4, 0))
	first.Close()

	f.clock.Advance(3 * time.Minute)

	second, err := f.manager().Open(ctx, OpenParams{Quiz: quiz, UserID: userID})
	require.NoError(t, err)
	require.True(t, second.Restored())
	require.Equal(t, first.QuestionIndices(), second.QuestionIndices())
	require.Equal(t, first.Answers(), second.Answers())
	require.Equal(t, testStart, second.StartTime())
	require.Equal(t, 7*60, second.Remaining())
}

func TestRestoreDiscardsUnusableSnapshots(t *testing.T) {
	quiz := newQuiz(4, 10, nil)
	userID := uuid.New()
	key := Key(userID, quiz.ID)

	encode := func(snap Snapshot) []byte {
		data, err := snap.Encode()
		require.NoError(t, err)
		return data
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"garbage", []byte("{not json")},
		{"missing start", []byte(`{"quiz_id":"` + quiz.ID.String() + `","question_indices":[0],"answers":[-1]}`)},
		{"other quiz", encode(Snapshot{QuizID: uuid.New(), QuestionIndices: []int{0}, Answers: []int{-1}, StartTime: testStart})},
		{"index out of range", encode(Snapshot{QuizID: quiz.ID, QuestionIndices: []int{0, 9}, Answers: []int{-1, -1}, StartTime: testStart})},
		{"duplicate index", encode(Snapshot{QuizID: quiz.ID, QuestionIndices: []int{1, 1}, Answers: []int{-1, -1}, StartTime: testStart})},
		{"answers not parallel", encode(Snapshot{QuizID: quiz.ID, QuestionIndices: []int{0, 1}, Answers: []int{-1}, StartTime: testStart})},
		{"answer out of range", encode(Snapshot{QuizID: quiz.ID, QuestionIndices: []int{0}, Answers: []int{7}, StartTime: testStart})},
		{"expired", encode(Snapshot{QuizID: quiz.ID, QuestionIndices: []int{0}, Answers: []int{1}, StartTime: testStart.Add(-10 * time.Minute)})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture()
			require.NoError(t, f.store.Set(ctx, key, tt.data))

			s, err := f.mgr.Open(ctx, OpenParams{Quiz: quiz, UserID: userID})
			require.NoError(t, err)
			require.False(t, s.Restored())
			require.Len(t, s.QuestionIndices(), 4)
			require.Equal(t, testStart, s.StartTime())

			data, err := f.store.Get(ctx, key)
			require.NoError(t, err)
			snap, err := DecodeSnapshot(data)
			require.NoError(t, err)
			require.Equal(t, s.QuestionIndices(), snap.QuestionIndices)
		})
	}
}

func TestAutosaveFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	clock := NewManualClock(testStart)
	sink := &fakeSink{}
	mgr := NewManager(Config{
		Store: failingStore{NewMemoryStore()},
		Sink:  sink,
		Clock: clock,
	}, zerolog.Nop())

	s, err := mgr.Open(ctx, OpenParams{Quiz: newQuiz(3, 5, nil), UserID: uuid.New(), Indices: []int{0, 1, 2}})
	require.NoError(t, err)
	require.NoError(t, s.RecordAnswer(0, 0))

	res, err := s.Submit(ctx, model.SubmitReasonManual)
	require.NoError(t, err)
	require.Equal(t, 1, res.CorrectAnswers)
	require.Len(t, sink.saved(), 1)
}

func TestSubmitScoresAgainstOriginalIndices(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	quiz := newQuiz(5, 0, intPtr(3))
	f.mgr = NewManager(Config{
		Store: f.store,
		Sink:  f.sink,
		Clock: f.clock,
		Rand:  &scriptedRand{draws: []int{4, 0, 0, 0}},
	}, zerolog.Nop())

	s, err := f.mgr.Open(ctx, OpenParams{Quiz: quiz, UserID: uuid.New()})
	require.NoError(t, err)
	require.Equal(t, []int{4, 1, 2}, s.QuestionIndices())

	// Correct answers for original questions 4, 1, 2 are 0, 1, 2.
	require.NoError(t, s.RecordAnswer(0, 0))
	require.NoError(t, s.RecordAnswer(1, 1))
	require.NoError(t, s.RecordAnswer(2, 3))

	f.clock.Advance(95 * time.Second)
	res, err := s.Submit(ctx, model.SubmitReasonManual)
	require.NoError(t, err)
	require.Equal(t, 2, res.CorrectAnswers)
	require.Equal(t, 3, res.TotalQuestions)
	require.Equal(t, 67, res.Score)
	require.Equal(t, 95, res.TimeSpent)

	saved := f.sink.saved()
	require.Len(t, saved, 1)
	require.Equal(t, []int{4, 1, 2}, saved[0].QuestionIndices)
	require.Equal(t, []int{0, 1, 3}, saved[0].Answers)
	require.Equal(t, model.SubmitReasonManual, saved[0].SubmitReason)
}

func TestSubmitWithNothingAnswered(t *testing.T) {
	f := newFixture()
	s, err := f.mgr.Open(context.Background(), OpenParams{Quiz: newQuiz(4, 0, nil), UserID: uuid.New()})
	require.NoError(t, err)

	res, err := s.Submit(context.Background(), model.SubmitReasonManual)
	require.NoError(t, err)
	require.Zero(t, res.Score)
	require.Equal(t, 4, res.TotalQuestions)
}

func TestSubmitDiscardsSavedSessionAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	quiz := newQuiz(3, 5, nil)
	userID := uuid.New()

	var completions []model.SubmitResult
	s, err := f.mgr.Open(ctx, OpenParams{
		Quiz:       quiz,
		UserID:     userID,
		OnComplete: func(_ *Session, res model.SubmitResult) { completions = append(completions, res) },
	})
	require.NoError(t, err)

	first, err := s.Submit(ctx, model.SubmitReasonManual)
	require.NoError(t, err)
	require.Equal(t, model.SessionStateCompleted, s.State())

	_, err = f.store.Get(ctx, Key(userID, quiz.ID))
	require.ErrorIs(t, err, ErrNotFound)

	select {
	case <-s.Done():
	default:
		t.Fatal("done channel not closed")
	}

	again, err := s.Submit(ctx, model.SubmitReasonManual)
	require.NoError(t, err)
	require.Equal(t, first, again)
	require.Len(t, f.sink.saved(), 1)
	require.Len(t, completions, 1)

	require.ErrorIs(t, s.RecordAnswer(0, 1), ErrSessionClosed)
	require.Zero(t, f.clock.Pending())
}

func TestSubmitFailureKeepsSessionRecoverable(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	quiz := newQuiz(3, 5, nil)
	userID := uuid.New()
	key := Key(userID, quiz.ID)

	s, err := f.mgr.Open(ctx, OpenParams{Quiz: quiz, UserID: userID})
	require.NoError(t, err)
	require.NoError(t, s.RecordAnswer(0, 1))

	f.sink.setErr(errors.New("connection reset"))
	_, err = s.Submit(ctx, model.SubmitReasonManual)
	require.ErrorIs(t, err, ErrPersistFailed)
	require.Equal(t, model.SessionStateActive, s.State())
	require.Equal(t, 1, f.clock.Pending())

	_, err = f.store.Get(ctx, key)
	require.NoError(t, err)

	require.NoError(t, s.RecordAnswer(1, 2))

	f.sink.setErr(nil)
	res, err := s.Submit(ctx, model.SubmitReasonManual)
	require.NoError(t, err)
	require.Equal(t, 3, res.TotalQuestions)

	_, err = f.store.Get(ctx, key)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeadlineSubmitsAutomatically(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	quiz := newQuiz(4, 2, nil)

	s, err := f.mgr.Open(ctx, OpenParams{Quiz: quiz, UserID: uuid.New()})
	require.NoError(t, err)
	require.NoError(t, s.RecordAnswer(0, 0))

	f.clock.Advance(time.Minute)
	require.Empty(t, f.sink.saved())
	require.Equal(t, 60, s.Remaining())

	f.clock.Advance(time.Minute)
	saved := f.sink.saved()
	require.Len(t, saved, 1)
	require.Equal(t, model.SubmitReasonTimeout, saved[0].SubmitReason)
	require.Equal(t, 120, saved[0].TimeSpent)
	require.Equal(t, model.SessionStateCompleted, s.State())
	require.Zero(t, s.Remaining())

	res, ok := s.Result()
	require.True(t, ok)
	require.Equal(t, model.SubmitReasonTimeout, res.Reason)
}

func TestAnswersRejectedAfterDeadline(t *testing.T) {
	f := newFixture()
	f.sink.setErr(errors.New("db down"))
	s, err := f.mgr.Open(context.Background(), OpenParams{Quiz: newQuiz(2, 1, nil), UserID: uuid.New()})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	require.Equal(t, model.SessionStateActive, s.State())
	require.ErrorIs(t, s.RecordAnswer(0, 1), ErrTimeUp)
}

func TestTimeoutSubmitRetriesAfterFailure(t *testing.T) {
	f := newFixture()
	f.sink.setErr(errors.New("db down"))
	s, err := f.mgr.Open(context.Background(), OpenParams{Quiz: newQuiz(2, 1, nil), UserID: uuid.New()})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	require.Empty(t, f.sink.saved())
	require.Equal(t, 1, f.clock.Pending())

	f.sink.setErr(nil)
	f.clock.Advance(DefaultRetryDelay)
	require.Len(t, f.sink.saved(), 1)
	require.Equal(t, model.SessionStateCompleted, s.State())
	require.Zero(t, f.clock.Pending())
}

func TestManualSubmitAfterDeadlineIsAccepted(t *testing.T) {
	f := newFixture()
	f.sink.setErr(errors.New("db down"))
	s, err := f.mgr.Open(context.Background(), OpenParams{Quiz: newQuiz(2, 1, nil), UserID: uuid.New()})
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	f.sink.setErr(nil)

	res, err := s.Submit(context.Background(), model.SubmitReasonManual)
	require.NoError(t, err)
	require.Equal(t, model.SubmitReasonManual, res.Reason)
	require.Len(t, f.sink.saved(), 1)
}

func TestConcurrentSubmitPersistsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.sink.entered = make(chan struct{}, 1)
	f.sink.release = make(chan struct{})

	s, err := f.mgr.Open(ctx, OpenParams{Quiz: newQuiz(3, 5, nil), UserID: uuid.New()})
	require.NoError(t, err)

	var (
		wg    sync.WaitGroup
		first model.SubmitResult
		ferr  error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, ferr = s.Submit(ctx, model.SubmitReasonManual)
	}()
	<-f.sink.entered

	require.Equal(t, model.SessionStateSubmitting, s.State())
	_, err = s.Submit(ctx, model.SubmitReasonManual)
	require.ErrorIs(t, err, ErrSubmitInProgress)
	require.ErrorIs(t, s.RecordAnswer(0, 1), ErrSessionClosed)

	close(f.sink.release)
	wg.Wait()
	require.NoError(t, ferr)

	again, err := s.Submit(ctx, model.SubmitReasonTimeout)
	require.NoError(t, err)
	require.Equal(t, first, again)
	require.Len(t, f.sink.saved(), 1)
}

func TestEmptyQuizYieldsEmptySession(t *testing.T) {
	f := newFixture()
	s, err := f.mgr.Open(context.Background(), OpenParams{Quiz: newQuiz(0, 0, intPtr(5)), UserID: uuid.New()})
	require.NoError(t, err)
	require.Empty(t, s.QuestionIndices())

	res, err := s.Submit(context.Background(), model.SubmitReasonManual)
	require.NoError(t, err)
	require.Zero(t, res.Score)
	require.Zero(t, res.TotalQuestions)
}

func TestScoreAfterRestoreMatchesSavedScore(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	quiz := keyedQuiz(20, 1, 0, 2, 1, 3)
	userID := uuid.New()

	first, err := f.mgr.Open(ctx, OpenParams{Quiz: quiz, UserID: userID, Indices: []int{4, 1, 2}})
	require.NoError(t, err)
	require.NoError(t, first.RecordAnswer(0, 3))
	require.NoError(t, first.RecordAnswer(2, 1))
	atSave := Score(first.Answers(), first.QuestionIndices(), quiz.Questions)
	require.Equal(t, Scored{Correct: 1, Total: 3, Percentage: 33}, atSave)
	first.Close()

	f.clock.Advance(5 * time.Minute)
	second, err := f.manager().Open(ctx, OpenParams{Quiz: quiz, UserID: userID})
	require.NoError(t, err)
	require.True(t, second.Restored())
	require.Equal(t, atSave, Score(second.Answers(), second.QuestionIndices(), quiz.Questions))

	res, err := second.Submit(ctx, model.SubmitReasonManual)
	require.NoError(t, err)
	require.Equal(t, atSave.Percentage, res.Score)
	require.Equal(t, atSave.Correct, res.CorrectAnswers)
}

func TestRestoreOnlyNeverStartsFresh(t *testing.T) {
	ctx := context.Background()
	quiz := newQuiz(4, 10, nil)

	t.Run("nothing saved", func(t *testing.T) {
		f := newFixture()
		_, err := f.mgr.Open(ctx, OpenParams{Quiz: quiz, UserID: uuid.New(), RestoreOnly: true})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("expired snapshot is discarded", func(t *testing.T) {
		f := newFixture()
		userID := uuid.New()
		first, err := f.mgr.Open(ctx, OpenParams{Quiz: quiz, UserID: userID})
		require.NoError(t, err)
		first.Close()

		f.clock.Advance(11 * time.Minute)
		_, err = f.manager().Open(ctx, OpenParams{Quiz: quiz, UserID: userID, RestoreOnly: true})
		require.ErrorIs(t, err, ErrSnapshotExpired)

		_, err = f.store.Get(ctx, Key(userID, quiz.ID))
		require.ErrorIs(t, err, ErrNotFound)
		require.Zero(t, f.clock.Pending())
	})

	t.Run("corrupt snapshot is discarded", func(t *testing.T) {
		f := newFixture()
		userID := uuid.New()
		require.NoError(t, f.store.Set(ctx, Key(userID, quiz.ID), []byte(`{"quiz_id":`)))

		_, err := f.mgr.Open(ctx, OpenParams{Quiz: quiz, UserID: userID, RestoreOnly: true})
		require.ErrorIs(t, err, ErrCorruptSnapshot)

		_, err = f.store.Get(ctx, Key(userID, quiz.ID))
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("usable snapshot is restored", func(t *testing.T) {
		f := newFixture()
		userID := uuid.New()
		first, err := f.mgr.Open(ctx, OpenParams{Quiz: quiz, UserID: userID})
		require.NoError(t, err)
		first.Close()

		s, err := f.manager().Open(ctx, OpenParams{Quiz: quiz, UserID: userID, RestoreOnly: true})
		require.NoError(t, err)
		require.True(t, s.Restored())
	})
}

func TestRejectedTimeoutSubmitFailsWithoutRetrying(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	quiz := newQuiz(3, 2, nil)
	userID := uuid.New()

	var failed []error
	s, err := f.mgr.Open(ctx, OpenParams{
		Quiz:     quiz,
		UserID:   userID,
		OnFailed: func(_ *Session, err error) { failed = append(failed, err) },
	})
	require.NoError(t, err)
	require.NoError(t, s.RecordAnswer(0, 1))

	f.sink.setErr(fmt.Errorf("quiz %s: %w", quiz.ID, ErrAttemptRejected))
	f.clock.Advance(2 * time.Minute)

	require.Equal(t, model.SessionStateFailed, s.State())
	require.Len(t, failed, 1)
	require.ErrorIs(t, failed[0], ErrAttemptRejected)
	require.Zero(t, f.clock.Pending())
	select {
	case <-s.Done():
	default:
		t.Fatal("done channel still open")
	}
	_, ok := s.Result()
	require.False(t, ok)

	_, err = f.store.Get(ctx, Key(userID, quiz.ID))
	require.ErrorIs(t, err, ErrNotFound)

	f.clock.Advance(1000 * DefaultRetryDelay)
	require.Equal(t, 1, f.sink.callCount())

	_, err = s.Submit(ctx, model.SubmitReasonManual)
	require.ErrorIs(t, err, ErrAttemptRejected)
	require.ErrorIs(t, s.RecordAnswer(1, 0), ErrSessionClosed)
	require.Equal(t, 1, f.sink.callCount())
}
