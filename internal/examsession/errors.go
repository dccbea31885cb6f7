package examsession

import "errors"

var (
	// ErrNotFound is returned by a Store when no value exists for a key.
	ErrNotFound = errors.New("session snapshot not found")
	// ErrCorruptSnapshot means a saved session could not be decoded or does
	// not fit the quiz it claims to belong to.
	ErrCorruptSnapshot = errors.New("saved session is corrupt")
	// ErrSnapshotExpired means a saved session outlived its time limit.
	ErrSnapshotExpired = errors.New("saved session has expired")

	ErrInvalidPosition = errors.New("answer position out of range")
	ErrInvalidOption   = errors.New("option index out of range")
	ErrInvalidSample   = errors.New("question sample out of range")
	// ErrTimeUp rejects answers once the deadline has passed.
	ErrTimeUp = errors.New("time limit reached")
	// ErrSessionClosed rejects answers while submitting or after completion.
	ErrSessionClosed = errors.New("session is no longer accepting answers")
	// ErrSubmitInProgress is returned to a submit that races an in-flight one.
	ErrSubmitInProgress = errors.New("submission already in progress")
	// ErrPersistFailed wraps AttemptSink failures. The session stays active.
	ErrPersistFailed = errors.New("attempt could not be stored")
	// ErrAttemptRejected is wrapped by an AttemptSink that will never accept
	// the attempt, e.g. because its quiz is gone. The session fails for good.
	ErrAttemptRejected = errors.New("attempt rejected")
)
