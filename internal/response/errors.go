package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Quiz-specific ─────────────────────────────────────────────────
	ErrQuizNotAvailable     ErrCode = "QUIZ_NOT_AVAILABLE"
	ErrNoQuestions          ErrCode = "NO_QUESTIONS"
	ErrAnswerKeyIncomplete  ErrCode = "ANSWER_KEY_INCOMPLETE"
	ErrInvalidQuestion      ErrCode = "INVALID_QUESTION"
	ErrNoSession            ErrCode = "NO_ACTIVE_SESSION"
	ErrInvalidAnswer        ErrCode = "INVALID_ANSWER"
	ErrTimeUp               ErrCode = "TIME_UP"
	ErrSessionClosed        ErrCode = "SESSION_CLOSED"
	ErrSubmissionInProgress ErrCode = "SUBMISSION_IN_PROGRESS"
	ErrSubmitFailed         ErrCode = "SUBMIT_FAILED"
	ErrAttemptRejected      ErrCode = "ATTEMPT_REJECTED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You are not allowed to access this resource."
	case ErrStudentAccessOnly:
		return "This resource is limited to students."
	case ErrAdminAccessOnly:
		return "This resource is limited to administrators."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The ID format is invalid."
	case ErrInvalidPayload:
		return "The request payload is invalid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	// ─── Quiz-specific ─────────────────────────────────────────────────
	case ErrQuizNotAvailable:
		return "This quiz is not currently available."
	case ErrNoQuestions:
		return "This quiz has no questions."
	case ErrAnswerKeyIncomplete:
		return "Every question needs a correct answer before the quiz can be opened."
	case ErrInvalidQuestion:
		return "A question is invalid. Check its options and correct answer."
	case ErrNoSession:
		return "You have no quiz in progress."
	case ErrInvalidAnswer:
		return "That answer does not fit the question."
	case ErrTimeUp:
		return "Time is up for this quiz."
	case ErrSessionClosed:
		return "This quiz attempt is no longer accepting answers."
	case ErrSubmissionInProgress:
		return "Your submission is already being processed."
	case ErrSubmitFailed:
		return "Your attempt could not be saved. Your answers are kept; please try again."
	case ErrAttemptRejected:
		return "This attempt can no longer be saved because the quiz was removed."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
