package websocket

import (
	"encoding/json"

	"github.com/quizforge/quizforge-backend/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer Action = "answer"
	ActionSubmit Action = "submit"
	ActionPing   Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action  Action          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AnswerPayload sets the option at a sampled position; -1 clears it.
type AnswerPayload struct {
	Position *int `json:"position"`
	Option   *int `json:"option"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState  Event = "state"
	EventSaved  Event = "saved"
	EventTick   Event = "tick"
	EventGraded Event = "graded"
	EventError  Event = "error"
	EventPong   Event = "pong"
)

// StateResponse is sent once after connecting.
type StateResponse struct {
	Event   Event                 `json:"event"`
	Session model.ExamSessionView `json:"session"`
}

// SavedResponse acknowledges a recorded answer.
type SavedResponse struct {
	Event    Event `json:"event"`
	Position int   `json:"position"`
	Option   int   `json:"option"`
}

// TickResponse carries the seconds left on a timed session.
type TickResponse struct {
	Event     Event `json:"event"`
	Remaining int   `json:"remaining"`
}

// GradedResponse is sent once the attempt is stored, whether the student
// submitted or the time ran out.
type GradedResponse struct {
	Event  Event              `json:"event"`
	Result model.SubmitResult `json:"result"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
