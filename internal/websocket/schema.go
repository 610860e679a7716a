package websocket

import (
	"encoding/json"

	"github.com/semuinside/exam-backend/internal/runner"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer Action = "answer"
	ActionText   Action = "text"
	ActionSubmit Action = "submit"
	ActionRetry  Action = "retry"
	ActionLeave  Action = "leave"
	ActionPing   Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest changes a choice answer or commits a text answer immediately.
type AnswerRequest struct {
	Action     Action          `json:"action"`
	QuestionID string          `json:"question_id" binding:"required,uuid"`
	Value      json.RawMessage `json:"value" binding:"required"`
}

// TextRequest carries a keystroke-level free-text edit; it is debounced server-side.
type TextRequest struct {
	Action     Action `json:"action"`
	QuestionID string `json:"question_id" binding:"required,uuid"`
	Text       string `json:"text" binding:"max=20000"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventPong    Event = "pong"
	EventState   Event = "state"
	EventSaved   Event = "saved"
	EventBlocked Event = "leave_blocked"
	EventLeave   Event = "leave_allowed"
)

// StateResponse is sent on connect and after actions that change the snapshot.
type StateResponse struct {
	Event Event           `json:"event"`
	State runner.Snapshot `json:"state"`
}

// SavedResponse acknowledges an accepted answer change.
type SavedResponse struct {
	Event      Event  `json:"event"`
	QuestionID string `json:"question_id"`
	Unanswered int    `json:"unanswered"`
}

// LeaveResponse answers a leave action.
type LeaveResponse struct {
	Event      Event `json:"event"`
	Unanswered int   `json:"unanswered"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
