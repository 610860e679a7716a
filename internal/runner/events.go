package runner

import (
	"time"

	"github.com/google/uuid"
	"github.com/semuinside/exam-backend/internal/model"
)

// EventType names something that happened in a session.
type EventType string

const (
	EventStarted        EventType = "started"
	EventTick           EventType = "tick"
	EventWarning        EventType = "warning"
	EventExpired        EventType = "expired"
	EventAutosaved      EventType = "autosaved"
	EventAutosaveFailed EventType = "autosave_failed"
	EventSubmitting     EventType = "submitting"
	EventSubmitFailed   EventType = "submit_failed"
	EventGraded         EventType = "graded"
	EventGuard          EventType = "guard"
	EventLeaveBlocked   EventType = "leave_blocked"
)

// Lifecycle reports whether the event belongs in the session's audit trail.
// Ticks and autosave successes are too frequent to record.
func (t EventType) Lifecycle() bool {
	switch t {
	case EventTick, EventAutosaved, EventGuard:
		return false
	}
	return true
}

// Event is delivered to subscribers of a runner.
type Event struct {
	Type         EventType               `json:"event"`
	SessionID    uuid.UUID               `json:"session_id"`
	ExamID       uuid.UUID               `json:"exam_id"`
	RespondentID uuid.UUID               `json:"respondent_id"`
	Remaining    *int                    `json:"remaining_seconds,omitempty"`
	Threshold    int                     `json:"threshold_seconds,omitempty"`
	GuardArmed   *bool                   `json:"guard_armed,omitempty"`
	Error        string                  `json:"error,omitempty"`
	Result       *model.SubmissionResult `json:"result,omitempty"`
	At           time.Time               `json:"at"`
}
