package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states. Transitions are one-directional:
// in_progress → submitted → graded.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusSubmitted  SessionStatus = "submitted"
	SessionStatusGraded     SessionStatus = "graded"
)

// Finished reports whether the respondent can no longer change answers.
func (s SessionStatus) Finished() bool {
	return s == SessionStatusSubmitted || s == SessionStatusGraded
}

// ExamSession represents one respondent's attempt at an exam.
type ExamSession struct {
	ID              uuid.UUID            `json:"id"`
	ExamID          uuid.UUID            `json:"exam_id"`
	RespondentID    uuid.UUID            `json:"respondent_id"`
	Status          SessionStatus        `json:"status"`
	StartedAt       time.Time            `json:"started_at"`
	SubmittedAt     *time.Time           `json:"submitted_at,omitempty"`
	DurationMinutes *int                 `json:"duration_minutes,omitempty"`
	Score           *int                 `json:"score,omitempty"`
	TotalPoints     *int                 `json:"total_points,omitempty"`
	Randomization   SessionRandomization `json:"-"`
}

// Deadline returns the instant the session's time runs out.
func (s *ExamSession) Deadline(exam *ExamDefinition) time.Time {
	return s.StartedAt.Add(exam.Duration())
}

// RemainingSeconds recomputes time left from the session start so that a reload
// never grants extra time.
func (s *ExamSession) RemainingSeconds(exam *ExamDefinition, now time.Time) int {
	remaining := s.Deadline(exam).Sub(now)
	if remaining <= 0 {
		return 0
	}
	secs := int(remaining / time.Second)
	if remaining%time.Second != 0 {
		secs++
	}
	return secs
}

// ElapsedMinutes rounds the time between start and t up to whole minutes.
func ElapsedMinutes(startedAt, t time.Time) int {
	d := t.Sub(startedAt)
	if d <= 0 {
		return 0
	}
	mins := int(d / time.Minute)
	if d%time.Minute != 0 {
		mins++
	}
	return mins
}

// StartSessionRequest is the optional payload for starting or resuming a session.
type StartSessionRequest struct {
	ClientTime *time.Time `json:"client_time" binding:"omitempty"`
}
