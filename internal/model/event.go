package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SessionEventRecord is one row of a session's audit trail.
type SessionEventRecord struct {
	SessionID    uuid.UUID       `json:"session_id"`
	ExamID       uuid.UUID       `json:"exam_id"`
	RespondentID uuid.UUID       `json:"respondent_id"`
	Type         string          `json:"event_type"`
	Payload      json.RawMessage `json:"payload"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

// RewardRequest is handed to the reward service after a session is graded.
type RewardRequest struct {
	SessionID    uuid.UUID `json:"session_id"`
	ExamID       uuid.UUID `json:"exam_id"`
	RespondentID uuid.UUID `json:"respondent_id"`
	Score        int       `json:"score"`
	TotalPoints  int       `json:"total_points"`
	Passed       bool      `json:"passed"`
	GradedAt     time.Time `json:"graded_at"`
	Attempts     int       `json:"attempts,omitempty"`
}
