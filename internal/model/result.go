package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmitTrigger records why a session was submitted.
type SubmitTrigger string

const (
	SubmitTriggerUser   SubmitTrigger = "user"
	SubmitTriggerExpiry SubmitTrigger = "expiry"
	SubmitTriggerSweep  SubmitTrigger = "sweep"
)

// SubmissionResult is what a respondent sees after terminal submission.
type SubmissionResult struct {
	SessionID       uuid.UUID     `json:"session_id"`
	ExamID          uuid.UUID     `json:"exam_id"`
	RespondentID    uuid.UUID     `json:"respondent_id"`
	Trigger         SubmitTrigger `json:"trigger"`
	Score           int           `json:"score"`
	TotalPoints     int           `json:"total_points"`
	Percentage      float64       `json:"percentage"`
	PassingScore    int           `json:"passing_score"`
	Passed          bool          `json:"passed"`
	CorrectCount    int           `json:"correct_count"`
	AnsweredCount   int           `json:"answered_count"`
	Unanswered      int           `json:"unanswered_count"`
	PendingReview   int           `json:"pending_review_count"`
	SubmittedAt     time.Time     `json:"submitted_at"`
	DurationMinutes int           `json:"duration_minutes"`
}

// Percent returns score as a percentage of total, 0 when the exam has no points.
func Percent(score, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(score) * 100 / float64(total)
}
