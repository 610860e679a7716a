// Package runner administers one timed exam session: countdown, answer capture,
// option shuffling, autosave and the one-time terminal submission.
package runner

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/semuinside/exam-backend/internal/model"
)

var (
	ErrInputLocked        = errors.New("answers can no longer be changed")
	ErrAlreadySubmitting  = errors.New("submission already in progress")
	ErrAlreadySubmitted   = errors.New("session already submitted")
	ErrNotFailed          = errors.New("no failed submission to retry")
	ErrUnknownQuestion    = errors.New("question is not part of this exam")
	ErrQuestionUnusable   = errors.New("question has no usable options")
	ErrSessionFinished    = errors.New("session is already finished")
	ErrRunnerNotStarted   = errors.New("runner has not been started")
	ErrRunnerAlreadyStart = errors.New("runner already started")

	ErrSubmissionInterrupted = errors.New("submission was interrupted")
)

// Store is the persistence collaborator a runner writes through. Every write
// must be an upsert so that retries never duplicate rows.
type Store interface {
	// SaveRandomization stores mappings for questions that have none yet and
	// returns the full stored map. Existing entries always win.
	SaveRandomization(ctx context.Context, sessionID uuid.UUID, planned model.SessionRandomization) (model.SessionRandomization, error)
	UpsertAnswers(ctx context.Context, sessionID uuid.UUID, records []model.AnswerRecord) error
	MarkSubmitted(ctx context.Context, sessionID uuid.UUID, submittedAt time.Time, durationMinutes int) error
	UpsertGradedAnswers(ctx context.Context, sessionID uuid.UUID, graded []model.GradedAnswer) error
	FinalizeScore(ctx context.Context, sessionID uuid.UUID, score, totalPoints int) error
}
