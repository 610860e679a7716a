package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/semuinside/exam-backend/internal/model"
	"github.com/semuinside/exam-backend/internal/repository"
	"github.com/semuinside/exam-backend/internal/runner"
)

// SessionStore is the PostgreSQL-backed persistence used by exam runners.
type SessionStore struct {
	sessions *repository.ExamSessionRepository
	answers  *repository.AnswerRepository
	log      zerolog.Logger
}

var _ runner.Store = (*SessionStore)(nil)

// NewSessionStore creates a new SessionStore.
func NewSessionStore(sessions *repository.ExamSessionRepository, answers *repository.AnswerRepository, log zerolog.Logger) *SessionStore {
	return &SessionStore{
		sessions: sessions,
		answers:  answers,
		log:      log.With().Str("component", "session_store").Logger(),
	}
}

func (s *SessionStore) SaveRandomization(ctx context.Context, sessionID uuid.UUID, planned model.SessionRandomization) (model.SessionRandomization, error) {
	return s.sessions.MergeRandomization(ctx, sessionID, planned)
}

func (s *SessionStore) UpsertAnswers(ctx context.Context, sessionID uuid.UUID, records []model.AnswerRecord) error {
	return s.answers.UpsertBatch(ctx, sessionID, records)
}

func (s *SessionStore) MarkSubmitted(ctx context.Context, sessionID uuid.UUID, submittedAt time.Time, durationMinutes int) error {
	return s.sessions.MarkSubmitted(ctx, sessionID, submittedAt, durationMinutes)
}

func (s *SessionStore) UpsertGradedAnswers(ctx context.Context, sessionID uuid.UUID, graded []model.GradedAnswer) error {
	return s.answers.UpsertGrades(ctx, sessionID, graded)
}

func (s *SessionStore) FinalizeScore(ctx context.Context, sessionID uuid.UUID, score, totalPoints int) error {
	return s.sessions.FinalizeScore(ctx, sessionID, score, totalPoints)
}

// LoadAnswers decodes the persisted answers of a session against the exam.
// Rows that no longer fit their question are skipped rather than failing the resume.
func (s *SessionStore) LoadAnswers(ctx context.Context, sessionID uuid.UUID, exam *model.ExamDefinition) ([]model.AnswerRecord, error) {
	rows, err := s.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	out := make([]model.AnswerRecord, 0, len(rows))
	for _, row := range rows {
		q, ok := exam.Question(row.QuestionID)
		if !ok {
			continue
		}
		v, err := model.DecodeAnswer(q.Type, row.Answer)
		if err != nil {
			s.log.Warn().Err(err).
				Str("session_id", sessionID.String()).
				Str("question_id", row.QuestionID.String()).
				Msg("Skipping undecodable answer")
			continue
		}
		out = append(out, model.AnswerRecord{QuestionID: row.QuestionID, Value: v, Revision: row.Revision, SavedAt: row.SavedAt})
	}
	return out, nil
}
