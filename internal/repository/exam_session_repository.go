package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/semuinside/exam-backend/internal/model"
)

const sessionColumns = `id, exam_id, respondent_id, status, started_at, submitted_at,
	duration_minutes, score, total_points, question_randomization`

// OverdueSession identifies an open session whose deadline has passed.
type OverdueSession struct {
	SessionID uuid.UUID
	ExamID    uuid.UUID
	Deadline  time.Time
}

// ExamSessionRepository handles exam session data access.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

func scanSession(row pgx.Row) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := row.Scan(&s.ID, &s.ExamID, &s.RespondentID, &s.Status, &s.StartedAt, &s.SubmittedAt,
		&s.DurationMinutes, &s.Score, &s.TotalPoints, &s.Randomization)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByID retrieves a session by its UUID.
func (r *ExamSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1`, id))
}

// GetOpen retrieves the in-progress session of a respondent for an exam.
func (r *ExamSessionRepository) GetOpen(ctx context.Context, examID, respondentID uuid.UUID) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE exam_id = $1 AND respondent_id = $2 AND status = 'in_progress'`,
		examID, respondentID))
}

// CreateOrGetOpen starts a new attempt unless one is already in progress, in
// which case that one is returned. created reports which happened.
func (r *ExamSessionRepository) CreateOrGetOpen(ctx context.Context, examID, respondentID uuid.UUID) (s *model.ExamSession, created bool, err error) {
	s, err = scanSession(r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (exam_id, respondent_id, status)
		 VALUES ($1, $2, 'in_progress')
		 ON CONFLICT (exam_id, respondent_id) WHERE status = 'in_progress' DO NOTHING
		 RETURNING `+sessionColumns,
		examID, respondentID))
	if err == nil {
		return s, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}
	s, err = r.GetOpen(ctx, examID, respondentID)
	return s, false, err
}

// MergeRandomization adds planned mappings for questions that have none and
// returns the stored map. Mappings already present are never replaced.
func (r *ExamSessionRepository) MergeRandomization(ctx context.Context, id uuid.UUID, planned model.SessionRandomization) (model.SessionRandomization, error) {
	var stored model.SessionRandomization
	err := r.pool.QueryRow(ctx,
		`UPDATE exam_sessions
		 SET question_randomization = $2::jsonb || question_randomization,
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING question_randomization`,
		id, planned,
	).Scan(&stored)
	return stored, err
}

// MarkSubmitted records the submission. The first recorded time and duration win
// so that a retried submission keeps its original timestamp.
func (r *ExamSessionRepository) MarkSubmitted(ctx context.Context, id uuid.UUID, submittedAt time.Time, durationMinutes int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET submitted_at = COALESCE(submitted_at, $2),
		     duration_minutes = COALESCE(duration_minutes, $3),
		     status = CASE WHEN status = 'graded' THEN status ELSE 'submitted' END,
		     updated_at = NOW()
		 WHERE id = $1`,
		id, submittedAt, durationMinutes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// FinalizeScore stores the score and moves the session to graded.
func (r *ExamSessionRepository) FinalizeScore(ctx context.Context, id uuid.UUID, score, totalPoints int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET score = $2, total_points = $3, status = 'graded', updated_at = NOW()
		 WHERE id = $1`,
		id, score, totalPoints)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListOverdue returns sessions past their deadline that are still open or were
// submitted without being graded.
func (r *ExamSessionRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]OverdueSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.exam_id, s.started_at + make_interval(mins => e.duration_minutes) AS deadline
		 FROM exam_sessions s
		 JOIN exams e ON e.id = s.exam_id
		 WHERE s.status IN ('in_progress', 'submitted')
		   AND s.started_at + make_interval(mins => e.duration_minutes) < $1
		 ORDER BY deadline ASC
		 LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OverdueSession
	for rows.Next() {
		var o OverdueSession
		if err := rows.Scan(&o.SessionID, &o.ExamID, &o.Deadline); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
