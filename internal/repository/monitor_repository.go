package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/semuinside/exam-backend/internal/model"
)

// SessionProgress is one respondent's attempt as seen by the live monitor.
type SessionProgress struct {
	SessionID     uuid.UUID           `json:"session_id"`
	RespondentID  uuid.UUID           `json:"respondent_id"`
	Status        model.SessionStatus `json:"status"`
	StartedAt     time.Time           `json:"started_at"`
	Score         *int                `json:"score,omitempty"`
	TotalPoints   *int                `json:"total_points,omitempty"`
	AnsweredCount int64               `json:"answered_count"`
	LeaveAttempts int64               `json:"leave_attempts"`
}

// MonitorRepository provides data access for the live exam monitoring feature.
type MonitorRepository struct {
	pool *pgxpool.Pool
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool) *MonitorRepository {
	return &MonitorRepository{pool: pool}
}

// ListProgress returns every attempt at the exam with its answered count and
// the number of times the respondent tried to leave mid-exam.
func (r *MonitorRepository) ListProgress(ctx context.Context, examID uuid.UUID) ([]SessionProgress, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.respondent_id, s.status, s.started_at, s.score, s.total_points,
		        COALESCE(a.answered, 0), COALESCE(ev.leaves, 0)
		 FROM exam_sessions s
		 LEFT JOIN (
		     SELECT session_id, COUNT(*) AS answered
		     FROM exam_answers WHERE answer IS NOT NULL
		     GROUP BY session_id
		 ) a ON a.session_id = s.id
		 LEFT JOIN (
		     SELECT session_id, COUNT(*) AS leaves
		     FROM exam_session_events WHERE exam_id = $1 AND event_type = 'leave_blocked'
		     GROUP BY session_id
		 ) ev ON ev.session_id = s.id
		 WHERE s.exam_id = $1
		 ORDER BY s.started_at ASC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionProgress
	for rows.Next() {
		var p SessionProgress
		if err := rows.Scan(&p.SessionID, &p.RespondentID, &p.Status, &p.StartedAt, &p.Score, &p.TotalPoints,
			&p.AnsweredCount, &p.LeaveAttempts); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
