package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/semuinside/exam-backend/internal/model"
)

// EventRepository persists the session audit trail.
type EventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// CopyBatch bulk inserts events with COPY.
func (r *EventRepository) CopyBatch(ctx context.Context, events []model.SessionEventRecord) (int64, error) {
	rows := make([][]any, 0, len(events))
	for _, e := range events {
		rows = append(rows, []any{e.SessionID, e.ExamID, e.RespondentID, e.Type, payloadText(e), e.OccurredAt})
	}
	return r.pool.CopyFrom(ctx,
		pgx.Identifier{"exam_session_events"},
		[]string{"session_id", "exam_id", "respondent_id", "event_type", "payload", "occurred_at"},
		pgx.CopyFromRows(rows),
	)
}

// Insert writes a single event.
func (r *EventRepository) Insert(ctx context.Context, e model.SessionEventRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO exam_session_events (session_id, exam_id, respondent_id, event_type, payload, occurred_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6)`,
		e.SessionID, e.ExamID, e.RespondentID, e.Type, payloadText(e), e.OccurredAt)
	return err
}

// ListBySession returns the most recent events of a session, oldest first.
func (r *EventRepository) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]model.SessionEventRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, exam_id, respondent_id, event_type, payload, occurred_at
		 FROM (
		     SELECT * FROM exam_session_events
		     WHERE session_id = $1
		     ORDER BY occurred_at DESC, id DESC
		     LIMIT $2
		 ) recent
		 ORDER BY occurred_at ASC, id ASC`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SessionEventRecord
	for rows.Next() {
		var e model.SessionEventRecord
		var payload []byte
		if err := rows.Scan(&e.SessionID, &e.ExamID, &e.RespondentID, &e.Type, &payload, &e.OccurredAt); err != nil {
			return nil, err
		}
		e.Payload = payload
		out = append(out, e)
	}
	return out, rows.Err()
}

func payloadText(e model.SessionEventRecord) string {
	if len(e.Payload) == 0 {
		return "{}"
	}
	return string(e.Payload)
}
