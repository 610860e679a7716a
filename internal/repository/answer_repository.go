package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/semuinside/exam-backend/internal/model"
)

// StoredAnswer is an answer row before it is decoded against its question type.
type StoredAnswer struct {
	QuestionID uuid.UUID
	Answer     []byte
	Revision   int64
	SavedAt    time.Time
}

// GradeSummary aggregates the graded rows of one session.
type GradeSummary struct {
	Graded  int
	Correct int
}

// AnswerRepository handles per-question answers and their grades.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// ListBySession returns every non-empty answer of a session.
func (r *AnswerRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]StoredAnswer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, answer, revision, saved_at
		 FROM exam_answers
		 WHERE session_id = $1 AND answer IS NOT NULL`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredAnswer
	for rows.Next() {
		var a StoredAnswer
		if err := rows.Scan(&a.QuestionID, &a.Answer, &a.Revision, &a.SavedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpsertBatch writes answers in one statement. A row is only replaced by a
// strictly newer revision, so a delayed write can never undo a later one.
func (r *AnswerRepository) UpsertBatch(ctx context.Context, sessionID uuid.UUID, records []model.AnswerRecord) error {
	if len(records) == 0 {
		return nil
	}
	n := len(records)
	questionIDs := make([]uuid.UUID, 0, n)
	answers := make([]string, 0, n)
	revisions := make([]int64, 0, n)
	savedAts := make([]time.Time, 0, n)

	for _, rec := range records {
		raw, err := rec.Value.MarshalJSON()
		if err != nil {
			return err
		}
		questionIDs = append(questionIDs, rec.QuestionID)
		answers = append(answers, string(raw))
		revisions = append(revisions, rec.Revision)
		savedAts = append(savedAts, rec.SavedAt)
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO exam_answers (session_id, question_id, answer, revision, saved_at)
		 SELECT $1, u.question_id, u.answer, u.revision, u.saved_at
		 FROM UNNEST($2::uuid[], $3::jsonb[], $4::bigint[], $5::timestamptz[])
		      AS u(question_id, answer, revision, saved_at)
		 ON CONFLICT (session_id, question_id) DO UPDATE
		 SET answer = EXCLUDED.answer,
		     revision = EXCLUDED.revision,
		     saved_at = EXCLUDED.saved_at
		 WHERE exam_answers.revision < EXCLUDED.revision`,
		sessionID, questionIDs, answers, revisions, savedAts)
	return err
}

// UpsertGrades stores correctness and points. Unanswered questions get a row
// with no answer so that every objective question of the session is graded.
func (r *AnswerRepository) UpsertGrades(ctx context.Context, sessionID uuid.UUID, graded []model.GradedAnswer) error {
	if len(graded) == 0 {
		return nil
	}
	n := len(graded)
	questionIDs := make([]uuid.UUID, 0, n)
	correct := make([]bool, 0, n)
	points := make([]int32, 0, n)
	for _, g := range graded {
		questionIDs = append(questionIDs, g.QuestionID)
		correct = append(correct, g.IsCorrect)
		points = append(points, int32(g.Points))
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO exam_answers (session_id, question_id, is_correct, points, graded_at)
		 SELECT $1, u.question_id, u.is_correct, u.points, NOW()
		 FROM UNNEST($2::uuid[], $3::bool[], $4::int[]) AS u(question_id, is_correct, points)
		 ON CONFLICT (session_id, question_id) DO UPDATE
		 SET is_correct = EXCLUDED.is_correct,
		     points = EXCLUDED.points,
		     graded_at = EXCLUDED.graded_at`,
		sessionID, questionIDs, correct, points)
	return err
}

// SummarizeGrades counts graded and correct rows of a session.
func (r *AnswerRepository) SummarizeGrades(ctx context.Context, sessionID uuid.UUID) (GradeSummary, error) {
	var s GradeSummary
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE is_correct IS NOT NULL),
		        COUNT(*) FILTER (WHERE is_correct)
		 FROM exam_answers WHERE session_id = $1`, sessionID,
	).Scan(&s.Graded, &s.Correct)
	return s, err
}
