package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/semuinside/exam-backend/internal/model"
)

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetDefinition loads an exam, published or not, with its questions in exam
// order and every question's options in authored order.
func (r *ExamRepository) GetDefinition(ctx context.Context, id uuid.UUID) (*model.ExamDefinition, error) {
	e := &model.ExamDefinition{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, description, duration_minutes, passing_score, shuffle_options, is_published, updated_at
		 FROM exams WHERE id = $1`, id,
	).Scan(&e.ID, &e.Title, &e.Description, &e.DurationMinutes, &e.PassingScore, &e.ShuffleOptions, &e.Published, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT q.id, q.question_type, q.content, COALESCE(g.title, ''), COALESCE(g.content, ''),
		        eq.points, eq.order_index
		 FROM exam_questions eq
		 JOIN questions q ON q.id = eq.question_id
		 LEFT JOIN question_groups g ON g.id = q.group_id
		 WHERE eq.exam_id = $1
		 ORDER BY eq.order_index ASC, q.created_at ASC`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var q model.QuestionRef
		var kind string
		if err := rows.Scan(&q.ID, &kind, &q.Content, &q.GroupTitle, &q.GroupContent, &q.Points, &q.OrderIndex); err != nil {
			return nil, err
		}
		q.Type = model.QuestionType(kind)
		index[q.ID] = len(e.Questions)
		e.Questions = append(e.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(e.Questions) == 0 {
		return e, nil
	}

	optRows, err := r.pool.Query(ctx,
		`SELECT o.question_id, o.id, o.content, o.is_correct
		 FROM question_options o
		 JOIN exam_questions eq ON eq.question_id = o.question_id
		 WHERE eq.exam_id = $1
		 ORDER BY o.question_id, o.order_index ASC`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	defer optRows.Close()

	for optRows.Next() {
		var qid uuid.UUID
		var o model.Option
		if err := optRows.Scan(&qid, &o.ID, &o.Content, &o.IsCorrect); err != nil {
			return nil, err
		}
		if i, ok := index[qid]; ok {
			e.Questions[i].Options = append(e.Questions[i].Options, o)
		}
	}
	if err := optRows.Err(); err != nil {
		return nil, err
	}

	// stored "multiple_choice" splits into single or multi by its correct options
	for i := range e.Questions {
		q := &e.Questions[i]
		if q.Type != model.QuestionTypeFreeText {
			q.Type = model.ClassifyChoice(q.Options)
		}
	}
	return e, nil
}

// ListPublishedIDs returns the ids of every published exam.
func (r *ExamRepository) ListPublishedIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM exams WHERE is_published ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
