package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionType enumerates how a question is answered and graded.
type QuestionType string

const (
	QuestionTypeSingleChoice QuestionType = "single_choice"
	QuestionTypeMultiChoice  QuestionType = "multi_choice"
	QuestionTypeFreeText     QuestionType = "free_text"
)

// IsChoice reports whether the question is answered by picking options.
func (t QuestionType) IsChoice() bool {
	return t == QuestionTypeSingleChoice || t == QuestionTypeMultiChoice
}

// Option is a single authored answer option. Its position in QuestionRef.Options
// is the canonical index that correctness is defined against.
type Option struct {
	ID        uuid.UUID `json:"id"`
	Content   string    `json:"content"`
	IsCorrect bool      `json:"is_correct"`
}

// QuestionRef is a question as it appears in an exam, with its point value.
type QuestionRef struct {
	ID           uuid.UUID    `json:"id"`
	Type         QuestionType `json:"type"`
	Content      string       `json:"content"`
	GroupTitle   string       `json:"group_title,omitempty"`
	GroupContent string       `json:"group_content,omitempty"`
	Points       int          `json:"points"`
	OrderIndex   int          `json:"order_index"`
	Options      []Option     `json:"options,omitempty"`
}

// CorrectIndices returns the canonical indices of every option marked correct.
func (q *QuestionRef) CorrectIndices() []int {
	var out []int
	for i, o := range q.Options {
		if o.IsCorrect {
			out = append(out, i)
		}
	}
	return out
}

// Usable reports whether the question carries enough data to be answered.
// A choice question with no options is a data error.
func (q *QuestionRef) Usable() bool {
	if q.Type.IsChoice() {
		return len(q.Options) > 0
	}
	return q.Type == QuestionTypeFreeText
}

// ExamDefinition is the immutable description of an exam once a session starts.
type ExamDefinition struct {
	ID              uuid.UUID     `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description,omitempty"`
	DurationMinutes int           `json:"duration_minutes"`
	PassingScore    int           `json:"passing_score"`
	ShuffleOptions  bool          `json:"shuffle_options"`
	Published       bool          `json:"published"`
	Questions       []QuestionRef `json:"questions"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Duration returns the exam time limit.
func (e *ExamDefinition) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// TotalPoints returns the sum of every question's point value.
func (e *ExamDefinition) TotalPoints() int {
	total := 0
	for _, q := range e.Questions {
		total += q.Points
	}
	return total
}

// Question looks up a question by id.
func (e *ExamDefinition) Question(id uuid.UUID) (*QuestionRef, bool) {
	for i := range e.Questions {
		if e.Questions[i].ID == id {
			return &e.Questions[i], true
		}
	}
	return nil, false
}

// ClassifyChoice resolves the stored "multiple_choice" kind into single or multi
// choice: a question with more than one correct option is answered with checkboxes.
func ClassifyChoice(options []Option) QuestionType {
	correct := 0
	for _, o := range options {
		if o.IsCorrect {
			correct++
		}
	}
	if correct > 1 {
		return QuestionTypeMultiChoice
	}
	return QuestionTypeSingleChoice
}
