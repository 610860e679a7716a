package model

import "github.com/google/uuid"

// PaperOption is an option as shown to the respondent. Correctness is never included.
type PaperOption struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
}

// PaperQuestion is a question in the respondent's displayed order.
type PaperQuestion struct {
	ID           uuid.UUID     `json:"id"`
	Number       int           `json:"number"`
	Type         QuestionType  `json:"type"`
	Content      string        `json:"content"`
	GroupTitle   string        `json:"group_title,omitempty"`
	GroupContent string        `json:"group_content,omitempty"`
	Points       int           `json:"points"`
	Options      []PaperOption `json:"options,omitempty"`
	Unusable     bool          `json:"unusable,omitempty"`
}

// Paper is the exam as rendered for one session.
type Paper struct {
	ExamID          uuid.UUID       `json:"exam_id"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	DurationMinutes int             `json:"duration_minutes"`
	TotalPoints     int             `json:"total_points"`
	Questions       []PaperQuestion `json:"questions"`
}
