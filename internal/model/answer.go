package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ErrAnswerShape is returned when an answer does not fit its question type.
var ErrAnswerShape = errors.New("answer does not match question type")

// AnswerValue is a respondent's current answer: one displayed index for
// single choice, a set of displayed indices for multi choice, or free text.
type AnswerValue struct {
	Kind    QuestionType
	Choice  int
	Choices []int
	Text    string
}

// SingleAnswer builds a single-choice answer.
func SingleAnswer(displayed int) AnswerValue {
	return AnswerValue{Kind: QuestionTypeSingleChoice, Choice: displayed}
}

// MultiAnswer builds a multi-choice answer. Order and duplicates are ignored.
func MultiAnswer(displayed ...int) AnswerValue {
	set := slices.Clone(displayed)
	slices.Sort(set)
	set = slices.Compact(set)
	if set == nil {
		set = []int{}
	}
	return AnswerValue{Kind: QuestionTypeMultiChoice, Choices: set}
}

// TextAnswer builds a free-text answer.
func TextAnswer(text string) AnswerValue {
	return AnswerValue{Kind: QuestionTypeFreeText, Text: text}
}

// Empty reports whether the value carries no selection at all.
func (v AnswerValue) Empty() bool {
	switch v.Kind {
	case QuestionTypeMultiChoice:
		return len(v.Choices) == 0
	case QuestionTypeFreeText:
		return v.Text == ""
	case QuestionTypeSingleChoice:
		return false
	}
	return true
}

// Validate checks the value against the question it answers.
func (v AnswerValue) Validate(q *QuestionRef) error {
	if v.Kind != q.Type {
		return fmt.Errorf("%w: got %s for %s", ErrAnswerShape, v.Kind, q.Type)
	}
	switch v.Kind {
	case QuestionTypeSingleChoice:
		if v.Choice < 0 || v.Choice >= len(q.Options) {
			return fmt.Errorf("%w: option %d out of range", ErrAnswerShape, v.Choice)
		}
	case QuestionTypeMultiChoice:
		for _, c := range v.Choices {
			if c < 0 || c >= len(q.Options) {
				return fmt.Errorf("%w: option %d out of range", ErrAnswerShape, c)
			}
		}
	}
	return nil
}

// MarshalJSON encodes a single choice as a number, multi choice as an array
// and free text as a string.
func (v AnswerValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case QuestionTypeSingleChoice:
		return json.Marshal(v.Choice)
	case QuestionTypeMultiChoice:
		if v.Choices == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.Choices)
	case QuestionTypeFreeText:
		return json.Marshal(v.Text)
	}
	return []byte("null"), nil
}

// DecodeAnswer parses a stored answer for a question of the given type.
// Single-choice answers saved as numeric strings are accepted.
func DecodeAnswer(kind QuestionType, raw []byte) (AnswerValue, error) {
	raw = bytes.TrimSpace(raw)
	switch kind {
	case QuestionTypeSingleChoice:
		var n int
		if err := json.Unmarshal(raw, &n); err == nil {
			return SingleAnswer(n), nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return AnswerValue{}, fmt.Errorf("%w: %v", ErrAnswerShape, err)
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return AnswerValue{}, fmt.Errorf("%w: %q is not an option index", ErrAnswerShape, s)
		}
		return SingleAnswer(n), nil

	case QuestionTypeMultiChoice:
		var ns []int
		if err := json.Unmarshal(raw, &ns); err == nil {
			return MultiAnswer(ns...), nil
		}
		var ss []string
		if err := json.Unmarshal(raw, &ss); err != nil {
			return AnswerValue{}, fmt.Errorf("%w: %v", ErrAnswerShape, err)
		}
		ns = make([]int, 0, len(ss))
		for _, s := range ss {
			n, err := strconv.Atoi(s)
			if err != nil {
				return AnswerValue{}, fmt.Errorf("%w: %q is not an option index", ErrAnswerShape, s)
			}
			ns = append(ns, n)
		}
		return MultiAnswer(ns...), nil

	case QuestionTypeFreeText:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return AnswerValue{}, fmt.Errorf("%w: %v", ErrAnswerShape, err)
		}
		return TextAnswer(s), nil
	}
	return AnswerValue{}, fmt.Errorf("%w: unknown type %q", ErrAnswerShape, kind)
}

// AnswerRecord is the persisted form of one question's answer.
// Revision increases on every change so that late writes never overwrite newer ones.
type AnswerRecord struct {
	QuestionID uuid.UUID   `json:"question_id"`
	Value      AnswerValue `json:"answer"`
	Revision   int64       `json:"revision"`
	SavedAt    time.Time   `json:"saved_at"`
}

// GradedAnswer is the derived correctness of one objective question.
type GradedAnswer struct {
	QuestionID uuid.UUID `json:"question_id"`
	IsCorrect  bool      `json:"is_correct"`
	Points     int       `json:"points"`
}

// SetAnswerRequest is the payload for changing an answer over HTTP.
// Exactly one of the fields must be present.
type SetAnswerRequest struct {
	Choice  *int    `json:"choice" binding:"omitempty,min=0"`
	Choices []int   `json:"choices" binding:"omitempty,dive,min=0"`
	Text    *string `json:"text" binding:"omitempty,max=20000"`
}

// Value converts the request into an AnswerValue for a question of the given type.
func (r *SetAnswerRequest) Value(kind QuestionType) (AnswerValue, error) {
	switch kind {
	case QuestionTypeSingleChoice:
		if r.Choice == nil {
			return AnswerValue{}, fmt.Errorf("%w: choice is required", ErrAnswerShape)
		}
		return SingleAnswer(*r.Choice), nil
	case QuestionTypeMultiChoice:
		if r.Choices == nil {
			return AnswerValue{}, fmt.Errorf("%w: choices is required", ErrAnswerShape)
		}
		return MultiAnswer(r.Choices...), nil
	case QuestionTypeFreeText:
		if r.Text == nil {
			return AnswerValue{}, fmt.Errorf("%w: text is required", ErrAnswerShape)
		}
		return TextAnswer(*r.Text), nil
	}
	return AnswerValue{}, fmt.Errorf("%w: unknown type %q", ErrAnswerShape, kind)
}
