// Package grading scores objective answers against the authored options,
// translating displayed positions back to canonical ones first.
package grading

import (
	"slices"

	"github.com/semuinside/exam-backend/internal/model"
)

// Outcome classifies how a question was graded.
type Outcome string

const (
	OutcomeCorrect       Outcome = "correct"
	OutcomeWrong         Outcome = "wrong"
	OutcomeUnanswered    Outcome = "unanswered"
	OutcomePendingReview Outcome = "pending_review"
	OutcomeInvalid       Outcome = "invalid"
)

// Result is the grade of one question.
type Result struct {
	IsCorrect bool
	Points    int
	Outcome   Outcome
}

// AutoGraded reports whether the result produces a graded-answer row.
func (r Result) AutoGraded() bool {
	return r.Outcome != OutcomePendingReview
}

// Grade scores a respondent's answer. answer may be nil for unanswered questions.
// Multi-choice is all-or-nothing: the canonical selection must equal the
// canonical correct set exactly.
func Grade(q *model.QuestionRef, mapping model.OptionMapping, answer *model.AnswerValue, points int) Result {
	if q.Type == model.QuestionTypeFreeText {
		return Result{Outcome: OutcomePendingReview}
	}
	if !q.Usable() {
		return Result{Outcome: OutcomeInvalid}
	}
	if answer == nil || answer.Empty() {
		return Result{Outcome: OutcomeUnanswered}
	}
	if answer.Kind != q.Type || !mapping.Valid(len(q.Options)) {
		return Result{Outcome: OutcomeInvalid}
	}

	correct := q.CorrectIndices()
	if len(correct) == 0 {
		return Result{Outcome: OutcomeInvalid}
	}

	var ok bool
	switch q.Type {
	case model.QuestionTypeSingleChoice:
		ok = gradeSingle(correct[0], mapping, answer.Choice)
	case model.QuestionTypeMultiChoice:
		ok = gradeMulti(correct, mapping, answer.Choices)
	}

	if !ok {
		return Result{Outcome: OutcomeWrong}
	}
	return Result{IsCorrect: true, Points: points, Outcome: OutcomeCorrect}
}

func gradeSingle(canonicalCorrect int, mapping model.OptionMapping, displayed int) bool {
	want, found := mapping.Displayed(canonicalCorrect)
	return found && want == displayed
}

func gradeMulti(canonicalCorrect []int, mapping model.OptionMapping, displayed []int) bool {
	picked := make([]int, 0, len(displayed))
	for _, d := range displayed {
		c, ok := mapping.Canonical(d)
		if !ok {
			return false
		}
		picked = append(picked, c)
	}
	slices.Sort(picked)
	picked = slices.Compact(picked)
	return slices.Equal(picked, canonicalCorrect)
}
