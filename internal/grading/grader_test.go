package grading

import (
	"testing"

	"github.com/google/uuid"
	"github.com/semuinside/exam-backend/internal/model"
)

func choiceQuestion(kind model.QuestionType, n int, correct ...int) *model.QuestionRef {
	q := &model.QuestionRef{ID: uuid.New(), Type: kind, Points: 5}
	for i := 0; i < n; i++ {
		q.Options = append(q.Options, model.Option{ID: uuid.New(), Content: string(rune('A' + i))})
	}
	for _, c := range correct {
		q.Options[c].IsCorrect = true
	}
	return q
}

func answerPtr(v model.AnswerValue) *model.AnswerValue { return &v }

func TestGrade_SingleChoice(t *testing.T) {
	q := choiceQuestion(model.QuestionTypeSingleChoice, 4, 2)

	tests := []struct {
		name    string
		mapping model.OptionMapping
		answer  *model.AnswerValue
		correct bool
		points  int
		outcome Outcome
	}{
		{name: "displayed 0 shows canonical 2", mapping: model.OptionMapping{2, 0, 1, 3}, answer: answerPtr(model.SingleAnswer(0)), correct: true, points: 5, outcome: OutcomeCorrect},
		{name: "displayed position equal to canonical is wrong when shuffled", mapping: model.OptionMapping{2, 0, 1, 3}, answer: answerPtr(model.SingleAnswer(2)), outcome: OutcomeWrong},
		{name: "identity order", mapping: model.Identity(4), answer: answerPtr(model.SingleAnswer(2)), correct: true, points: 5, outcome: OutcomeCorrect},
		{name: "unanswered", mapping: model.Identity(4), answer: nil, outcome: OutcomeUnanswered},
		{name: "corrupt mapping", mapping: model.OptionMapping{0, 0, 1, 2}, answer: answerPtr(model.SingleAnswer(0)), outcome: OutcomeInvalid},
		{name: "wrong answer kind", mapping: model.Identity(4), answer: answerPtr(model.MultiAnswer(2)), outcome: OutcomeInvalid},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Grade(q, tc.mapping, tc.answer, q.Points)
			if got.IsCorrect != tc.correct || got.Points != tc.points || got.Outcome != tc.outcome {
				t.Fatalf("Grade() = %+v, want correct=%v points=%d outcome=%s", got, tc.correct, tc.points, tc.outcome)
			}
		})
	}
}

func TestGrade_MultiChoiceExact(t *testing.T) {
	q := choiceQuestion(model.QuestionTypeMultiChoice, 3, 0, 2)
	// displayed 0 = canonical 2, displayed 1 = canonical 0, displayed 2 = canonical 1
	mapping := model.OptionMapping{2, 0, 1}

	tests := []struct {
		name    string
		answer  *model.AnswerValue
		correct bool
		outcome Outcome
	}{
		{name: "exact set", answer: answerPtr(model.MultiAnswer(0, 1)), correct: true, outcome: OutcomeCorrect},
		{name: "order independent", answer: answerPtr(model.MultiAnswer(1, 0, 1)), correct: true, outcome: OutcomeCorrect},
		{name: "missing one", answer: answerPtr(model.MultiAnswer(1)), outcome: OutcomeWrong},
		{name: "extra one", answer: answerPtr(model.MultiAnswer(0, 1, 2)), outcome: OutcomeWrong},
		{name: "displayed equals canonical is wrong", answer: answerPtr(model.MultiAnswer(0, 2)), outcome: OutcomeWrong},
		{name: "empty selection", answer: answerPtr(model.MultiAnswer()), outcome: OutcomeUnanswered},
		{name: "out of range", answer: answerPtr(model.AnswerValue{Kind: model.QuestionTypeMultiChoice, Choices: []int{0, 7}}), outcome: OutcomeWrong},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Grade(q, mapping, tc.answer, 4)
			if got.IsCorrect != tc.correct || got.Outcome != tc.outcome {
				t.Fatalf("Grade() = %+v, want correct=%v outcome=%s", got, tc.correct, tc.outcome)
			}
			if tc.correct && got.Points != 4 {
				t.Fatalf("points = %d, want 4", got.Points)
			}
			if !tc.correct && got.Points != 0 {
				t.Fatalf("points = %d, want 0", got.Points)
			}
		})
	}
}

func TestGrade_FreeTextIsNeverAutoGraded(t *testing.T) {
	q := &model.QuestionRef{ID: uuid.New(), Type: model.QuestionTypeFreeText, Points: 10}
	got := Grade(q, nil, answerPtr(model.TextAnswer("세법 제1조")), q.Points)
	if got.Outcome != OutcomePendingReview || got.AutoGraded() || got.Points != 0 {
		t.Fatalf("Grade() = %+v, want pending review with no points", got)
	}
}

func TestGrade_QuestionWithoutOptions(t *testing.T) {
	q := &model.QuestionRef{ID: uuid.New(), Type: model.QuestionTypeSingleChoice, Points: 3}
	got := Grade(q, nil, answerPtr(model.SingleAnswer(0)), q.Points)
	if got.Outcome != OutcomeInvalid || got.IsCorrect {
		t.Fatalf("Grade() = %+v, want invalid", got)
	}
}

func TestGrade_IsPure(t *testing.T) {
	q := choiceQuestion(model.QuestionTypeSingleChoice, 5, 3)
	mapping := model.OptionMapping{4, 3, 2, 1, 0}
	answer := answerPtr(model.SingleAnswer(1))

	first := Grade(q, mapping, answer, 7)
	for i := 0; i < 20; i++ {
		if got := Grade(q, mapping, answer, 7); got != first {
			t.Fatalf("run %d: Grade() = %+v, want %+v", i, got, first)
		}
	}
	if !first.IsCorrect || first.Points != 7 {
		t.Fatalf("Grade() = %+v, want correct with 7 points", first)
	}
}
