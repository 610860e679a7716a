package model

import (
	"slices"
	"testing"
)

func TestClassifyChoice(t *testing.T) {
	tests := []struct {
		name    string
		correct []bool
		want    QuestionType
	}{
		{name: "no correct option", correct: []bool{false, false, false}, want: QuestionTypeSingleChoice},
		{name: "one correct", correct: []bool{false, true, false}, want: QuestionTypeSingleChoice},
		{name: "two correct", correct: []bool{true, false, true}, want: QuestionTypeMultiChoice},
		{name: "all correct", correct: []bool{true, true, true, true}, want: QuestionTypeMultiChoice},
		{name: "no options", want: QuestionTypeSingleChoice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := make([]Option, len(tt.correct))
			for i, c := range tt.correct {
				opts[i].IsCorrect = c
			}
			if got := ClassifyChoice(opts); got != tt.want {
				t.Errorf("ClassifyChoice = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestQuestionRef_CorrectIndicesAndUsable(t *testing.T) {
	q := &QuestionRef{
		Type:    QuestionTypeMultiChoice,
		Options: []Option{{IsCorrect: true}, {}, {IsCorrect: true}},
	}
	if got := q.CorrectIndices(); !slices.Equal(got, []int{0, 2}) {
		t.Errorf("CorrectIndices = %v, want [0 2]", got)
	}
	if !q.Usable() {
		t.Error("multi choice with options should be usable")
	}

	empty := &QuestionRef{Type: QuestionTypeSingleChoice}
	if empty.Usable() {
		t.Error("choice question without options must not be usable")
	}
	text := &QuestionRef{Type: QuestionTypeFreeText}
	if !text.Usable() {
		t.Error("free text should be usable")
	}
}
