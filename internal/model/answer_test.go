package model

import (
	"errors"
	"slices"
	"testing"
)

func TestDecodeAnswer(t *testing.T) {
	tests := []struct {
		name    string
		kind    QuestionType
		raw     string
		want    AnswerValue
		wantErr bool
	}{
		{name: "single number", kind: QuestionTypeSingleChoice, raw: `2`, want: SingleAnswer(2)},
		{name: "single numeric string", kind: QuestionTypeSingleChoice, raw: `"2"`, want: SingleAnswer(2)},
		{name: "single padded", kind: QuestionTypeSingleChoice, raw: " 1\n", want: SingleAnswer(1)},
		{name: "single word", kind: QuestionTypeSingleChoice, raw: `"two"`, wantErr: true},
		{name: "single array", kind: QuestionTypeSingleChoice, raw: `[1]`, wantErr: true},
		{name: "multi numbers", kind: QuestionTypeMultiChoice, raw: `[2,0]`, want: MultiAnswer(0, 2)},
		{name: "multi numeric strings", kind: QuestionTypeMultiChoice, raw: `["0","2"]`, want: MultiAnswer(0, 2)},
		{name: "multi duplicates", kind: QuestionTypeMultiChoice, raw: `[1,1,0]`, want: MultiAnswer(0, 1)},
		{name: "multi empty", kind: QuestionTypeMultiChoice, raw: `[]`, want: MultiAnswer()},
		{name: "multi bad element", kind: QuestionTypeMultiChoice, raw: `["0","x"]`, wantErr: true},
		{name: "multi scalar", kind: QuestionTypeMultiChoice, raw: `3`, wantErr: true},
		{name: "text", kind: QuestionTypeFreeText, raw: `"부가가치세"`, want: TextAnswer("부가가치세")},
		{name: "text number", kind: QuestionTypeFreeText, raw: `12`, wantErr: true},
		{name: "truncated json", kind: QuestionTypeFreeText, raw: `"abc`, wantErr: true},
		{name: "unknown kind", kind: QuestionType("essay"), raw: `"x"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeAnswer(tt.kind, []byte(tt.raw))
			if tt.wantErr {
				if !errors.Is(err, ErrAnswerShape) {
					t.Fatalf("err = %v, want ErrAnswerShape", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeAnswer: %v", err)
			}
			if !equalAnswer(got, tt.want) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAnswerValue_EncodeDecode(t *testing.T) {
	tests := []struct {
		name  string
		value AnswerValue
		json  string
	}{
		{name: "single", value: SingleAnswer(3), json: `3`},
		{name: "multi", value: MultiAnswer(2, 0), json: `[0,2]`},
		{name: "multi nil", value: AnswerValue{Kind: QuestionTypeMultiChoice}, json: `[]`},
		{name: "text", value: TextAnswer("a \"quoted\" line"), json: `"a \"quoted\" line"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := tt.value.MarshalJSON()
			if err != nil {
				t.Fatalf("MarshalJSON: %v", err)
			}
			if string(raw) != tt.json {
				t.Fatalf("encoded %s, want %s", raw, tt.json)
			}
			back, err := DecodeAnswer(tt.value.Kind, raw)
			if err != nil {
				t.Fatalf("DecodeAnswer(%s): %v", raw, err)
			}
			if !equalAnswer(back, tt.value) {
				t.Errorf("decoded %+v from %+v", back, tt.value)
			}
		})
	}
}

func TestAnswerValue_Validate(t *testing.T) {
	q := &QuestionRef{Type: QuestionTypeMultiChoice, Options: make([]Option, 3)}

	tests := []struct {
		name    string
		value   AnswerValue
		wantErr bool
	}{
		{name: "in range", value: MultiAnswer(0, 2)},
		{name: "empty set", value: MultiAnswer()},
		{name: "out of range", value: MultiAnswer(3), wantErr: true},
		{name: "negative", value: MultiAnswer(-1), wantErr: true},
		{name: "wrong kind", value: SingleAnswer(0), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.value.Validate(q)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func equalAnswer(a, b AnswerValue) bool {
	return a.Kind == b.Kind && a.Choice == b.Choice && a.Text == b.Text && slices.Equal(a.Choices, b.Choices)
}
