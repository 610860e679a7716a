package model

import (
	"slices"
	"testing"

	"github.com/google/uuid"
)

func TestSessionRandomization_Scan(t *testing.T) {
	qid := uuid.New().String()
	stored := `{"` + qid + `":{"isRandomized":true,"originalToNewMapping":[2,0,1]}}`

	tests := []struct {
		name    string
		src     any
		wantLen int
		wantErr bool
	}{
		{name: "null column", src: nil},
		{name: "bytes", src: []byte(stored), wantLen: 1},
		{name: "string", src: stored, wantLen: 1},
		{name: "empty bytes", src: []byte{}},
		{name: "empty object", src: "{}"},
		{name: "corrupt json", src: []byte(`{"` + qid + `":`), wantErr: true},
		{name: "unsupported type", src: 42, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r SessionRandomization
			err := r.Scan(tt.src)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Scan = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if r == nil {
				t.Fatal("Scan left a nil map")
			}
			if len(r) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(r), tt.wantLen)
			}
			if tt.wantLen > 0 && !slices.Equal(r[qid].Mapping, OptionMapping{2, 0, 1}) {
				t.Errorf("mapping = %v", r[qid].Mapping)
			}
		})
	}
}

func TestSessionRandomization_Value(t *testing.T) {
	var empty SessionRandomization
	v, err := empty.Value()
	if err != nil {
		t.Fatal(err)
	}
	if string(v.([]byte)) != "{}" {
		t.Fatalf("nil map stored as %s", v)
	}

	qid := uuid.New().String()
	in := SessionRandomization{qid: {IsRandomized: true, Mapping: OptionMapping{1, 0}}}
	v, err = in.Value()
	if err != nil {
		t.Fatal(err)
	}
	var out SessionRandomization
	if err := out.Scan(v); err != nil {
		t.Fatalf("Scan(Value()): %v", err)
	}
	if !out[qid].IsRandomized || !slices.Equal(out[qid].Mapping, in[qid].Mapping) {
		t.Errorf("stored %+v, read back %+v", in[qid], out[qid])
	}
}

func TestOptionMapping_Valid(t *testing.T) {
	tests := []struct {
		name string
		m    OptionMapping
		n    int
		want bool
	}{
		{name: "permutation", m: OptionMapping{2, 0, 1}, n: 3, want: true},
		{name: "empty", m: OptionMapping{}, n: 0, want: true},
		{name: "duplicate", m: OptionMapping{0, 0, 1}, n: 3},
		{name: "out of range", m: OptionMapping{0, 3, 1}, n: 3},
		{name: "negative", m: OptionMapping{-1, 0}, n: 2},
		{name: "too short", m: OptionMapping{1, 0}, n: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.Valid(tt.n); got != tt.want {
				t.Errorf("Valid(%d) = %v, want %v", tt.n, got, tt.want)
			}
		})
	}
}

func TestQuestionRandomization_Resolve(t *testing.T) {
	opts := []Option{{ID: uuid.New()}, {ID: uuid.New()}, {ID: uuid.New()}}
	planned := QuestionRandomization{
		IsRandomized: true,
		Mapping:      OptionMapping{2, 0, 1},
		OptionIDs:    OptionIDs(opts),
	}

	tests := []struct {
		name    string
		r       QuestionRandomization
		options []Option
		want    OptionMapping
		wantOK  bool
	}{
		{name: "unchanged", r: planned, options: opts, want: OptionMapping{2, 0, 1}, wantOK: true},
		{
			name:    "reordered",
			r:       planned,
			options: []Option{opts[1], opts[2], opts[0]},
			// displayed 0 showed opts[2], now at index 1
			want:   OptionMapping{1, 2, 0},
			wantOK: true,
		},
		{name: "option removed", r: planned, options: opts[:2], want: Identity(2)},
		{name: "option replaced", r: planned, options: []Option{opts[0], {ID: uuid.New()}, opts[2]}, want: Identity(3)},
		{name: "not randomized", r: QuestionRandomization{}, options: opts, want: Identity(3), wantOK: true},
		{
			name:    "without snapshot",
			r:       QuestionRandomization{IsRandomized: true, Mapping: OptionMapping{1, 2, 0}},
			options: opts,
			want:    OptionMapping{1, 2, 0},
			wantOK:  true,
		},
		{
			name:    "without snapshot and wrong length",
			r:       QuestionRandomization{IsRandomized: true, Mapping: OptionMapping{1, 0}},
			options: opts,
			want:    Identity(3),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.r.Resolve(tt.options)
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("mapping = %v, want %v", got, tt.want)
			}
		})
	}
}
