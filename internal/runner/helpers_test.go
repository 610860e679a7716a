package runner

import (
	"context"
	"errors"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/semuinside/exam-backend/internal/model"
)

type manualTicker struct {
	ch chan time.Time
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time)}
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               {}

// tickers hands out manual tickers keyed by their interval.
type tickers struct {
	mu      sync.Mutex
	created map[time.Duration]chan *manualTicker
}

func newTickers() *tickers {
	return &tickers{created: make(map[time.Duration]chan *manualTicker)}
}

func (ts *tickers) chanFor(d time.Duration) chan *manualTicker {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ch, ok := ts.created[d]
	if !ok {
		ch = make(chan *manualTicker, 4)
		ts.created[d] = ch
	}
	return ch
}

func (ts *tickers) New(d time.Duration) Ticker {
	t := newManualTicker()
	ts.chanFor(d) <- t
	return t
}

func (ts *tickers) wait(t *testing.T, d time.Duration) *manualTicker {
	t.Helper()
	select {
	case mt := <-ts.chanFor(d):
		return mt
	case <-time.After(2 * time.Second):
		t.Fatalf("no ticker created for %s", d)
		return nil
	}
}

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

var errStoreDown = errors.New("store unavailable")

type fakeStore struct {
	mu sync.Mutex

	randomization model.SessionRandomization
	answers       map[uuid.UUID]model.AnswerRecord
	graded        map[uuid.UUID]model.GradedAnswer
	submittedAt   []time.Time
	durations     []int
	score, total  int
	finalized     int
	upserts       int

	failUpserts  int
	failFinalize int

	// markEntered and markRelease let a test hold MarkSubmitted open.
	markEntered chan struct{}
	markRelease chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		randomization: model.SessionRandomization{},
		answers:       make(map[uuid.UUID]model.AnswerRecord),
		graded:        make(map[uuid.UUID]model.GradedAnswer),
	}
}

func (s *fakeStore) SaveRandomization(_ context.Context, _ uuid.UUID, planned model.SessionRandomization) (model.SessionRandomization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range planned {
		if _, ok := s.randomization[k]; !ok {
			s.randomization[k] = v
		}
	}
	return maps.Clone(s.randomization), nil
}

func (s *fakeStore) UpsertAnswers(_ context.Context, _ uuid.UUID, records []model.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpserts > 0 {
		s.failUpserts--
		return errStoreDown
	}
	s.upserts++
	for _, r := range records {
		if cur, ok := s.answers[r.QuestionID]; ok && cur.Revision >= r.Revision {
			continue
		}
		s.answers[r.QuestionID] = r
	}
	return nil
}

func (s *fakeStore) MarkSubmitted(_ context.Context, _ uuid.UUID, at time.Time, minutes int) error {
	if s.markEntered != nil {
		s.markEntered <- struct{}{}
		<-s.markRelease
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submittedAt = append(s.submittedAt, at)
	s.durations = append(s.durations, minutes)
	return nil
}

func (s *fakeStore) UpsertGradedAnswers(_ context.Context, _ uuid.UUID, graded []model.GradedAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range graded {
		s.graded[g.QuestionID] = g
	}
	return nil
}

func (s *fakeStore) FinalizeScore(_ context.Context, _ uuid.UUID, score, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFinalize > 0 {
		s.failFinalize--
		return errStoreDown
	}
	s.score, s.total = score, total
	s.finalized++
	return nil
}

func (s *fakeStore) answer(id uuid.UUID) (model.AnswerRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.answers[id]
	return r, ok
}

func options(n int, correct ...int) []model.Option {
	out := make([]model.Option, n)
	for i := range out {
		out[i] = model.Option{ID: uuid.New(), Content: string(rune('A' + i))}
	}
	for _, c := range correct {
		out[c].IsCorrect = true
	}
	return out
}

// testExam has a single-choice, a multi-choice and a free-text question
// worth 10, 20 and 30 points.
func testExam() *model.ExamDefinition {
	return &model.ExamDefinition{
		ID:              uuid.New(),
		Title:           "Tax accounting mock",
		DurationMinutes: 60,
		PassingScore:    60,
		ShuffleOptions:  true,
		Questions: []model.QuestionRef{
			{ID: uuid.New(), Type: model.QuestionTypeSingleChoice, Content: "q1", Points: 10, OrderIndex: 1, Options: options(4, 1)},
			{ID: uuid.New(), Type: model.QuestionTypeMultiChoice, Content: "q2", Points: 20, OrderIndex: 2, Options: options(3, 0, 2)},
			{ID: uuid.New(), Type: model.QuestionTypeFreeText, Content: "q3", Points: 30, OrderIndex: 3},
		},
	}
}

func testSession(exam *model.ExamDefinition, startedAt time.Time) *model.ExamSession {
	return &model.ExamSession{
		ID:            uuid.New(),
		ExamID:        exam.ID,
		RespondentID:  uuid.New(),
		Status:        model.SessionStatusInProgress,
		StartedAt:     startedAt,
		Randomization: model.SessionRandomization{},
	}
}

func waitEvent(t *testing.T, ch <-chan Event, want EventType) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed before %s", want)
			}
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}
