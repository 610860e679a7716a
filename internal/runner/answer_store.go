package runner

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/semuinside/exam-backend/internal/model"
)

type answerEntry struct {
	value    model.AnswerValue
	revision int64
	dirty    bool
	savedAt  time.Time
}

// AnswerStore is the in-memory source of truth for a session's answers.
// Content is not validated here.
type AnswerStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[uuid.UUID]*answerEntry
	locked  bool
}

// NewAnswerStore creates an empty store.
func NewAnswerStore(now func() time.Time) *AnswerStore {
	if now == nil {
		now = time.Now
	}
	return &AnswerStore{now: now, entries: make(map[uuid.UUID]*answerEntry)}
}

// Restore loads previously persisted answers as clean entries.
func (s *AnswerStore) Restore(records []model.AnswerRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		e, ok := s.entries[r.QuestionID]
		if ok && e.revision >= r.Revision {
			continue
		}
		s.entries[r.QuestionID] = &answerEntry{value: r.Value, revision: r.Revision, savedAt: r.SavedAt}
	}
}

// Set overwrites the answer for a question and marks it dirty.
func (s *AnswerStore) Set(questionID uuid.UUID, value model.AnswerValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked {
		return ErrInputLocked
	}
	e, ok := s.entries[questionID]
	if !ok {
		e = &answerEntry{}
		s.entries[questionID] = e
	}
	e.value = value
	e.revision++
	e.dirty = true
	e.savedAt = s.now()
	return nil
}

// Get returns the current answer for a question.
func (s *AnswerStore) Get(questionID uuid.UUID) (model.AnswerValue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[questionID]
	if !ok {
		return model.AnswerValue{}, false
	}
	return e.value, true
}

// AllDirty snapshots every entry changed since it was last marked clean.
func (s *AnswerStore) AllDirty() []model.AnswerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AnswerRecord
	for id, e := range s.entries {
		if e.dirty {
			out = append(out, model.AnswerRecord{QuestionID: id, Value: e.value, Revision: e.revision, SavedAt: e.savedAt})
		}
	}
	return out
}

// All snapshots every answer regardless of dirty state.
func (s *AnswerStore) All() []model.AnswerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AnswerRecord, 0, len(s.entries))
	for id, e := range s.entries {
		out = append(out, model.AnswerRecord{QuestionID: id, Value: e.value, Revision: e.revision, SavedAt: e.savedAt})
	}
	return out
}

// MarkClean clears the dirty flag of the given records. An entry changed after
// the snapshot was taken keeps its flag so the newer value is saved next time.
func (s *AnswerStore) MarkClean(records []model.AnswerRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if e, ok := s.entries[r.QuestionID]; ok && e.revision == r.Revision {
			e.dirty = false
		}
	}
}

// Lock rejects every later Set. Used once submission begins.
func (s *AnswerStore) Lock() {
	s.mu.Lock()
	s.locked = true
	s.mu.Unlock()
}

// Answered reports whether a non-empty answer exists for the question.
func (s *AnswerStore) Answered(questionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[questionID]
	return ok && !e.value.Empty()
}

// Unanswered counts questions in ids with no non-empty answer.
func (s *AnswerStore) Unanswered(ids []uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, id := range ids {
		if e, ok := s.entries[id]; !ok || e.value.Empty() {
			n++
		}
	}
	return n
}
