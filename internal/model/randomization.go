package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// OptionMapping maps a displayed option position to its canonical position:
// mapping[displayed] = canonical.
type OptionMapping []int

// Identity returns the mapping that leaves n options in authored order.
func Identity(n int) OptionMapping {
	m := make(OptionMapping, n)
	for i := range m {
		m[i] = i
	}
	return m
}

// Valid reports whether m is a permutation of 0..n-1.
func (m OptionMapping) Valid(n int) bool {
	if len(m) != n {
		return false
	}
	seen := make([]bool, n)
	for _, c := range m {
		if c < 0 || c >= n || seen[c] {
			return false
		}
		seen[c] = true
	}
	return true
}

// Canonical returns the canonical index shown at displayed position d.
func (m OptionMapping) Canonical(d int) (int, bool) {
	if d < 0 || d >= len(m) {
		return 0, false
	}
	return m[d], true
}

// Displayed returns the displayed position of canonical index c.
func (m OptionMapping) Displayed(c int) (int, bool) {
	for d, v := range m {
		if v == c {
			return d, true
		}
	}
	return 0, false
}

// QuestionRandomization is the persisted display order of one question.
// OptionIDs records the canonical options the mapping was planned against.
type QuestionRandomization struct {
	IsRandomized bool          `json:"isRandomized"`
	Mapping      OptionMapping `json:"originalToNewMapping"`
	OptionIDs    []uuid.UUID   `json:"optionIds,omitempty"`
}

// MappingFor returns the mapping to use for a question's current options.
// Missing or corrupt entries fall back to the identity order.
func (r QuestionRandomization) MappingFor(options []Option) OptionMapping {
	m, _ := r.Resolve(options)
	return m
}

// Resolve maps the stored order onto the current options and reports whether
// it still applies. Options that were only reordered since planning keep the
// order the respondent saw. Added or removed options fall back to identity
// and report false.
func (r QuestionRandomization) Resolve(options []Option) (OptionMapping, bool) {
	n := len(options)
	if !r.IsRandomized {
		return Identity(n), true
	}
	if len(r.OptionIDs) == 0 {
		if r.Mapping.Valid(n) {
			return r.Mapping, true
		}
		return Identity(n), false
	}
	if len(r.OptionIDs) != n || !r.Mapping.Valid(n) {
		return Identity(n), false
	}

	current := make(map[uuid.UUID]int, n)
	for i, o := range options {
		current[o.ID] = i
	}
	out := make(OptionMapping, n)
	for d, c := range r.Mapping {
		idx, ok := current[r.OptionIDs[c]]
		if !ok {
			return Identity(n), false
		}
		out[d] = idx
	}
	if !out.Valid(n) {
		return Identity(n), false
	}
	return out, true
}

// OptionIDs lists option ids in canonical order.
func OptionIDs(options []Option) []uuid.UUID {
	ids := make([]uuid.UUID, len(options))
	for i, o := range options {
		ids[i] = o.ID
	}
	return ids
}

// SessionRandomization holds every question's display order for one session,
// keyed by question id.
type SessionRandomization map[string]QuestionRandomization

// Value implements driver.Valuer so the map is stored as JSONB.
func (s SessionRandomization) Value() (driver.Value, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *SessionRandomization) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = SessionRandomization{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan randomization: unsupported type %T", src)
	}
	out := SessionRandomization{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return errors.Join(errors.New("scan randomization"), err)
		}
	}
	*s = out
	return nil
}
