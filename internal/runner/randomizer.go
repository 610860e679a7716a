package runner

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/semuinside/exam-backend/internal/model"
)

// OptionRandomizer shuffles option order deterministically per session.
type OptionRandomizer struct {
	rng *rand.Rand
}

// NewOptionRandomizer seeds a randomizer from the session id, so the same
// session always produces the same sequence of shuffles.
func NewOptionRandomizer(sessionID uuid.UUID) *OptionRandomizer {
	h := sha256.Sum256(sessionID[:])
	s1 := binary.LittleEndian.Uint64(h[:8])
	s2 := binary.LittleEndian.Uint64(h[8:16])
	return &OptionRandomizer{rng: rand.New(rand.NewPCG(s1, s2))}
}

// Randomize returns the options in displayed order together with the mapping
// displayed → canonical. Zero or one option is returned in identity order.
func (r *OptionRandomizer) Randomize(canonical []model.Option) ([]model.Option, model.OptionMapping) {
	mapping := model.Identity(len(canonical))
	if len(canonical) > 1 {
		// Fisher–Yates
		for i := len(mapping) - 1; i > 0; i-- {
			j := r.rng.IntN(i + 1)
			mapping[i], mapping[j] = mapping[j], mapping[i]
		}
	}
	return DisplayOrder(canonical, mapping), mapping
}

// DisplayOrder arranges canonical options by mapping.
func DisplayOrder(canonical []model.Option, mapping model.OptionMapping) []model.Option {
	out := make([]model.Option, len(mapping))
	for d, c := range mapping {
		out[d] = canonical[c]
	}
	return out
}

// Invert returns the canonical → displayed mapping.
func Invert(mapping model.OptionMapping) []int {
	inv := make([]int, len(mapping))
	for d, c := range mapping {
		inv[c] = d
	}
	return inv
}

// PlanRandomization computes a display order for every choice question that has
// none in existing. Existing entries are never replaced.
func PlanRandomization(exam *model.ExamDefinition, r *OptionRandomizer, existing model.SessionRandomization) model.SessionRandomization {
	planned := model.SessionRandomization{}
	for i := range exam.Questions {
		q := &exam.Questions[i]
		key := q.ID.String()
		if _, ok := existing[key]; ok {
			continue
		}
		if !q.Type.IsChoice() || len(q.Options) < 2 || !exam.ShuffleOptions {
			planned[key] = model.QuestionRandomization{IsRandomized: false, Mapping: model.Identity(len(q.Options))}
			continue
		}
		_, mapping := r.Randomize(q.Options)
		planned[key] = model.QuestionRandomization{
			IsRandomized: true,
			Mapping:      mapping,
			OptionIDs:    model.OptionIDs(q.Options),
		}
	}
	return planned
}
