package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/semuinside/exam-backend/internal/grading"
	"github.com/semuinside/exam-backend/internal/model"
)

// SubmitState is the submission state machine.
//
//	active → submitting → submitted
//	              ↓   ↑
//	             failed
type SubmitState string

const (
	StateActive     SubmitState = "active"
	StateSubmitting SubmitState = "submitting"
	StateSubmitted  SubmitState = "submitted"
	StateFailed     SubmitState = "failed"
)

// SubmitHooks let the owner of a coordinator stop the moving parts before any
// write happens. Every hook may be nil.
type SubmitHooks struct {
	StopClock    func()
	StopAutosave func()
	FlushPending func()
	OnState      func(state SubmitState, result *model.SubmissionResult, err error)
}

// SubmissionCoordinator runs terminal submission at most once per session.
// A failed step leaves the session in StateFailed and Retry resumes from the
// start; every write is an upsert so repeated steps are harmless.
type SubmissionCoordinator struct {
	mu      sync.Mutex
	state   SubmitState
	trigger model.SubmitTrigger
	result  *model.SubmissionResult
	lastErr error

	session       *model.ExamSession
	exam          *model.ExamDefinition
	randomization func() model.SessionRandomization
	answers       *AnswerStore
	store         Store
	hooks         SubmitHooks
	now           func() time.Time

	submittedAt *time.Time
}

// NewSubmissionCoordinator builds a coordinator in StateActive.
func NewSubmissionCoordinator(
	session *model.ExamSession,
	exam *model.ExamDefinition,
	randomization func() model.SessionRandomization,
	answers *AnswerStore,
	store Store,
	hooks SubmitHooks,
	now func() time.Time,
) *SubmissionCoordinator {
	if now == nil {
		now = time.Now
	}
	return &SubmissionCoordinator{
		state:         StateActive,
		session:       session,
		exam:          exam,
		randomization: randomization,
		answers:       answers,
		store:         store,
		hooks:         hooks,
		now:           now,
	}
}

// State returns the current state.
func (c *SubmissionCoordinator) State() SubmitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Result returns the submission result once submitted.
func (c *SubmissionCoordinator) Result() *model.SubmissionResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// LastError returns the error that moved the coordinator to StateFailed.
func (c *SubmissionCoordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Submit runs the submission. A call while another submission is running returns
// ErrAlreadySubmitting; a call after success returns the stored result together
// with ErrAlreadySubmitted.
func (c *SubmissionCoordinator) Submit(ctx context.Context, trigger model.SubmitTrigger) (*model.SubmissionResult, error) {
	c.mu.Lock()
	switch c.state {
	case StateSubmitting:
		c.mu.Unlock()
		return nil, ErrAlreadySubmitting
	case StateSubmitted:
		res := c.result
		c.mu.Unlock()
		return res, ErrAlreadySubmitted
	}
	first := c.state == StateActive
	if first {
		c.trigger = trigger
	}
	c.state = StateSubmitting
	c.lastErr = nil
	c.mu.Unlock()

	c.notify(StateSubmitting, nil, nil)

	if first {
		c.freeze()
	}

	res, err := c.run(ctx)

	c.mu.Lock()
	if err != nil {
		c.state = StateFailed
		c.lastErr = err
	} else {
		c.state = StateSubmitted
		c.result = res
	}
	state := c.state
	c.mu.Unlock()

	c.notify(state, res, err)
	return res, err
}

// Retry re-runs a failed submission with its original trigger.
func (c *SubmissionCoordinator) Retry(ctx context.Context) (*model.SubmissionResult, error) {
	c.mu.Lock()
	if c.state != StateFailed {
		c.mu.Unlock()
		return nil, ErrNotFailed
	}
	trigger := c.trigger
	c.mu.Unlock()
	return c.Submit(ctx, trigger)
}

// resumeFailed puts a coordinator built for an interrupted submission into the
// failed state so that Retry finishes it. submittedAt keeps the persisted time.
func (c *SubmissionCoordinator) resumeFailed(submittedAt *time.Time, trigger model.SubmitTrigger) {
	c.answers.Lock()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateFailed
	c.trigger = trigger
	c.lastErr = ErrSubmissionInterrupted
	if submittedAt != nil {
		at := *submittedAt
		c.submittedAt = &at
	}
}

// freeze stops the clock and autosave, delivers any debounced text and then
// locks input. Runs only on the first attempt.
func (c *SubmissionCoordinator) freeze() {
	if c.hooks.StopClock != nil {
		c.hooks.StopClock()
	}
	if c.hooks.StopAutosave != nil {
		c.hooks.StopAutosave()
	}
	if c.hooks.FlushPending != nil {
		c.hooks.FlushPending()
	}
	c.answers.Lock()
}

func (c *SubmissionCoordinator) run(ctx context.Context) (*model.SubmissionResult, error) {
	sessionID := c.session.ID

	dirty := c.answers.AllDirty()
	if len(dirty) > 0 {
		if err := c.store.UpsertAnswers(ctx, sessionID, dirty); err != nil {
			return nil, fmt.Errorf("flush answers: %w", err)
		}
		c.answers.MarkClean(dirty)
	}

	if c.submittedAt == nil {
		at := c.now()
		c.submittedAt = &at
	}
	submittedAt := *c.submittedAt
	duration := model.ElapsedMinutes(c.session.StartedAt, submittedAt)
	if err := c.store.MarkSubmitted(ctx, sessionID, submittedAt, duration); err != nil {
		return nil, fmt.Errorf("mark submitted: %w", err)
	}

	res := &model.SubmissionResult{
		SessionID:       sessionID,
		ExamID:          c.exam.ID,
		RespondentID:    c.session.RespondentID,
		Trigger:         c.trigger,
		TotalPoints:     c.exam.TotalPoints(),
		PassingScore:    c.exam.PassingScore,
		SubmittedAt:     submittedAt,
		DurationMinutes: duration,
	}

	graded := c.grade(res)
	if err := c.store.UpsertGradedAnswers(ctx, sessionID, graded); err != nil {
		return nil, fmt.Errorf("save grades: %w", err)
	}

	if err := c.store.FinalizeScore(ctx, sessionID, res.Score, res.TotalPoints); err != nil {
		return nil, fmt.Errorf("finalize score: %w", err)
	}

	res.Percentage = model.Percent(res.Score, res.TotalPoints)
	res.Passed = res.TotalPoints > 0 && res.Percentage >= float64(res.PassingScore)
	return res, nil
}

// grade scores every question and fills the counters of res. Only choice
// questions produce graded rows; free text waits for manual review.
func (c *SubmissionCoordinator) grade(res *model.SubmissionResult) []model.GradedAnswer {
	rnd := c.randomization()
	graded := make([]model.GradedAnswer, 0, len(c.exam.Questions))

	for i := range c.exam.Questions {
		q := &c.exam.Questions[i]

		var answer *model.AnswerValue
		if v, ok := c.answers.Get(q.ID); ok && !v.Empty() {
			answer = &v
			res.AnsweredCount++
		} else {
			res.Unanswered++
		}

		mapping := rnd[q.ID.String()].MappingFor(q.Options)
		r := grading.Grade(q, mapping, answer, q.Points)

		switch r.Outcome {
		case grading.OutcomePendingReview:
			res.PendingReview++
			continue
		case grading.OutcomeCorrect:
			res.CorrectCount++
		}
		res.Score += r.Points
		graded = append(graded, model.GradedAnswer{QuestionID: q.ID, IsCorrect: r.IsCorrect, Points: r.Points})
	}
	return graded
}

func (c *SubmissionCoordinator) notify(state SubmitState, res *model.SubmissionResult, err error) {
	if c.hooks.OnState != nil {
		c.hooks.OnState(state, res, err)
	}
}
