package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/semuinside/exam-backend/internal/model"
)

// Options tunes a runner. Zero values fall back to production defaults.
type Options struct {
	WarningSeconds   int
	AutosaveInterval time.Duration
	TextDebounce     time.Duration
	ExpirySubmitWait time.Duration

	Now       func() time.Time
	NewTicker func(time.Duration) Ticker
	Logger    zerolog.Logger
}

func (o *Options) withDefaults() {
	if o.WarningSeconds == 0 {
		o.WarningSeconds = 300
	}
	if o.AutosaveInterval == 0 {
		o.AutosaveInterval = 30 * time.Second
	}
	if o.TextDebounce == 0 {
		o.TextDebounce = time.Second
	}
	if o.ExpirySubmitWait == 0 {
		o.ExpirySubmitWait = 30 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewTicker == nil {
		o.NewTicker = NewRealTicker
	}
}

// Snapshot is the externally visible state of a runner.
type Snapshot struct {
	SessionID        uuid.UUID               `json:"session_id"`
	ExamID           uuid.UUID               `json:"exam_id"`
	State            SubmitState             `json:"state"`
	RemainingSeconds int                     `json:"remaining_seconds"`
	Answered         int                     `json:"answered_count"`
	Unanswered       int                     `json:"unanswered_count"`
	GuardArmed       bool                    `json:"guard_armed"`
	LastSavedAt      *time.Time              `json:"last_saved_at,omitempty"`
	AutosaveError    string                  `json:"autosave_error,omitempty"`
	SubmitError      string                  `json:"submit_error,omitempty"`
	Answers          map[string]any          `json:"answers"`
	Result           *model.SubmissionResult `json:"result,omitempty"`
}

// ExamSessionRunner owns the clock, the answers, the autosave loop and the
// submission coordinator of one session.
type ExamSessionRunner struct {
	opts    Options
	log     zerolog.Logger
	exam    *model.ExamDefinition
	session *model.ExamSession
	store   Store

	clock    *Clock
	answers  *AnswerStore
	autosave *AutoSaveScheduler
	coord    *SubmissionCoordinator

	mu            sync.Mutex
	started       bool
	closed        bool
	randomization model.SessionRandomization
	debouncers    map[uuid.UUID]*Debouncer[string]
	lastSavedAt   *time.Time
	autosaveErr   error
	subscribers   map[int]chan Event
	nextSub       int
	hooks         []func(Event)
}

// New builds a runner for a session that has not been finished yet.
// restored holds answers already persisted for the session.
func New(exam *model.ExamDefinition, session *model.ExamSession, store Store, restored []model.AnswerRecord, opts Options) *ExamSessionRunner {
	opts.withDefaults()
	r := &ExamSessionRunner{
		opts:    opts,
		exam:    exam,
		session: session,
		store:   store,
		log: opts.Logger.With().
			Str("component", "exam_runner").
			Str("session_id", session.ID.String()).
			Logger(),
		randomization: session.Randomization,
		debouncers:    make(map[uuid.UUID]*Debouncer[string]),
		subscribers:   make(map[int]chan Event),
	}

	r.clock = NewClock(opts.WarningSeconds, opts.Now, opts.NewTicker)
	r.answers = NewAnswerStore(opts.Now)
	r.answers.Restore(restored)
	r.autosave = NewAutoSaveScheduler(opts.NewTicker, r.onAutosave)
	r.coord = NewSubmissionCoordinator(session, exam, r.currentRandomization, r.answers, store, SubmitHooks{
		StopClock:    r.clock.Stop,
		StopAutosave: r.autosave.StopPeriodic,
		FlushPending: r.flushDebounced,
		OnState:      r.onSubmitState,
	}, opts.Now)
	return r
}

// SessionID returns the id of the session being run.
func (r *ExamSessionRunner) SessionID() uuid.UUID { return r.session.ID }

// ExamID returns the id of the exam being taken.
func (r *ExamSessionRunner) ExamID() uuid.UUID { return r.exam.ID }

// RespondentID returns the owner of the session.
func (r *ExamSessionRunner) RespondentID() uuid.UUID { return r.session.RespondentID }

// Deadline returns when the session's time runs out.
func (r *ExamSessionRunner) Deadline() time.Time { return r.session.Deadline(r.exam) }

// QuestionType reports the type of a question of this exam.
func (r *ExamSessionRunner) QuestionType(questionID uuid.UUID) (model.QuestionType, bool) {
	q, ok := r.exam.Question(questionID)
	if !ok {
		return "", false
	}
	return q.Type, true
}

// OnEvent registers a hook that receives every event synchronously.
// Hooks must be registered before Start.
func (r *ExamSessionRunner) OnEvent(fn func(Event)) {
	r.mu.Lock()
	r.hooks = append(r.hooks, fn)
	r.mu.Unlock()
}

// Start persists the option order of every question before anything is shown,
// then starts the countdown from the time left on the session and the autosave loop.
// A session whose time already ran out is submitted straight away.
func (r *ExamSessionRunner) Start(ctx context.Context) error {
	if r.session.Status.Finished() {
		return ErrSessionFinished
	}

	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrRunnerAlreadyStart
	}
	existing := r.randomization
	r.mu.Unlock()

	planned := PlanRandomization(r.exam, NewOptionRandomizer(r.session.ID), existing)
	if len(planned) > 0 {
		stored, err := r.store.SaveRandomization(ctx, r.session.ID, planned)
		if err != nil {
			return fmt.Errorf("save randomization: %w", err)
		}
		existing = stored
	}

	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrRunnerAlreadyStart
	}
	r.started = true
	r.randomization = existing
	r.mu.Unlock()
	r.checkRandomization(existing)

	remaining := r.session.RemainingSeconds(r.exam, r.opts.Now())
	r.log.Info().
		Int("remaining_seconds", remaining).
		Int("restored_answers", len(r.answers.All())).
		Msg("Exam session started")

	r.emit(Event{Type: EventStarted, Remaining: &remaining})

	r.autosave.StartPeriodic(r.opts.AutosaveInterval, r.flushDirty)
	r.clock.Start(remaining, ClockCallbacks{
		OnTick: func(left int) {
			r.emit(Event{Type: EventTick, Remaining: &left})
		},
		OnWarning: func(threshold int) {
			r.emit(Event{Type: EventWarning, Threshold: threshold})
		},
		OnExpire: r.expire,
	})
	return nil
}

// ResumeGrading finishes a session that was persisted as submitted but never
// graded, typically after a restart during submission. Answers stay locked and
// no clock runs. When grading fails again the runner remains in StateFailed.
func (r *ExamSessionRunner) ResumeGrading(ctx context.Context) (*model.SubmissionResult, error) {
	if r.session.Status != model.SessionStatusSubmitted {
		return nil, ErrNotFailed
	}

	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return nil, ErrRunnerAlreadyStart
	}
	r.started = true
	r.mu.Unlock()

	r.checkRandomization(r.currentRandomization())
	r.log.Info().Msg("Resuming interrupted submission")
	r.coord.resumeFailed(r.session.SubmittedAt, model.SubmitTriggerSweep)
	return r.coord.Retry(ctx)
}

// Paper renders the exam in this session's option order. Correctness is omitted.
func (r *ExamSessionRunner) Paper() model.Paper {
	rnd := r.currentRandomization()
	paper := model.Paper{
		ExamID:          r.exam.ID,
		Title:           r.exam.Title,
		Description:     r.exam.Description,
		DurationMinutes: r.exam.DurationMinutes,
		TotalPoints:     r.exam.TotalPoints(),
		Questions:       make([]model.PaperQuestion, 0, len(r.exam.Questions)),
	}
	for i := range r.exam.Questions {
		q := &r.exam.Questions[i]
		pq := model.PaperQuestion{
			ID:           q.ID,
			Number:       i + 1,
			Type:         q.Type,
			Content:      q.Content,
			GroupTitle:   q.GroupTitle,
			GroupContent: q.GroupContent,
			Points:       q.Points,
			Unusable:     !q.Usable(),
		}
		if q.Type.IsChoice() {
			mapping := rnd[q.ID.String()].MappingFor(q.Options)
			for d, opt := range DisplayOrder(q.Options, mapping) {
				pq.Options = append(pq.Options, model.PaperOption{Index: d, Content: opt.Content})
			}
		}
		paper.Questions = append(paper.Questions, pq)
	}
	return paper
}

// OnAnswerChanged records a choice or text answer immediately.
func (r *ExamSessionRunner) OnAnswerChanged(questionID uuid.UUID, value model.AnswerValue) error {
	q, err := r.answerable(questionID)
	if err != nil {
		return err
	}
	if err := value.Validate(q); err != nil {
		return err
	}
	if q.Type == model.QuestionTypeFreeText {
		r.debouncer(questionID).Cancel()
	}
	return r.answers.Set(questionID, value)
}

// OnTextChanged records free text after it stops changing for the debounce delay.
func (r *ExamSessionRunner) OnTextChanged(questionID uuid.UUID, text string) error {
	q, err := r.answerable(questionID)
	if err != nil {
		return err
	}
	if err := model.TextAnswer(text).Validate(q); err != nil {
		return err
	}
	r.debouncer(questionID).Trigger(text)
	return nil
}

// OnSubmitRequested submits on behalf of the respondent.
func (r *ExamSessionRunner) OnSubmitRequested(ctx context.Context) (*model.SubmissionResult, error) {
	if !r.isStarted() {
		return nil, ErrRunnerNotStarted
	}
	return r.coord.Submit(ctx, model.SubmitTriggerUser)
}

// SubmitExpired submits a session whose deadline passed without the clock
// firing, for example after a restart.
func (r *ExamSessionRunner) SubmitExpired(ctx context.Context) (*model.SubmissionResult, error) {
	return r.coord.Submit(ctx, model.SubmitTriggerSweep)
}

// Retry re-runs a failed submission.
func (r *ExamSessionRunner) Retry(ctx context.Context) (*model.SubmissionResult, error) {
	return r.coord.Retry(ctx)
}

// State reports the submission state.
func (r *ExamSessionRunner) State() SubmitState { return r.coord.State() }

// Result returns the submission result once submitted.
func (r *ExamSessionRunner) Result() *model.SubmissionResult { return r.coord.Result() }

// Remaining returns seconds left on the clock.
func (r *ExamSessionRunner) Remaining() int {
	if r.coord.State() == StateSubmitted {
		return 0
	}
	return r.session.RemainingSeconds(r.exam, r.opts.Now())
}

// Unanswered counts questions without a non-empty answer.
func (r *ExamSessionRunner) Unanswered() int {
	ids := make([]uuid.UUID, 0, len(r.exam.Questions))
	for _, q := range r.exam.Questions {
		ids = append(ids, q.ID)
	}
	return r.answers.Unanswered(ids)
}

// LeaveGuardArmed reports whether leaving should ask for confirmation.
// The guard stays armed until the session is submitted.
func (r *ExamSessionRunner) LeaveGuardArmed() bool {
	return r.coord.State() != StateSubmitted
}

// OnLeaveRequested reports whether leaving must be confirmed and records the attempt.
func (r *ExamSessionRunner) OnLeaveRequested() bool {
	armed := r.LeaveGuardArmed()
	if armed {
		r.emit(Event{Type: EventLeaveBlocked, GuardArmed: &armed})
	}
	return armed
}

// Snapshot returns the full state used to redraw a client.
func (r *ExamSessionRunner) Snapshot() Snapshot {
	state := r.coord.State()
	unanswered := r.Unanswered()
	s := Snapshot{
		SessionID:        r.session.ID,
		ExamID:           r.exam.ID,
		State:            state,
		RemainingSeconds: r.Remaining(),
		Answered:         len(r.exam.Questions) - unanswered,
		Unanswered:       unanswered,
		GuardArmed:       state != StateSubmitted,
		Answers:          make(map[string]any),
		Result:           r.coord.Result(),
	}
	for _, rec := range r.answers.All() {
		if !rec.Value.Empty() {
			s.Answers[rec.QuestionID.String()] = rec.Value
		}
	}

	r.mu.Lock()
	if r.lastSavedAt != nil {
		at := *r.lastSavedAt
		s.LastSavedAt = &at
	}
	if r.autosaveErr != nil {
		s.AutosaveError = r.autosaveErr.Error()
	}
	r.mu.Unlock()

	if err := r.coord.LastError(); err != nil && state == StateFailed {
		s.SubmitError = err.Error()
	}
	return s
}

// Subscribe returns a channel of events and a function that unsubscribes.
// Slow subscribers miss events instead of blocking the runner.
func (r *ExamSessionRunner) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subscribers[id] = ch
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			if _, ok := r.subscribers[id]; ok {
				delete(r.subscribers, id)
				close(ch)
			}
			r.mu.Unlock()
		})
	}
}

// Close stops the clock and autosave. Pending answers of an unfinished session
// are flushed once on a best-effort basis.
func (r *ExamSessionRunner) Close(ctx context.Context) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.clock.Stop()
	r.autosave.StopPeriodic()

	if r.coord.State() == StateActive {
		r.flushDebounced()
		if err := r.flushDirty(ctx); err != nil {
			r.log.Warn().Err(err).Msg("Failed to flush answers on close")
		}
	}

	r.mu.Lock()
	for id, ch := range r.subscribers {
		delete(r.subscribers, id)
		close(ch)
	}
	r.mu.Unlock()
}

func (r *ExamSessionRunner) isStarted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

func (r *ExamSessionRunner) answerable(questionID uuid.UUID) (*model.QuestionRef, error) {
	if !r.isStarted() {
		return nil, ErrRunnerNotStarted
	}
	q, ok := r.exam.Question(questionID)
	if !ok {
		return nil, ErrUnknownQuestion
	}
	if !q.Usable() {
		return nil, ErrQuestionUnusable
	}
	if r.coord.State() != StateActive {
		return nil, ErrInputLocked
	}
	return q, nil
}

// checkRandomization warns about stored option orders that no longer fit the
// question's options and returns how many there are.
func (r *ExamSessionRunner) checkRandomization(rnd model.SessionRandomization) int {
	stale := 0
	for i := range r.exam.Questions {
		q := &r.exam.Questions[i]
		entry, ok := rnd[q.ID.String()]
		if !ok || !entry.IsRandomized {
			continue
		}
		if _, ok := entry.Resolve(q.Options); !ok {
			stale++
			r.log.Warn().
				Str("question_id", q.ID.String()).
				Int("options", len(q.Options)).
				Int("stored_options", len(entry.Mapping)).
				Msg("Stored option order does not match the question, showing authored order")
		}
	}
	return stale
}

func (r *ExamSessionRunner) currentRandomization() model.SessionRandomization {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.randomization
}

func (r *ExamSessionRunner) debouncer(questionID uuid.UUID) *Debouncer[string] {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.debouncers[questionID]
	if !ok {
		d = NewDebouncer(r.opts.TextDebounce, func(text string) {
			if err := r.answers.Set(questionID, model.TextAnswer(text)); err != nil {
				r.log.Warn().Err(err).Str("question_id", questionID.String()).Msg("Dropped debounced text")
			}
		})
		r.debouncers[questionID] = d
	}
	return d
}

func (r *ExamSessionRunner) flushDebounced() {
	r.mu.Lock()
	pending := make([]*Debouncer[string], 0, len(r.debouncers))
	for _, d := range r.debouncers {
		pending = append(pending, d)
	}
	r.mu.Unlock()

	for _, d := range pending {
		d.Flush()
	}
}

func (r *ExamSessionRunner) flushDirty(ctx context.Context) error {
	dirty := r.answers.AllDirty()
	if len(dirty) == 0 {
		return nil
	}
	if err := r.store.UpsertAnswers(ctx, r.session.ID, dirty); err != nil {
		return err
	}
	r.answers.MarkClean(dirty)
	return nil
}

func (r *ExamSessionRunner) onAutosave(err error) {
	r.mu.Lock()
	if err != nil {
		r.autosaveErr = err
	} else {
		at := r.opts.Now()
		r.lastSavedAt = &at
		r.autosaveErr = nil
	}
	r.mu.Unlock()

	if err != nil {
		r.log.Warn().Err(err).Msg("Autosave failed, will retry on next tick")
		r.emit(Event{Type: EventAutosaveFailed, Error: err.Error()})
		return
	}
	r.emit(Event{Type: EventAutosaved})
}

func (r *ExamSessionRunner) expire() {
	r.log.Info().Msg("Exam time expired, submitting")
	zero := 0
	r.emit(Event{Type: EventExpired, Remaining: &zero})

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.ExpirySubmitWait)
	defer cancel()
	if _, err := r.coord.Submit(ctx, model.SubmitTriggerExpiry); err != nil && !errors.Is(err, ErrAlreadySubmitted) && !errors.Is(err, ErrAlreadySubmitting) {
		r.log.Error().Err(err).Msg("Automatic submission failed")
	}
}

func (r *ExamSessionRunner) onSubmitState(state SubmitState, res *model.SubmissionResult, err error) {
	switch state {
	case StateSubmitting:
		r.emit(Event{Type: EventSubmitting})
	case StateFailed:
		r.log.Error().Err(err).Msg("Submission failed")
		r.emit(Event{Type: EventSubmitFailed, Error: err.Error()})
	case StateSubmitted:
		r.log.Info().
			Int("score", res.Score).
			Int("total_points", res.TotalPoints).
			Str("trigger", string(res.Trigger)).
			Msg("Exam session graded")
		armed := false
		r.emit(Event{Type: EventGraded, Result: res})
		r.emit(Event{Type: EventGuard, GuardArmed: &armed})
	}
}

func (r *ExamSessionRunner) emit(ev Event) {
	ev.SessionID = r.session.ID
	ev.ExamID = r.exam.ID
	ev.RespondentID = r.session.RespondentID
	if ev.At.IsZero() {
		ev.At = r.opts.Now()
	}

	r.mu.Lock()
	hooks := r.hooks
	for _, ch := range r.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
	r.mu.Unlock()

	for _, h := range hooks {
		h(ev)
	}
}
