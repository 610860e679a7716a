package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/semuinside/exam-backend/internal/model"
	"github.com/semuinside/exam-backend/internal/repository"
	"github.com/semuinside/exam-backend/internal/runner"
)

// Domain Errors
var (
	ErrSessionNotFound = errors.New("exam session not found")
	ErrNotSessionOwner = errors.New("session belongs to another respondent")
	ErrResultNotReady  = errors.New("session has not been graded yet")
)

// evictAfter keeps a finished runner around so that late readers still see its result.
const evictAfter = 2 * time.Minute

// StartedSession is returned when a respondent opens an exam.
type StartedSession struct {
	Session  *model.ExamSession `json:"session"`
	Paper    model.Paper        `json:"paper"`
	State    runner.Snapshot    `json:"state"`
	Resumed  bool               `json:"resumed"`
	Deadline time.Time          `json:"deadline"`
}

type deadlineTracker interface {
	Track(ctx context.Context, sessionID uuid.UUID, deadline time.Time) error
	Untrack(ctx context.Context, sessionID uuid.UUID) error
}

type sessionLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
	GetOpen(ctx context.Context, examID, respondentID uuid.UUID) (*model.ExamSession, error)
	CreateOrGetOpen(ctx context.Context, examID, respondentID uuid.UUID) (*model.ExamSession, bool, error)
}

type runnerEntry struct {
	ready  chan struct{}
	runner *runner.ExamSessionRunner
	err    error
}

// ExamSessionService owns one runner per open session and routes respondent
// actions to it. Runners are created on start or lazily on the first request
// after a restart.
type ExamSessionService struct {
	exams     *ExamService
	sessions  sessionLookup
	answers   *repository.AnswerRepository
	store     *SessionStore
	deadlines deadlineTracker
	publisher *EventPublisher
	opts      runner.Options
	log       zerolog.Logger

	mu      sync.Mutex
	runners map[uuid.UUID]*runnerEntry
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	exams *ExamService,
	sessions *repository.ExamSessionRepository,
	answers *repository.AnswerRepository,
	store *SessionStore,
	deadlines *DeadlineIndex,
	publisher *EventPublisher,
	opts runner.Options,
	log zerolog.Logger,
) *ExamSessionService {
	opts.Logger = log
	return &ExamSessionService{
		exams:     exams,
		sessions:  sessions,
		answers:   answers,
		store:     store,
		deadlines: deadlines,
		publisher: publisher,
		opts:      opts,
		log:       log.With().Str("component", "exam_session_service").Logger(),
		runners:   make(map[uuid.UUID]*runnerEntry),
	}
}

// StartOrResume opens the respondent's in-progress attempt or creates a new one.
func (s *ExamSessionService) StartOrResume(ctx context.Context, examID, respondentID uuid.UUID) (*StartedSession, error) {
	exam, err := s.exams.GetDefinition(ctx, examID)
	if err != nil {
		return nil, err
	}

	session, created, err := s.openSession(ctx, exam, respondentID)
	if err != nil {
		return nil, err
	}

	rn, err := s.attach(ctx, exam, session)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("session_id", session.ID.String()).
		Str("exam_id", examID.String()).
		Bool("resumed", !created).
		Msg("Session opened")

	return &StartedSession{
		Session:  session,
		Paper:    rn.Paper(),
		State:    rn.Snapshot(),
		Resumed:  !created,
		Deadline: rn.Deadline(),
	}, nil
}

// Runner returns the live runner of a session owned by respondentID, resuming it
// if this process has none. A graded session returns runner.ErrSessionFinished;
// one left submitted but ungraded gets its grading resumed.
func (s *ExamSessionService) Runner(ctx context.Context, sessionID, respondentID uuid.UUID) (*runner.ExamSessionRunner, error) {
	if rn := s.live(sessionID); rn != nil {
		if rn.RespondentID() != respondentID {
			return nil, ErrNotSessionOwner
		}
		return rn, nil
	}

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.RespondentID != respondentID {
		return nil, ErrNotSessionOwner
	}
	if session.Status == model.SessionStatusGraded {
		return nil, runner.ErrSessionFinished
	}

	exam, err := s.exams.GetDefinition(ctx, session.ExamID)
	if err != nil {
		return nil, err
	}
	return s.attach(ctx, exam, session)
}

// Result returns the graded result of a session, from the live runner when there
// is one and from PostgreSQL otherwise.
func (s *ExamSessionService) Result(ctx context.Context, sessionID, respondentID uuid.UUID) (*model.SubmissionResult, error) {
	if rn := s.live(sessionID); rn != nil {
		if rn.RespondentID() != respondentID {
			return nil, ErrNotSessionOwner
		}
		if res := rn.Result(); res != nil {
			return res, nil
		}
		return nil, ErrResultNotReady
	}

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.RespondentID != respondentID {
		return nil, ErrNotSessionOwner
	}
	if session.Status != model.SessionStatusGraded || session.Score == nil || session.TotalPoints == nil {
		return nil, ErrResultNotReady
	}

	exam, err := s.exams.GetDefinition(ctx, session.ExamID)
	if err != nil {
		return nil, err
	}
	summary, err := s.answers.SummarizeGrades(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("summarize grades: %w", err)
	}
	return buildStoredResult(session, exam, summary), nil
}

// ExpireSession submits a session whose deadline passed, whether or not this
// process is running it. Graded sessions are ignored.
func (s *ExamSessionService) ExpireSession(ctx context.Context, sessionID uuid.UUID) error {
	rn := s.live(sessionID)
	if rn == nil {
		session, err := s.getSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.Status == model.SessionStatusGraded {
			return nil
		}
		exam, err := s.exams.GetDefinition(ctx, session.ExamID)
		if err != nil {
			return err
		}
		rn, err = s.attach(ctx, exam, session)
		if err != nil {
			return err
		}
	}

	// The runner's own clock decides. A sweep can run ahead of it by a fraction
	// of a second, so the session goes back into the index instead.
	if rn.State() == runner.StateActive && rn.Remaining() > 0 {
		s.log.Debug().
			Str("session_id", sessionID.String()).
			Int("remaining_seconds", rn.Remaining()).
			Msg("Expiry sweep ahead of session clock")
		return s.deadlines.Track(ctx, sessionID, rn.Deadline())
	}

	_, err := rn.SubmitExpired(ctx)
	switch {
	case err == nil, errors.Is(err, runner.ErrAlreadySubmitted), errors.Is(err, runner.ErrAlreadySubmitting):
		return nil
	case rn.State() == runner.StateFailed:
		_, err = rn.Retry(ctx)
	}
	return err
}

// Active returns the number of live runners.
func (s *ExamSessionService) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runners)
}

// Shutdown closes every runner, flushing unsaved answers of open sessions.
// Their deadlines stay indexed so the expiry sweep finishes them later.
func (s *ExamSessionService) Shutdown(ctx context.Context) {
	s.mu.Lock()
	entries := make([]*runnerEntry, 0, len(s.runners))
	for id, e := range s.runners {
		entries = append(entries, e)
		delete(s.runners, id)
	}
	s.mu.Unlock()

	for _, e := range entries {
		<-e.ready
		if e.runner != nil {
			e.runner.Close(ctx)
		}
	}
	s.log.Info().Int("count", len(entries)).Msg("Runners closed")
}

func (s *ExamSessionService) live(sessionID uuid.UUID) *runner.ExamSessionRunner {
	s.mu.Lock()
	e, ok := s.runners[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	<-e.ready
	return e.runner
}

// attach returns the runner of a session, creating and starting it exactly once.
func (s *ExamSessionService) attach(ctx context.Context, exam *model.ExamDefinition, session *model.ExamSession) (*runner.ExamSessionRunner, error) {
	s.mu.Lock()
	if e, ok := s.runners[session.ID]; ok {
		s.mu.Unlock()
		<-e.ready
		return e.runner, e.err
	}
	e := &runnerEntry{ready: make(chan struct{})}
	s.runners[session.ID] = e
	s.mu.Unlock()

	e.runner, e.err = s.build(ctx, exam, session)
	if e.err != nil {
		s.mu.Lock()
		delete(s.runners, session.ID)
		s.mu.Unlock()
	}
	close(e.ready)
	return e.runner, e.err
}

func (s *ExamSessionService) build(ctx context.Context, exam *model.ExamDefinition, session *model.ExamSession) (*runner.ExamSessionRunner, error) {
	restored, err := s.store.LoadAnswers(ctx, session.ID, exam)
	if err != nil {
		return nil, err
	}

	rn := runner.New(exam, session, s.store, restored, s.opts)
	rn.OnEvent(s.publisher.Handle)
	rn.OnEvent(func(ev runner.Event) { s.onRunnerEvent(rn, ev) })

	if session.Status == model.SessionStatusSubmitted {
		if _, err := rn.ResumeGrading(ctx); err != nil {
			s.log.Warn().Err(err).Str("session_id", session.ID.String()).Msg("Resumed grading failed")
		}
		return rn, nil
	}

	if err := s.deadlines.Track(ctx, session.ID, rn.Deadline()); err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID.String()).Msg("Failed to index session deadline")
	}
	if err := rn.Start(ctx); err != nil {
		return nil, fmt.Errorf("start runner: %w", err)
	}
	return rn, nil
}

func (s *ExamSessionService) onRunnerEvent(rn *runner.ExamSessionRunner, ev runner.Event) {
	if ev.Type != runner.EventGraded {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.deadlines.Untrack(ctx, ev.SessionID); err != nil {
		s.log.Warn().Err(err).Str("session_id", ev.SessionID.String()).Msg("Failed to drop session deadline")
	}

	time.AfterFunc(evictAfter, func() {
		s.mu.Lock()
		e, ok := s.runners[ev.SessionID]
		if ok && e.runner == rn {
			delete(s.runners, ev.SessionID)
		}
		s.mu.Unlock()
		rn.Close(context.Background())
	})
}

// openSession creates an attempt on a published exam. Once an exam is
// unpublished only an attempt already in progress can be resumed.
func (s *ExamSessionService) openSession(ctx context.Context, exam *model.ExamDefinition, respondentID uuid.UUID) (*model.ExamSession, bool, error) {
	if exam.Published {
		session, created, err := s.sessions.CreateOrGetOpen(ctx, exam.ID, respondentID)
		if err != nil {
			return nil, false, fmt.Errorf("open session: %w", err)
		}
		return session, created, nil
	}

	session, err := s.sessions.GetOpen(ctx, exam.ID, respondentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrExamNotFound
		}
		return nil, false, fmt.Errorf("open session: %w", err)
	}
	return session, false, nil
}

func (s *ExamSessionService) getSession(ctx context.Context, sessionID uuid.UUID) (*model.ExamSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// buildStoredResult reconstructs a result from persisted rows.
func buildStoredResult(session *model.ExamSession, exam *model.ExamDefinition, summary repository.GradeSummary) *model.SubmissionResult {
	res := &model.SubmissionResult{
		SessionID:    session.ID,
		ExamID:       session.ExamID,
		RespondentID: session.RespondentID,
		Score:        *session.Score,
		TotalPoints:  *session.TotalPoints,
		PassingScore: exam.PassingScore,
		CorrectCount: summary.Correct,
	}
	for _, q := range exam.Questions {
		if q.Type == model.QuestionTypeFreeText {
			res.PendingReview++
		}
	}
	if session.SubmittedAt != nil {
		res.SubmittedAt = *session.SubmittedAt
	}
	if session.DurationMinutes != nil {
		res.DurationMinutes = *session.DurationMinutes
	}
	res.Percentage = model.Percent(res.Score, res.TotalPoints)
	res.Passed = res.TotalPoints > 0 && res.Percentage >= float64(res.PassingScore)
	return res
}
