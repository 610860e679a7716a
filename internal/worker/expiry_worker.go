package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/semuinside/exam-backend/internal/repository"
)

const (
	sweepBatch     = 100
	reconcileBatch = 500
	expireTimeout  = 45 * time.Second
)

type deadlineIndex interface {
	Due(ctx context.Context, now time.Time, limit int64) ([]uuid.UUID, error)
	Claim(ctx context.Context, sessionID uuid.UUID) (bool, error)
	Track(ctx context.Context, sessionID uuid.UUID, deadline time.Time) error
}

type overdueLister interface {
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]repository.OverdueSession, error)
}

type sessionExpirer interface {
	ExpireSession(ctx context.Context, sessionID uuid.UUID) error
}

// ExpiryWorker submits sessions whose deadline passed while nobody was
// running them, such as after a browser closed or the server restarted.
type ExpiryWorker struct {
	deadlines deadlineIndex
	sessions  overdueLister
	expirer   sessionExpirer
	sweep     time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewExpiryWorker creates a new ExpiryWorker.
func NewExpiryWorker(deadlines deadlineIndex, sessions overdueLister, expirer sessionExpirer, sweep time.Duration, log zerolog.Logger) *ExpiryWorker {
	if sweep < time.Second {
		sweep = 10 * time.Second
	}
	return &ExpiryWorker{
		deadlines: deadlines,
		sessions:  sessions,
		expirer:   expirer,
		sweep:     sweep,
		now:       time.Now,
		log:       log.With().Str("component", "expiry_worker").Logger(),
	}
}

// Start schedules the Redis sweep and the PostgreSQL reconcile and blocks until
// ctx is cancelled, then waits for running jobs.
func (w *ExpiryWorker) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	if _, err := c.AddFunc(fmt.Sprintf("@every %s", w.sweep), func() { w.Sweep(ctx) }); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	if _, err := c.AddFunc("@every 5m", func() { w.Reconcile(ctx) }); err != nil {
		return fmt.Errorf("schedule reconcile: %w", err)
	}

	w.Reconcile(ctx)
	c.Start()
	w.log.Info().Dur("sweep", w.sweep).Msg("Worker started")

	<-ctx.Done()
	<-c.Stop().Done()
	w.log.Info().Msg("Worker stopped")
	return nil
}

// Sweep expires every indexed session whose deadline passed. A session is
// handled by whichever instance claims it first.
func (w *ExpiryWorker) Sweep(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	due, err := w.deadlines.Due(ctx, w.now(), sweepBatch)
	if err != nil {
		w.log.Error().Err(err).Msg("Failed to read due sessions")
		return 0
	}

	expired := 0
	for _, id := range due {
		claimed, err := w.deadlines.Claim(ctx, id)
		if err != nil {
			w.log.Error().Err(err).Str("session_id", id.String()).Msg("Failed to claim session")
			continue
		}
		if !claimed {
			continue
		}
		if w.expire(ctx, id) {
			expired++
		}
	}
	if expired > 0 {
		w.log.Info().Int("count", expired).Msg("Expired overdue sessions")
	}
	return expired
}

// Reconcile re-indexes overdue in-progress sessions that are missing from Redis,
// for example after a cache flush. The next sweep picks them up.
func (w *ExpiryWorker) Reconcile(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	overdue, err := w.sessions.ListOverdue(ctx, w.now(), reconcileBatch)
	if err != nil {
		w.log.Error().Err(err).Msg("Failed to list overdue sessions")
		return 0
	}

	for _, s := range overdue {
		if err := w.deadlines.Track(ctx, s.SessionID, s.Deadline); err != nil {
			w.log.Warn().Err(err).Str("session_id", s.SessionID.String()).Msg("Failed to index overdue session")
		}
	}
	if len(overdue) > 0 {
		w.log.Info().Int("count", len(overdue)).Msg("Re-indexed overdue sessions")
	}
	return len(overdue)
}

func (w *ExpiryWorker) expire(ctx context.Context, id uuid.UUID) bool {
	expCtx, cancel := context.WithTimeout(ctx, expireTimeout)
	defer cancel()

	if err := w.expirer.ExpireSession(expCtx, id); err != nil {
		w.log.Error().Err(err).Str("session_id", id.String()).Msg("Failed to expire session, will retry")
		// Back into the index so a later sweep tries again.
		if terr := w.deadlines.Track(ctx, id, w.now()); terr != nil {
			w.log.Error().Err(terr).Str("session_id", id.String()).Msg("Failed to re-index session")
		}
		return false
	}
	return true
}
