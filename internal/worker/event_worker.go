package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/semuinside/exam-backend/internal/config"
	"github.com/semuinside/exam-backend/internal/model"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

type eventStore interface {
	CopyBatch(ctx context.Context, events []model.SessionEventRecord) (int64, error)
	Insert(ctx context.Context, e model.SessionEventRecord) error
}

// EventWorker batches session_events_queue into exam_session_events.
type EventWorker struct {
	store eventStore
	rdb   *redis.Client
	log   zerolog.Logger
}

// NewEventWorker creates a new EventWorker.
func NewEventWorker(store eventStore, rdb *redis.Client, log zerolog.Logger) *EventWorker {
	return &EventWorker{
		store: store,
		rdb:   rdb,
		log:   log.With().Str("component", "event_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *EventWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	buffer := make([]model.SessionEventRecord, 0, BatchSize)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 && (len(buffer) >= BatchSize || time.Since(lastFlush) >= BatchTimeout) {
			w.flush(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.SessionEventsQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var rec model.SessionEventRecord
		if err := json.Unmarshal([]byte(result[1]), &rec); err != nil {
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed event")
			continue
		}
		buffer = append(buffer, rec)
	}
}

func (w *EventWorker) flush(ctx context.Context, batch []model.SessionEventRecord) {
	if failed := w.persist(ctx, batch); len(failed) > 0 {
		w.requeue(failed)
	}
}

// persist bulk-copies the batch and falls back to row-by-row inserts.
// It returns the events that could not be stored.
func (w *EventWorker) persist(ctx context.Context, batch []model.SessionEventRecord) []model.SessionEventRecord {
	_, err := w.store.CopyBatch(ctx, batch)
	if err == nil {
		return nil
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk copy failed, inserting row by row")

	var failed []model.SessionEventRecord
	for _, e := range batch {
		if err := w.store.Insert(ctx, e); err != nil {
			w.log.Error().Err(err).
				Str("session_id", e.SessionID.String()).
				Str("event", e.Type).
				Msg("Insert failed, requeueing")
			failed = append(failed, e)
		}
	}
	return failed
}

func (w *EventWorker) requeue(items []model.SessionEventRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pipe := w.rdb.Pipeline()
	for _, e := range items {
		data, _ := json.Marshal(e)
		pipe.RPush(ctx, config.WorkerKey.SessionEventsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue events. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed events")
	time.Sleep(2 * time.Second)
}

func (w *EventWorker) shutdown(buffer []model.SessionEventRecord) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if len(buffer) > 0 {
		w.flush(ctx, buffer)
	}
	w.log.Info().Msg("Worker stopped")
}
