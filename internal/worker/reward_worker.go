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

// MaxRewardAttempts bounds deliveries of one graded result before it is dropped.
const MaxRewardAttempts = 5

type rewardSender interface {
	Enabled() bool
	Send(ctx context.Context, req model.RewardRequest) error
}

// RewardWorker consumes point_reward_queue and posts graded results to the
// reward service. Delivery failures never touch the graded session.
type RewardWorker struct {
	rdb    *redis.Client
	sender rewardSender
	log    zerolog.Logger
}

// NewRewardWorker creates a new RewardWorker.
func NewRewardWorker(rdb *redis.Client, sender rewardSender, log zerolog.Logger) *RewardWorker {
	return &RewardWorker{
		rdb:    rdb,
		sender: sender,
		log:    log.With().Str("component", "reward_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *RewardWorker) Start(ctx context.Context) {
	if !w.sender.Enabled() {
		w.log.Info().Msg("Reward webhook not configured, worker idle")
		<-ctx.Done()
		return
	}
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *RewardWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PointRewardQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error, sleeping 3s")
			time.Sleep(3 * time.Second)
		}
		return
	}
	if len(result) < 2 {
		return
	}

	retry, err := w.deliver(ctx, []byte(result[1]))
	if err == nil {
		return
	}
	if retry == nil {
		return
	}
	if err := w.rdb.RPush(context.Background(), config.WorkerKey.PointRewardQueue, retry).Err(); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue reward")
	}
	time.Sleep(2 * time.Second)
}

// deliver sends one queued item. On failure it returns the payload to requeue,
// or nil when the item is malformed or exhausted its attempts.
func (w *RewardWorker) deliver(ctx context.Context, raw []byte) ([]byte, error) {
	var req model.RewardRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		w.log.Error().Err(err).Str("data", string(raw)).Msg("Discarding malformed reward payload")
		return nil, err
	}

	err := w.sender.Send(ctx, req)
	if err == nil {
		w.log.Info().
			Str("session_id", req.SessionID.String()).
			Int("score", req.Score).
			Msg("Reward delivered")
		return nil, nil
	}

	req.Attempts++
	logEvt := w.log.Warn().Err(err).
		Str("session_id", req.SessionID.String()).
		Int("attempts", req.Attempts)
	if req.Attempts >= MaxRewardAttempts {
		logEvt.Msg("Dropping reward after repeated failures")
		return nil, err
	}
	logEvt.Msg("Reward delivery failed, requeueing")

	retry, merr := json.Marshal(req)
	if merr != nil {
		return nil, err
	}
	return retry, err
}

// drain delivers what is left before shutdown, stopping at the first failure.
func (w *RewardWorker) drain(ctx context.Context) {
	drainCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	drained := 0
	for drainCtx.Err() == nil {
		raw, err := w.rdb.LPop(drainCtx, config.WorkerKey.PointRewardQueue).Bytes()
		if err != nil {
			break
		}
		retry, err := w.deliver(drainCtx, raw)
		if err != nil {
			if retry != nil {
				w.rdb.RPush(context.Background(), config.WorkerKey.PointRewardQueue, retry)
				break
			}
			continue
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining rewards")
	}
}
