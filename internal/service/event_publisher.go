package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/semuinside/exam-backend/internal/config"
	"github.com/semuinside/exam-backend/internal/model"
	"github.com/semuinside/exam-backend/internal/runner"
)

const publishTimeout = 2 * time.Second

// EventPublisher fans lifecycle events of every runner out to the admin monitor
// channel and the event log queue, and queues the reward hand-off once a session
// is graded. Ticks never leave the process.
type EventPublisher struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewEventPublisher creates a new EventPublisher.
func NewEventPublisher(rdb *redis.Client, log zerolog.Logger) *EventPublisher {
	return &EventPublisher{
		rdb: rdb,
		log: log.With().Str("component", "event_publisher").Logger(),
	}
}

// Handle is registered as a runner hook.
func (p *EventPublisher) Handle(ev runner.Event) {
	if !ev.Type.Lifecycle() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.Error().Err(err).Str("event", string(ev.Type)).Msg("Failed to encode event")
		return
	}

	record, err := json.Marshal(model.SessionEventRecord{
		SessionID:    ev.SessionID,
		ExamID:       ev.ExamID,
		RespondentID: ev.RespondentID,
		Type:         string(ev.Type),
		Payload:      payload,
		OccurredAt:   ev.At,
	})
	if err != nil {
		return
	}

	pipe := p.rdb.Pipeline()
	pipe.Publish(ctx, config.CacheKey.ExamMonitorChannel(ev.ExamID), payload)
	pipe.RPush(ctx, config.WorkerKey.SessionEventsQueue, record)

	if ev.Type == runner.EventGraded && ev.Result != nil {
		reward, _ := json.Marshal(model.RewardRequest{
			SessionID:    ev.SessionID,
			ExamID:       ev.ExamID,
			RespondentID: ev.RespondentID,
			Score:        ev.Result.Score,
			TotalPoints:  ev.Result.TotalPoints,
			Passed:       ev.Result.Passed,
			GradedAt:     ev.At,
		})
		pipe.RPush(ctx, config.WorkerKey.PointRewardQueue, reward)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		p.log.Warn().Err(err).
			Str("session_id", ev.SessionID.String()).
			Str("event", string(ev.Type)).
			Msg("Failed to publish session event")
	}
}
