package service

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/semuinside/exam-backend/internal/config"
)

// DeadlineIndex tracks open sessions in a Redis sorted set scored by deadline,
// so any instance can find sessions whose time ran out.
type DeadlineIndex struct {
	rdb *redis.Client
}

// NewDeadlineIndex creates a new DeadlineIndex.
func NewDeadlineIndex(rdb *redis.Client) *DeadlineIndex {
	return &DeadlineIndex{rdb: rdb}
}

// Track records the deadline of an open session.
func (d *DeadlineIndex) Track(ctx context.Context, sessionID uuid.UUID, deadline time.Time) error {
	return d.rdb.ZAdd(ctx, config.CacheKey.ExamDeadlinesKey(), redis.Z{
		Score:  deadlineScore(deadline),
		Member: sessionID.String(),
	}).Err()
}

// deadlineScore keeps millisecond precision so a session is never due before
// its deadline.
func deadlineScore(deadline time.Time) float64 {
	ms := deadline.UnixMilli()
	if deadline.Sub(time.UnixMilli(ms)) > 0 {
		ms++
	}
	return float64(ms)
}

// Untrack forgets a session.
func (d *DeadlineIndex) Untrack(ctx context.Context, sessionID uuid.UUID) error {
	return d.rdb.ZRem(ctx, config.CacheKey.ExamDeadlinesKey(), sessionID.String()).Err()
}

// Due returns sessions whose deadline is at or before now.
func (d *DeadlineIndex) Due(ctx context.Context, now time.Time, limit int64) ([]uuid.UUID, error) {
	members, err := d.rdb.ZRangeByScore(ctx, config.CacheKey.ExamDeadlinesKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			d.rdb.ZRem(ctx, config.CacheKey.ExamDeadlinesKey(), m)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Claim removes a session from the index and reports whether this caller removed it.
// Only the claiming instance submits the session.
func (d *DeadlineIndex) Claim(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	n, err := d.rdb.ZRem(ctx, config.CacheKey.ExamDeadlinesKey(), sessionID.String()).Result()
	return n == 1, err
}
