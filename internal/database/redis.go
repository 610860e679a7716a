package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/semuinside/exam-backend/internal/config"
)

// NewRedisClient creates and validates a Redis client connection.
func NewRedisClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opt)

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().
		Str("addr", opt.Addr).
		Int("db", opt.DB).
		Msg("Redis connected")

	return rdb, nil
}

// Health reports the reachability of both backing stores.
type Health struct {
	Postgres string `json:"postgres"`
	Redis    string `json:"redis"`
}

// OK reports whether every dependency answered.
func (h Health) OK() bool { return h.Postgres == "up" && h.Redis == "up" }

// Check pings PostgreSQL and Redis with the given context.
func Check(ctx context.Context, pool *pgxpool.Pool, rdb *redis.Client) Health {
	h := Health{Postgres: "up", Redis: "up"}
	if err := pool.Ping(ctx); err != nil {
		h.Postgres = "down"
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		h.Redis = "down"
	}
	return h
}
