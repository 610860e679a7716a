package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/semuinside/exam-backend/internal/config"
	"github.com/semuinside/exam-backend/internal/database"
	"github.com/semuinside/exam-backend/internal/response"
	"github.com/semuinside/exam-backend/internal/service"
)

const healthTimeout = 2 * time.Second

// SystemHandler reports liveness and runtime metrics.
type SystemHandler struct {
	pool           *pgxpool.Pool
	rdb            *redis.Client
	sessionService *service.ExamSessionService
	startTime      time.Time
	log            zerolog.Logger
}

func NewSystemHandler(pool *pgxpool.Pool, rdb *redis.Client, sessionService *service.ExamSessionService, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		pool:           pool,
		rdb:            rdb,
		sessionService: sessionService,
		startTime:      time.Now(),
		log:            log.With().Str("component", "system_handler").Logger(),
	}
}

// Health godoc
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	health := database.Check(ctx, h.pool, h.rdb)
	if !health.OK() {
		h.log.Warn().Str("postgres", health.Postgres).Str("redis", health.Redis).Msg("Health check failed")
		response.FailWithData(c, http.StatusServiceUnavailable, response.ErrServiceUnavailable, health)
		return
	}
	response.Success(c, http.StatusOK, health)
}

type systemMetrics struct {
	Uptime         string `json:"uptime"`
	GoVersion      string `json:"go_version"`
	NumCPU         int    `json:"num_cpu"`
	Goroutines     int    `json:"goroutines"`
	HeapAlloc      uint64 `json:"heap_alloc"`
	HeapSys        uint64 `json:"heap_sys"`
	NumGC          uint32 `json:"num_gc"`
	DBConns        int32  `json:"db_conns"`
	DBIdleConns    int32  `json:"db_idle_conns"`
	ActiveRunners  int    `json:"active_runners"`
	TrackedExpiry  int64  `json:"tracked_deadlines"`
	QueueRewards   int64  `json:"queue_rewards"`
	QueueEvents    int64  `json:"queue_events"`
	QueueAvailable bool   `json:"queue_available"`
}

// Metrics godoc
// GET /api/v1/admin/system/metrics
func (h *SystemHandler) Metrics(c *gin.Context) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	stat := h.pool.Stat()

	m := systemMetrics{
		Uptime:        formatDuration(time.Since(h.startTime)),
		GoVersion:     runtime.Version(),
		NumCPU:        runtime.NumCPU(),
		Goroutines:    runtime.NumGoroutine(),
		HeapAlloc:     ms.HeapAlloc,
		HeapSys:       ms.Sys,
		NumGC:         ms.NumGC,
		DBConns:       stat.TotalConns(),
		DBIdleConns:   stat.IdleConns(),
		ActiveRunners: h.sessionService.Active(),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()
	pipe := h.rdb.Pipeline()
	deadlines := pipe.ZCard(ctx, config.CacheKey.ExamDeadlinesKey())
	rewards := pipe.LLen(ctx, config.WorkerKey.PointRewardQueue)
	events := pipe.LLen(ctx, config.WorkerKey.SessionEventsQueue)
	if _, err := pipe.Exec(ctx); err == nil {
		m.QueueAvailable = true
		m.TrackedExpiry = deadlines.Val()
		m.QueueRewards = rewards.Val()
		m.QueueEvents = events.Val()
	}

	response.Success(c, http.StatusOK, m)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, mins, secs)
	}
	return fmt.Sprintf("%dm %ds", mins, secs)
}
