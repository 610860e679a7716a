package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/semuinside/exam-backend/internal/config"
	"github.com/semuinside/exam-backend/internal/database"
	"github.com/semuinside/exam-backend/internal/handler"
	"github.com/semuinside/exam-backend/internal/logger"
	"github.com/semuinside/exam-backend/internal/repository"
	"github.com/semuinside/exam-backend/internal/router"
	"github.com/semuinside/exam-backend/internal/runner"
	"github.com/semuinside/exam-backend/internal/service"
	"github.com/semuinside/exam-backend/internal/validator"
	"github.com/semuinside/exam-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting exam session backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	examRepo := repository.NewExamRepository(pool)
	sessionRepo := repository.NewExamSessionRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	eventRepo := repository.NewEventRepository(pool)
	monitorRepo := repository.NewMonitorRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	examService := service.NewExamService(examRepo, rdb, cfg.ExamCacheTTL, log)
	sessionStore := service.NewSessionStore(sessionRepo, answerRepo, log)
	deadlines := service.NewDeadlineIndex(rdb)
	publisher := service.NewEventPublisher(rdb, log)
	rewardClient := service.NewRewardClient(cfg.RewardWebhookURL, cfg.RewardWebhookTimeout)

	sessionService := service.NewExamSessionService(
		examService,
		sessionRepo,
		answerRepo,
		sessionStore,
		deadlines,
		publisher,
		runner.Options{
			WarningSeconds:   int(cfg.ExamWarning.Seconds()),
			AutosaveInterval: cfg.AutosaveInterval,
			TextDebounce:     cfg.TextDebounce,
		},
		log,
	)
	monitorService := service.NewMonitorService(monitorRepo, eventRepo, examService)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(sessionService, log),
		WS:      handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
		Monitor: handler.NewMonitorHandler(rdb, examService, monitorService, log),
		System:  handler.NewSystemHandler(pool, rdb, sessionService, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	expiryWorker := worker.NewExpiryWorker(deadlines, sessionRepo, sessionService, cfg.ExpirySweep, log)
	rewardWorker := worker.NewRewardWorker(rdb, rewardClient, log)
	eventWorker := worker.NewEventWorker(eventRepo, rdb, log)

	workers.Add(3)
	go func() {
		defer workers.Done()
		if err := expiryWorker.Start(workerCtx); err != nil {
			log.Error().Err(err).Msg("Expiry worker failed to start")
		}
	}()
	go func() {
		defer workers.Done()
		rewardWorker.Start(workerCtx)
	}()
	go func() {
		defer workers.Done()
		eventWorker.Start(workerCtx)
	}()

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Published exams are cached before traffic so the first wave of starts
	// does not hit PostgreSQL all at once.
	if err := examService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests. Streams are cut by the runner close below.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Close runners so unsaved answers reach PostgreSQL.
	runnerCtx, runnerCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer runnerCancel()
	sessionService.Shutdown(runnerCtx)

	// 3. Stop background workers and wait for queues to drain.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
