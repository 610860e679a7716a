package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/semuinside/exam-backend/internal/config"
	"github.com/semuinside/exam-backend/internal/handler"
	"github.com/semuinside/exam-backend/internal/middleware"
	"github.com/semuinside/exam-backend/internal/response"
	"github.com/semuinside/exam-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	WS      *handler.WSHandler
	Monitor *handler.MonitorHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(response.RequestLogger(log))
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)

	// Per respondent: answers arrive at typing speed, submits should not.
	answerLimiter := middleware.NewRateLimiter(120, time.Minute)
	submitLimiter := middleware.NewRateLimiter(10, time.Minute)

	// ─── 1. Respondent API (JWT) ───────────────────────────────────────
	api := router.Group("/api/v1")
	api.Use(middleware.RequireJWT(authService), middleware.NoStore())
	{
		api.POST("/exams/:exam_id/sessions", submitLimiter.Middleware(), handlers.Session.StartSession)

		session := api.Group("/sessions/:session_id")
		session.Use(middleware.SessionParam())
		{
			session.GET("/state", handlers.Session.GetState)
			session.GET("/unanswered", handlers.Session.GetUnanswered)
			session.PUT("/answers/:question_id", answerLimiter.Middleware(), handlers.Session.SetAnswer)
			session.POST("/submit", submitLimiter.Middleware(), handlers.Session.Submit)
			session.POST("/leave", handlers.Session.Leave)
			session.GET("/result", handlers.Session.GetResult)
		}
	}

	// ─── 2. WebSocket (token in query) ─────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(authService))
	{
		ws.GET("/sessions/:session_id/stream", middleware.SessionParam(), handlers.WS.SessionStream)
	}

	// ─── 3. Admin API (JWT + admin role) ───────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireJWT(authService), middleware.RequireAdmin())
	{
		adminAPI.GET("/exams/:exam_id/monitor", handlers.Monitor.MonitorExamSSE)
		adminAPI.DELETE("/exams/:exam_id/cache", handlers.Monitor.InvalidateExamCache)
		adminAPI.GET("/sessions/:session_id/events", handlers.Monitor.SessionEvents)
		adminAPI.GET("/system/metrics", handlers.System.Metrics)
	}

	return router
}
