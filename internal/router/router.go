package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/quizforge/quizforge-backend/internal/config"
	"github.com/quizforge/quizforge-backend/internal/handler"
	"github.com/quizforge/quizforge-backend/internal/middleware"
	"github.com/quizforge/quizforge-backend/internal/model"
	"github.com/quizforge/quizforge-backend/internal/response"
	"github.com/rs/zerolog"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	QuizSession *handler.QuizSessionHandler
	Attempt     *handler.AttemptHandler
	Leaderboard *handler.LeaderboardHandler
	AdminQuiz   *handler.AdminQuizHandler
	WS          *handler.WSHandler
	Metrics     *handler.MetricsHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	auth middleware.TokenValidator,
	limiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
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

	// Request ID first so every response and log line carries it.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))

	// The metrics stream is SSE and must not be buffered.
	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		Skipper: func(c *gin.Context) bool {
			return strings.HasSuffix(c.Request.URL.Path, "/system/metrics")
		},
	}))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Student Group (JWT + Rate Limit) ───────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireJWT(auth),
		middleware.RequireRole(model.RoleStudent),
		limiter.Middleware(),
	)
	{
		studentAPI.GET("/quizzes", handlers.QuizSession.ListQuizzes)

		session := studentAPI.Group("/quizzes/:quiz_id/session")
		session.Use(middleware.NoStore())
		{
			session.POST("", handlers.QuizSession.StartSession)
			session.GET("", handlers.QuizSession.GetSession)
			session.PUT("/answers", handlers.QuizSession.RecordAnswer)
			session.POST("/submit", handlers.QuizSession.Submit)
		}

		studentAPI.GET("/attempts", handlers.Attempt.ListMine)
		studentAPI.GET("/attempts/:attempt_id", handlers.Attempt.Get)
	}

	// ─── 2. Shared Group (any signed-in role) ──────────────────────────
	sharedAPI := router.Group("/api/v1")
	sharedAPI.Use(
		middleware.RequireJWT(auth),
		middleware.RequireRole(model.RoleStudent, model.RoleAdmin),
		limiter.Middleware(),
	)
	{
		sharedAPI.GET("/quizzes/:quiz_id/leaderboard",
			middleware.CacheControl(5),
			handlers.Leaderboard.Get,
		)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireWSAuth(auth),
		middleware.RequireRole(model.RoleStudent),
	)
	{
		ws.GET("/student/quizzes/:quiz_id/stream", handlers.WS.QuizStream)
	}

	// ─── 4. Admin Group (JWT + Role) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(
		middleware.RequireJWT(auth),
		middleware.RequireRole(model.RoleAdmin),
	)
	{
		adminAPI.GET("/quizzes", handlers.AdminQuiz.ListQuizzes)
		adminAPI.POST("/quizzes", handlers.AdminQuiz.CreateQuiz)
		adminAPI.GET("/quizzes/:id", handlers.AdminQuiz.GetQuiz)
		adminAPI.PUT("/quizzes/:id", handlers.AdminQuiz.UpdateQuiz)
		adminAPI.DELETE("/quizzes/:id", handlers.AdminQuiz.DeleteQuiz)
		adminAPI.POST("/quizzes/:id/activate", handlers.AdminQuiz.ActivateQuiz)
		adminAPI.POST("/quizzes/:id/deactivate", handlers.AdminQuiz.DeactivateQuiz)
		adminAPI.GET("/quizzes/:id/attempts", handlers.AdminQuiz.ListAttempts)

		adminAPI.GET("/system/metrics", handlers.Metrics.StreamMetrics)
		adminAPI.GET("/system/metrics/snapshot", handlers.Metrics.Snapshot)
	}

	return router
}
