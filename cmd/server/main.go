package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/quizforge/quizforge-backend/internal/config"
	"github.com/quizforge/quizforge-backend/internal/database"
	"github.com/quizforge/quizforge-backend/internal/examsession"
	"github.com/quizforge/quizforge-backend/internal/handler"
	"github.com/quizforge/quizforge-backend/internal/logger"
	"github.com/quizforge/quizforge-backend/internal/middleware"
	"github.com/quizforge/quizforge-backend/internal/repository"
	"github.com/quizforge/quizforge-backend/internal/router"
	"github.com/quizforge/quizforge-backend/internal/service"
	"github.com/quizforge/quizforge-backend/internal/validator"
	"github.com/quizforge/quizforge-backend/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting QuizForge Backend")

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
	quizRepo := repository.NewQuizRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	sessionStore := repository.NewSessionStore(rdb)

	// ─── Background Workers ───────────────────────────────────────────
	autosaveWorker := worker.NewAutosaveWorker(sessionStore, cfg.AutosaveFlushInterval, cfg.AutosaveBufferSize, log)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg.JWTSecret)
	quizService := service.NewQuizService(quizRepo, rdb, cfg.QuizCacheTTL, log)
	leaderboardService := service.NewLeaderboardService(rdb, attemptRepo, userRepo, log)
	attemptService := service.NewAttemptService(attemptRepo, quizService)
	leaderboardWorker := worker.NewLeaderboardWorker(rdb, leaderboardService, log)

	manager := examsession.NewManager(examsession.Config{
		Store:     sessionStore,
		Autosaver: autosaveWorker,
		Sink:      attemptRepo,
	}, log)
	sessionService := service.NewExamSessionService(quizService, manager, leaderboardService, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		QuizSession: handler.NewQuizSessionHandler(sessionService, quizService),
		Attempt:     handler.NewAttemptHandler(attemptService),
		Leaderboard: handler.NewLeaderboardHandler(leaderboardService, quizService, cfg.LeaderboardSize),
		AdminQuiz:   handler.NewAdminQuizHandler(quizService, attemptService, leaderboardService, log),
		WS:          handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
		Metrics:     handler.NewMetricsHandler(rdb, sessionService, autosaveWorker, log),
	}

	// ─── Start Background Loops ───────────────────────────────────────
	// Sessions stop first so their last saves reach the autosave worker
	// before it drains.
	sessionCtx, sessionCancel := context.WithCancel(context.Background())
	workerCtx, workerCancel := context.WithCancel(context.Background())
	limiterDone := make(chan struct{})

	var sessionWG, workerWG sync.WaitGroup
	sessionWG.Go(func() { sessionService.Run(sessionCtx) })
	workerWG.Go(func() { autosaveWorker.Start(workerCtx) })
	workerWG.Go(func() { leaderboardWorker.Start(workerCtx) })

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	go limiter.Run(limiterDone)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, limiter, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	close(limiterDone)

	// 2. Stop session timers. Saved progress is resumed by the next process.
	sessionCancel()
	sessionWG.Wait()

	// 3. Flush pending snapshots and stop the leaderboard worker.
	workerCancel()
	workerWG.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
