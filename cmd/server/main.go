package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/classpulse-backend/internal/config"
	"github.com/stemsi/classpulse-backend/internal/database"
	"github.com/stemsi/classpulse-backend/internal/handler"
	"github.com/stemsi/classpulse-backend/internal/logger"
	"github.com/stemsi/classpulse-backend/internal/middleware"
	"github.com/stemsi/classpulse-backend/internal/repository"
	"github.com/stemsi/classpulse-backend/internal/repository/memory"
	"github.com/stemsi/classpulse-backend/internal/router"
	"github.com/stemsi/classpulse-backend/internal/service"
	"github.com/stemsi/classpulse-backend/internal/session"
	"github.com/stemsi/classpulse-backend/internal/validator"
	"github.com/stemsi/classpulse-backend/internal/worker"
)

// backend is everything that differs between STORE_DRIVER values.
type backend struct {
	store     session.Store
	sessions  service.SessionRepository
	questions service.QuestionRepository
	responses service.ResponseRepository
	cache     service.SessionCache
	drafts    service.DraftStore
	bus       service.EventBus

	pool *pgxpool.Pool
	rdb  *redis.Client
	// counter is set only when submissions are counted through the queue.
	counter *repository.SessionRepository
}

func (b *backend) Close() {
	if b.rdb != nil {
		b.rdb.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("store", cfg.StoreDriver).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ClassPulse Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect Storage ───────────────────────────────────────────────
	var b *backend
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		b = newMemoryBackend()
		log.Warn().Msg("Using in-memory store; data is lost on restart")
	case config.StoreDriverPostgres:
		var err error
		b, err = newPostgresBackend(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect storage")
		}
	default:
		log.Fatal().Str("store", cfg.StoreDriver).Msg("Unknown STORE_DRIVER")
	}
	defer b.Close()

	// ─── Initialize Session Engine ─────────────────────────────────────
	clock := session.SystemClock()
	engine := session.NewEngine(b.store, clock, log,
		[]session.JoinOption{session.WithSectionEnforcement(cfg.EnforceSection)},
		[]session.GuardOption{session.WithAutoSubmitGrace(cfg.AutoSubmitGrace)},
	)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	questionService := service.NewQuestionService(b.questions, log)
	sessionService := service.NewSessionService(b.sessions, b.questions, b.responses, b.cache, b.bus, clock, log)
	participationService := service.NewParticipationService(engine, b.drafts, b.bus, clock, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		StudentPortal: handler.NewStudentPortalHandler(participationService, log),
		Session:       handler.NewSessionHandler(sessionService, log),
		Question:      handler.NewQuestionHandler(questionService, log),
		WS:            handler.NewWSHandler(participationService, log, cfg.AllowedOrigins),
		Monitor:       handler.NewMonitorHandler(sessionService, b.bus, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	if b.counter != nil {
		countWorker := worker.NewResponseCountWorker(b.counter, b.rdb, log)
		go countWorker.Start(workerCtx)
	}

	sweeper := worker.NewExpirySweeper(sessionService, cfg.ExpirySweepSchedule, log)
	if err := sweeper.Start(workerCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start expiry sweeper")
	}

	joinLimiter := middleware.NewRateLimiter(workerCtx, cfg.JoinRatePerMinute, time.Minute, middleware.ByStudent)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, joinLimiter, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
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

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

func newMemoryBackend() *backend {
	store := memory.NewStore()
	return &backend{
		store:     store,
		sessions:  store,
		questions: store,
		responses: store,
		cache:     store,
		drafts:    memory.NewDrafts(),
		bus:       memory.NewBus(),
	}
}

func newPostgresBackend(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*backend, error) {
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		pool.Close()
		return nil, err
	}

	sessionRepo := repository.NewSessionRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	responseRepo := repository.NewResponseRepository(pool)
	store := repository.NewStore(sessionRepo, questionRepo, responseRepo, rdb, cfg.SessionCodeTTL, log)

	return &backend{
		store:     store,
		sessions:  sessionRepo,
		questions: questionRepo,
		responses: responseRepo,
		cache:     store,
		drafts:    repository.NewDraftRepository(rdb),
		bus:       repository.NewMonitorRepository(rdb),
		pool:      pool,
		rdb:       rdb,
		counter:   sessionRepo,
	}, nil
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
