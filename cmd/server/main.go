package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/keurgui/access-gateway-go/internal/config"
	"github.com/keurgui/access-gateway-go/internal/coordinator"
	"github.com/keurgui/access-gateway-go/internal/database"
	"github.com/keurgui/access-gateway-go/internal/handler"
	"github.com/keurgui/access-gateway-go/internal/jobs"
	"github.com/keurgui/access-gateway-go/internal/middleware"
	"github.com/keurgui/access-gateway-go/internal/redis"
	"github.com/keurgui/access-gateway-go/internal/repository"
	"github.com/keurgui/access-gateway-go/internal/service"
	"github.com/keurgui/access-gateway-go/internal/sse"
	"github.com/keurgui/access-gateway-go/internal/upstream"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	sessionRepo := repository.NewSessionRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	recordStore := upstream.NewRecordStore(cfg.RecordStoreURL, config.UpstreamTimeout)
	authService := upstream.NewAuthService(cfg.AuthServiceURL, config.UpstreamTimeout)

	sessionService := service.NewSessionService(sessionRepo, authService, cfg.SessionTTL())
	coord := coordinator.New(recordStore, sessionService)
	shareCache := service.NewShareCache(redisClient)
	accessService := service.NewAccessService(recordStore, coord, sessionService, broker, shareCache, cfg.ShareURL)
	rateLimiter := service.NewRateLimiter(redisClient.Client)

	authMiddleware := middleware.NewAuthMiddleware(sessionService)
	sessionRateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client)
	loginRateLimitMiddleware := middleware.NewIPRateLimitMiddleware(
		rateLimiter, config.LoginRateLimitPerMin, time.Minute, "login",
	)
	validateRateLimitMiddleware := middleware.NewIPRateLimitMiddleware(
		rateLimiter, config.ValidateRateLimitPerMin, time.Minute, "validate",
	)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	authHandler := handler.NewAuthHandler(sessionService)
	accessHandler := handler.NewAccessHandler(accessService)
	qrHandler := handler.NewQRHandler(accessService)
	eventsHandler := handler.NewEventsHandler(broker)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/v1/auth", func(r chi.Router) {
		r.With(loginRateLimitMiddleware.Handler).Post("/login", authHandler.Login)
		r.With(loginRateLimitMiddleware.Handler).Post("/register", authHandler.Register)
		r.With(authMiddleware.Handler, sessionRateLimitMiddleware.Handler).Post("/logout", authHandler.Logout)
	})

	r.Route("/v1/validate", func(r chi.Router) {
		r.Use(validateRateLimitMiddleware.Handler)
		r.Get("/", qrHandler.Validate)
	})

	r.Route("/qr", func(r chi.Router) {
		r.Use(securityHeadersMiddleware.Handler)
		r.Get("/{id}", qrHandler.Share)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Use(sessionRateLimitMiddleware.Handler)
		r.Mount("/access", accessHandler.Routes())
		r.Get("/events", eventsHandler.ServeHTTP)
	})

	cleanupJob := jobs.NewCleanupJob(sessionRepo, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	statsRefreshJob := jobs.NewStatsRefreshJob(
		accessService, sessionRepo, broker, config.StatsRefreshInterval,
	)
	statsRefreshJob.Start()
	defer statsRefreshJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
