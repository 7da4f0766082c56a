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
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/chatlens/insight-gateway/internal/audit"
	"github.com/chatlens/insight-gateway/internal/authsvc"
	"github.com/chatlens/insight-gateway/internal/collector"
	"github.com/chatlens/insight-gateway/internal/config"
	"github.com/chatlens/insight-gateway/internal/database"
	"github.com/chatlens/insight-gateway/internal/enrich"
	"github.com/chatlens/insight-gateway/internal/handler"
	"github.com/chatlens/insight-gateway/internal/jobs"
	"github.com/chatlens/insight-gateway/internal/middleware"
	"github.com/chatlens/insight-gateway/internal/redis"
	"github.com/chatlens/insight-gateway/internal/session"
	"github.com/chatlens/insight-gateway/internal/sse"
	"github.com/chatlens/insight-gateway/internal/state"
)

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	auditRecorder := audit.Nop()
	if cfg.AuditEnabled() {
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

		if err := audit.Migrate(db); err != nil {
			log.Fatal().Err(err).Msg("failed to run audit migrations")
		}
		auditRecorder = audit.NewRecorder(db)
		log.Info().Msg("audit trail enabled")
	} else {
		log.Info().Msg("audit trail disabled, DATABASE_URL not set")
	}

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	snapshotStore := state.NewRedisStore(redisClient, config.StateSnapshotTTL)
	states := state.NewManager(snapshotStore, broker)

	collectorClient := collector.NewClient(cfg.CollectorAPIURL, cfg.APITimeout())
	authClient := authsvc.NewClient(cfg.AuthAPIURL, cfg.APITimeout())

	aggregator := enrich.NewAggregator(collectorClient)
	machine := session.NewMachine(collectorClient, auditRecorder)
	coordinator := session.NewCoordinator(machine, aggregator)

	authMiddleware := middleware.NewAuthCookie()
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client, cfg.RateLimitPerMin)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	authHandler := handler.NewAuthHandler(authClient, cfg.SecureCookies)
	telegramHandler := handler.NewTelegramHandler(machine, coordinator, aggregator, collectorClient, states)
	stateHandler := handler.NewStateHandler(machine, coordinator, states)
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

	r.Route("/api/auth", func(r chi.Router) {
		r.Mount("/", authHandler.Routes())
	})

	r.Route("/api/telegram", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)
		r.Route("/state", func(r chi.Router) {
			r.Get("/events", eventsHandler.ServeHTTP)
			r.Mount("/", stateHandler.Routes())
		})
		r.Mount("/", telegramHandler.Routes())
	})

	refreshJob := jobs.NewRefreshJob(machine, states, cfg.RefreshInterval())
	refreshJob.Start()
	defer refreshJob.Stop()

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
