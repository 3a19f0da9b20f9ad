package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/queue-api/internal/config"
	"github.com/jwalitptl/queue-api/internal/handler"
	participanthandler "github.com/jwalitptl/queue-api/internal/handler/participant"
	queuehandler "github.com/jwalitptl/queue-api/internal/handler/queue"
	"github.com/jwalitptl/queue-api/internal/middleware"
	"github.com/jwalitptl/queue-api/internal/repository"
	"github.com/jwalitptl/queue-api/internal/repository/memory"
	"github.com/jwalitptl/queue-api/internal/repository/postgres"
	"github.com/jwalitptl/queue-api/internal/router"
	directoryService "github.com/jwalitptl/queue-api/internal/service/directory"
	queueService "github.com/jwalitptl/queue-api/internal/service/queue"
	"github.com/jwalitptl/queue-api/internal/ws"
	"github.com/jwalitptl/queue-api/pkg/logger"
	"github.com/jwalitptl/queue-api/pkg/messaging/redis"
	"github.com/jwalitptl/queue-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Logging.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
	})
	zl := *appLogger.Zerolog()

	m := metrics.NewMetrics("queueapi")

	// Repositories: postgres when configured, in-memory otherwise.
	var queueRepo repository.QueueRepository
	var userRepo repository.UserRepository
	if cfg.Database.Host != "" {
		db, err := postgres.NewDB(cfg.Database.ToPostgresConfig())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()
		queueRepo = postgres.NewQueueRepository(db, m)
		userRepo = postgres.NewUserRepository(db)
	} else {
		appLogger.Warn("no database configured, using in-memory store")
		queueRepo = memory.NewQueueRepository()
		userRepo = memory.NewUserRepository()
	}

	// Services
	engine := queueService.NewService(queueRepo, m, zl)
	directory := directoryService.NewService(queueRepo, userRepo, cfg.Directory.CacheTTL)

	// Realtime gateway
	hub := ws.NewHub().WithMetrics(m)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	broadcaster := ws.NewLocalBroadcaster(hub)
	if cfg.Redis.URL != "" {
		broker, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), &zl)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		broadcaster, err = ws.NewBrokerBroadcaster(broker, hub, cfg.Redis.Channel, zl)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start broker broadcaster")
		}
	}
	defer broadcaster.Close()

	gateway := ws.NewGateway(hub, engine, directory, broadcaster, m, zl)

	// Handlers and router
	h := handler.NewHandler()
	queueH := queuehandler.NewHandler(engine, directory, gateway)
	participantH := participanthandler.NewHandler(userRepo)

	routerCfg := router.Config{
		CORSConfig:    middleware.DefaultCORSConfig(),
		MetricsPrefix: "queueapi",
	}
	if cfg.RateLimit.Enabled {
		routerCfg.RateLimit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
		routerCfg.RateBurst = cfg.RateLimit.Burst
	}

	r := router.NewRouter(queueH, participantH, gateway, h, routerCfg)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		appLogger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
