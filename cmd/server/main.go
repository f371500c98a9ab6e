package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/advisorly/reading-room/internal/auth"
	"github.com/advisorly/reading-room/internal/config"
	"github.com/advisorly/reading-room/internal/handler"
	"github.com/advisorly/reading-room/internal/ledger"
	"github.com/advisorly/reading-room/internal/registry"
	"github.com/advisorly/reading-room/internal/room"
	"github.com/advisorly/reading-room/internal/store"
	"github.com/advisorly/reading-room/internal/stream"
	"github.com/advisorly/reading-room/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log)
	logger := log.L()
	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting reading-room")

	messageLog, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open message log")
	}
	defer messageLog.Close()

	gcCtx, gcCancel := context.WithCancel(context.Background())
	defer gcCancel()
	go messageLog.RunGC(gcCtx, 10*time.Minute)

	var snapshots registry.SnapshotStore
	if cfg.Redis.Address != "" {
		snapshots, err = registry.NewRedisStore(cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize redis snapshot store")
		}
		logger.Info().Str("address", cfg.Redis.Address).Msg("connected to redis")
	} else {
		snapshots = registry.NewMemoryStore()
		logger.Warn().Msg("no redis configured; session snapshots will not survive restarts")
	}
	defer snapshots.Close()

	ledgerClient := ledger.NewHTTPClient(cfg.Ledger)
	logger.Info().Str("base_url", cfg.Ledger.BaseURL).Msg("ledger client ready")

	var producer stream.Producer
	if cfg.Kafka.Enabled {
		producer, err = stream.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize kafka producer")
		}
		defer producer.Close()
		logger.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("connected to kafka")
	}

	hub := room.NewHub(room.Deps{
		Verifier:  auth.NewVerifier(cfg.Auth),
		Log:       messageLog,
		Snapshots: snapshots,
		Ledger:    ledgerClient,
		Stream:    producer,
		WebSocket: cfg.WebSocket,
		Room:      cfg.Room,
	})
	defer hub.Stop()

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(log.GinMiddleware(logger))

	h := handler.New(hub, messageLog, cfg.WebSocket)
	h.RegisterRoutes(engine)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("stopped")
}
