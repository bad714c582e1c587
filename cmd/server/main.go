package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vidmesh/realtime/internal/application"
	"github.com/vidmesh/realtime/internal/auth"
	"github.com/vidmesh/realtime/internal/config"
	"github.com/vidmesh/realtime/internal/infrastructure/postgres"
	kafkaconsumer "github.com/vidmesh/realtime/internal/kafka"
	transporthttp "github.com/vidmesh/realtime/internal/transport/http"
	"github.com/vidmesh/realtime/internal/transport/ws"
)

func main() {
	// ── Logging ──────────────────────────────────────────────────────────────
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// ── Config ───────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if cfg.Server.Env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().Str("env", cfg.Server.Env).Str("port", cfg.Server.Port).Msg("starting vidmesh-realtime")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Database ──────────────────────────────────────────────────────────────
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("postgres ping failed")
	}
	log.Info().Msg("postgres connected")

	// ── Repositories ──────────────────────────────────────────────────────────
	notificationRepo := postgres.NewNotificationRepository(pool)
	settingsRepo := postgres.NewSettingsRepository(pool)
	conversationRepo := postgres.NewConversationRepository(pool)
	messageRepo := postgres.NewMessageRepository(pool)
	userRepo := postgres.NewUserRepository(pool)

	// ── Connection Registry & Hub ─────────────────────────────────────────────
	registry := ws.NewRegistry()
	hub := ws.NewHub(registry)
	typing := ws.NewTypingManager(hub, cfg.Typing.Timeout)

	// ── Delivery Engine ───────────────────────────────────────────────────────
	delivery := application.NewDeliveryEngine(
		notificationRepo,
		settingsRepo,
		hub,
		registry,
		cfg.Delivery.RetryDelay,
		cfg.Delivery.MaxRetries,
		cfg.Delivery.QueueSize,
	)
	go delivery.Run(ctx)

	// ── Message Relay ─────────────────────────────────────────────────────────
	relay := application.NewMessageRelay(conversationRepo, messageRepo, userRepo, delivery, hub, registry)

	// ── WebSocket Gateway & HTTP Server ───────────────────────────────────────
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	gateway := ws.NewGateway(registry, hub, typing, relay, delivery, userRepo)
	handler := transporthttp.NewHandler(delivery, relay, registry)
	router := transporthttp.NewRouter(handler, gateway, verifier)

	// ── Kafka Consumer ────────────────────────────────────────────────────────
	consumer, err := kafkaconsumer.New(
		cfg.Kafka.Brokers,
		cfg.Kafka.ConsumerGroupID,
		cfg.Kafka.Topics,
		delivery,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create kafka consumer")
	}

	// Start Kafka consumer in background
	go consumer.Start(ctx)
	log.Info().Strs("topics", cfg.Kafka.Topics).Msg("kafka consumer started")

	// ── TTL Purge Job (every 24h) ─────────────────────────────────────────────
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				delivery.PurgeTTL(context.Background(), cfg.TTL.RetentionDays)
			case <-ctx.Done():
				return
			}
		}
	}()

	// ── Start HTTP Server ─────────────────────────────────────────────────────
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("HTTP server listening")
		if err := router.Start(":" + cfg.Server.Port); err != nil {
			log.Info().Msg("HTTP server stopped")
		}
	}()

	// ── Graceful Shutdown ─────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := router.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("vidmesh-realtime stopped")
}
