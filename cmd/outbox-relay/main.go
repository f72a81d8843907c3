package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/booking-availability/internal/config"
	"github.com/hackgods/booking-availability/internal/db"
	"github.com/hackgods/booking-availability/internal/logging"
	"github.com/hackgods/booking-availability/internal/outbox"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("outbox-relay", "info").Error("config load error", "err", err)
		os.Exit(1)
	}

	logger := logging.New("outbox-relay", cfg.LogLevel)
	logger.Info("outbox-relay starting up", "env", cfg.Env, "topic", cfg.OutboxTopic)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Error("postgres connection error", "err", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	publisher := outbox.NewPublisher(
		outbox.NewPgStore(pgPool),
		outbox.NewKafkaWriter(cfg.Brokers(), cfg.OutboxTopic),
		logger,
		outbox.PublisherConfig{
			Brokers:         cfg.Brokers(),
			Topic:           cfg.OutboxTopic,
			PollEvery:       cfg.OutboxPollInterval,
			BatchSize:       cfg.OutboxBatchSize,
			BreakerFailures: cfg.BreakerFailures,
			BreakerTimeout:  cfg.BreakerTimeout,
		},
	)

	publisher.Run(rootCtx)
	logger.Info("outbox-relay stopped")
}
