package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/glowdesk/booking-engine/internal/config"
	"github.com/glowdesk/booking-engine/internal/db"
	"github.com/glowdesk/booking-engine/internal/events"
	"github.com/glowdesk/booking-engine/internal/observability/metrics"
	"github.com/glowdesk/booking-engine/pkg/logging"
)

// intent-worker drains the intent outbox as a standalone process. It can
// run alongside api-server's embedded dispatcher; SKIP LOCKED keeps the two
// from claiming the same intents.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("intent-worker starting up", "env", cfg.Env, "interval", cfg.DispatchInterval)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Error("postgres connection error", "error", err)
		return
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	dispatcher := events.NewDispatcher(events.DispatcherConfig{
		Store:       events.NewPgOutbox(pgPool),
		Notifier:    &events.LogNotifier{Logger: logger},
		Syncer:      &events.LogSyncer{Logger: logger},
		Logger:      logger,
		Metrics:     metrics.NewDispatcherMetrics(prometheus.DefaultRegisterer),
		Interval:    cfg.DispatchInterval,
		BatchSize:   cfg.DispatchBatch,
		MaxAttempts: cfg.MaxIntentAttempts,
	})

	dispatcher.Run(rootCtx)

	logger.Info("intent-worker stopped")
}
