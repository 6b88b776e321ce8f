package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/glowdesk/booking-engine/internal/api"
	"github.com/glowdesk/booking-engine/internal/appointment"
	"github.com/glowdesk/booking-engine/internal/config"
	"github.com/glowdesk/booking-engine/internal/db"
	"github.com/glowdesk/booking-engine/internal/events"
	"github.com/glowdesk/booking-engine/internal/observability/metrics"
	"github.com/glowdesk/booking-engine/internal/policy"
	redisclient "github.com/glowdesk/booking-engine/internal/redis"
	"github.com/glowdesk/booking-engine/pkg/logging"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("api-server starting up", "env", cfg.Env, "http_port", cfg.HTTPPort, "version", version)

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

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Error("redis connection error", "error", err)
		return
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", "error", err)
		}
	}()
	logger.Info("connected to Redis")

	reg := prometheus.DefaultRegisterer

	repo := appointment.NewPgRepository(pgPool)
	locker := redisclient.NewRedisStaffLocker(rdb, cfg.LockTTL)
	policies := policy.NewCachedProvider(policy.NewPgProvider(pgPool), rdb, cfg.PolicyCacheTTL, logger)

	svc := appointment.NewService(appointment.ServiceConfig{
		Repo:     repo,
		Locker:   locker,
		Policies: policies,
		Logger:   logger,
		Metrics:  metrics.NewBookingMetrics(reg),
		SlotStep: cfg.SlotGranularity,
	})

	// The dispatcher runs embedded so a single-binary deployment still
	// drains the outbox; SKIP LOCKED keeps it safe next to intent-worker.
	dispatcher := events.NewDispatcher(events.DispatcherConfig{
		Store:       events.NewPgOutbox(pgPool),
		Notifier:    &events.LogNotifier{Logger: logger},
		Syncer:      &events.LogSyncer{Logger: logger},
		Logger:      logger,
		Metrics:     metrics.NewDispatcherMetrics(reg),
		Interval:    cfg.DispatchInterval,
		BatchSize:   cfg.DispatchBatch,
		MaxAttempts: cfg.MaxIntentAttempts,
	})
	go dispatcher.Run(rootCtx)

	handler := api.NewRouter(api.RouterConfig{
		Service: svc,
		PgPool:  pgPool,
		Redis:   rdb,
		Logger:  logger,
		Metrics: metrics.NewHTTPMetrics(reg),
		Env:     cfg.Env,
		Version: version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	case <-rootCtx.Done():
	}

	logger.Info("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
}
