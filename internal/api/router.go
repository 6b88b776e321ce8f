package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/glowdesk/booking-engine/internal/appointment"
	"github.com/glowdesk/booking-engine/internal/observability/metrics"
	"github.com/glowdesk/booking-engine/pkg/logging"
)

type RouterConfig struct {
	Service *appointment.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  *logging.Logger
	Metrics *metrics.HTTPMetrics
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(MetricsMiddleware(cfg.Metrics))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	svc := cfg.Service
	r.Route("/tenants/{tenantID}", func(r chi.Router) {
		r.Get("/availability", getAvailabilityHandler(svc))

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", createAppointmentHandler(svc))
			r.Get("/{id}", getAppointmentHandler(svc))
			r.Post("/{id}/reschedule", rescheduleAppointmentHandler(svc))
			r.Post("/{id}/cancel", cancelAppointmentHandler(svc))
			r.Post("/{id}/confirm", transitionHandler(func(req *http.Request, tenantID, id uuid.UUID) (*appointment.Appointment, error) {
				return svc.Transition(req.Context(), tenantID, id, appointment.StatusConfirmed)
			}))
			r.Post("/{id}/start", transitionHandler(func(req *http.Request, tenantID, id uuid.UUID) (*appointment.Appointment, error) {
				return svc.Transition(req.Context(), tenantID, id, appointment.StatusInProgress)
			}))
			r.Post("/{id}/no-show", transitionHandler(func(req *http.Request, tenantID, id uuid.UUID) (*appointment.Appointment, error) {
				return svc.MarkNoShow(req.Context(), tenantID, id)
			}))
			r.Post("/{id}/complete", transitionHandler(func(req *http.Request, tenantID, id uuid.UUID) (*appointment.Appointment, error) {
				return svc.MarkCompleted(req.Context(), tenantID, id)
			}))
		})
	})

	return r
}
