package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/dentix/clinic-scheduling/internal/schedule"
)

type RouterConfig struct {
	Service   *schedule.Service
	PgPool    *pgxpool.Pool
	Redis     *redis.Client // nil when the slot cache is disabled
	JWTSecret string
	Env       string
	Version   string
	Log       zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	// Health and metrics stay outside auth.
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret))

		r.Get("/doctors/{id}/slots", getSlotsHandler(cfg.Service))
		r.Get("/doctors/{id}/appointments", doctorAppointmentsHandler(cfg.Service))
		r.Get("/patients/{id}/appointments", patientAppointmentsHandler(cfg.Service))
		r.Get("/patients/{id}/conflict", patientConflictHandler(cfg.Service))

		r.Post("/appointments", bookAppointmentHandler(cfg.Service))
		r.Post("/appointments/legacy", bookLegacyHandler(cfg.Service))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/reschedule", rescheduleHandler(cfg.Service))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/status", updateStatusHandler(cfg.Service))
	})

	return r
}
