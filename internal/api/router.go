package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type RouterConfig struct {
	Service AppointmentService
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  *slog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	h := &handlers{svc: cfg.Service, logger: logger}

	r.Route("/hosts/{hostID}", func(r chi.Router) {
		r.Get("/availability", h.getAvailability)
		r.Get("/availability-settings", h.getSettings)
		r.Put("/availability-settings", h.putSettings)
		r.Get("/appointment-types", h.listAppointmentTypes)
		r.Post("/appointment-types", h.createAppointmentType)
		r.Get("/appointments", h.listAppointments)
	})

	r.Post("/appointments", h.createAppointment)
	r.Get("/appointments/{id}", h.getAppointment)
	r.Post("/appointments/{id}/confirm", h.confirmAppointment)
	r.Post("/appointments/{id}/cancel", h.cancelAppointment)

	return r
}
