package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Service        AppointmentService
	Dependencies   []Dependency
	Logger         *zap.Logger
	Env            string
	Version        string
	RequestTimeout time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(middleware.Recoverer)

	// Health endpoints
	health := NewHealthHandler(cfg.Dependencies, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst, log))
		if cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
		}

		svc := cfg.Service

		// Schedule endpoints
		r.Get("/doctors/{doctorID}/schedule", getScheduleHandler(svc, log))
		r.Post("/doctors/{doctorID}/slots/release", releaseSlotHandler(svc, log))

		// Appointment endpoints
		r.Post("/appointments", bookAppointmentHandler(svc, log))
		r.Get("/appointments", listAppointmentsHandler(svc, log))
		r.Get("/appointments/{id}", getAppointmentHandler(svc, log))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(svc, log))
		r.Put("/appointments/{id}/cancel", cancelAppointmentHandler(svc, log))

		r.Get("/patients/{patientID}/appointments/upcoming", patientListHandler(svc.ListUpcoming, log))
		r.Get("/patients/{patientID}/appointments/history", patientListHandler(svc.ListHistory, log))
	})

	return r
}
