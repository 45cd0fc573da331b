package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mhorvath/tickethall/internal/observability"
	"github.com/mhorvath/tickethall/internal/rateLimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, users UserLoader, rl *rateLimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(IdentityMiddleware(users))
	if rl != nil {
		r.Use(RateLimitMiddleware(rl, logger))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/events", h.ListEvents)
		r.Post("/events", h.CreateEvent)
		r.Get("/events/{id}", h.GetEvent)
		r.Patch("/events/{id}", h.UpdateEvent)
		r.Delete("/events/{id}", h.DeleteEvent)
		r.Patch("/events/{id}/status", h.ChangeEventStatus)
		r.Post("/events/{id}/bookings", h.CreateBooking)
		r.Get("/events/{id}/bookings", h.ListBookings)

		r.Get("/admin/users", h.ListUsers)
		r.Patch("/admin/users/{id}/enabled", h.SetUserEnabled)

		r.Get("/healthz", h.Healthz)
		r.Get("/readyz", h.Readyz)
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
