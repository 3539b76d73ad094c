// Package router assembles the HTTP surface of the platform.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/medlink/telehealth-platform/internal/availability"
	"github.com/medlink/telehealth-platform/internal/booking"
	httpmiddleware "github.com/medlink/telehealth-platform/internal/http/middleware"
	"github.com/medlink/telehealth-platform/internal/identity"
	"github.com/medlink/telehealth-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	BookingHandler     *booking.Handler
	ScheduleHandler    *availability.Handler
	MetricsHandler     http.Handler
	AuthSecret         string
	CORSAllowedOrigins []string
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	if cfg.RateLimitPerSecond > 0 {
		r.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
	}

	// Public endpoints: discovery and operational surfaces.
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.BookingHandler != nil {
			public.Get("/doctors/{doctorID}/slots", cfg.BookingHandler.GetSlots)
		}
		if cfg.ScheduleHandler != nil {
			public.Get("/doctors/{doctorID}/schedule", cfg.ScheduleHandler.GetSchedule)
		}
	})

	// Authenticated endpoints.
	r.Group(func(private chi.Router) {
		private.Use(identity.Middleware(cfg.AuthSecret))

		if cfg.BookingHandler != nil {
			private.Post("/appointments", cfg.BookingHandler.CreateAppointment)
			private.Get("/appointments", cfg.BookingHandler.ListMyAppointments)
			private.Route("/appointments/{appointmentID}", func(appt chi.Router) {
				appt.Get("/", cfg.BookingHandler.GetAppointment)
				appt.Post("/start", cfg.BookingHandler.StartAppointment)
				appt.Post("/complete", cfg.BookingHandler.CompleteAppointment)
				appt.Post("/cancel", cfg.BookingHandler.CancelAppointment)
				appt.Post("/no-show", cfg.BookingHandler.NoShowAppointment)
			})
		}
		if cfg.ScheduleHandler != nil {
			private.With(identity.RequireRole(identity.RoleDoctor, identity.RoleAdmin)).
				Put("/doctors/{doctorID}/schedule", cfg.ScheduleHandler.PutSchedule)
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
